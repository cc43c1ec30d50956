package sina

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func TestNormalizeJSON(t *testing.T) {
	in := `[{symbol:"sh600000",code:"600000",trade:10.10,changepercent:1.5},{symbol:"sz000001",trade:12}]`
	out := normalizeJSON(in)
	assert.Equal(t, `[{"symbol":"sh600000","code":"600000","trade":10.10,"changepercent":1.5},{"symbol":"sz000001","trade":12}]`, out)
}

func TestParseNodeData(t *testing.T) {
	t.Run("裸键与GBK", func(t *testing.T) {
		utf8Body := `[{symbol:"sh600000",code:"600000",name:"浦发银行",trade:10.10,changepercent:1.52,amount:123456789}]`
		gbkBody, err := transformString(utf8Body)
		require.NoError(t, err)

		rows, err := parseNodeData(gbkBody)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "浦发银行", rows[0]["name"])
		assert.Equal(t, "600000", rows[0]["code"])
		assert.InDelta(t, 1.52, rows[0]["changepercent"].(float64), 1e-9)
	})

	t.Run("空响应", func(t *testing.T) {
		rows, err := parseNodeData([]byte("null"))
		require.NoError(t, err)
		assert.Nil(t, rows)
	})

	t.Run("非法响应", func(t *testing.T) {
		_, err := parseNodeData([]byte("<html>blocked</html>"))
		assert.Error(t, err)
	})
}

func TestParseNodeCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{`"5439"`, 5439, false},
		{`5439`, 5439, false},
		{`var count="123";`, 123, false},
		{`nothing here`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := parseNodeCount([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestFetchSpotPaging(t *testing.T) {
	// 两个满页加一个短页
	pageRows := func(page, n int) string {
		out := "["
		for i := 0; i < n; i++ {
			if i > 0 {
				out += ","
			}
			out += fmt.Sprintf(`{symbol:"sh6%05d",code:"6%05d",name:"股票%d",trade:10.0,changepercent:0.5,amount:1000}`,
				page*100+i, page*100+i, i)
		}
		return out + "]"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/count", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"5"`))
	})
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		var body string
		switch r.URL.Query().Get("page") {
		case "1":
			body = pageRows(1, 2)
		case "2":
			body = pageRows(2, 2)
		default:
			body = pageRows(3, 1)
		}
		// 线上接口为 GBK 编码
		gbk, err := transformString(body)
		require.NoError(t, err)
		_, _ = w.Write(gbk)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewProvider()
	p.pageSize = 2
	p.rateLimit = 0
	p.SetEndpoints(srv.URL+"/list", srv.URL+"/count")
	defer p.Close()

	frame, err := p.FetchSpot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, frame.Len())
	assert.Contains(t, frame.Columns, "changepercent")
	assert.Contains(t, frame.Columns, "trade")
}

func transformString(s string) ([]byte, error) {
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(s))
	return out, err
}
