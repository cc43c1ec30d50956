package tencent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"marketstate/pkg/table"
)

// makeQuote 构造一条 ~ 分隔的行情串（下标与线上接口一致，无关字段填0）
func makeQuote(code, name string, price, pct float64, volume, amount float64) string {
	fields := make([]string, 50)
	for i := range fields {
		fields[i] = "0"
	}
	fields[idxName] = name
	fields[idxCode] = code
	fields[idxPrice] = fmt.Sprintf("%.2f", price)
	fields[idxVolume] = fmt.Sprintf("%.0f", volume)
	fields[idxPctChg] = fmt.Sprintf("%.2f", pct)
	fields[idxTurnover] = fmt.Sprintf("%.2f/%.0f/%.0f", price, volume, amount)
	return fmt.Sprintf("v_sh%s=\"%s\";", code, strings.Join(fields, "~"))
}

func gbkEncode(t *testing.T, s string) []byte {
	t.Helper()
	out, _, err := transform.Bytes(simplifiedchinese.GBK.NewEncoder(), []byte(s))
	require.NoError(t, err)
	return out
}

func TestParseQuoteData(t *testing.T) {
	t.Run("正常解析", func(t *testing.T) {
		payload := makeQuote("600000", "浦发银行", 10.10, 1.52, 1234567, 987654321) +
			"\n" + makeQuote("600519", "贵州茅台", 1500.0, -0.5, 30000, 45000000)

		rows := parseQuoteData(gbkEncode(t, payload))
		require.Len(t, rows, 2)

		assert.Equal(t, "600000", rows[0]["code"])
		assert.Equal(t, "浦发银行", rows[0]["name"])

		v, ok := table.Float(rows[0]["pct_chg"])
		require.True(t, ok)
		assert.InDelta(t, 1.52, v, 1e-9)

		amt, ok := table.Float(rows[0]["amount"])
		require.True(t, ok)
		assert.InDelta(t, 987654321, amt, 1e-6)
	})

	t.Run("空数据解析", func(t *testing.T) {
		assert.Empty(t, parseQuoteData(nil))
		assert.Empty(t, parseQuoteData([]byte("  ")))
	})

	t.Run("不完整条目被跳过", func(t *testing.T) {
		payload := `v_sh600000="1~只有~几个~字段";` + makeQuote("600519", "贵州茅台", 1500.0, 0.1, 1, 1)
		rows := parseQuoteData(gbkEncode(t, payload))
		require.Len(t, rows, 1)
		assert.Equal(t, "600519", rows[0]["code"])
	})

	t.Run("无效数据解析", func(t *testing.T) {
		assert.Empty(t, parseQuoteData([]byte("pv_none_match=1")))
	})
}

func TestParseTurnover(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"10.10/1234/987654", 987654.0},
		{"10.10/1234", nil},
		{"", nil},
		{"a/b/c", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseTurnover(tt.input)
			if tt.expected == nil {
				assert.Nil(t, got)
			} else {
				assert.InDelta(t, tt.expected.(float64), got.(float64), 1e-9)
			}
		})
	}
}

type fakeDirectory struct {
	symbols []string
	err     error
}

func (d *fakeDirectory) Symbols(ctx context.Context) ([]string, error) {
	return d.symbols, d.err
}

func TestFetchSpotBatching(t *testing.T) {
	var gotURLs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURLs = append(gotURLs, r.URL.String())
		payload := makeQuote("600000", "浦发银行", 10.0, 1.0, 100, 1000) +
			makeQuote("000001", "平安银行", 12.0, -1.0, 200, 2000)
		_, _ = w.Write(gbkEncode(t, payload))
	}))
	defer srv.Close()

	dir := &fakeDirectory{symbols: []string{"600000", "000001", "300750"}}
	p := NewProvider(dir)
	p.batchSize = 2
	p.rateLimit = 0
	p.SetBaseURL(srv.URL + "/q=")
	defer p.Close()

	frame, err := p.FetchSpot(context.Background())
	require.NoError(t, err)
	// 2个批次 × 每批响应2行
	assert.Equal(t, 4, frame.Len())
	assert.Len(t, gotURLs, 2)
	assert.Contains(t, gotURLs[0], "sh600000")
	assert.Contains(t, gotURLs[0], "sz000001")
	assert.Contains(t, gotURLs[1], "sz300750")
}

func TestFetchSpotDirectoryFailure(t *testing.T) {
	p := NewProvider(&fakeDirectory{err: fmt.Errorf("directory down")})
	defer p.Close()

	_, err := p.FetchSpot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestMarketPrefix(t *testing.T) {
	assert.Equal(t, "sh", marketPrefix("600000"))
	assert.Equal(t, "sz", marketPrefix("000001"))
	assert.Equal(t, "sz", marketPrefix("300750"))
	assert.Equal(t, "bj", marketPrefix("830799"))
	assert.Equal(t, "bj", marketPrefix("430047"))
}
