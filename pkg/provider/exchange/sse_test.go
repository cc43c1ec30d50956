package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketstate/pkg/table"
)

const sseSummaryBody = `{
	"result": [
		{"PRODUCT_NAME": "股票", "TRADE_DATE": "20260826", "LIST_COM_NUM": "2280", "SECURITY_NUM": "2320",
		 "TOTAL_VALUE": "521000.5", "NEGO_VALUE": "480000.1", "AVG_PE_RATIO": "14.35",
		 "TOTAL_ISSUE_VOL": "48000", "NEGO_ISSUE_VOL": "45000"},
		{"PRODUCT_NAME": "主板", "TRADE_DATE": "20260826", "LIST_COM_NUM": "1700", "SECURITY_NUM": "1730",
		 "TOTAL_VALUE": "450000.0", "NEGO_VALUE": "430000.0", "AVG_PE_RATIO": "13.10",
		 "TOTAL_ISSUE_VOL": "43000", "NEGO_ISSUE_VOL": "41500"},
		{"PRODUCT_NAME": "科创板", "TRADE_DATE": "20260826", "LIST_COM_NUM": "580", "SECURITY_NUM": "590",
		 "TOTAL_VALUE": "71000.5", "NEGO_VALUE": "50000.1", "AVG_PE_RATIO": "42.80",
		 "TOTAL_ISSUE_VOL": "5000", "NEGO_ISSUE_VOL": "3500"}
	]
}`

func TestSSESummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "COMMON_SSE_SJ_GPSJ_GPSJZM_TJSJ_L", r.URL.Query().Get("sqlId"))
		fmt.Fprint(w, sseSummaryBody)
	}))
	defer srv.Close()

	c := NewSSEClient()
	c.SetQueryURL(srv.URL)
	defer c.Close()

	frame, err := c.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"项目", "股票", "主板", "科创板"}, frame.Columns)
	require.Equal(t, len(sseSummaryItems), frame.Len())

	assert.Equal(t, "报告时间", frame.Rows[0]["项目"])
	assert.Equal(t, "20260826", frame.Rows[0]["股票"])

	var peRow table.Row
	for _, row := range frame.Rows {
		if row["项目"] == "平均市盈率" {
			peRow = row
		}
	}
	require.NotNil(t, peRow)
	assert.Equal(t, "42.80", peRow["科创板"])
}

func TestSSESummaryBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>blocked</html>")
	}))
	defer srv.Close()

	c := NewSSEClient()
	c.SetQueryURL(srv.URL)
	defer c.Close()

	_, err := c.Summary(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode summary failed")
}

func TestSSEListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("STOCK_TYPE") {
		case "1":
			fmt.Fprint(w, `{"pageHelp": {"data": [
				{"A_STOCK_CODE": "600000", "COMPANY_ABBR": "浦发银行"},
				{"A_STOCK_CODE": "601318", "COMPANY_ABBR": "中国平安"},
				{"A_STOCK_CODE": "-", "COMPANY_ABBR": "纯B股"}
			]}}`)
		case "8":
			fmt.Fprint(w, `{"pageHelp": {"data": [
				{"A_STOCK_CODE": "688981", "COMPANY_ABBR": "中芯国际"}
			]}}`)
		default:
			http.Error(w, "bad type", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewSSEClient()
	c.SetQueryURL(srv.URL)
	c.rateLimit = 0
	defer c.Close()

	codes, err := c.Listing(context.Background())
	require.NoError(t, err)
	// 纯B股占位符被过滤
	assert.Equal(t, []string{"600000", "601318", "688981"}, codes)
}

func TestSSEListingHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewSSEClient()
	c.SetQueryURL(srv.URL)
	c.rateLimit = 0
	defer c.Close()

	_, err := c.Listing(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP status error: 403")
}
