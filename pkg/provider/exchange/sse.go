// Package exchange 沪深交易所官网数据客户端：市场总貌统计与上市代码目录。
// 上交所走 commonQuery JSON 接口，深交所走 ShowReport 的 xlsx 报表。
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"marketstate/pkg/logger"
	"marketstate/pkg/table"
)

// 总貌统计的字段与中文条目名，顺序即输出行序
var sseSummaryItems = []struct {
	Key   string
	Label string
}{
	{"TRADE_DATE", "报告时间"},
	{"LIST_COM_NUM", "上市公司"},
	{"SECURITY_NUM", "上市股票"},
	{"TOTAL_ISSUE_VOL", "总股本"},
	{"NEGO_ISSUE_VOL", "流通股本"},
	{"TOTAL_VALUE", "总市值"},
	{"NEGO_VALUE", "流通市值"},
	{"AVG_PE_RATIO", "平均市盈率"},
}

// 总貌统计覆盖的口径（列序）
var sseSummaryProducts = []string{"股票", "主板", "科创板"}

// SSEClient 上交所数据客户端
type SSEClient struct {
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
	queryURL   string
	rateLimit  time.Duration
}

// NewSSEClient 创建上交所数据客户端
func NewSSEClient() *SSEClient {
	return &SSEClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 15 * time.Second,
		},
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		log:       logger.WithComponent("SSEClient"),
		queryURL:  "https://query.sse.com.cn/commonQuery.do",
		rateLimit: 500 * time.Millisecond,
	}
}

// SetQueryURL 覆盖接口地址（测试用）
func (c *SSEClient) SetQueryURL(u string) {
	c.queryURL = u
}

// SetTimeout 设置请求超时时间
func (c *SSEClient) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Close 关闭客户端，清理资源
func (c *SSEClient) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// Summary 上交所市场总貌（最近交易日/收盘后统计）。
// 返回 项目/股票/主板/科创板 的转置表，与官网披露口径一致。
func (c *SSEClient) Summary(ctx context.Context) (*table.Frame, error) {
	params := url.Values{}
	params.Set("sqlId", "COMMON_SSE_SJ_GPSJ_GPSJZM_TJSJ_L")
	params.Set("PRODUCT_NAME", "股票,主板,科创板")
	params.Set("type", "inParams")
	params.Set("_", fmt.Sprintf("%d", time.Now().UnixMilli()))

	body, err := c.get(ctx, c.queryURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result []map[string]interface{} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode summary failed: %w", err)
	}

	// 按口径名索引各行
	byProduct := map[string]map[string]interface{}{}
	for _, item := range parsed.Result {
		if name, ok := item["PRODUCT_NAME"].(string); ok {
			byProduct[name] = item
		}
	}

	columns := append([]string{"项目"}, sseSummaryProducts...)
	frame := table.New(columns...)

	for _, entry := range sseSummaryItems {
		row := table.Row{"项目": entry.Label}
		found := false
		for _, product := range sseSummaryProducts {
			if item, ok := byProduct[product]; ok {
				if v, ok := item[entry.Key]; ok {
					row[product] = v
					found = true
					continue
				}
			}
			row[product] = nil
		}
		if found {
			frame.Append(row)
		}
	}

	c.log.Debugf("上交所总貌 %d 项指标", frame.Len())
	return frame, nil
}

// Listing 上交所上市A股代码列表（主板+科创板）
func (c *SSEClient) Listing(ctx context.Context) ([]string, error) {
	var symbols []string

	// STOCK_TYPE: 1-主板, 8-科创板
	for _, stockType := range []string{"1", "8"} {
		codes, err := c.listingByType(ctx, stockType)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, codes...)
		time.Sleep(c.rateLimit)
	}
	return symbols, nil
}

func (c *SSEClient) listingByType(ctx context.Context, stockType string) ([]string, error) {
	params := url.Values{}
	params.Set("sqlId", "COMMON_SSE_CP_GPJCTPZ_GPLB_GP_L")
	params.Set("STOCK_TYPE", stockType)
	params.Set("REG_PROVINCE", "")
	params.Set("CSRC_CODE", "")
	params.Set("STOCK_CODE", "")
	params.Set("COMPANY_STATUS", "2,4,5,7,8")
	params.Set("type", "inParams")
	params.Set("isPagination", "true")
	params.Set("pageHelp.cacheSize", "1")
	params.Set("pageHelp.beginPage", "1")
	params.Set("pageHelp.pageSize", "10000")
	params.Set("pageHelp.pageNo", "1")
	params.Set("pageHelp.endPage", "1")
	params.Set("_", fmt.Sprintf("%d", time.Now().UnixMilli()))

	body, err := c.get(ctx, c.queryURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		PageHelp struct {
			Data []map[string]interface{} `json:"data"`
		} `json:"pageHelp"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode listing failed: %w", err)
	}

	codes := make([]string, 0, len(parsed.PageHelp.Data))
	for _, item := range parsed.PageHelp.Data {
		if code, ok := item["A_STOCK_CODE"].(string); ok && code != "" && code != "-" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func (c *SSEClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", "https://www.sse.com.cn/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	return body, nil
}
