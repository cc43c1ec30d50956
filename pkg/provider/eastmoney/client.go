// Package eastmoney 东方财富行情数据提供商。
// 走 push2 的 clist 接口，一次请求即可取回全市场快照或行业板块列表。
package eastmoney

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
	"marketstate/pkg/provider"
	"marketstate/pkg/table"
)

// clist 的 f 字段到输出列名的映射，顺序即输出列序
type fieldMapping struct {
	Field  string // 接口字段，如 "f12"
	Column string // 输出列名，如 "代码"
}

// 全市场快照字段
var spotFields = []fieldMapping{
	{"f12", "代码"},
	{"f14", "名称"},
	{"f2", "最新价"},
	{"f3", "涨跌幅"},
	{"f4", "涨跌额"},
	{"f5", "成交量"},
	{"f6", "成交额"},
	{"f7", "振幅"},
	{"f8", "换手率"},
	{"f10", "量比"},
	{"f15", "最高"},
	{"f16", "最低"},
	{"f17", "今开"},
	{"f18", "昨收"},
}

// 行业板块字段
var boardFields = []fieldMapping{
	{"f12", "板块代码"},
	{"f14", "板块名称"},
	{"f2", "最新价"},
	{"f3", "涨跌幅"},
	{"f4", "涨跌额"},
	{"f8", "换手率"},
	{"f20", "总市值"},
	{"f104", "上涨家数"},
	{"f105", "下跌家数"},
	{"f128", "领涨股票"},
	{"f136", "领涨股票-涨跌幅"},
}

// 沪深京A股：深主板、深创业板、沪主板、沪科创板、北交所
const spotMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048"

// 东财行业板块
const boardMarkets = "m:90+t:2+f:!50"

// Client 东方财富数据提供商
type Client struct {
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
	baseURL    string
	rateLimit  time.Duration
}

// NewClient 创建东方财富数据提供商
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 15 * time.Second,
		},
		userAgent: "MarketState/1.0",
		log:       logger.WithComponent("EastmoneyClient"),
		baseURL:   "https://push2.eastmoney.com/api/qt/clist/get",
		rateLimit: 200 * time.Millisecond,
	}
}

// Name 返回提供商名称
func (c *Client) Name() string {
	return "eastmoney"
}

// IsHealthy 检查提供商健康状态
func (c *Client) IsHealthy() bool {
	return c.httpClient != nil
}

// GetRateLimit 获取请求频率限制
func (c *Client) GetRateLimit() time.Duration {
	return c.rateLimit
}

// SetRateLimit 设置请求频率限制
func (c *Client) SetRateLimit(limit time.Duration) {
	c.rateLimit = limit
}

// SetTimeout 设置请求超时时间
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetBaseURL 覆盖接口地址（测试用）
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// Close 关闭提供商，清理资源
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// FetchSpot 拉取沪深京A股全市场快照，列名为中文（代码/名称/最新价/涨跌幅/成交额...）
func (c *Client) FetchSpot(ctx context.Context) (*table.Frame, error) {
	return c.fetchList(ctx, spotMarkets, "6000", spotFields)
}

// FetchIndustryBoards 拉取东财行业板块列表
func (c *Client) FetchIndustryBoards(ctx context.Context) (*table.Frame, error) {
	return c.fetchList(ctx, boardMarkets, "500", boardFields)
}

// clistResponse push2 clist 响应结构
type clistResponse struct {
	Data *struct {
		Total int                      `json:"total"`
		Diff  []map[string]interface{} `json:"diff"`
	} `json:"data"`
}

func (c *Client) fetchList(ctx context.Context, fs, pageSize string, fields []fieldMapping) (*table.Frame, error) {
	params := url.Values{}
	params.Set("pn", "1")
	params.Set("pz", pageSize)
	params.Set("po", "1")
	params.Set("np", "1") // diff 返回数组而非字典
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("fid", "f3")
	params.Set("fs", fs)

	fieldList := ""
	for i, fm := range fields {
		if i > 0 {
			fieldList += ","
		}
		fieldList += fm.Field
	}
	params.Set("fields", fieldList)

	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

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

	var parsed clistResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	columns := make([]string, 0, len(fields))
	for _, fm := range fields {
		columns = append(columns, fm.Column)
	}
	frame := table.New(columns...)

	if parsed.Data == nil {
		c.log.Debug("clist 响应无 data 字段")
		return frame, nil
	}

	for _, item := range parsed.Data.Diff {
		row := table.Row{}
		for _, fm := range fields {
			row[fm.Column] = item[fm.Field]
		}
		frame.Append(row)
	}

	c.log.Debugf("clist 返回 %d 行 (total=%d)", frame.Len(), parsed.Data.Total)
	return frame, nil
}

// 确保 Client 实现了所需的接口
var _ provider.SpotProvider = (*Client)(nil)
var _ provider.BoardProvider = (*Client)(nil)
var _ provider.Configurable = (*Client)(nil)
var _ provider.Closable = (*Client)(nil)
