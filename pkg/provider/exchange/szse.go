package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tealeg/xlsx"

	"marketstate/pkg/logger"
	"marketstate/pkg/table"
)

var szseDateRe = regexp.MustCompile(`^\d{8}$`)

// SZSEClient 深交所数据客户端。
// ShowReport 接口以 xlsx 形式返回报表，这里解析首个工作表。
type SZSEClient struct {
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
	reportURL  string
	rateLimit  time.Duration
}

// NewSZSEClient 创建深交所数据客户端
func NewSZSEClient() *SZSEClient {
	return &SZSEClient{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 20 * time.Second,
		},
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		log:       logger.WithComponent("SZSEClient"),
		reportURL: "https://www.szse.cn/api/report/ShowReport",
		rateLimit: 500 * time.Millisecond,
	}
}

// SetReportURL 覆盖接口地址（测试用）
func (c *SZSEClient) SetReportURL(u string) {
	c.reportURL = u
}

// SetTimeout 设置请求超时时间
func (c *SZSEClient) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// Close 关闭客户端，清理资源
func (c *SZSEClient) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// Summary 深交所指定交易日的市场总貌。
// date 为 YYYYMMDD 格式，非交易日返回空表。
func (c *SZSEClient) Summary(ctx context.Context, date string) (*table.Frame, error) {
	if !szseDateRe.MatchString(date) {
		return nil, fmt.Errorf("invalid date %q, expect YYYYMMDD", date)
	}
	queryDate := fmt.Sprintf("%s-%s-%s", date[:4], date[4:6], date[6:])

	params := url.Values{}
	params.Set("SHOWTYPE", "xlsx")
	params.Set("CATALOGID", "1803_sczm")
	params.Set("TABKEY", "tab1")
	params.Set("txtQueryDate", queryDate)
	params.Set("random", fmt.Sprintf("%d", time.Now().UnixNano()))

	body, err := c.get(ctx, c.reportURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return parseXLSXSheet(body)
}

// Listing 深交所上市A股代码列表（主板+创业板）
func (c *SZSEClient) Listing(ctx context.Context) ([]string, error) {
	params := url.Values{}
	params.Set("SHOWTYPE", "xlsx")
	params.Set("CATALOGID", "1110")
	params.Set("TABKEY", "tab1")
	params.Set("random", fmt.Sprintf("%d", time.Now().UnixNano()))

	body, err := c.get(ctx, c.reportURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	frame, err := parseXLSXSheet(body)
	if err != nil {
		return nil, err
	}

	codeCol, ok := frame.PickColumn([]string{"A股代码", "证券代码", "代码"})
	if !ok {
		return nil, fmt.Errorf("code column not found, available: %v", frame.Columns)
	}

	codes := make([]string, 0, frame.Len())
	for _, row := range frame.Rows {
		code := strings.TrimSpace(table.String(row[codeCol]))
		if len(code) == 6 {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

func (c *SZSEClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", "https://www.szse.cn/")

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

// parseXLSXSheet 解析 xlsx 首个工作表：第一行为表头，其余为数据行。
// 空报表（仅表头或无工作表）返回空Frame。
func parseXLSXSheet(data []byte) (*table.Frame, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("open xlsx failed: %w", err)
	}
	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) == 0 {
		return table.New(), nil
	}

	sheet := file.Sheets[0]
	header := sheet.Rows[0]
	columns := make([]string, 0, len(header.Cells))
	for _, cell := range header.Cells {
		columns = append(columns, strings.TrimSpace(cell.Value))
	}

	frame := table.New(columns...)
	for _, r := range sheet.Rows[1:] {
		if len(r.Cells) == 0 {
			continue
		}
		row := table.Row{}
		for i, col := range columns {
			if i < len(r.Cells) {
				row[col] = r.Cells[i].Value
			} else {
				row[col] = ""
			}
		}
		frame.Append(row)
	}
	return frame, nil
}
