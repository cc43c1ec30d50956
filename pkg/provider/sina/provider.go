// Package sina 新浪财经行情数据提供商。
// 全市场快照走 Market_Center 列表接口按页拉取，列名为英文
// （code/name/trade/changepercent/amount...）。
package sina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"marketstate/pkg/logger"
	"marketstate/pkg/provider"
	"marketstate/pkg/table"
)

const defaultPageSize = 80

// Provider 新浪数据提供商
type Provider struct {
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
	listURL    string // Market_Center.getHQNodeData
	countURL   string // Market_Center.getHQNodeStockCount
	pageSize   int
	maxPages   int // count 接口不可用时的兜底上限
	rateLimit  time.Duration
}

// NewProvider 创建新浪数据提供商
func NewProvider() *Provider {
	return &Provider{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
			Timeout: 15 * time.Second,
		},
		userAgent: "MarketState/1.0",
		log:       logger.WithComponent("SinaProvider"),
		listURL:   "http://vip.stock.finance.sina.com.cn/quotes_service/api/json_v2.php/Market_Center.getHQNodeData",
		countURL:  "http://vip.stock.finance.sina.com.cn/quotes_service/api/json_v2.php/Market_Center.getHQNodeStockCount",
		pageSize:  defaultPageSize,
		maxPages:  120,
		rateLimit: 200 * time.Millisecond,
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "sina"
}

// IsHealthy 检查提供商健康状态
func (p *Provider) IsHealthy() bool {
	return p.httpClient != nil
}

// GetRateLimit 获取请求频率限制
func (p *Provider) GetRateLimit() time.Duration {
	return p.rateLimit
}

// SetRateLimit 设置请求频率限制
func (p *Provider) SetRateLimit(limit time.Duration) {
	p.rateLimit = limit
}

// SetTimeout 设置请求超时时间
func (p *Provider) SetTimeout(timeout time.Duration) {
	p.httpClient.Timeout = timeout
}

// SetEndpoints 覆盖接口地址（测试用）
func (p *Provider) SetEndpoints(listURL, countURL string) {
	p.listURL = listURL
	p.countURL = countURL
}

// Close 关闭提供商，清理资源
func (p *Provider) Close() error {
	if p.httpClient != nil {
		p.httpClient.CloseIdleConnections()
	}
	return nil
}

// FetchSpot 按页拉取沪深A股全市场快照
func (p *Provider) FetchSpot(ctx context.Context) (*table.Frame, error) {
	pages := p.maxPages
	if count, err := p.fetchCount(ctx); err == nil && count > 0 {
		pages = (count + p.pageSize - 1) / p.pageSize
		p.log.Debugf("沪深A股总数 %d, 需要 %d 页", count, pages)
	} else if err != nil {
		p.log.Warnf("获取股票总数失败, 按短页终止: %v", err)
	}

	frame := table.New(nodeDataColumns...)

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := p.fetchPage(ctx, page)
		if err != nil {
			// 首页失败视为整体失败，后续页失败返回已取得的部分
			if page == 1 {
				return nil, err
			}
			p.log.Warnf("第 %d 页拉取失败, 返回前 %d 行: %v", page, frame.Len(), err)
			break
		}
		if len(rows) == 0 {
			break
		}

		for _, r := range rows {
			frame.Append(table.Row(r))
		}

		// 短页说明已到末尾
		if len(rows) < p.pageSize {
			break
		}
		if page < pages {
			time.Sleep(p.rateLimit)
		}
	}

	return frame, nil
}

func (p *Provider) fetchCount(ctx context.Context) (int, error) {
	body, err := p.get(ctx, fmt.Sprintf("%s?node=hs_a", p.countURL))
	if err != nil {
		return 0, err
	}
	return parseNodeCount(body)
}

func (p *Provider) fetchPage(ctx context.Context, page int) ([]map[string]interface{}, error) {
	url := fmt.Sprintf("%s?page=%d&num=%d&sort=symbol&asc=1&node=hs_a&symbol=&_s_r_a=page",
		p.listURL, page, p.pageSize)
	body, err := p.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseNodeData(body)
}

func (p *Provider) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Referer", "https://finance.sina.com.cn/")

	resp, err := p.httpClient.Do(req)
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

// 确保 Provider 实现了所需的接口
var _ provider.SpotProvider = (*Provider)(nil)
var _ provider.Configurable = (*Provider)(nil)
var _ provider.Closable = (*Provider)(nil)
