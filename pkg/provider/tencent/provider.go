// Package tencent 腾讯行情数据提供商。
// 腾讯接口只支持按代码批量查询，全市场快照需要先从交易所目录
// 取得代码全集，再分批拉取。作为回退链的最后手段使用。
package tencent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"marketstate/pkg/logger"
	"marketstate/pkg/provider"
	"marketstate/pkg/table"
)

// Provider 腾讯数据提供商
type Provider struct {
	httpClient *http.Client
	userAgent  string
	log        *logrus.Entry
	baseURL    string
	directory  provider.SymbolDirectory
	batchSize  int
	rateLimit  time.Duration
}

// NewProvider 创建腾讯数据提供商。directory 提供全市场代码全集。
func NewProvider(directory provider.SymbolDirectory) *Provider {
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
		log:       logger.WithComponent("TencentProvider"),
		baseURL:   "http://qt.gtimg.cn/q=",
		directory: directory,
		batchSize: 60,
		rateLimit: 200 * time.Millisecond,
	}
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "tencent"
}

// IsHealthy 检查提供商健康状态
func (p *Provider) IsHealthy() bool {
	return p.httpClient != nil && p.directory != nil
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

// SetBaseURL 覆盖接口地址（测试用）
func (p *Provider) SetBaseURL(u string) {
	p.baseURL = u
}

// Close 关闭提供商，清理资源
func (p *Provider) Close() error {
	if p.httpClient != nil {
		p.httpClient.CloseIdleConnections()
	}
	return nil
}

// IsSymbolSupported 检查是否支持该股票代码
func (p *Provider) IsSymbolSupported(symbol string) bool {
	if len(symbol) != 6 {
		return false
	}
	switch symbol[0] {
	case '6', '0', '3', '8', '4':
		return true
	}
	return false
}

// FetchSpot 基于交易所代码目录分批拉取全市场快照
func (p *Provider) FetchSpot(ctx context.Context) (*table.Frame, error) {
	symbols, err := p.directory.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("symbol directory failed: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbol directory is empty")
	}

	frame := table.New(quoteColumns...)

	for start := 0; start < len(symbols); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}

		rows, err := p.fetchBatch(ctx, symbols[start:end])
		if err != nil {
			// 已取得大半数据时不因单批失败而整体放弃
			if frame.Len() == 0 {
				return nil, err
			}
			p.log.Warnf("批次 %d-%d 失败, 返回前 %d 行: %v", start, end, frame.Len(), err)
			break
		}
		for _, row := range rows {
			frame.Append(row)
		}

		if end < len(symbols) {
			time.Sleep(p.rateLimit)
		}
	}

	return frame, nil
}

func (p *Provider) fetchBatch(ctx context.Context, symbols []string) ([]table.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.buildURL(symbols), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

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

	return parseQuoteData(body), nil
}

// buildURL 构建批量行情URL
func (p *Provider) buildURL(symbols []string) string {
	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		parts = append(parts, marketPrefix(symbol)+symbol)
	}
	return p.baseURL + strings.Join(parts, ",")
}

// marketPrefix 根据股票代码获取市场前缀
func marketPrefix(symbol string) string {
	switch {
	case strings.HasPrefix(symbol, "6"):
		return "sh"
	case strings.HasPrefix(symbol, "0"), strings.HasPrefix(symbol, "3"):
		return "sz"
	case strings.HasPrefix(symbol, "8"), strings.HasPrefix(symbol, "4"):
		return "bj"
	default:
		return "sh"
	}
}

// 确保 Provider 实现了所需的接口
var _ provider.SpotProvider = (*Provider)(nil)
var _ provider.Configurable = (*Provider)(nil)
var _ provider.Closable = (*Provider)(nil)
