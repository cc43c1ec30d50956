package provider

import (
	"context"
	"time"

	"marketstate/pkg/table"
)

// Provider 是所有数据提供商的基础接口。
// 定义了所有提供商都必须具备的通用能力：名称、健康状态与速率限制。
type Provider interface {
	// Name 返回提供商的名称，例如 "eastmoney" 或 "sina"。
	Name() string

	// IsHealthy 检查提供商的健康状态。
	IsHealthy() bool

	// GetRateLimit 返回两个连续请求之间的最小允许间隔。
	GetRateLimit() time.Duration
}

// SpotProvider 全市场实时快照提供商接口。
// 一次调用返回覆盖全市场的表格结果，列名依数据源而异。
type SpotProvider interface {
	Provider

	// FetchSpot 拉取全市场快照。
	FetchSpot(ctx context.Context) (*table.Frame, error)
}

// BoardProvider 行业板块行情提供商接口。
type BoardProvider interface {
	Provider

	// FetchIndustryBoards 拉取行业板块列表（含涨跌幅、家数、领涨股）。
	FetchIndustryBoards(ctx context.Context) (*table.Frame, error)
}

// SymbolDirectory 全市场证券代码目录。
// 为需要逐批请求的提供商（如腾讯）提供代码全集。
type SymbolDirectory interface {
	// Symbols 返回全市场A股代码列表（6位数字代码）。
	Symbols(ctx context.Context) ([]string, error)
}

// Configurable 可配置接口
// 支持动态配置的提供商可以实现此接口
type Configurable interface {
	// SetRateLimit 设置请求频率限制
	SetRateLimit(limit time.Duration)

	// SetTimeout 设置请求超时时间
	SetTimeout(timeout time.Duration)
}

// Closable 可关闭接口
// 需要清理资源的提供商应实现此接口
type Closable interface {
	// Close 关闭提供商，清理资源
	Close() error
}
