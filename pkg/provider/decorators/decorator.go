// Package decorators 提供商装饰器：熔断与频率控制。
// 装饰后的提供商仍满足 provider.SpotProvider，可直接挂进回退链。
package decorators

import (
	"context"
	"time"

	"marketstate/pkg/provider"
	"marketstate/pkg/table"
)

// Decorator 装饰器基础接口
type Decorator interface {
	provider.Provider

	// GetBaseProvider 获取被装饰的基础 Provider
	GetBaseProvider() provider.Provider
}

// SpotDecorator 快照提供商装饰器接口
type SpotDecorator interface {
	provider.SpotProvider
	Decorator
}

// BaseDecorator 装饰器基础实现，默认全部透传
type BaseDecorator struct {
	base provider.Provider
}

// NewBaseDecorator 创建基础装饰器
func NewBaseDecorator(base provider.Provider) *BaseDecorator {
	return &BaseDecorator{base: base}
}

// Name 实现 Provider 接口
func (d *BaseDecorator) Name() string {
	return d.base.Name()
}

// GetRateLimit 实现 Provider 接口
func (d *BaseDecorator) GetRateLimit() time.Duration {
	return d.base.GetRateLimit()
}

// IsHealthy 实现 Provider 接口
func (d *BaseDecorator) IsHealthy() bool {
	return d.base.IsHealthy()
}

// GetBaseProvider 实现 Decorator 接口
func (d *BaseDecorator) GetBaseProvider() provider.Provider {
	return d.base
}

// SpotBaseDecorator 快照提供商装饰器基础实现
type SpotBaseDecorator struct {
	*BaseDecorator
	spotProvider provider.SpotProvider
}

// NewSpotBaseDecorator 创建快照基础装饰器
func NewSpotBaseDecorator(spotProvider provider.SpotProvider) *SpotBaseDecorator {
	return &SpotBaseDecorator{
		BaseDecorator: NewBaseDecorator(spotProvider),
		spotProvider:  spotProvider,
	}
}

// FetchSpot 实现 SpotProvider 接口
func (d *SpotBaseDecorator) FetchSpot(ctx context.Context) (*table.Frame, error) {
	return d.spotProvider.FetchSpot(ctx)
}
