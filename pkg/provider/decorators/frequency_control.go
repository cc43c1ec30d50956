package decorators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketstate/pkg/provider"
	"marketstate/pkg/table"
)

// FrequencyControlProvider 频率控制装饰器。
// 保证对同一数据源的两次请求之间满足最小间隔，失败时按固定退避重试。
type FrequencyControlProvider struct {
	*SpotBaseDecorator

	minInterval time.Duration // 最小请求间隔
	maxRetries  int           // 最大重试次数
	retryWait   time.Duration // 重试前等待时间

	mu          sync.Mutex
	lastRequest time.Time
	isActive    bool
}

// FrequencyControlConfig 频率控制配置
type FrequencyControlConfig struct {
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"` // 最小请求间隔
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`   // 最大重试次数
	RetryWait   time.Duration `yaml:"retry_wait" mapstructure:"retry_wait"`     // 重试等待时间
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`           // 是否启用
}

// DefaultFrequencyControlConfig 默认频率控制配置
func DefaultFrequencyControlConfig() *FrequencyControlConfig {
	return &FrequencyControlConfig{
		MinInterval: 200 * time.Millisecond,
		MaxRetries:  2,
		RetryWait:   time.Second,
		Enabled:     true,
	}
}

// NewFrequencyControlProvider 创建频率控制装饰器
func NewFrequencyControlProvider(spotProvider provider.SpotProvider, config *FrequencyControlConfig) *FrequencyControlProvider {
	if config == nil {
		config = DefaultFrequencyControlConfig()
	}

	return &FrequencyControlProvider{
		SpotBaseDecorator: NewSpotBaseDecorator(spotProvider),
		minInterval:       config.MinInterval,
		maxRetries:        config.MaxRetries,
		retryWait:         config.RetryWait,
		isActive:          config.Enabled,
	}
}

// Name 返回装饰器名称
func (f *FrequencyControlProvider) Name() string {
	return f.spotProvider.Name()
}

// GetRateLimit 返回频率限制
func (f *FrequencyControlProvider) GetRateLimit() time.Duration {
	return f.minInterval
}

// FetchSpot 实现带频率控制和重试的全市场快照获取
func (f *FrequencyControlProvider) FetchSpot(ctx context.Context) (*table.Frame, error) {
	if !f.active() {
		return f.spotProvider.FetchSpot(ctx)
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if err := f.enforceFrequencyLimit(ctx); err != nil {
			return nil, err
		}

		frame, err := f.spotProvider.FetchSpot(ctx)
		if err == nil {
			return frame, nil
		}
		lastErr = err

		if attempt < f.maxRetries && f.retryWait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryWait):
			}
		}
	}

	return nil, fmt.Errorf("已达到最大重试次数 (%d): %w", f.maxRetries, lastErr)
}

// enforceFrequencyLimit 执行频率限制，间隔不足时阻塞等待
func (f *FrequencyControlProvider) enforceFrequencyLimit(ctx context.Context) error {
	f.mu.Lock()
	elapsed := time.Since(f.lastRequest)
	var waitTime time.Duration
	if elapsed < f.minInterval {
		waitTime = f.minInterval - elapsed
	}
	f.mu.Unlock()

	if waitTime > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	f.mu.Lock()
	f.lastRequest = time.Now()
	f.mu.Unlock()
	return nil
}

func (f *FrequencyControlProvider) active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isActive
}

// SetMinInterval 设置最小请求间隔
func (f *FrequencyControlProvider) SetMinInterval(interval time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minInterval = interval
}

// SetEnabled 设置是否启用频率控制
func (f *FrequencyControlProvider) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isActive = enabled
}

// Reset 重置频率控制状态（测试用）
func (f *FrequencyControlProvider) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRequest = time.Time{}
}

var _ provider.SpotProvider = (*FrequencyControlProvider)(nil)
var _ Decorator = (*FrequencyControlProvider)(nil)
