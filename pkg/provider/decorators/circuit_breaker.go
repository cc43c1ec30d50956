package decorators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"marketstate/pkg/logger"
	"marketstate/pkg/provider"
	"marketstate/pkg/table"
)

// CircuitBreakerProvider 熔断器装饰器
// 使用 sony/gobreaker 提供熔断功能，防止对故障数据源的持续请求
type CircuitBreakerProvider struct {
	*SpotBaseDecorator

	cb     *gobreaker.CircuitBreaker
	config *CircuitBreakerConfig

	mu    sync.RWMutex
	stats CircuitBreakerStats
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`                   // 熔断器名称
	MaxRequests uint32        `yaml:"max_requests" mapstructure:"max_requests"`   // 半开状态下的最大请求数
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`           // 统计窗口时间
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`             // 熔断器打开后的超时时间
	ReadyToTrip uint32        `yaml:"ready_to_trip" mapstructure:"ready_to_trip"` // 触发熔断的连续失败次数阈值
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`             // 是否启用熔断器
}

// CircuitBreakerStats 熔断器统计信息
type CircuitBreakerStats struct {
	TotalRequests     int64     `json:"total_requests"`
	SuccessfulRequest int64     `json:"successful_requests"`
	FailedRequests    int64     `json:"failed_requests"`
	LastFailure       time.Time `json:"last_failure"`
}

// DefaultCircuitBreakerConfig 默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:        "SpotProvider",
		MaxRequests: 2,                // 半开状态允许2个请求
		Interval:    60 * time.Second, // 60秒统计窗口
		Timeout:     30 * time.Second, // 熔断30秒
		ReadyToTrip: 3,                // 3次连续失败触发熔断
		Enabled:     true,
	}
}

// NewCircuitBreakerProvider 创建熔断器装饰器
func NewCircuitBreakerProvider(spotProvider provider.SpotProvider, config *CircuitBreakerConfig) *CircuitBreakerProvider {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if config.Name == "" {
		config.Name = spotProvider.Name()
	}

	log := logger.WithComponent("CircuitBreaker")

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ReadyToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("熔断器 %s 状态从 %v 变更为 %v", name, from, to)
		},
	}

	return &CircuitBreakerProvider{
		SpotBaseDecorator: NewSpotBaseDecorator(spotProvider),
		cb:                gobreaker.NewCircuitBreaker(settings),
		config:            config,
		stats:             CircuitBreakerStats{},
	}
}

// Name 返回装饰器名称
func (c *CircuitBreakerProvider) Name() string {
	return c.spotProvider.Name()
}

// IsHealthy 检查健康状态，熔断器打开状态视为不健康
func (c *CircuitBreakerProvider) IsHealthy() bool {
	if !c.config.Enabled {
		return c.spotProvider.IsHealthy()
	}
	return c.cb.State() != gobreaker.StateOpen && c.spotProvider.IsHealthy()
}

// FetchSpot 实现带熔断器的全市场快照获取
func (c *CircuitBreakerProvider) FetchSpot(ctx context.Context) (*table.Frame, error) {
	if !c.config.Enabled {
		return c.spotProvider.FetchSpot(ctx)
	}

	c.mu.Lock()
	c.stats.TotalRequests++
	c.mu.Unlock()

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.spotProvider.FetchSpot(ctx)
	})

	c.handleResult(err)

	if err != nil {
		return nil, err
	}

	frame, ok := result.(*table.Frame)
	if !ok {
		err := fmt.Errorf("熔断器返回数据类型错误")
		c.handleResult(err)
		return nil, err
	}
	return frame, nil
}

// handleResult 处理请求结果和更新统计信息
func (c *CircuitBreakerProvider) handleResult(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.stats.FailedRequests++
		c.stats.LastFailure = time.Now()
	} else {
		c.stats.SuccessfulRequest++
	}
}

// GetState 获取熔断器当前状态
func (c *CircuitBreakerProvider) GetState() gobreaker.State {
	return c.cb.State()
}

// GetCounts 获取熔断器计数信息
func (c *CircuitBreakerProvider) GetCounts() gobreaker.Counts {
	return c.cb.Counts()
}

// GetStatus 获取熔断器状态信息
func (c *CircuitBreakerProvider) GetStatus() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := c.cb.Counts()
	state := c.cb.State()

	return map[string]interface{}{
		"decorator_type": "CircuitBreaker",
		"base_provider":  c.spotProvider.Name(),
		"enabled":        c.config.Enabled,
		"state":          state.String(),
		"counts": map[string]interface{}{
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		},
		"stats": map[string]interface{}{
			"total_requests":      c.stats.TotalRequests,
			"successful_requests": c.stats.SuccessfulRequest,
			"failed_requests":     c.stats.FailedRequests,
			"last_failure":        c.stats.LastFailure,
		},
	}
}

// SetEnabled 设置是否启用熔断器
func (c *CircuitBreakerProvider) SetEnabled(enabled bool) {
	c.config.Enabled = enabled
}

// IsOpen 检查熔断器是否处于打开状态
func (c *CircuitBreakerProvider) IsOpen() bool {
	return c.cb.State() == gobreaker.StateOpen
}

var _ provider.SpotProvider = (*CircuitBreakerProvider)(nil)
var _ Decorator = (*CircuitBreakerProvider)(nil)
