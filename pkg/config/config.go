// Package config 市场状态报告的配置定义与加载。
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	// 提供商配置
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// 报告配置
	Report ReportConfig `json:"report" mapstructure:"report"`

	// 代码目录配置
	Directory DirectoryConfig `json:"directory" mapstructure:"directory"`

	// 日志配置
	Logger LoggerConfig `json:"logger" mapstructure:"logger"`
}

// ProviderConfig 数据提供商配置
type ProviderConfig struct {
	Timeout          time.Duration `json:"timeout" mapstructure:"timeout"`                     // 请求超时时间
	RateLimit        time.Duration `json:"rate_limit" mapstructure:"rate_limit"`               // 请求间隔限制
	UserAgent        string        `json:"user_agent" mapstructure:"user_agent"`               // 用户代理
	BatchSize        int           `json:"batch_size" mapstructure:"batch_size"`               // 腾讯源批量大小
	CircuitBreaker   bool          `json:"circuit_breaker" mapstructure:"circuit_breaker"`     // 是否启用熔断器
	FrequencyControl bool          `json:"frequency_control" mapstructure:"frequency_control"` // 是否启用频率控制
}

// ReportConfig 报告配置
type ReportConfig struct {
	TopN        int      `json:"top_n" mapstructure:"top_n"`               // 榜单条数
	RawRows     int      `json:"raw_rows" mapstructure:"raw_rows"`         // 原始数据预览行数
	SpotSources []string `json:"spot_sources" mapstructure:"spot_sources"` // 快照回退链顺序
}

// DirectoryConfig 代码目录配置
type DirectoryConfig struct {
	TTL time.Duration `json:"ttl" mapstructure:"ttl"` // 目录缓存时长
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // 日志级别 (debug, info, warn, error)
	Format string `json:"format" mapstructure:"format"` // 输出格式 (text, json)
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Timeout:          15 * time.Second,
			RateLimit:        200 * time.Millisecond,
			UserAgent:        "MarketState/1.0",
			BatchSize:        60,
			CircuitBreaker:   true,
			FrequencyControl: true,
		},
		Report: ReportConfig{
			TopN:        20,
			RawRows:     5,
			SpotSources: []string{"eastmoney", "sina", "tencent"},
		},
		Directory: DirectoryConfig{
			TTL: 12 * time.Hour,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Provider.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}

	if c.Provider.RateLimit < 0 {
		return errors.New("provider rate_limit cannot be negative")
	}

	if c.Provider.BatchSize <= 0 {
		return errors.New("provider batch_size must be positive")
	}

	if c.Report.TopN <= 0 {
		return errors.New("report top_n must be positive")
	}

	if c.Report.RawRows < 0 {
		return errors.New("report raw_rows cannot be negative")
	}

	if len(c.Report.SpotSources) == 0 {
		return errors.New("report spot_sources cannot be empty")
	}

	known := map[string]bool{"eastmoney": true, "sina": true, "tencent": true}
	for _, name := range c.Report.SpotSources {
		if !known[name] {
			return fmt.Errorf("unknown spot source: %s", name)
		}
	}

	if c.Directory.TTL <= 0 {
		return errors.New("directory ttl must be positive")
	}

	return nil
}

// Load 从配置文件加载配置，文件不存在时返回默认配置。
// 环境变量以 MARKETSTATE_ 为前缀覆盖同名配置项。
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MARKETSTATE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config failed: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
