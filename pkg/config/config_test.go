package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20, cfg.Report.TopN)
	assert.Equal(t, []string{"eastmoney", "sina", "tencent"}, cfg.Report.SpotSources)
	assert.Equal(t, 12*time.Hour, cfg.Directory.TTL)
	assert.True(t, cfg.Provider.CircuitBreaker)
	assert.True(t, cfg.Provider.FrequencyControl)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"超时为零", func(c *Config) { c.Provider.Timeout = 0 }, "timeout"},
		{"批量大小为零", func(c *Config) { c.Provider.BatchSize = 0 }, "batch_size"},
		{"榜单条数为零", func(c *Config) { c.Report.TopN = 0 }, "top_n"},
		{"回退链为空", func(c *Config) { c.Report.SpotSources = nil }, "spot_sources"},
		{"未知数据源", func(c *Config) { c.Report.SpotSources = []string{"netease"} }, "unknown spot source"},
		{"目录TTL为零", func(c *Config) { c.Directory.TTL = 0 }, "ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("无配置文件返回默认值", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("从YAML加载覆盖默认值", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte(`
report:
  top_n: 10
  spot_sources: ["sina", "tencent"]
logger:
  level: debug
`)
		require.NoError(t, os.WriteFile(path, content, 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.Report.TopN)
		assert.Equal(t, []string{"sina", "tencent"}, cfg.Report.SpotSources)
		assert.Equal(t, "debug", cfg.Logger.Level)
		// 未覆盖项保持默认
		assert.Equal(t, 60, cfg.Provider.BatchSize)
	})

	t.Run("非法配置被拒绝", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("report:\n  top_n: -1\n"), 0o644))

		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("文件不存在报错", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yaml")
		require.Error(t, err)
	})
}
