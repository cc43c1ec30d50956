// marketstate 命令行工具：按范围生成A股市场状态报告并输出JSON。
//
// 用法:
//
//	marketstate -scope hs_a
//	marketstate -scope szse_summary -params '{"date":"20260826"}'
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"marketstate/pkg/cache"
	"marketstate/pkg/config"
	"marketstate/pkg/logger"
	"marketstate/pkg/provider"
	"marketstate/pkg/provider/decorators"
	"marketstate/pkg/provider/eastmoney"
	"marketstate/pkg/provider/exchange"
	"marketstate/pkg/provider/sina"
	"marketstate/pkg/provider/tencent"
	"marketstate/pkg/report"
)

var (
	scope      = flag.String("scope", report.ScopeHSA, "报告范围 (hs_a, industry_board, sse_summary, szse_summary)")
	paramsJSON = flag.String("params", "", `报告参数JSON, 例如 '{"top_n":10,"raw":true}'`)
	configPath = flag.String("config", "", "配置文件路径")
	timeout    = flag.Duration("timeout", 120*time.Second, "整体超时时间")
	logLevel   = flag.String("log-level", "warn", "日志级别 (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger.Init(logger.Config{Level: *logLevel, Format: "text"})
	log := logger.WithComponent("marketstate")

	// 位置参数优先: marketstate hs_a '{"top_n":10}'
	if flag.NArg() > 0 {
		*scope = flag.Arg(0)
	}
	if flag.NArg() > 1 {
		*paramsJSON = flag.Arg(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	params := report.DefaultParams()
	params.TopN = cfg.Report.TopN
	params.RawRows = cfg.Report.RawRows
	if *paramsJSON != "" {
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			log.Fatalf("参数解析失败: %v", err)
		}
	}

	svc, cleanup := buildService(cfg)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rep := svc.GetMarketState(ctx, *scope, params)

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("报告序列化失败: %v", err)
	}
	fmt.Println(string(out))

	if rep.Error != "" {
		os.Exit(1)
	}
}

// buildService 装配数据源与报告服务
func buildService(cfg *config.Config) (*report.Service, func()) {
	dirCache := cache.NewMemoryCache(cache.MemoryCacheConfig{
		MaxSize:    16,
		DefaultTTL: cfg.Directory.TTL,
	})

	sseClient := exchange.NewSSEClient()
	szseClient := exchange.NewSZSEClient()
	directory := exchange.NewDirectory(sseClient, szseClient, dirCache, cfg.Directory.TTL)

	em := eastmoney.NewClient()
	em.SetTimeout(cfg.Provider.Timeout)

	sn := sina.NewProvider()
	sn.SetTimeout(cfg.Provider.Timeout)

	tc := tencent.NewProvider(directory)
	tc.SetTimeout(cfg.Provider.Timeout)
	tc.SetRateLimit(cfg.Provider.RateLimit)

	spotProviders := map[string]provider.SpotProvider{
		"eastmoney": em,
		"sina":      sn,
		"tencent":   tc,
	}

	var spotSources []provider.Source
	for _, name := range cfg.Report.SpotSources {
		p := spotProviders[name]
		// 频率控制在内层，熔断器在外层
		if cfg.Provider.FrequencyControl {
			fcConfig := decorators.DefaultFrequencyControlConfig()
			fcConfig.MinInterval = cfg.Provider.RateLimit
			p = decorators.NewFrequencyControlProvider(p, fcConfig)
		}
		if cfg.Provider.CircuitBreaker {
			p = decorators.NewCircuitBreakerProvider(p, nil)
		}
		spotSources = append(spotSources, provider.SpotSource(name, p))
	}

	svc := report.NewService(report.Options{
		SpotSources:  spotSources,
		BoardSources: []provider.Source{provider.BoardSource("eastmoney", em)},
		SSE:          sseClient,
		SZSE:         szseClient,
	})

	cleanup := func() {
		_ = em.Close()
		_ = sn.Close()
		_ = tc.Close()
		_ = sseClient.Close()
		_ = szseClient.Close()
		_ = dirCache.Close()
	}
	return svc, cleanup
}
