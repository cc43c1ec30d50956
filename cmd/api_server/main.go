// api_server 市场状态报告HTTP服务。
// 报告按范围+参数在Redis中短暂缓存；hs_a 的市场宽度指标可写入InfluxDB
// 供回看，盘中可按计划任务预热报告。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"marketstate/pkg/cache"
	appconfig "marketstate/pkg/config"
	"marketstate/pkg/logger"
	"marketstate/pkg/market"
	"marketstate/pkg/provider"
	"marketstate/pkg/provider/decorators"
	"marketstate/pkg/provider/eastmoney"
	"marketstate/pkg/provider/exchange"
	"marketstate/pkg/provider/sina"
	"marketstate/pkg/provider/tencent"
	"marketstate/pkg/report"
	"marketstate/pkg/timing"
)

var (
	logLevel    = flag.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	logFormat   = flag.String("log-format", "json", "日志格式 (json or text)")
	configPath  = flag.String("config", "", "配置文件路径 (例如 /app/config/api_server.yaml)")
	redisAddr   = flag.String("redis", "", "Redis 地址，格式 host:port")
	redisPass   = flag.String("redis-pass", "", "Redis 密码")
	influxURL   = flag.String("influxdb-url", "", "InfluxDB URL")
	influxToken = flag.String("influxdb-token", "", "InfluxDB token")
)

// Config api_server 配置
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
		Mode string `mapstructure:"mode"` // debug, release, test
	} `mapstructure:"server"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	InfluxDB struct {
		Enabled bool   `mapstructure:"enabled"`
		URL     string `mapstructure:"url"`
		Token   string `mapstructure:"token"`
		Org     string `mapstructure:"org"`
		Bucket  string `mapstructure:"bucket"`
	} `mapstructure:"influxdb"`

	Cache struct {
		ReportTTL time.Duration `mapstructure:"report_ttl"` // 报告在Redis中的缓存时长
	} `mapstructure:"cache"`

	Prewarm struct {
		Enabled bool   `mapstructure:"enabled"`
		Spec    string `mapstructure:"spec"` // cron 表达式
	} `mapstructure:"prewarm"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIServer 市场状态报告服务
type APIServer struct {
	service      *report.Service
	marketTime   *timing.MarketTime
	localCache   cache.Cache // Redis 之前的本地缓存层
	redisClient  *redis.Client
	influxClient influxdb2.Client
	writeAPI     api.WriteAPIBlocking
	scheduler    *cron.Cron
	logger       *logrus.Logger
	server       *http.Server
	config       *Config
	cleanup      func()
}

func main() {
	flag.Parse()

	logger.Init(logger.Config{Level: *logLevel, Format: *logFormat})
	log := logger.GetLogger()

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	gin.SetMode(cfg.Server.Mode)

	apiServer, err := NewAPIServer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create API server")
	}
	defer apiServer.Close()

	if err := apiServer.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start API server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API server...")
	apiServer.Stop()
}

func loadConfig() (*Config, error) {
	if *configPath != "" {
		viper.SetConfigFile(*configPath)
	} else {
		viper.SetConfigName("api_server")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("influxdb.enabled", false)
	viper.SetDefault("influxdb.url", "http://localhost:8086")
	viper.SetDefault("influxdb.token", "")
	viper.SetDefault("influxdb.org", "marketstate")
	viper.SetDefault("influxdb.bucket", "market_state")
	viper.SetDefault("cache.report_ttl", "30s")
	viper.SetDefault("prewarm.enabled", false)
	viper.SetDefault("prewarm.spec", "*/5 9-15 * * 1-5")

	viper.SetEnvPrefix("API_SERVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if *redisAddr != "" {
		viper.Set("redis.enabled", true)
		viper.Set("redis.addr", *redisAddr)
	}
	if *redisPass != "" {
		viper.Set("redis.password", *redisPass)
	}
	if *influxURL != "" {
		viper.Set("influxdb.enabled", true)
		viper.Set("influxdb.url", *influxURL)
	}
	if *influxToken != "" {
		viper.Set("influxdb.token", *influxToken)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func NewAPIServer(cfg *Config, log *logrus.Logger) (*APIServer, error) {
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	var influxClient influxdb2.Client
	var writeAPI api.WriteAPIBlocking
	if cfg.InfluxDB.Enabled {
		influxClient = influxdb2.NewClient(cfg.InfluxDB.URL, cfg.InfluxDB.Token)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		health, err := influxClient.Health(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
		}
		if health.Status != "pass" {
			return nil, fmt.Errorf("InfluxDB health check failed: %s", health.Status)
		}
		writeAPI = influxClient.WriteAPIBlocking(cfg.InfluxDB.Org, cfg.InfluxDB.Bucket)
	}

	appCfg := appconfig.Default()
	service, cleanup := buildService(appCfg)

	localCache := cache.NewMemoryCache(cache.MemoryCacheConfig{
		MaxSize:         64,
		DefaultTTL:      cfg.Cache.ReportTTL,
		CleanupInterval: time.Minute,
	})

	return &APIServer{
		service:      service,
		marketTime:   timing.DefaultMarketTime(),
		localCache:   localCache,
		redisClient:  redisClient,
		influxClient: influxClient,
		writeAPI:     writeAPI,
		logger:       log,
		config:       cfg,
		cleanup:      cleanup,
	}, nil
}

// buildService 装配数据源与报告服务
func buildService(cfg *appconfig.Config) (*report.Service, func()) {
	dirCache := cache.NewMemoryCache(cache.MemoryCacheConfig{
		MaxSize:         16,
		DefaultTTL:      cfg.Directory.TTL,
		CleanupInterval: time.Hour,
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

func (s *APIServer) Start() error {
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(s.corsMiddleware())

	router.GET("/health", s.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/market/state", s.getMarketState)
		v1.GET("/market/scopes", s.getScopes)
	}

	s.server = &http.Server{
		Addr:    ":" + s.config.Server.Port,
		Handler: router,
	}

	s.logger.WithField("port", s.config.Server.Port).Info("Starting API server...")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	if s.config.Prewarm.Enabled {
		s.scheduler = cron.New()
		_, err := s.scheduler.AddFunc(s.config.Prewarm.Spec, s.prewarm)
		if err != nil {
			return fmt.Errorf("invalid prewarm spec: %w", err)
		}
		s.scheduler.Start()
		s.logger.WithField("spec", s.config.Prewarm.Spec).Info("Report prewarm scheduled")
	}

	return nil
}

func (s *APIServer) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to gracefully shutdown server")
	}
}

func (s *APIServer) Close() {
	if mc, ok := s.localCache.(*cache.MemoryCache); ok {
		mc.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.influxClient != nil {
		s.influxClient.Close()
	}
	if s.cleanup != nil {
		s.cleanup()
	}
}

func (s *APIServer) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func (s *APIServer) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":      "ok",
		"timestamp":   time.Now(),
		"market_open": s.marketTime.IsTradingTime(),
		"services":    map[string]string{},
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			health["services"].(map[string]string)["redis"] = "error: " + err.Error()
			health["status"] = "degraded"
		} else {
			health["services"].(map[string]string)["redis"] = "ok"
		}
	}

	if s.influxClient != nil {
		if influxHealth, err := s.influxClient.Health(ctx); err != nil {
			health["services"].(map[string]string)["influxdb"] = "error: " + err.Error()
			health["status"] = "degraded"
		} else {
			statusStr := string(influxHealth.Status)
			health["services"].(map[string]string)["influxdb"] = statusStr
			if statusStr != "pass" {
				health["status"] = "degraded"
			}
		}
	}

	if health["status"] == "ok" {
		c.JSON(200, health)
	} else {
		c.JSON(503, health)
	}
}

// getMarketState GET /api/v1/market/state?scope=hs_a&top_n=20&raw=false&raw_rows=5&date=
func (s *APIServer) getMarketState(c *gin.Context) {
	scope := c.DefaultQuery("scope", report.ScopeHSA)

	params := report.DefaultParams()
	if v := c.Query("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: "top_n must be a positive integer"})
			return
		}
		params.TopN = n
	}
	if v := c.Query("raw"); v != "" {
		raw, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: "raw must be a boolean"})
			return
		}
		params.Raw = raw
	}
	if v := c.Query("raw_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(400, ErrorResponse{Error: "bad_request", Message: "raw_rows must be a positive integer"})
			return
		}
		params.RawRows = n
	}
	params.Date = c.Query("date")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 120*time.Second)
	defer cancel()

	cacheKey := reportCacheKey(scope, params)
	if cached, ok := s.cachedReport(ctx, cacheKey); ok {
		c.Data(200, "application/json; charset=utf-8", cached)
		return
	}

	rep := s.service.GetMarketState(ctx, scope, params)

	body, err := json.Marshal(rep)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal report")
		c.JSON(500, ErrorResponse{Error: "internal_error", Message: "Failed to serialize report"})
		return
	}

	// 只缓存成功的报告
	if rep.Error == "" {
		s.cacheReport(ctx, cacheKey, body)
	}

	if s.writeAPI != nil && scope == report.ScopeHSA && rep.Error == "" {
		s.sinkBreadth(ctx, rep)
	}

	c.Data(200, "application/json; charset=utf-8", body)
}

// cachedReport 先查本地缓存，再查Redis；Redis命中时回填本地缓存
func (s *APIServer) cachedReport(ctx context.Context, key string) ([]byte, bool) {
	if v, err := s.localCache.Get(ctx, key); err == nil {
		if body, ok := v.([]byte); ok {
			return body, true
		}
	}

	if s.redisClient != nil {
		if body, err := s.redisClient.Get(ctx, key).Bytes(); err == nil {
			_ = s.localCache.Set(ctx, key, body, s.config.Cache.ReportTTL)
			return body, true
		}
	}
	return nil, false
}

// cacheReport 写入本地缓存与Redis
func (s *APIServer) cacheReport(ctx context.Context, key string, body []byte) {
	_ = s.localCache.Set(ctx, key, body, s.config.Cache.ReportTTL)

	if s.redisClient != nil {
		if err := s.redisClient.Set(ctx, key, body, s.config.Cache.ReportTTL).Err(); err != nil {
			s.logger.WithError(err).Warn("Failed to cache report")
		}
	}
}

func (s *APIServer) getScopes(c *gin.Context) {
	c.JSON(200, map[string]interface{}{
		"supported_scopes": report.SupportedScopes,
	})
}

// sinkBreadth 将市场宽度指标写入InfluxDB
func (s *APIServer) sinkBreadth(ctx context.Context, rep *report.Report) {
	summary, ok := rep.Summary.(*market.SpotSummary)
	if !ok {
		return
	}

	fields := map[string]interface{}{
		"advance":         summary.Breadth.Advance,
		"decline":         summary.Breadth.Decline,
		"flat":            summary.Breadth.Flat,
		"total":           summary.Breadth.Total,
		"limit_up_like":   summary.LimitUpLike,
		"limit_down_like": summary.LimitDownLike,
	}
	if p50 := summary.PctChgQuantiles["p50"]; p50 != nil {
		fields["pct_chg_p50"] = *p50
	}

	point := influxdb2.NewPoint(
		"market_breadth",
		map[string]string{
			"scope":       rep.Meta.Scope,
			"data_source": rep.Meta.DataSource,
		},
		fields,
		time.Now(),
	)

	if err := s.writeAPI.WritePoint(ctx, point); err != nil {
		s.logger.WithError(err).Warn("Failed to write breadth metrics to InfluxDB")
	}
}

// prewarm 盘中定时预生成 hs_a 报告，填充Redis缓存
func (s *APIServer) prewarm() {
	if !s.marketTime.IsTradingTime() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	params := report.DefaultParams()
	rep := s.service.GetMarketState(ctx, report.ScopeHSA, params)
	if rep.Error != "" {
		s.logger.WithField("error", rep.Error).Warn("Prewarm report failed")
		return
	}

	if body, err := json.Marshal(rep); err == nil {
		s.cacheReport(ctx, reportCacheKey(report.ScopeHSA, params), body)
	}

	if s.writeAPI != nil {
		s.sinkBreadth(ctx, rep)
	}
}

// reportCacheKey 报告缓存键，参数参与区分
func reportCacheKey(scope string, params report.Params) string {
	return fmt.Sprintf("report:%s:%d:%t:%d:%s", scope, params.TopN, params.Raw, params.RawRows, params.Date)
}
