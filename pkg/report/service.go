package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"marketstate/pkg/logger"
	"marketstate/pkg/market"
	"marketstate/pkg/provider"
	"marketstate/pkg/table"
	"marketstate/pkg/timing"
)

// serviceName meta.source 中的服务标识
const serviceName = "marketstate"

// asOfLayout 报告时间戳格式
const asOfLayout = "2006-01-02 15:04:05"

// SSESummaryFetcher 上交所总貌数据来源
type SSESummaryFetcher interface {
	Summary(ctx context.Context) (*table.Frame, error)
}

// SZSESummaryFetcher 深交所总貌数据来源
type SZSESummaryFetcher interface {
	Summary(ctx context.Context, date string) (*table.Frame, error)
}

// Options 报告服务的依赖装配
type Options struct {
	SpotSources  []provider.Source // 全市场快照回退链，按优先级排列
	BoardSources []provider.Source // 行业板块回退链
	SSE          SSESummaryFetcher
	SZSE         SZSESummaryFetcher
	MarketTime   *timing.MarketTime // 为空时使用系统时间
}

// Service 市场状态报告服务。
// 所有失败都收敛为报告内的 error 字段，调用方总能拿到一份报告。
type Service struct {
	spotSources  []provider.Source
	boardSources []provider.Source
	sse          SSESummaryFetcher
	szse         SZSESummaryFetcher
	marketTime   *timing.MarketTime
	log          *logrus.Entry
}

// NewService 创建报告服务
func NewService(opts Options) *Service {
	mt := opts.MarketTime
	if mt == nil {
		mt = timing.DefaultMarketTime()
	}
	return &Service{
		spotSources:  opts.SpotSources,
		boardSources: opts.BoardSources,
		sse:          opts.SSE,
		szse:         opts.SZSE,
		marketTime:   mt,
		log:          logger.WithComponent("ReportService"),
	}
}

// GetMarketState 按范围生成市场状态报告
func (s *Service) GetMarketState(ctx context.Context, scope string, params Params) *Report {
	params.Normalize()

	rep := &Report{
		Meta: Meta{
			Scope:      scope,
			AsOf:       s.marketTime.Now().Format(asOfLayout),
			RequestID:  uuid.NewString(),
			Source:     serviceName,
			MarketOpen: s.marketTime.IsTradingTime(),
			Params:     params,
		},
	}

	start := time.Now()
	switch scope {
	case ScopeHSA:
		s.fillSpot(ctx, rep, params)
	case ScopeIndustryBoard:
		s.fillIndustryBoard(ctx, rep, params)
	case ScopeSSESummary:
		s.fillSSESummary(ctx, rep, params)
	case ScopeSZSESummary:
		s.fillSZSESummary(ctx, rep, params)
	default:
		rep.Error = fmt.Sprintf("unknown scope: %s", scope)
		rep.SupportedScopes = SupportedScopes
	}

	s.log.Infof("报告生成 scope=%s request_id=%s 耗时=%v error=%q",
		scope, rep.Meta.RequestID, time.Since(start).Round(time.Millisecond), rep.Error)
	return rep
}

// fillSpot 沪深A股全市场快照汇总
func (s *Service) fillSpot(ctx context.Context, rep *Report, params Params) {
	frame, source, failures, err := provider.FetchWithFallback(ctx, s.spotSources)
	rep.Meta.FallbackErrors = failures
	if err != nil {
		rep.Error = fmt.Sprintf("fetch failed: %v", err)
		return
	}
	rep.Meta.DataSource = source

	s.attachFrame(rep, frame, params)

	summary, err := market.SummarizeSpot(frame, params.TopN)
	if err != nil {
		// 关键列缺失时把错误结构作为 summary 带回，保留可用列信息
		rep.Summary = err
		return
	}
	rep.Summary = summary
}

// fillIndustryBoard 行业板块强弱
func (s *Service) fillIndustryBoard(ctx context.Context, rep *Report, params Params) {
	frame, source, failures, err := provider.FetchWithFallback(ctx, s.boardSources)
	rep.Meta.FallbackErrors = failures
	if err != nil {
		rep.Error = fmt.Sprintf("fetch failed: %v", err)
		return
	}
	rep.Meta.DataSource = source

	s.attachFrame(rep, frame, params)

	summary, err := market.SummarizeIndustryBoard(frame, params.TopN)
	if err != nil {
		rep.Summary = err
		return
	}
	rep.Summary = summary
}

// fillSSESummary 上交所市场总貌，结果直接整表带回
func (s *Service) fillSSESummary(ctx context.Context, rep *Report, params Params) {
	frame, err := s.sse.Summary(ctx)
	if err != nil {
		rep.Error = fmt.Sprintf("fetch failed: %v", err)
		return
	}
	rep.Meta.DataSource = "sse"
	s.attachFrame(rep, frame, params)
	rep.Data = frame.Records()
}

// fillSZSESummary 深交所指定交易日市场总貌
func (s *Service) fillSZSESummary(ctx context.Context, rep *Report, params Params) {
	if params.Date == "" {
		rep.Error = `szse_summary requires params["date"], e.g. "20200619"`
		return
	}

	frame, err := s.szse.Summary(ctx, params.Date)
	if err != nil {
		rep.Error = fmt.Sprintf("fetch failed: %v", err)
		return
	}
	rep.Meta.DataSource = "szse"
	s.attachFrame(rep, frame, params)
	rep.Data = frame.Records()
}

// attachFrame 填充维度、列名与可选的原始数据预览
func (s *Service) attachFrame(rep *Report, frame *table.Frame, params Params) {
	rep.Shape = &Shape{Rows: frame.Len(), Cols: len(frame.Columns)}
	rep.Columns = frame.Columns

	if params.Raw {
		head := table.Frame{Columns: frame.Columns, Rows: frame.Head(params.RawRows)}
		rep.RawHead = head.Records()
	}
}
