package provider

import (
	"context"
	"fmt"
	"strings"

	errs "marketstate/pkg/error"
	"marketstate/pkg/logger"
	"marketstate/pkg/table"
)

// Source 回退链中的一个具名数据源调用
type Source struct {
	Name  string
	Fetch func(ctx context.Context) (*table.Frame, error)
}

// SpotSource 将 SpotProvider 包装为回退链数据源
func SpotSource(name string, p SpotProvider) Source {
	return Source{Name: name, Fetch: p.FetchSpot}
}

// BoardSource 将 BoardProvider 包装为回退链数据源
func BoardSource(name string, p BoardProvider) Source {
	return Source{Name: name, Fetch: p.FetchIndustryBoards}
}

// FetchWithFallback 依次尝试各数据源，直到某个返回非空结果。
// 返回 (结果, 胜出数据源名, 此前失败的诊断信息)。
// 空表视为失败。全部失败时返回聚合错误，诊断信息仍然带回。
func FetchWithFallback(ctx context.Context, sources []Source) (*table.Frame, string, []string, error) {
	log := logger.WithComponent("fallback")
	var failures []string

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, "", failures, err
		}

		frame, err := src.Fetch(ctx)
		if err != nil {
			log.Warnf("数据源 %s 失败: %v", src.Name, err)
			failures = append(failures, fmt.Sprintf("[%s] %v", src.Name, err))
			continue
		}
		if frame.Len() == 0 {
			log.Warnf("数据源 %s 返回空表", src.Name)
			failures = append(failures, fmt.Sprintf("[%s] empty result", src.Name))
			continue
		}

		log.Debugf("数据源 %s 命中, rows=%d cols=%d", src.Name, frame.Len(), len(frame.Columns))
		return frame, src.Name, failures, nil
	}

	err := errs.NewError(errs.ErrAllSourcesFailed,
		"all data sources failed:\n"+strings.Join(failures, "\n"))
	return nil, "", failures, err
}
