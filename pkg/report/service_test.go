package report

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketstate/pkg/market"
	"marketstate/pkg/provider"
	"marketstate/pkg/table"
)

func spotFrame() *table.Frame {
	f := table.New("代码", "名称", "最新价", "涨跌幅", "成交额")
	f.Append(table.Row{"代码": "600519", "名称": "贵州茅台", "最新价": 1500.0, "涨跌幅": 1.2, "成交额": 5.0e9})
	f.Append(table.Row{"代码": "300750", "名称": "宁德时代", "最新价": 180.0, "涨跌幅": -2.1, "成交额": 4.0e9})
	f.Append(table.Row{"代码": "000001", "名称": "平安银行", "最新价": 11.0, "涨跌幅": 0.0, "成交额": 1.0e9})
	return f
}

func boardFrame() *table.Frame {
	f := table.New("板块名称", "涨跌幅", "上涨家数", "下跌家数", "领涨股票")
	f.Append(table.Row{"板块名称": "半导体", "涨跌幅": 3.2, "上涨家数": 80.0, "下跌家数": 10.0, "领涨股票": "中芯国际"})
	f.Append(table.Row{"板块名称": "银行", "涨跌幅": -1.1, "上涨家数": 5.0, "下跌家数": 37.0, "领涨股票": "招商银行"})
	return f
}

func okSource(name string, f *table.Frame) provider.Source {
	return provider.Source{Name: name, Fetch: func(ctx context.Context) (*table.Frame, error) {
		return f, nil
	}}
}

func failSource(name string) provider.Source {
	return provider.Source{Name: name, Fetch: func(ctx context.Context) (*table.Frame, error) {
		return nil, fmt.Errorf("connection refused")
	}}
}

type fakeSSE struct {
	frame *table.Frame
	err   error
}

func (f *fakeSSE) Summary(ctx context.Context) (*table.Frame, error) {
	return f.frame, f.err
}

type fakeSZSE struct {
	frame   *table.Frame
	err     error
	gotDate string
}

func (f *fakeSZSE) Summary(ctx context.Context, date string) (*table.Frame, error) {
	f.gotDate = date
	return f.frame, f.err
}

func TestGetMarketStateHSA(t *testing.T) {
	t.Run("首选源成功", func(t *testing.T) {
		svc := NewService(Options{
			SpotSources: []provider.Source{okSource("eastmoney", spotFrame())},
		})

		rep := svc.GetMarketState(context.Background(), ScopeHSA, DefaultParams())

		assert.Empty(t, rep.Error)
		assert.Equal(t, ScopeHSA, rep.Meta.Scope)
		assert.Equal(t, serviceName, rep.Meta.Source)
		assert.Equal(t, "eastmoney", rep.Meta.DataSource)
		assert.NotEmpty(t, rep.Meta.RequestID)
		assert.Empty(t, rep.Meta.FallbackErrors)

		require.NotNil(t, rep.Shape)
		assert.Equal(t, 3, rep.Shape.Rows)
		assert.Equal(t, 5, rep.Shape.Cols)
		assert.Nil(t, rep.RawHead)

		summary, ok := rep.Summary.(*market.SpotSummary)
		require.True(t, ok)
		assert.Equal(t, 1, summary.Breadth.Advance)
		assert.Equal(t, 1, summary.Breadth.Decline)
		assert.Equal(t, 1, summary.Breadth.Flat)
	})

	t.Run("回退到后备源", func(t *testing.T) {
		svc := NewService(Options{
			SpotSources: []provider.Source{
				failSource("eastmoney"),
				okSource("sina", spotFrame()),
			},
		})

		rep := svc.GetMarketState(context.Background(), ScopeHSA, DefaultParams())

		assert.Empty(t, rep.Error)
		assert.Equal(t, "sina", rep.Meta.DataSource)
		require.Len(t, rep.Meta.FallbackErrors, 1)
		assert.Contains(t, rep.Meta.FallbackErrors[0], "[eastmoney]")
	})

	t.Run("全部失败", func(t *testing.T) {
		svc := NewService(Options{
			SpotSources: []provider.Source{failSource("eastmoney"), failSource("sina")},
		})

		rep := svc.GetMarketState(context.Background(), ScopeHSA, DefaultParams())

		assert.Contains(t, rep.Error, "fetch failed")
		assert.Len(t, rep.Meta.FallbackErrors, 2)
		assert.Nil(t, rep.Summary)
		assert.Nil(t, rep.Shape)
	})

	t.Run("关键列缺失时错误进summary", func(t *testing.T) {
		f := table.New("open", "close")
		f.Append(table.Row{"open": 1.0, "close": 2.0})

		svc := NewService(Options{
			SpotSources: []provider.Source{okSource("eastmoney", f)},
		})

		rep := svc.GetMarketState(context.Background(), ScopeHSA, DefaultParams())

		assert.Empty(t, rep.Error)
		missing, ok := rep.Summary.(*market.MissingColumnsError)
		require.True(t, ok)
		assert.Equal(t, []string{"open", "close"}, missing.AvailableCols)
	})

	t.Run("原始数据预览", func(t *testing.T) {
		svc := NewService(Options{
			SpotSources: []provider.Source{okSource("eastmoney", spotFrame())},
		})

		params := Params{Raw: true, RawRows: 2}
		rep := svc.GetMarketState(context.Background(), ScopeHSA, params)

		require.Len(t, rep.RawHead, 2)
		assert.Equal(t, "贵州茅台", rep.RawHead[0]["名称"])
		// Normalize 补了默认 TopN
		assert.Equal(t, DefaultTopN, rep.Meta.Params.TopN)
	})
}

func TestGetMarketStateIndustryBoard(t *testing.T) {
	svc := NewService(Options{
		BoardSources: []provider.Source{okSource("eastmoney", boardFrame())},
	})

	rep := svc.GetMarketState(context.Background(), ScopeIndustryBoard, DefaultParams())

	assert.Empty(t, rep.Error)
	assert.Equal(t, "eastmoney", rep.Meta.DataSource)

	summary, ok := rep.Summary.(*market.BoardSummary)
	require.True(t, ok)
	require.NotEmpty(t, summary.TopGainers)
	assert.Equal(t, "半导体", summary.TopGainers[0].Board)
	assert.Equal(t, "银行", summary.TopLosers[0].Board)
}

func TestGetMarketStateSSESummary(t *testing.T) {
	t.Run("成功", func(t *testing.T) {
		f := table.New("项目", "股票", "主板", "科创板")
		f.Append(table.Row{"项目": "上市公司", "股票": "2280", "主板": "1700", "科创板": "580"})

		svc := NewService(Options{SSE: &fakeSSE{frame: f}})
		rep := svc.GetMarketState(context.Background(), ScopeSSESummary, DefaultParams())

		assert.Empty(t, rep.Error)
		assert.Equal(t, "sse", rep.Meta.DataSource)
		require.Len(t, rep.Data, 1)
		assert.Equal(t, "上市公司", rep.Data[0]["项目"])
	})

	t.Run("来源失败", func(t *testing.T) {
		svc := NewService(Options{SSE: &fakeSSE{err: fmt.Errorf("timeout")}})
		rep := svc.GetMarketState(context.Background(), ScopeSSESummary, DefaultParams())

		assert.Contains(t, rep.Error, "fetch failed")
		assert.Contains(t, rep.Error, "timeout")
	})
}

func TestGetMarketStateSZSESummary(t *testing.T) {
	t.Run("缺少date参数", func(t *testing.T) {
		szse := &fakeSZSE{}
		svc := NewService(Options{SZSE: szse})

		rep := svc.GetMarketState(context.Background(), ScopeSZSESummary, DefaultParams())

		assert.Contains(t, rep.Error, `requires params["date"]`)
		assert.Empty(t, szse.gotDate)
	})

	t.Run("date透传", func(t *testing.T) {
		f := table.New("证券类别", "数量(只)")
		f.Append(table.Row{"证券类别": "股票", "数量(只)": "2850"})
		szse := &fakeSZSE{frame: f}

		svc := NewService(Options{SZSE: szse})
		params := DefaultParams()
		params.Date = "20260826"

		rep := svc.GetMarketState(context.Background(), ScopeSZSESummary, params)

		assert.Empty(t, rep.Error)
		assert.Equal(t, "20260826", szse.gotDate)
		assert.Equal(t, "szse", rep.Meta.DataSource)
		require.Len(t, rep.Data, 1)
	})
}

func TestGetMarketStateUnknownScope(t *testing.T) {
	svc := NewService(Options{})
	rep := svc.GetMarketState(context.Background(), "futures", DefaultParams())

	assert.Equal(t, "unknown scope: futures", rep.Error)
	assert.Equal(t, SupportedScopes, rep.SupportedScopes)
	assert.Nil(t, rep.Summary)
}

func TestParamsNormalize(t *testing.T) {
	p := Params{}
	p.Normalize()
	assert.Equal(t, DefaultTopN, p.TopN)
	assert.Equal(t, DefaultRawRows, p.RawRows)

	p = Params{TopN: 5, RawRows: 3}
	p.Normalize()
	assert.Equal(t, 5, p.TopN)
	assert.Equal(t, 3, p.RawRows)
}
