// Package market 对快照表做市场健康度汇总：涨跌家数、分位数分布、
// 成交额排名与行业板块强弱。所有列访问都走候选列定位，
// 以兼容不同数据源的字段命名。
package market

import (
	"fmt"
	"strings"

	"marketstate/pkg/table"
)

// 各语义列的候选名，按优先级排列
var (
	CodeColumns   = []string{"代码", "股票代码", "symbol", "code"}
	NameColumns   = []string{"名称", "股票简称", "name"}
	PctColumns    = []string{"涨跌幅", "涨跌幅%", "涨跌幅(%)", "changepercent", "pct_chg"}
	PriceColumns  = []string{"最新价", "现价", "price", "trade", "最新"}
	AmountColumns = []string{"成交额", "amount", "成交额(元)", "turnover", "成交额（元）", "成交额(万)"}
	BoardColumns  = []string{"板块名称", "行业名称", "名称", "board"}
)

// 涨跌停近似阈值。不区分ST与不同板块的涨跌幅限制。
const limitLikeThreshold = 9.5

// Breadth 涨跌家数统计
type Breadth struct {
	Advance int `json:"advance"` // 上涨家数
	Decline int `json:"decline"` // 下跌家数
	Flat    int `json:"flat"`    // 平盘家数
	Total   int `json:"total"`   // 样本总数（含涨跌幅缺失的行）
}

// TurnoverEntry 成交额排名条目
type TurnoverEntry struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Last   *float64 `json:"last,omitempty"` // 最新价，数据源无价格列时省略
	PctChg *float64 `json:"pct_chg"`
	Amount *float64 `json:"amount"`
}

// SpotSummary 全市场快照汇总
type SpotSummary struct {
	Breadth           Breadth             `json:"breadth"`
	PctChgQuantiles   map[string]*float64 `json:"pct_chg_quantiles"`
	TurnoverQuantiles map[string]*float64 `json:"turnover_quantiles"` // 无成交额列时为 null
	LimitUpLike       int                 `json:"limit_up_like"`
	LimitDownLike     int                 `json:"limit_down_like"`
	TopTurnover       []TurnoverEntry     `json:"top_turnover"` // 无成交额列时为 null
}

// BoardEntry 行业板块条目
type BoardEntry struct {
	Board        string   `json:"board"`
	PctChg       *float64 `json:"pct_chg"`
	Adv          *float64 `json:"adv,omitempty"`            // 上涨家数
	Dec          *float64 `json:"dec,omitempty"`            // 下跌家数
	Leader       string   `json:"leader,omitempty"`         // 领涨股票
	LeaderPctChg *float64 `json:"leader_pct_chg,omitempty"` // 领涨股票涨跌幅
}

// BoardSummary 行业板块强弱汇总
type BoardSummary struct {
	TopGainers []BoardEntry `json:"top_gainers"`
	TopLosers  []BoardEntry `json:"top_losers"`
}

// MissingColumnsError 关键列缺失。序列化后直接作为 summary 放入报告，
// 保留可用列名便于排查数据源字段变更。
type MissingColumnsError struct {
	Message       string   `json:"error"`
	AvailableCols []string `json:"available_cols"`
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s (available: %s)", e.Message, strings.Join(e.AvailableCols, ","))
}

// SummarizeSpot 汇总全市场快照：涨跌家数、涨跌幅分位数、涨跌停近似、
// 成交额分位数与成交额 topN。
func SummarizeSpot(f *table.Frame, topN int) (*SpotSummary, error) {
	codeCol, okCode := f.PickColumn(CodeColumns)
	nameCol, okName := f.PickColumn(NameColumns)
	pctCol, okPct := f.PickColumn(PctColumns)
	priceCol, okPrice := f.PickColumn(PriceColumns)
	amountCol, okAmount := f.PickColumn(AmountColumns)

	if !okCode || !okName || !okPct {
		return nil, &MissingColumnsError{
			Message:       "spot missing key columns",
			AvailableCols: f.Columns,
		}
	}

	summary := &SpotSummary{}

	// 涨跌家数：缺失的涨跌幅不计入涨/跌/平，但计入 total
	for _, row := range f.Rows {
		v, ok := table.Float(row[pctCol])
		if !ok {
			continue
		}
		switch {
		case v > 0:
			summary.Breadth.Advance++
		case v < 0:
			summary.Breadth.Decline++
		default:
			summary.Breadth.Flat++
		}
		if v >= limitLikeThreshold {
			summary.LimitUpLike++
		}
		if v <= -limitLikeThreshold {
			summary.LimitDownLike++
		}
	}
	summary.Breadth.Total = f.Len()

	pct := f.Numeric(pctCol)
	summary.PctChgQuantiles = map[string]*float64{
		"p10": table.Quantile(pct, 0.10),
		"p50": table.Quantile(pct, 0.50),
		"p90": table.Quantile(pct, 0.90),
	}

	if okAmount {
		// 部分来源成交额单位是"万"，此处不做单位归一
		amt := f.Numeric(amountCol)
		if len(amt) > 0 {
			summary.TurnoverQuantiles = map[string]*float64{
				"p50": table.Quantile(amt, 0.50),
				"p90": table.Quantile(amt, 0.90),
				"p99": table.Quantile(amt, 0.99),
			}

			sorted := f.SortByNumeric(amountCol, false)
			for _, row := range sorted.Head(topN) {
				entry := TurnoverEntry{
					Code:   table.String(row[codeCol]),
					Name:   table.String(row[nameCol]),
					PctChg: table.FloatPtr(row, pctCol),
					Amount: table.FloatPtr(row, amountCol),
				}
				if okPrice {
					entry.Last = table.FloatPtr(row, priceCol)
				}
				summary.TopTurnover = append(summary.TopTurnover, entry)
			}
		}
	}

	return summary, nil
}

// SummarizeIndustryBoard 行业板块强弱：按涨跌幅取涨幅榜与跌幅榜，
// 常见的家数/领涨股票列存在时一并带出。
func SummarizeIndustryBoard(f *table.Frame, topN int) (*BoardSummary, error) {
	boardCol, okBoard := f.PickColumn(BoardColumns)
	pctCol, okPct := f.PickColumn(PctColumns)
	if !okBoard || !okPct {
		return nil, &MissingColumnsError{
			Message:       "industry board missing key columns",
			AvailableCols: f.Columns,
		}
	}

	pack := func(rows []table.Row) []BoardEntry {
		out := make([]BoardEntry, 0, len(rows))
		for _, row := range rows {
			entry := BoardEntry{
				Board:  table.String(row[boardCol]),
				PctChg: table.FloatPtr(row, pctCol),
			}
			if f.HasColumn("上涨家数") {
				entry.Adv = table.FloatPtr(row, "上涨家数")
			}
			if f.HasColumn("下跌家数") {
				entry.Dec = table.FloatPtr(row, "下跌家数")
			}
			if f.HasColumn("领涨股票") {
				entry.Leader = table.String(row["领涨股票"])
			}
			if f.HasColumn("领涨股票-涨跌幅") {
				entry.LeaderPctChg = table.FloatPtr(row, "领涨股票-涨跌幅")
			}
			out = append(out, entry)
		}
		return out
	}

	return &BoardSummary{
		TopGainers: pack(f.SortByNumeric(pctCol, false).Head(topN)),
		TopLosers:  pack(f.SortByNumeric(pctCol, true).Head(topN)),
	}, nil
}
