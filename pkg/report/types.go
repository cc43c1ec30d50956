// Package report 市场状态报告的组装与范围分发。
package report

// 支持的报告范围
const (
	ScopeHSA           = "hs_a"           // 沪深A股全市场快照汇总
	ScopeIndustryBoard = "industry_board" // 行业板块强弱
	ScopeSSESummary    = "sse_summary"    // 上交所市场总貌
	ScopeSZSESummary   = "szse_summary"   // 深交所指定日市场总貌
)

// SupportedScopes 所有支持的范围，出现在未知范围的报错报告中
var SupportedScopes = []string{ScopeHSA, ScopeIndustryBoard, ScopeSSESummary, ScopeSZSESummary}

const (
	// DefaultTopN 榜单默认条数
	DefaultTopN = 20
	// DefaultRawRows 原始数据预览默认行数
	DefaultRawRows = 5
)

// Params 报告请求参数
type Params struct {
	TopN    int    `json:"top_n"`          // 榜单条数
	Raw     bool   `json:"raw"`            // 是否附带原始数据预览
	RawRows int    `json:"raw_rows"`       // 预览行数
	Date    string `json:"date,omitempty"` // 查询日期 YYYYMMDD，仅 szse_summary 使用
}

// DefaultParams 返回默认参数
func DefaultParams() Params {
	return Params{
		TopN:    DefaultTopN,
		Raw:     false,
		RawRows: DefaultRawRows,
	}
}

// Normalize 为零值参数补默认值
func (p *Params) Normalize() {
	if p.TopN <= 0 {
		p.TopN = DefaultTopN
	}
	if p.RawRows <= 0 {
		p.RawRows = DefaultRawRows
	}
}

// Shape 结果表维度
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Meta 报告元信息
type Meta struct {
	Scope          string   `json:"scope"`
	AsOf           string   `json:"asof"` // 报告生成时间 2006-01-02 15:04:05
	RequestID      string   `json:"request_id"`
	Source         string   `json:"source"`                    // 固定为本服务标识
	DataSource     string   `json:"data_source,omitempty"`     // 实际胜出的数据源
	FallbackErrors []string `json:"fallback_errors,omitempty"` // 胜出前各源的失败诊断
	MarketOpen     bool     `json:"market_open"`               // 生成时是否处于连续竞价时段
	Params         Params   `json:"params"`
}

// Report 市场状态报告。失败时 Error 非空，其余数据字段为空。
type Report struct {
	Meta            Meta                     `json:"meta"`
	Shape           *Shape                   `json:"shape,omitempty"`
	Columns         []string                 `json:"columns,omitempty"`
	Summary         interface{}              `json:"summary,omitempty"`
	Data            []map[string]interface{} `json:"data,omitempty"`
	RawHead         []map[string]interface{} `json:"raw_head,omitempty"`
	Error           string                   `json:"error,omitempty"`
	SupportedScopes []string                 `json:"supported_scopes,omitempty"`
}
