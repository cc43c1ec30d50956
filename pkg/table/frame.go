// Package table 提供对"列名不稳定"的表格数据的容错访问。
// 上游数据源的字段名随来源和版本漂移（中文/英文/带单位后缀），
// 汇总逻辑只依赖这里的候选列定位与宽松数值解析。
package table

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Row 一行记录，键为列名
type Row map[string]interface{}

// Frame 带列序的表格结果
type Frame struct {
	Columns []string `json:"columns"` // 列名（保持数据源原始顺序）
	Rows    []Row    `json:"rows"`
}

// New 创建空表
func New(columns ...string) *Frame {
	return &Frame{Columns: columns, Rows: []Row{}}
}

// Len 返回行数
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Append 追加一行
func (f *Frame) Append(row Row) {
	f.Rows = append(f.Rows, row)
}

// HasColumn 判断列是否存在
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// PickColumn 按优先级从候选列表中选出第一个存在的列名。
// 全部不存在时返回 ("", false)。
func (f *Frame) PickColumn(candidates []string) (string, bool) {
	for _, c := range candidates {
		if f.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// Float 宽松数值转换。数字与可解析的字符串返回 (值, true)；
// nil、空串、"-"、NaN、Inf 以及解析失败一律视为缺失。
// 有意比严格的数值强转更宽松：带 % 后缀和千分位逗号的字符串
// 也按数值处理，来源把涨跌幅或成交额格式化为文本时该行不丢。
func Float(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return Float(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimSuffix(s, "%")
		if s == "" || s == "-" || s == "--" {
			return 0, false
		}
		// 千分位逗号
		s = strings.ReplaceAll(s, ",", "")
		val, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	default:
		return 0, false
	}
}

// String 将单元格值转为字符串，缺失返回空串
func String(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

// FloatPtr 取某行某列的数值，缺失返回 nil
func FloatPtr(row Row, col string) *float64 {
	if v, ok := Float(row[col]); ok {
		return &v
	}
	return nil
}

// Numeric 返回某列所有非缺失数值（保持行序）
func (f *Frame) Numeric(col string) []float64 {
	out := make([]float64, 0, f.Len())
	for _, row := range f.Rows {
		if v, ok := Float(row[col]); ok {
			out = append(out, v)
		}
	}
	return out
}

// SortByNumeric 按某列数值排序后返回新表（原表不变）。
// 缺失值排在末尾，与排序方向无关。
func (f *Frame) SortByNumeric(col string, ascending bool) *Frame {
	rows := make([]Row, len(f.Rows))
	copy(rows, f.Rows)

	sort.SliceStable(rows, func(i, j int) bool {
		vi, oki := Float(rows[i][col])
		vj, okj := Float(rows[j][col])
		if !oki && !okj {
			return false
		}
		if !oki {
			return false
		}
		if !okj {
			return true
		}
		if ascending {
			return vi < vj
		}
		return vi > vj
	})

	return &Frame{Columns: f.Columns, Rows: rows}
}

// Head 返回前 n 行（浅拷贝）
func (f *Frame) Head(n int) []Row {
	if n < 0 {
		n = 0
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	out := make([]Row, n)
	copy(out, f.Rows[:n])
	return out
}

// Records 以列序导出全部行，剔除未声明的键
func (f *Frame) Records() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(f.Rows))
	for _, row := range f.Rows {
		rec := make(map[string]interface{}, len(f.Columns))
		for _, c := range f.Columns {
			if v, ok := row[c]; ok {
				rec[c] = v
			} else {
				rec[c] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}

// Quantile 计算样本的 p 分位数（0<=p<=1），线性插值。
// 空样本返回 nil。
func Quantile(sample []float64, p float64) *float64 {
	if len(sample) == 0 {
		return nil
	}
	sorted := make([]float64, len(sample))
	copy(sorted, sample)
	sort.Float64s(sorted)

	if p <= 0 {
		return &sorted[0]
	}
	if p >= 1 {
		return &sorted[len(sorted)-1]
	}

	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi >= len(sorted) {
		return &sorted[lo]
	}
	v := sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
	return &v
}
