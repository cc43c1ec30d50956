package tencent

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"marketstate/pkg/table"
)

// 腾讯批量行情解析出的输出列
var quoteColumns = []string{"code", "name", "price", "pct_chg", "amount", "volume"}

// 行情字符串里我们关心的 ~ 分隔字段下标
const (
	idxName     = 1  // 名称（GBK）
	idxCode     = 2  // 代码
	idxPrice    = 3  // 最新价
	idxVolume   = 6  // 成交量(手)
	idxPctChg   = 32 // 涨跌幅
	idxTurnover = 35 // 最新价/成交量(手)/成交额 组合字段
	minFields   = 40
)

// gbkToUtf8 将GBK编码转换为UTF-8
func gbkToUtf8(data []byte) []byte {
	reader := transform.NewReader(strings.NewReader(string(data)), simplifiedchinese.GBK.NewDecoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		return data
	}
	return out
}

// parseQuoteData 解析腾讯返回的批量行情。
// 格式: v_sh600000="1~浦发银行~600000~10.10~...";v_sz000001="...";
// 不完整或无法解析的条目直接跳过。
func parseQuoteData(body []byte) []table.Row {
	data := strings.TrimSpace(string(gbkToUtf8(body)))
	if data == "" {
		return nil
	}

	entries := strings.Split(data, ";")
	rows := make([]table.Row, 0, len(entries))

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		eq := strings.Index(entry, "=")
		if eq == -1 || eq+1 >= len(entry) {
			continue
		}

		payload := strings.Trim(entry[eq+1:], "\"")
		fields := strings.Split(payload, "~")
		if len(fields) < minFields {
			continue
		}

		rows = append(rows, table.Row{
			"code":    fields[idxCode],
			"name":    fields[idxName],
			"price":   parseFloatField(fields[idxPrice]),
			"pct_chg": parseFloatField(fields[idxPctChg]),
			"amount":  parseTurnover(fields[idxTurnover]),
			"volume":  parseFloatField(fields[idxVolume]),
		})
	}

	return rows
}

// parseFloatField 解析数值字段，解析失败返回 nil（缺失）
func parseFloatField(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return v
}

// parseTurnover 从"最新价/成交量(手)/成交额"组合字段中提取成交额
func parseTurnover(s string) interface{} {
	parts := strings.Split(s, "/")
	if len(parts) < 3 {
		return nil
	}
	return parseFloatField(parts[2])
}
