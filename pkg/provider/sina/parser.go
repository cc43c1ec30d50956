package sina

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Market_Center 列表接口返回的字段，顺序即输出列序
var nodeDataColumns = []string{
	"symbol", "code", "name", "trade", "pricechange", "changepercent",
	"buy", "sell", "settlement", "open", "high", "low",
	"volume", "amount", "ticktime", "per", "pb", "mktcap", "nmc", "turnoverratio",
}

// gbkToUtf8 将GBK编码转换为UTF-8
func gbkToUtf8(data []byte) []byte {
	reader := transform.NewReader(strings.NewReader(string(data)), simplifiedchinese.GBK.NewDecoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		return data
	}
	return out
}

// 接口返回的是 JS 对象字面量，键名不带引号：[{symbol:"sh600000",...}]
var bareKeyRe = regexp.MustCompile(`([\[{,])\s*([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// normalizeJSON 给裸键补引号，转成合法 JSON
func normalizeJSON(s string) string {
	return bareKeyRe.ReplaceAllString(s, `$1"$2":`)
}

// parseNodeData 解析列表接口响应（GBK、裸键 JSON）为行记录
func parseNodeData(body []byte) ([]map[string]interface{}, error) {
	text := strings.TrimSpace(string(gbkToUtf8(body)))
	if text == "" || text == "null" {
		return nil, nil
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal([]byte(normalizeJSON(text)), &rows); err != nil {
		return nil, fmt.Errorf("decode node data failed: %w", err)
	}
	return rows, nil
}

// countRe 从计数接口响应中提取第一个整数
var countRe = regexp.MustCompile(`\d+`)

// parseNodeCount 解析股票总数响应，形如 "5439" 或 var count="5439"
func parseNodeCount(body []byte) (int, error) {
	m := countRe.FindString(string(body))
	if m == "" {
		return 0, fmt.Errorf("no count in response: %q", string(body))
	}
	var n int
	if _, err := fmt.Sscanf(m, "%d", &n); err != nil {
		return 0, err
	}
	return n, nil
}
