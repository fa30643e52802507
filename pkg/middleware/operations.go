package middleware

import "strings"

// operationDescriptions 路由模板到操作描述的映射，key 形如 "PUT /phone-lines/:id/rules/reorder"
var operationDescriptions = map[string]string{
	"POST /phone-lines":                  "create phone line",
	"PUT /phone-lines/:id":               "update phone line",
	"DELETE /phone-lines/:id":            "delete phone line",
	"POST /phone-lines/:id/rules":        "create routing rule",
	"PUT /phone-lines/:id/rules/reorder": "reorder routing rules",
	"POST /phone-lines/:id/rules/test":   "dry-run routing",
	"PUT /routing-rules/:id":             "update routing rule",
	"PATCH /routing-rules/:id/toggle":    "toggle routing rule",
	"DELETE /routing-rules/:id":          "delete routing rule",
	"POST /telephony/inbound":            "route inbound call",
}

// DescribeOperation 根据方法和路由模板返回操作描述，未知操作返回空串。
// 路由模板可以带 API 前缀。
func DescribeOperation(method, fullPath string) string {
	if fullPath == "" {
		return ""
	}
	for key, desc := range operationDescriptions {
		m, pattern, _ := strings.Cut(key, " ")
		if m == method && strings.HasSuffix(fullPath, pattern) {
			return desc
		}
	}
	return ""
}
