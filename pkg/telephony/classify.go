package telephony

import (
	"strings"

	"github.com/code-100-precent/LingCRM/pkg/routing"
)

// 呼叫状态取值
const (
	StatusBusy     = "busy"
	StatusNoAnswer = "no-answer"
	StatusFailed   = "failed"
	StatusOffline  = "offline"
)

// InboundCall 电话网关来电 webhook 中路由用到的字段
type InboundCall struct {
	CallSid        string `form:"CallSid" json:"callSid" binding:"required"`
	From           string `form:"From" json:"from"`
	To             string `form:"To" json:"to" binding:"required"`
	CallStatus     string `form:"CallStatus" json:"callStatus"`
	DialCallStatus string `form:"DialCallStatus" json:"dialCallStatus"`
	LineStatus     string `form:"LineStatus" json:"lineStatus"`
}

// Classify 将网关状态映射为处置标志。DialCallStatus 优先于 CallStatus；
// 结果可能包含多个标志，由调用方通过 CallContext.Validate 拒绝。
func Classify(call InboundCall) routing.CallContext {
	status := strings.ToLower(strings.TrimSpace(call.DialCallStatus))
	if status == "" {
		status = strings.ToLower(strings.TrimSpace(call.CallStatus))
	}
	line := strings.ToLower(strings.TrimSpace(call.LineStatus))

	return routing.CallContext{
		IsBusy:     status == StatusBusy,
		IsNoAnswer: status == StatusNoAnswer,
		IsOffline:  status == StatusFailed || line == StatusOffline,
	}
}
