package routing

import (
	"fmt"

	"github.com/code-100-precent/LingCRM/internal/models"
)

// 来电处置
const (
	DispositionAnswered = "answered"
	DispositionBusy     = "busy"
	DispositionNoAnswer = "no_answer"
	DispositionOffline  = "offline"
)

// CallContext 来电处置标志，一次来电最多只有一个为 true；全为 false 表示正常接通
type CallContext struct {
	IsBusy     bool `json:"isBusy"`
	IsNoAnswer bool `json:"isNoAnswer"`
	IsOffline  bool `json:"isOffline"`
}

// Validate 拒绝同时设置多个处置标志
func (c CallContext) Validate() error {
	n := 0
	for _, f := range []bool{c.IsBusy, c.IsNoAnswer, c.IsOffline} {
		if f {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("%w: busy=%t noAnswer=%t offline=%t", ErrConflictingDisposition, c.IsBusy, c.IsNoAnswer, c.IsOffline)
	}
	return nil
}

// Disposition 处置名称，用于日志与指标
func (c CallContext) Disposition() string {
	switch {
	case c.IsBusy:
		return DispositionBusy
	case c.IsNoAnswer:
		return DispositionNoAnswer
	case c.IsOffline:
		return DispositionOffline
	}
	return DispositionAnswered
}

// MatchesTrigger 判断规则触发条件是否匹配来电上下文，未知条件返回 ErrInvalidCondition
func MatchesTrigger(condition models.TriggerCondition, c CallContext) (bool, error) {
	switch condition {
	case models.ConditionAlways:
		return true, nil
	case models.ConditionBusy:
		return c.IsBusy, nil
	case models.ConditionNoAnswer:
		return c.IsNoAnswer, nil
	case models.ConditionOffline:
		return c.IsOffline, nil
	}
	return false, fmt.Errorf("%w: %q", models.ErrInvalidCondition, condition)
}
