package routing

import (
	"errors"
	"fmt"

	"github.com/code-100-precent/LingCRM/internal/models"
)

// ErrConflictingDisposition 来电上下文同时设置了多个处置标志
var ErrConflictingDisposition = errors.New("call context has more than one disposition flag set")

// ConfigError 规则数据损坏（未知条件、未知动作、非法时间计划）。
// 与“未匹配”不同，匹配过程遇到它会立即终止，不会落到低优先级规则。
type ConfigError struct {
	RuleID uint
	Err    error
}

func (e *ConfigError) Error() string {
	if e.RuleID == 0 {
		return fmt.Sprintf("routing configuration error: %v", e.Err)
	}
	return fmt.Sprintf("routing rule %d configuration error: %v", e.RuleID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError 判断错误链中是否包含 ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// isDataError 存储层解码失败时，判断是否源于规则数据本身
func isDataError(err error) bool {
	return errors.Is(err, models.ErrInvalidAction) ||
		errors.Is(err, models.ErrInvalidCondition) ||
		errors.Is(err, models.ErrInvalidSchedule)
}
