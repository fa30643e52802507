package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/code-100-precent/LingCRM/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func getDB(c *gin.Context) *gorm.DB {
	return c.MustGet(constants.DbField).(*gorm.DB)
}

// parseID 解析路径中的 :id
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(constants.ParamID), 10, 32)
	if err != nil || id == 0 {
		response.Fail(c, "Parameter error", "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

// failWithError 把模型层错误映射为统一的失败响应
func failWithError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, models.ErrPhoneLineNotFound):
		response.Fail(c, "Phone line not found", nil)
	case errors.Is(err, models.ErrRuleNotFound):
		response.Fail(c, "Routing rule not found", nil)
	case errors.Is(err, models.ErrInvalidPhoneLine),
		errors.Is(err, models.ErrInvalidRule),
		errors.Is(err, models.ErrInvalidCondition),
		errors.Is(err, models.ErrInvalidSchedule),
		errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrReorderMismatch):
		response.Fail(c, "Parameter error", err.Error())
	default:
		response.Fail(c, msg, err.Error())
	}
}

// rulesChanged 提交后失效线路规则缓存并广播变更
func (h *Handlers) rulesChanged(ctx context.Context, phoneLineID uint, op string) {
	h.rules.Invalidate(ctx, phoneLineID)
	if h.bus != nil {
		h.bus.Publish(events.Event{
			Type:   events.TypeRulesChanged,
			Source: constants.SourceRoutingAPI,
			Data: map[string]interface{}{
				"phoneLineId": phoneLineID,
				"operation":   op,
			},
		})
	}
}
