package listeners

import (
	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InitCallLogListener 把来电路由事件写入 call_logs
func InitCallLogListener(db *gorm.DB, bus *events.EventBus) {
	handler := CallLogHandler(db)
	for _, eventType := range []string{events.TypeRuleTriggered, events.TypeNoMatch, events.TypeRoutingError} {
		bus.Subscribe(eventType, handler)
	}
	logger.Info("Call log listener initialized")
}

// CallLogHandler 返回写入路由记录的事件处理器
func CallLogHandler(db *gorm.DB) events.EventHandler {
	return func(event events.Event) error {
		entry := buildCallLog(event)
		if err := models.CreateCallLog(db, entry); err != nil {
			logger.Error("Failed to write call log",
				zap.String("callSid", entry.CallSid),
				zap.String("eventType", event.Type),
				zap.Error(err))
			return err
		}
		return nil
	}
}

func buildCallLog(event events.Event) *models.CallLog {
	data := event.Data
	entry := &models.CallLog{
		CreatedAt:    event.Timestamp,
		CallSid:      cast.ToString(data["callSid"]),
		PhoneLineID:  cast.ToUint(data["phoneLineId"]),
		From:         cast.ToString(data["from"]),
		To:           cast.ToString(data["to"]),
		Disposition:  cast.ToString(data["disposition"]),
		ActionType:   models.ActionType(cast.ToString(data["actionType"])),
		ErrorMessage: cast.ToString(data["error"]),
	}

	switch event.Type {
	case events.TypeRuleTriggered:
		entry.Outcome = models.CallOutcomeMatched
		if id := cast.ToUint(data["ruleId"]); id > 0 {
			entry.MatchedRuleID = &id
		}
	case events.TypeNoMatch:
		entry.Outcome = models.CallOutcomeNoMatch
	default:
		entry.Outcome = models.CallOutcomeError
	}
	return entry
}
