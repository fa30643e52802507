package listeners

import (
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InitSystemListeners initializes system listeners
func InitSystemListeners(db *gorm.DB, bus *events.EventBus) {
	InitCallLogListener(db, bus)

	bus.Subscribe(events.TypeRulesChanged, func(event events.Event) error {
		logger.Info("Routing rules changed",
			zap.Uint("phoneLineId", cast.ToUint(event.Data["phoneLineId"])),
			zap.String("operation", cast.ToString(event.Data["operation"])),
			zap.String("source", event.Source))
		return nil
	})
	logger.Info("system module listener is already")
}
