package task

import (
	"context"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"gorm.io/gorm"
)

// SweepOrphanedRules 停用所属线路已删除的规则，失效缓存并广播变更。返回受影响的线路数。
func SweepOrphanedRules(ctx context.Context, db *gorm.DB, rules RuleInvalidator, bus *events.EventBus) (int, error) {
	lineIDs, err := models.DeactivateOrphanedRules(db.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	if len(lineIDs) == 0 {
		return 0, nil
	}

	if rules != nil {
		rules.Invalidate(ctx, lineIDs...)
	}
	if bus != nil {
		for _, id := range lineIDs {
			bus.Publish(events.Event{
				Type:   events.TypeRulesChanged,
				Source: constants.SourceOrphanSweeper,
				Data: map[string]interface{}{
					"phoneLineId": id,
					"operation":   "deactivate_orphaned",
				},
			})
		}
	}
	return len(lineIDs), nil
}
