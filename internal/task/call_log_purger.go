package task

import (
	"context"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"gorm.io/gorm"
)

// PurgeCallLogs 删除超过保留天数的路由记录
func PurgeCallLogs(ctx context.Context, db *gorm.DB, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	before := time.Now().AddDate(0, 0, -retentionDays)
	return models.PurgeCallLogsBefore(db.WithContext(ctx), before)
}
