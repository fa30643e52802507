package task

import (
	"context"
	"fmt"

	"github.com/code-100-precent/LingCRM/pkg/config"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RuleInvalidator 失效线路规则缓存
type RuleInvalidator interface {
	Invalidate(ctx context.Context, phoneLineIDs ...uint)
}

// StartScheduler 注册孤儿规则清理和路由记录清理任务并启动，调用方负责 Stop
func StartScheduler(db *gorm.DB, rules RuleInvalidator, bus *events.EventBus, cfg *config.Config) (*cron.Cron, error) {
	c := cron.New()

	if cfg.OrphanSweepSchedule != "" {
		_, err := c.AddFunc(cfg.OrphanSweepSchedule, func() {
			n, err := SweepOrphanedRules(context.Background(), db, rules, bus)
			if err != nil {
				logger.Error("Orphan rule sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("Orphan rule sweep completed", zap.Int("phoneLines", n))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("orphan sweep schedule %q: %w", cfg.OrphanSweepSchedule, err)
		}
	}

	if cfg.CallLogPurgeSchedule != "" && cfg.CallLogRetentionDays > 0 {
		_, err := c.AddFunc(cfg.CallLogPurgeSchedule, func() {
			n, err := PurgeCallLogs(context.Background(), db, cfg.CallLogRetentionDays)
			if err != nil {
				logger.Error("Call log purge failed", zap.Error(err))
				return
			}
			logger.Info("Call log purge completed", zap.Int64("deleted", n))
		})
		if err != nil {
			return nil, fmt.Errorf("call log purge schedule %q: %w", cfg.CallLogPurgeSchedule, err)
		}
	}

	c.Start()
	logger.Info("Scheduled tasks started",
		zap.String("orphanSweep", cfg.OrphanSweepSchedule),
		zap.String("callLogPurge", cfg.CallLogPurgeSchedule),
		zap.Int("retentionDays", cfg.CallLogRetentionDays))
	return c, nil
}
