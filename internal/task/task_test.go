package task

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/config"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

type fakeInvalidator struct {
	mu  sync.Mutex
	ids []uint
}

func (f *fakeInvalidator) Invalidate(_ context.Context, ids ...uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, ids...)
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: glog.New(log.New(io.Discard, "", 0), glog.Config{LogLevel: glog.Silent}),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.PhoneLine{}, &models.RoutingRule{}, &models.CallLog{}))
	return db
}

func createRule(t *testing.T, db *gorm.DB, lineID uint) *models.RoutingRule {
	rule := &models.RoutingRule{
		PhoneLineID: lineID,
		Name:        "rule",
		IsActive:    true,
		Condition:   models.ConditionAlways,
		Action:      models.NewRuleAction(models.VoicemailAction{}),
	}
	require.NoError(t, models.CreateRoutingRule(db, rule))
	return rule
}

func TestSweepOrphanedRules(t *testing.T) {
	db := setupTestDB(t)
	live := &models.PhoneLine{Number: "+15551234567", Enabled: true}
	require.NoError(t, models.CreatePhoneLine(db, live))
	kept := createRule(t, db, live.ID)
	orphan := createRule(t, db, 4242)

	inv := &fakeInvalidator{}
	bus := events.NewEventBus()
	var got []events.Event
	var mu sync.Mutex
	bus.Subscribe(events.TypeRulesChanged, func(ev events.Event) error {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		return nil
	})

	n, err := SweepOrphanedRules(context.Background(), db, inv, bus)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint{4242}, inv.ids)

	bus.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, uint(4242), got[0].Data["phoneLineId"])

	stored, err := models.GetRoutingRuleByID(db, orphan.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	stored, err = models.GetRoutingRuleByID(db, kept.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	n, err = SweepOrphanedRules(context.Background(), db, inv, bus)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurgeCallLogs(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, models.CreateCallLog(db, &models.CallLog{CallSid: "old", CreatedAt: time.Now().AddDate(0, 0, -40)}))
	require.NoError(t, models.CreateCallLog(db, &models.CallLog{CallSid: "new"}))

	n, err := PurgeCallLogs(context.Background(), db, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = PurgeCallLogs(context.Background(), db, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	var count int64
	require.NoError(t, db.Model(&models.CallLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStartScheduler(t *testing.T) {
	db := setupTestDB(t)

	c, err := StartScheduler(db, &fakeInvalidator{}, nil, &config.Config{
		OrphanSweepSchedule:  "*/10 * * * *",
		CallLogPurgeSchedule: "0 3 * * *",
		CallLogRetentionDays: 90,
	})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
	c.Stop()

	_, err = StartScheduler(db, nil, nil, &config.Config{OrphanSweepSchedule: "not a schedule"})
	assert.Error(t, err)
}
