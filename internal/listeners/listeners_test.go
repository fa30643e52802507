package listeners

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: glog.New(log.New(io.Discard, "", 0), glog.Config{LogLevel: glog.Silent}),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.CallLog{}))
	return db
}

func TestCallLogListener_RecordsOutcomes(t *testing.T) {
	db := setupTestDB(t)
	bus := events.NewEventBus()
	InitSystemListeners(db, bus)

	bus.Publish(events.Event{Type: events.TypeRuleTriggered, Data: map[string]interface{}{
		"callSid":     "CA1",
		"phoneLineId": uint(3),
		"from":        "+15550000001",
		"to":          "+15551234567",
		"disposition": "busy",
		"ruleId":      uint(9),
		"actionType":  "queue",
	}})
	bus.Publish(events.Event{Type: events.TypeNoMatch, Data: map[string]interface{}{
		"callSid":     "CA2",
		"phoneLineId": uint(3),
		"disposition": "answered",
	}})
	bus.Publish(events.Event{Type: events.TypeRoutingError, Data: map[string]interface{}{
		"callSid":     "CA3",
		"phoneLineId": uint(3),
		"ruleId":      uint(4),
		"error":       "unknown timezone",
	}})
	bus.Publish(events.Event{Type: events.TypeRulesChanged, Data: map[string]interface{}{
		"phoneLineId": uint(3),
		"operation":   "create_rule",
	}})
	bus.Drain()

	logs, err := models.ListCallLogs(db, 3, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	bySid := map[string]models.CallLog{}
	for _, l := range logs {
		bySid[l.CallSid] = l
	}

	matched := bySid["CA1"]
	assert.Equal(t, models.CallOutcomeMatched, matched.Outcome)
	require.NotNil(t, matched.MatchedRuleID)
	assert.Equal(t, uint(9), *matched.MatchedRuleID)
	assert.Equal(t, models.ActionQueue, matched.ActionType)
	assert.Equal(t, "busy", matched.Disposition)

	assert.Equal(t, models.CallOutcomeNoMatch, bySid["CA2"].Outcome)
	assert.Nil(t, bySid["CA2"].MatchedRuleID)

	failed := bySid["CA3"]
	assert.Equal(t, models.CallOutcomeError, failed.Outcome)
	assert.Nil(t, failed.MatchedRuleID)
	assert.Equal(t, "unknown timezone", failed.ErrorMessage)
}

func TestCallLogHandler_KeepsEventTime(t *testing.T) {
	db := setupTestDB(t)
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	err := CallLogHandler(db)(events.Event{Type: events.TypeNoMatch, Timestamp: at, Data: map[string]interface{}{
		"callSid":     "CA1",
		"phoneLineId": 1,
	}})
	require.NoError(t, err)

	logs, err := models.ListCallLogs(db, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].CreatedAt.Equal(at))
}
