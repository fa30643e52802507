package models

import (
	"io"
	"log"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

// setupTestDBWithSilentLogger creates an in-memory database pinned to a single
// connection so every query (and goroutine) sees the same schema.
func setupTestDBWithSilentLogger(t *testing.T, models ...interface{}) *gorm.DB {
	silentLogger := glog.New(
		log.New(io.Discard, "", log.LstdFlags),
		glog.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  glog.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: silentLogger,
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		err = db.AutoMigrate(models...)
		if err != nil {
			t.Fatalf("Failed to migrate: %v", err)
		}
	}

	return db
}

func setupRoutingTestDB(t *testing.T) *gorm.DB {
	return setupTestDBWithSilentLogger(t, &PhoneLine{}, &RoutingRule{}, &CallLog{})
}

func createTestLine(t *testing.T, db *gorm.DB, number string) *PhoneLine {
	line := &PhoneLine{UserID: 1, Number: number, Enabled: true}
	if err := CreatePhoneLine(db, line); err != nil {
		t.Fatalf("Failed to create phone line: %v", err)
	}
	return line
}

func createTestRule(t *testing.T, db *gorm.DB, lineID uint, name string, priority int, cond TriggerCondition) *RoutingRule {
	rule := &RoutingRule{
		PhoneLineID: lineID,
		Name:        name,
		Priority:    priority,
		IsActive:    true,
		Condition:   cond,
		Action:      NewRuleAction(VoicemailAction{Transcribe: true}),
	}
	if err := CreateRoutingRule(db, rule); err != nil {
		t.Fatalf("Failed to create routing rule: %v", err)
	}
	return rule
}
