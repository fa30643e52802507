package routing

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glog "gorm.io/gorm/logger"
)

var errStorage = errors.New("storage unavailable")

// memSource 内存规则源，可阻塞以观察并发加载
type memSource struct {
	mu    sync.Mutex
	rules map[uint][]models.RoutingRule
	err   error
	calls atomic.Int32

	started chan struct{}
	release chan struct{}
}

func newMemSource() *memSource {
	return &memSource{rules: make(map[uint][]models.RoutingRule)}
}

func (s *memSource) add(r models.RoutingRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.PhoneLineID] = append(s.rules[r.PhoneLineID], r)
}

func (s *memSource) clear(phoneLineID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, phoneLineID)
}

func (s *memSource) ActiveRules(ctx context.Context, phoneLineID uint) ([]models.RoutingRule, error) {
	s.calls.Add(1)
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.RoutingRule
	for _, r := range s.rules[phoneLineID] {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// memRecorder 记录命中次数
type memRecorder struct {
	mu     sync.Mutex
	counts map[uint]int
	err    error
}

func newMemRecorder() *memRecorder {
	return &memRecorder{counts: make(map[uint]int)}
}

func (r *memRecorder) IncrementTrigger(_ context.Context, ruleID uint, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.counts[ruleID]++
	return nil
}

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func testRule(id uint, priority int, cond models.TriggerCondition) models.RoutingRule {
	return models.RoutingRule{
		ID:          id,
		PhoneLineID: 1,
		Name:        "rule",
		Priority:    priority,
		IsActive:    true,
		Condition:   cond,
		Action:      models.NewRuleAction(models.VoicemailAction{}),
		CreatedAt:   baseTime.Add(time.Duration(id) * time.Minute),
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: glog.New(log.New(io.Discard, "", 0), glog.Config{LogLevel: glog.Silent}),
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

	if err := db.AutoMigrate(&models.PhoneLine{}, &models.RoutingRule{}, &models.CallLog{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}
