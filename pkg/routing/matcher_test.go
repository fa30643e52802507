package routing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(src RuleSource) (*Matcher, *memRecorder) {
	rec := newMemRecorder()
	return NewMatcher(src, rec, NewScheduleEvaluator(8), nil), rec
}

func TestFindMatchingRule_PriorityWins(t *testing.T) {
	src := newMemSource()
	src.add(testRule(1, 5, models.ConditionAlways))
	src.add(testRule(2, 10, models.ConditionBusy))
	m, _ := newTestMatcher(src)

	rule, err := m.FindMatchingRule(context.Background(), 1, CallContext{IsBusy: true}, baseTime)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, uint(2), rule.ID)

	rule, err = m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, uint(1), rule.ID)
}

func TestFindMatchingRule_TieBreaks(t *testing.T) {
	src := newMemSource()
	later := testRule(1, 10, models.ConditionAlways)
	later.CreatedAt = baseTime.Add(time.Hour)
	earlier := testRule(2, 10, models.ConditionAlways)
	earlier.CreatedAt = baseTime
	src.add(later)
	src.add(earlier)
	m, _ := newTestMatcher(src)

	rule, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, uint(2), rule.ID)

	// Sequence 优先于创建时间
	src2 := newMemSource()
	later.Sequence = 0
	earlier.Sequence = 1
	src2.add(earlier)
	src2.add(later)
	m2, _ := newTestMatcher(src2)

	rule, err = m2.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	require.NoError(t, err)
	assert.Equal(t, uint(1), rule.ID)
}

func TestFindMatchingRule_Deterministic(t *testing.T) {
	src := newMemSource()
	for i := uint(1); i <= 10; i++ {
		r := testRule(i, int(i%3)*10, models.ConditionAlways)
		r.CreatedAt = baseTime
		src.add(r)
	}
	m, _ := newTestMatcher(src)

	first, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}
	assert.Equal(t, uint(2), first.ID)
}

func TestFindMatchingRule_NeverReturnsInactive(t *testing.T) {
	src := newMemSource()
	inactive := testRule(1, 100, models.ConditionAlways)
	inactive.IsActive = false
	src.add(inactive)
	m, _ := newTestMatcher(src)

	rule, err := m.FindMatchingRule(context.Background(), 1, CallContext{IsBusy: true}, baseTime)
	require.NoError(t, err)
	assert.Nil(t, rule)

	// 即使规则源把停用规则交回来也不会命中
	leaky := &staticSource{rules: []models.RoutingRule{inactive}}
	m2, _ := newTestMatcher(leaky)
	rule, err = m2.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	require.NoError(t, err)
	assert.Nil(t, rule)
}

type staticSource struct {
	rules []models.RoutingRule
	err   error
}

func (s *staticSource) ActiveRules(context.Context, uint) ([]models.RoutingRule, error) {
	return s.rules, s.err
}

func TestFindMatchingRule_UnknownLineIsNoMatch(t *testing.T) {
	m, _ := newTestMatcher(newMemSource())
	rule, err := m.FindMatchingRule(context.Background(), 404, CallContext{IsBusy: true}, baseTime)
	assert.NoError(t, err)
	assert.Nil(t, rule)
}

func TestFindMatchingRule_ScheduleScenarios(t *testing.T) {
	moscow := mustLocation(t, "Europe/Moscow")
	src := newMemSource()
	r := testRule(1, 10, models.ConditionNoAnswer)
	r.Schedule = officeHours()
	src.add(r)
	m, _ := newTestMatcher(src)
	ctx := context.Background()

	rule, err := m.FindMatchingRule(ctx, 1, CallContext{IsNoAnswer: true}, time.Date(2025, 1, 4, 10, 0, 0, 0, moscow))
	require.NoError(t, err)
	assert.Nil(t, rule, "saturday is not a working day")

	rule, err = m.FindMatchingRule(ctx, 1, CallContext{IsNoAnswer: true}, time.Date(2025, 1, 7, 10, 0, 0, 0, moscow))
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, uint(1), rule.ID)
}

func TestFindMatchingRule_HolidayScenario(t *testing.T) {
	moscow := mustLocation(t, "Europe/Moscow")
	src := newMemSource()
	r := testRule(1, 10, models.ConditionAlways)
	r.Schedule = officeHours()
	r.Schedule.Holidays = []string{"2025-01-01"}
	src.add(r)
	m, _ := newTestMatcher(src)

	rule, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, time.Date(2025, 1, 1, 10, 0, 0, 0, moscow))
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestFindMatchingRule_ScheduleFallsThroughToLowerPriority(t *testing.T) {
	src := newMemSource()
	night := testRule(1, 50, models.ConditionAlways)
	night.Schedule = &models.Schedule{StartTime: "22:00", EndTime: "06:00"}
	src.add(night)
	src.add(testRule(2, 10, models.ConditionAlways))
	m, _ := newTestMatcher(src)

	rule, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, time.Date(2025, 1, 7, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, uint(1), rule.ID)

	rule, err = m.FindMatchingRule(context.Background(), 1, CallContext{}, time.Date(2025, 1, 7, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, uint(2), rule.ID)
}

func TestFindMatchingRule_ConfigErrorsDoNotFallThrough(t *testing.T) {
	tests := map[string]func(r *models.RoutingRule){
		"unknown condition": func(r *models.RoutingRule) { r.Condition = "ringing" },
		"malformed schedule": func(r *models.RoutingRule) {
			r.Schedule = &models.Schedule{StartTime: "9am", EndTime: "18:00"}
		},
		"missing action": func(r *models.RoutingRule) { r.Action = models.RuleAction{} },
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			src := newMemSource()
			bad := testRule(1, 50, models.ConditionAlways)
			corrupt(&bad)
			src.add(bad)
			src.add(testRule(2, 10, models.ConditionAlways))
			m, _ := newTestMatcher(src)

			rule, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
			assert.Nil(t, rule)
			require.Error(t, err)
			assert.True(t, IsConfigError(err))

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, uint(1), ce.RuleID)
		})
	}
}

func TestFindMatchingRule_SourceErrors(t *testing.T) {
	m, _ := newTestMatcher(&staticSource{err: errStorage})
	_, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	assert.ErrorIs(t, err, errStorage)
	assert.False(t, IsConfigError(err))

	decodeErr := fmt.Errorf("sql: Scan error on column \"action\": %w", models.ErrInvalidAction)
	m, _ = newTestMatcher(&staticSource{err: decodeErr})
	_, err = m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, models.ErrInvalidAction)
}

func TestRecordTrigger(t *testing.T) {
	src := newMemSource()
	src.add(testRule(1, 10, models.ConditionAlways))
	m, rec := newTestMatcher(src)

	rule, err := m.FindMatchingRule(context.Background(), 1, CallContext{}, baseTime)
	require.NoError(t, err)
	require.NoError(t, m.RecordTrigger(context.Background(), rule, baseTime))
	assert.Equal(t, 1, rec.counts[1])
	assert.Equal(t, int64(1), rule.TriggeredCount)
	require.NotNil(t, rule.LastTriggered)
	assert.True(t, rule.LastTriggered.Equal(baseTime))

	rec.err = errStorage
	err = m.RecordTrigger(context.Background(), rule, baseTime)
	assert.ErrorIs(t, err, errStorage)
	assert.Equal(t, int64(1), rule.TriggeredCount)
}

func TestDBRuleSource_LineStates(t *testing.T) {
	db := setupTestDB(t)
	line := &models.PhoneLine{Number: "+14155550100", Enabled: true}
	require.NoError(t, models.CreatePhoneLine(db, line))
	rule := &models.RoutingRule{
		PhoneLineID: line.ID,
		Name:        "busy",
		Priority:    10,
		IsActive:    true,
		Condition:   models.ConditionBusy,
		Action:      models.NewRuleAction(models.ForwardNumberAction{Number: "+14155550199"}),
	}
	require.NoError(t, models.CreateRoutingRule(db, rule))

	src := NewDBRuleSource(db)
	m := NewMatcher(src, src, nil, nil)
	ctx := context.Background()

	got, err := m.FindMatchingRule(ctx, line.ID, CallContext{IsBusy: true}, time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ForwardNumberAction{Number: "+14155550199"}, got.Action.Action)

	got, err = m.FindMatchingRule(ctx, line.ID+1, CallContext{IsBusy: true}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)

	line.Enabled = false
	require.NoError(t, models.UpdatePhoneLine(db, line))
	got, err = m.FindMatchingRule(ctx, line.ID, CallContext{IsBusy: true}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDBRuleSource_CorruptActionIsConfigError(t *testing.T) {
	db := setupTestDB(t)
	line := &models.PhoneLine{Number: "+14155550100", Enabled: true}
	require.NoError(t, models.CreatePhoneLine(db, line))
	rule := &models.RoutingRule{
		PhoneLineID: line.ID,
		Name:        "corrupt",
		Priority:    10,
		IsActive:    true,
		Condition:   models.ConditionAlways,
		Action:      models.NewRuleAction(models.RejectAction{}),
	}
	require.NoError(t, models.CreateRoutingRule(db, rule))
	require.NoError(t, db.Exec("UPDATE routing_rules SET action = ? WHERE id = ?", `{"type":"teleport"}`, rule.ID).Error)

	src := NewDBRuleSource(db)
	m := NewMatcher(src, src, nil, nil)
	got, err := m.FindMatchingRule(context.Background(), line.ID, CallContext{}, time.Now())
	assert.Nil(t, got)
	assert.True(t, IsConfigError(err))
	assert.ErrorIs(t, err, models.ErrInvalidAction)
}

func TestRecordTrigger_ConcurrentIncrements(t *testing.T) {
	db := setupTestDB(t)
	line := &models.PhoneLine{Number: "+14155550100", Enabled: true}
	require.NoError(t, models.CreatePhoneLine(db, line))
	rule := &models.RoutingRule{
		PhoneLineID: line.ID,
		Name:        "no answer",
		Priority:    10,
		IsActive:    true,
		Condition:   models.ConditionNoAnswer,
		Action:      models.NewRuleAction(models.VoicemailAction{}),
	}
	require.NoError(t, models.CreateRoutingRule(db, rule))

	src := NewDBRuleSource(db)
	m := NewMatcher(src, src, nil, nil)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			matched, err := m.FindMatchingRule(ctx, line.ID, CallContext{IsNoAnswer: true}, time.Now())
			if err != nil || matched == nil {
				t.Errorf("expected match, got %v, %v", matched, err)
				return
			}
			if err := m.RecordTrigger(ctx, matched, time.Now()); err != nil {
				t.Errorf("record trigger: %v", err)
			}
		}()
	}
	wg.Wait()

	loaded, err := models.GetRoutingRuleByID(db, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), loaded.TriggeredCount)
}
