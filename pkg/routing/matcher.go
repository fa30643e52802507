package routing

import (
	"context"
	"errors"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"github.com/code-100-precent/LingCRM/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "github.com/code-100-precent/LingCRM/pkg/routing"

// RuleSource 提供线路的启用规则。未知或停用的线路返回空列表而不是错误。
type RuleSource interface {
	ActiveRules(ctx context.Context, phoneLineID uint) ([]models.RoutingRule, error)
}

// TriggerRecorder 原子递增规则命中计数
type TriggerRecorder interface {
	IncrementTrigger(ctx context.Context, ruleID uint, at time.Time) error
}

// DBRuleSource 直接读写数据库
type DBRuleSource struct {
	db *gorm.DB
}

func NewDBRuleSource(db *gorm.DB) *DBRuleSource {
	return &DBRuleSource{db: db}
}

func (s *DBRuleSource) ActiveRules(ctx context.Context, phoneLineID uint) ([]models.RoutingRule, error) {
	db := s.db.WithContext(ctx)
	line, err := models.GetPhoneLineByID(db, phoneLineID)
	if errors.Is(err, models.ErrPhoneLineNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !line.Enabled {
		return nil, nil
	}
	return models.GetActiveRulesByPhoneLine(db, phoneLineID)
}

func (s *DBRuleSource) IncrementTrigger(ctx context.Context, ruleID uint, at time.Time) error {
	return models.IncrementRuleTrigger(s.db.WithContext(ctx), ruleID, at)
}

// Matcher 为来电选择规则
type Matcher struct {
	source    RuleSource
	recorder  TriggerRecorder
	schedules *ScheduleEvaluator
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// NewMatcher schedules 为空时使用默认时区缓存，m 为空时不记录指标
func NewMatcher(source RuleSource, recorder TriggerRecorder, schedules *ScheduleEvaluator, m *metrics.Metrics) *Matcher {
	if schedules == nil {
		schedules = defaultSchedules
	}
	return &Matcher{
		source:    source,
		recorder:  recorder,
		schedules: schedules,
		metrics:   m,
		tracer:    otel.Tracer(tracerName),
	}
}

// FindMatchingRule 按 优先级降序 / Sequence / CreatedAt / ID 的顺序扫描启用规则，
// 返回第一条触发条件与时间计划都匹配的规则。没有匹配时返回 nil, nil；
// 规则数据损坏时返回 *ConfigError，不会继续尝试后面的规则。
func (m *Matcher) FindMatchingRule(ctx context.Context, phoneLineID uint, call CallContext, now time.Time) (*models.RoutingRule, error) {
	ctx, span := m.tracer.Start(ctx, "routing.FindMatchingRule", trace.WithAttributes(
		attribute.Int64("phone_line.id", int64(phoneLineID)),
		attribute.String("call.disposition", call.Disposition()),
	))
	defer span.End()

	start := time.Now()
	rule, err := m.findMatchingRule(ctx, phoneLineID, call, now)

	outcome := metrics.OutcomeNoMatch
	switch {
	case IsConfigError(err):
		outcome = metrics.OutcomeConfigError
	case err != nil:
		outcome = metrics.OutcomeError
	case rule != nil:
		outcome = metrics.OutcomeMatched
		span.SetAttributes(attribute.Int64("routing.rule.id", int64(rule.ID)))
	}
	span.SetAttributes(attribute.String("routing.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if m.metrics != nil {
		m.metrics.RecordRoutingLookup(outcome, time.Since(start))
	}
	return rule, err
}

func (m *Matcher) findMatchingRule(ctx context.Context, phoneLineID uint, call CallContext, now time.Time) (*models.RoutingRule, error) {
	rules, err := m.source.ActiveRules(ctx, phoneLineID)
	if err != nil {
		if isDataError(err) {
			return nil, &ConfigError{Err: err}
		}
		return nil, err
	}

	ordered := make([]models.RoutingRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive && r.PhoneLineID == phoneLineID {
			ordered = append(ordered, r)
		}
	}
	models.SortRules(ordered)

	for i := range ordered {
		rule := &ordered[i]

		ok, err := MatchesTrigger(rule.Condition, call)
		if err != nil {
			return nil, &ConfigError{RuleID: rule.ID, Err: err}
		}
		if !ok {
			continue
		}

		ok, err = m.schedules.IsWithinSchedule(rule.Schedule, now)
		if err != nil {
			return nil, &ConfigError{RuleID: rule.ID, Err: err}
		}
		if !ok {
			continue
		}

		if err := rule.Action.Validate(); err != nil {
			return nil, &ConfigError{RuleID: rule.ID, Err: err}
		}
		return rule, nil
	}
	return nil, nil
}

// RecordTrigger 递增命中计数。失败只记录日志并返回错误，调用方仍可继续执行动作。
func (m *Matcher) RecordTrigger(ctx context.Context, rule *models.RoutingRule, now time.Time) error {
	err := m.recorder.IncrementTrigger(ctx, rule.ID, now)
	if m.metrics != nil {
		m.metrics.RecordRuleTrigger(err == nil)
	}
	if err != nil {
		logger.Warn("failed to record rule trigger",
			zap.Uint("ruleId", rule.ID),
			zap.Uint("phoneLineId", rule.PhoneLineID),
			zap.Error(err))
		return err
	}
	rule.TriggeredCount++
	at := now
	rule.LastTriggered = &at
	return nil
}
