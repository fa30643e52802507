package models

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRuleNotFound     = errors.New("routing rule not found")
	ErrInvalidRule      = errors.New("invalid routing rule")
	ErrInvalidCondition = errors.New("invalid trigger condition")
	ErrReorderMismatch  = errors.New("rule ids do not match the phone line's rules")
)

// TriggerCondition 规则触发条件，对应来电处置结果
type TriggerCondition string

const (
	ConditionAlways   TriggerCondition = "always"    // 任何处置结果
	ConditionBusy     TriggerCondition = "busy"      // 占线
	ConditionNoAnswer TriggerCondition = "no_answer" // 无人接听
	ConditionOffline  TriggerCondition = "offline"   // 线路离线
)

// Valid 是否为已知条件
func (c TriggerCondition) Valid() bool {
	switch c {
	case ConditionAlways, ConditionBusy, ConditionNoAnswer, ConditionOffline:
		return true
	}
	return false
}

const (
	MinRulePriority      = 0
	MaxRulePriority      = 100
	MinNoAnswerRings     = 1
	MaxNoAnswerRings     = 10
	DefaultNoAnswerRings = 3
)

// RoutingRule 来电路由规则，每条规则只属于一个号码线路
type RoutingRule struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	PhoneLineID uint   `json:"phoneLineId" gorm:"not null;index:idx_routing_rules_line_active_priority,priority:1"`
	Name        string `json:"name" gorm:"size:128;not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`

	// 数值越大越优先；相同优先级按 Sequence、CreatedAt、ID 升序
	Priority int  `json:"priority" gorm:"not null;index:idx_routing_rules_line_active_priority,priority:3,sort:desc"`
	Sequence int  `json:"sequence" gorm:"not null"`
	IsActive bool `json:"isActive" gorm:"not null;index:idx_routing_rules_line_active_priority,priority:2"`

	Condition     TriggerCondition `json:"condition" gorm:"size:20;not null"`
	Schedule      *Schedule        `json:"schedule,omitempty" gorm:"type:text;serializer:json"`
	NoAnswerRings int              `json:"noAnswerRings" gorm:"not null"` // 仅供电话网关参考，不参与匹配
	Action        RuleAction       `json:"action" gorm:"type:text;serializer:json"`

	// 统计
	TriggeredCount int64      `json:"triggeredCount" gorm:"not null;default:0"`
	LastTriggered  *time.Time `json:"lastTriggered,omitempty"`
}

func (RoutingRule) TableName() string {
	return "routing_rules"
}

// Validate 校验字段范围、条件、时间计划与动作
func (r *RoutingRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.Priority < MinRulePriority || r.Priority > MaxRulePriority {
		return fmt.Errorf("%w: priority %d out of range %d-%d", ErrInvalidRule, r.Priority, MinRulePriority, MaxRulePriority)
	}
	if r.NoAnswerRings < MinNoAnswerRings || r.NoAnswerRings > MaxNoAnswerRings {
		return fmt.Errorf("%w: noAnswerRings %d out of range %d-%d", ErrInvalidRule, r.NoAnswerRings, MinNoAnswerRings, MaxNoAnswerRings)
	}
	if !r.Condition.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCondition, r.Condition)
	}
	if err := r.Schedule.Validate(); err != nil {
		return err
	}
	return r.Action.Validate()
}

// RuleLess 规则排序：优先级降序，其后 Sequence、CreatedAt、ID 升序
func RuleLess(a, b *RoutingRule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortRules 按匹配顺序原地排序
func SortRules(rules []RoutingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return RuleLess(&rules[i], &rules[j])
	})
}

func orderedRules(db *gorm.DB) *gorm.DB {
	return db.Order("priority DESC").Order("sequence ASC").Order("created_at ASC").Order("id ASC")
}

// CreateRoutingRule 创建规则，Sequence 追加到线路末尾
func CreateRoutingRule(db *gorm.DB, rule *RoutingRule) error {
	if rule.NoAnswerRings == 0 {
		rule.NoAnswerRings = DefaultNoAnswerRings
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.ID = 0
	rule.TriggeredCount = 0
	rule.LastTriggered = nil

	return db.Transaction(func(tx *gorm.DB) error {
		var maxSeq sql.NullInt64
		if err := tx.Model(&RoutingRule{}).
			Where("phone_line_id = ?", rule.PhoneLineID).
			Select("MAX(sequence)").
			Row().Scan(&maxSeq); err != nil {
			return err
		}
		rule.Sequence = 0
		if maxSeq.Valid {
			rule.Sequence = int(maxSeq.Int64) + 1
		}
		return tx.Create(rule).Error
	})
}

// GetRoutingRuleByID 根据ID获取规则
func GetRoutingRuleByID(db *gorm.DB, id uint) (*RoutingRule, error) {
	var rule RoutingRule
	if err := db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListRoutingRulesByPhoneLine 获取线路的全部规则（含未启用），按匹配顺序
func ListRoutingRulesByPhoneLine(db *gorm.DB, phoneLineID uint) ([]RoutingRule, error) {
	var rules []RoutingRule
	err := orderedRules(db.Where("phone_line_id = ?", phoneLineID)).Find(&rules).Error
	return rules, err
}

// GetActiveRulesByPhoneLine 获取线路启用中的规则，按匹配顺序
func GetActiveRulesByPhoneLine(db *gorm.DB, phoneLineID uint) ([]RoutingRule, error) {
	var rules []RoutingRule
	err := orderedRules(db.Where("phone_line_id = ? AND is_active = ?", phoneLineID, true)).Find(&rules).Error
	return rules, err
}

// UpdateRoutingRule 更新可编辑字段；ID、PhoneLineID 与统计字段不会被修改
func UpdateRoutingRule(db *gorm.DB, rule *RoutingRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	res := db.Model(&RoutingRule{ID: rule.ID}).
		Select("name", "description", "priority", "is_active", "condition", "schedule", "no_answer_rings", "action").
		Updates(rule)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// SetRoutingRuleActive 启用/停用规则
func SetRoutingRuleActive(db *gorm.DB, id uint, active bool) error {
	res := db.Model(&RoutingRule{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRoutingRule 删除规则
func DeleteRoutingRule(db *gorm.DB, id uint) error {
	res := db.Delete(&RoutingRule{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// IncrementRuleTrigger 原子递增命中次数并记录命中时间
func IncrementRuleTrigger(db *gorm.DB, id uint, at time.Time) error {
	res := db.Model(&RoutingRule{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"triggered_count": gorm.Expr("triggered_count + ?", 1),
		"last_triggered":  at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ReorderRoutingRules 在一个事务内重排线路的全部规则。
// ruleIDs 必须恰好是该线路现有规则的 ID 集合。Sequence 改为列表下标，
// 线路原有的优先级数值按降序沿列表重新分配，使匹配顺序与列表顺序一致。
func ReorderRoutingRules(db *gorm.DB, phoneLineID uint, ruleIDs []uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var rules []RoutingRule
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("phone_line_id = ?", phoneLineID).
			Find(&rules).Error; err != nil {
			return err
		}

		if len(ruleIDs) != len(rules) {
			return fmt.Errorf("%w: got %d ids, line %d has %d rules", ErrReorderMismatch, len(ruleIDs), phoneLineID, len(rules))
		}
		existing := make(map[uint]bool, len(rules))
		for _, r := range rules {
			existing[r.ID] = true
		}
		seen := make(map[uint]bool, len(ruleIDs))
		for _, id := range ruleIDs {
			if !existing[id] {
				return fmt.Errorf("%w: rule %d does not belong to line %d", ErrReorderMismatch, id, phoneLineID)
			}
			if seen[id] {
				return fmt.Errorf("%w: rule %d listed twice", ErrReorderMismatch, id)
			}
			seen[id] = true
		}

		priorities := make([]int, len(rules))
		for i, r := range rules {
			priorities[i] = r.Priority
		}
		sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

		for i, id := range ruleIDs {
			if err := tx.Model(&RoutingRule{}).Where("id = ?", id).Updates(map[string]interface{}{
				"priority": priorities[i],
				"sequence": i,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeactivateRulesByPhoneLine 停用线路下所有规则
func DeactivateRulesByPhoneLine(db *gorm.DB, phoneLineID uint) (int64, error) {
	res := db.Model(&RoutingRule{}).
		Where("phone_line_id = ? AND is_active = ?", phoneLineID, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// DeactivateOrphanedRules 停用所属线路已不存在（或已删除）的规则，返回受影响的线路ID
func DeactivateOrphanedRules(db *gorm.DB) ([]uint, error) {
	live := db.Model(&PhoneLine{}).Select("id")

	var lineIDs []uint
	if err := db.Model(&RoutingRule{}).
		Where("is_active = ? AND phone_line_id NOT IN (?)", true, live).
		Distinct().
		Pluck("phone_line_id", &lineIDs).Error; err != nil {
		return nil, err
	}
	if len(lineIDs) == 0 {
		return nil, nil
	}
	if err := db.Model(&RoutingRule{}).
		Where("is_active = ? AND phone_line_id IN ?", true, lineIDs).
		Update("is_active", false).Error; err != nil {
		return nil, err
	}
	return lineIDs, nil
}
