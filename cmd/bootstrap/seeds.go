package bootstrap

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/code-100-precent/LingCRM/internal/models"
	"github.com/code-100-precent/LingCRM/pkg/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type SeedService struct {
	db *gorm.DB
}

// RulesFile 规则导入文件
type RulesFile struct {
	PhoneLines []PhoneLineSeed `yaml:"phoneLines"`
}

type PhoneLineSeed struct {
	UserID      uint       `yaml:"userId"`
	Number      string     `yaml:"number"`
	Alias       string     `yaml:"alias"`
	Description string     `yaml:"description"`
	Timezone    string     `yaml:"timezone"`
	Disabled    bool       `yaml:"disabled"`
	Rules       []RuleSeed `yaml:"rules"`
}

type RuleSeed struct {
	Name          string                 `yaml:"name"`
	Description   string                 `yaml:"description"`
	Priority      int                    `yaml:"priority"`
	Inactive      bool                   `yaml:"inactive"`
	Condition     string                 `yaml:"condition"`
	NoAnswerRings int                    `yaml:"noAnswerRings"`
	Schedule      *models.Schedule       `yaml:"schedule"`
	Action        map[string]interface{} `yaml:"action"`
}

// toRule 动作经由 JSON 解码，复用其类型校验
func (r RuleSeed) toRule(lineID uint) (*models.RoutingRule, error) {
	raw, err := json.Marshal(r.Action)
	if err != nil {
		return nil, err
	}
	var action models.RuleAction
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, err
	}
	return &models.RoutingRule{
		PhoneLineID:   lineID,
		Name:          r.Name,
		Description:   r.Description,
		Priority:      r.Priority,
		IsActive:      !r.Inactive,
		Condition:     models.TriggerCondition(r.Condition),
		NoAnswerRings: r.NoAnswerRings,
		Schedule:      r.Schedule,
		Action:        action,
	}, nil
}

func (s *SeedService) SeedAll() error {
	return s.seedDemoPhoneLine()
}

// seedDemoPhoneLine 空库时写入一条演示线路：忙线转语音信箱，其余排队
func (s *SeedService) seedDemoPhoneLine() error {
	var count int64
	if err := s.db.Model(&models.PhoneLine{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := s.importFile(&RulesFile{PhoneLines: []PhoneLineSeed{{
		Number: "+15550100000",
		Alias:  "Demo line",
		Rules: []RuleSeed{
			{
				Name:      "Busy to voicemail",
				Priority:  50,
				Condition: string(models.ConditionBusy),
				Action:    map[string]interface{}{"type": string(models.ActionVoicemail), "transcribe": true},
			},
			{
				Name:      "Everyone else to support queue",
				Priority:  10,
				Condition: string(models.ConditionAlways),
				Action:    map[string]interface{}{"type": string(models.ActionQueue), "queueName": "support"},
			},
		},
	}}})
	return err
}

// ImportRulesFile 从 YAML 文件导入线路与规则
func (s *SeedService) ImportRulesFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.ImportRules(f)
}

// ImportRules 已存在的线路按号码复用；线路已有规则时跳过其规则，重复导入不会产生重复规则。
// 任一规则不合法则整体回滚。
func (s *SeedService) ImportRules(r io.Reader) (int, error) {
	var file RulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("parse rules file: %w", err)
	}
	return s.importFile(&file)
}

func (s *SeedService) importFile(file *RulesFile) (int, error) {
	imported := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range file.PhoneLines {
			line, err := models.GetPhoneLineByNumber(tx, seed.Number)
			if errors.Is(err, models.ErrPhoneLineNotFound) {
				line = &models.PhoneLine{
					UserID:      seed.UserID,
					Number:      seed.Number,
					Alias:       seed.Alias,
					Description: seed.Description,
					Timezone:    seed.Timezone,
					Enabled:     !seed.Disabled,
				}
				err = models.CreatePhoneLine(tx, line)
			}
			if err != nil {
				return fmt.Errorf("phone line %s: %w", seed.Number, err)
			}

			existing, err := models.ListRoutingRulesByPhoneLine(tx, line.ID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				logger.Info("phone line already has routing rules, skipping",
					zap.String("number", line.Number), zap.Int("rules", len(existing)))
				continue
			}

			for _, rs := range seed.Rules {
				rule, err := rs.toRule(line.ID)
				if err == nil {
					err = models.CreateRoutingRule(tx, rule)
				}
				if err != nil {
					return fmt.Errorf("phone line %s rule %q: %w", seed.Number, rs.Name, err)
				}
				imported++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}
