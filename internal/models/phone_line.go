package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrPhoneLineNotFound = errors.New("phone line not found")
	ErrInvalidPhoneLine  = errors.New("invalid phone line")
)

// PhoneLine 号码线路，来电路由规则的作用域
type PhoneLine struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	UserID      uint   `json:"userId" gorm:"index"`                         // 号码归属用户
	Number      string `json:"number" gorm:"size:20;uniqueIndex;not null"` // E.164 号码
	Alias       string `json:"alias,omitempty" gorm:"size:128"`
	Description string `json:"description,omitempty" gorm:"type:text"`
	Timezone    string `json:"timezone,omitempty" gorm:"size:64"` // 新建规则时间计划的默认时区
	Enabled     bool   `json:"enabled" gorm:"not null"`
}

func (PhoneLine) TableName() string {
	return "phone_lines"
}

// NormalizeNumber 去掉空格、横线和括号
func NormalizeNumber(number string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	return r.Replace(strings.TrimSpace(number))
}

func (p *PhoneLine) Validate() error {
	p.Number = NormalizeNumber(p.Number)
	if !IsE164(p.Number) {
		return fmt.Errorf("%w: number %q is not E.164", ErrInvalidPhoneLine, p.Number)
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidPhoneLine, p.Timezone)
		}
	}
	return nil
}

// CreatePhoneLine 创建号码线路
func CreatePhoneLine(db *gorm.DB, line *PhoneLine) error {
	if err := line.Validate(); err != nil {
		return err
	}
	return db.Create(line).Error
}

// GetPhoneLineByID 根据ID获取线路
func GetPhoneLineByID(db *gorm.DB, id uint) (*PhoneLine, error) {
	var line PhoneLine
	if err := db.First(&line, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhoneLineNotFound
		}
		return nil, err
	}
	return &line, nil
}

// GetPhoneLineByNumber 根据被叫号码解析线路
func GetPhoneLineByNumber(db *gorm.DB, number string) (*PhoneLine, error) {
	var line PhoneLine
	if err := db.Where("number = ?", NormalizeNumber(number)).First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhoneLineNotFound
		}
		return nil, err
	}
	return &line, nil
}

// ListPhoneLines userID 为 0 时返回全部线路
func ListPhoneLines(db *gorm.DB, userID uint) ([]PhoneLine, error) {
	var lines []PhoneLine
	query := db.Order("created_at DESC")
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	err := query.Find(&lines).Error
	return lines, err
}

// UpdatePhoneLine 更新线路信息
func UpdatePhoneLine(db *gorm.DB, line *PhoneLine) error {
	if err := line.Validate(); err != nil {
		return err
	}
	res := db.Model(&PhoneLine{ID: line.ID}).
		Select("user_id", "number", "alias", "description", "timezone", "enabled").
		Updates(line)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPhoneLineNotFound
	}
	return nil
}

// DeletePhoneLine 软删除线路，并在同一事务内停用其全部规则
func DeletePhoneLine(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&PhoneLine{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPhoneLineNotFound
		}
		_, err := DeactivateRulesByPhoneLine(tx, id)
		return err
	})
}
