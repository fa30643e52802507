package models

import (
	"time"

	"gorm.io/gorm"
)

// CallOutcome 路由结果
type CallOutcome string

const (
	CallOutcomeMatched CallOutcome = "matched"
	CallOutcomeNoMatch CallOutcome = "no_match"
	CallOutcomeError   CallOutcome = "error"
)

// CallLog 来电路由记录
type CallLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;index"`

	CallSid       string      `json:"callSid" gorm:"size:64;index"`
	PhoneLineID   uint        `json:"phoneLineId" gorm:"index"`
	From          string      `json:"from" gorm:"size:32"`
	To            string      `json:"to" gorm:"size:32"`
	Disposition   string      `json:"disposition" gorm:"size:20"`
	MatchedRuleID *uint       `json:"matchedRuleId,omitempty" gorm:"index"`
	ActionType    ActionType  `json:"actionType,omitempty" gorm:"size:32"`
	Outcome       CallOutcome `json:"outcome" gorm:"size:20;index"`
	ErrorMessage  string      `json:"errorMessage,omitempty" gorm:"type:text"`
}

func (CallLog) TableName() string {
	return "call_logs"
}

// CreateCallLog 写入路由记录
func CreateCallLog(db *gorm.DB, log *CallLog) error {
	return db.Create(log).Error
}

// ListCallLogs 查询线路最近的路由记录
func ListCallLogs(db *gorm.DB, phoneLineID uint, limit int) ([]CallLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var logs []CallLog
	err := db.Where("phone_line_id = ?", phoneLineID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// PurgeCallLogsBefore 删除早于指定时间的记录
func PurgeCallLogsBefore(db *gorm.DB, before time.Time) (int64, error) {
	res := db.Where("created_at < ?", before).Delete(&CallLog{})
	return res.RowsAffected, res.Error
}
