package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSchedule 时间计划配置不合法
var ErrInvalidSchedule = errors.New("invalid routing schedule")

// HolidayLayout 节假日日期格式
const HolidayLayout = "2006-01-02"

// Schedule 规则生效时间窗口。WorkingDays 为空表示每天都生效，0 表示周日。
type Schedule struct {
	Timezone    string   `json:"timezone" yaml:"timezone"`
	WorkingDays []int    `json:"workingDays" yaml:"workingDays"`
	StartTime   string   `json:"startTime" yaml:"startTime"`
	EndTime     string   `json:"endTime" yaml:"endTime"`
	Holidays    []string `json:"holidays,omitempty" yaml:"holidays"`
}

// ParseClock 解析 24 小时制 HH:MM，返回当天分钟数
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, s)
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, s)
	}
	return h*60 + m, nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// LocationName 空时区按 UTC 处理
func (s *Schedule) LocationName() string {
	if s.Timezone == "" {
		return "UTC"
	}
	return s.Timezone
}

// Validate 检查时区、工作日、时间与节假日格式
func (s *Schedule) Validate() error {
	if s == nil {
		return nil
	}
	if _, err := time.LoadLocation(s.LocationName()); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.Timezone)
	}
	for _, d := range s.WorkingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: working day %d out of range 0-6", ErrInvalidSchedule, d)
		}
	}
	if _, err := ParseClock(s.StartTime); err != nil {
		return err
	}
	if _, err := ParseClock(s.EndTime); err != nil {
		return err
	}
	for _, h := range s.Holidays {
		if _, err := time.Parse(HolidayLayout, h); err != nil {
			return fmt.Errorf("%w: holiday %q is not YYYY-MM-DD", ErrInvalidSchedule, h)
		}
	}
	return nil
}
