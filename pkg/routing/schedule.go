package routing

import (
	"fmt"
	"slices"
	"time"

	"github.com/code-100-precent/LingCRM/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultLocationCacheSize = 64

// ScheduleEvaluator 判断时间是否落在规则的时间计划内，缓存已加载的时区
type ScheduleEvaluator struct {
	locations *lru.Cache[string, *time.Location]
}

// NewScheduleEvaluator size 不大于 0 时使用默认容量
func NewScheduleEvaluator(size int) *ScheduleEvaluator {
	if size <= 0 {
		size = defaultLocationCacheSize
	}
	locations, err := lru.New[string, *time.Location](size)
	if err != nil {
		panic(err)
	}
	return &ScheduleEvaluator{locations: locations}
}

var defaultSchedules = NewScheduleEvaluator(defaultLocationCacheSize)

// IsWithinSchedule 使用默认的时区缓存
func IsWithinSchedule(s *models.Schedule, at time.Time) (bool, error) {
	return defaultSchedules.IsWithinSchedule(s, at)
}

func (e *ScheduleEvaluator) location(name string) (*time.Location, error) {
	if loc, ok := e.locations.Get(name); ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	e.locations.Add(name, loc)
	return loc, nil
}

// IsWithinSchedule 计划为空时总是生效。
// 在计划时区内依次检查节假日、工作日和 [start, end] 闭区间（分钟粒度），
// end 早于 start 时窗口跨越午夜。数据不合法时返回 ErrInvalidSchedule。
func (e *ScheduleEvaluator) IsWithinSchedule(s *models.Schedule, at time.Time) (bool, error) {
	if s == nil {
		return true, nil
	}

	loc, err := e.location(s.LocationName())
	if err != nil {
		return false, fmt.Errorf("%w: unknown timezone %q", models.ErrInvalidSchedule, s.Timezone)
	}
	start, err := models.ParseClock(s.StartTime)
	if err != nil {
		return false, err
	}
	end, err := models.ParseClock(s.EndTime)
	if err != nil {
		return false, err
	}
	for _, d := range s.WorkingDays {
		if d < 0 || d > 6 {
			return false, fmt.Errorf("%w: working day %d out of range 0-6", models.ErrInvalidSchedule, d)
		}
	}

	local := at.In(loc)

	today := local.Format(models.HolidayLayout)
	for _, h := range s.Holidays {
		if _, err := time.Parse(models.HolidayLayout, h); err != nil {
			return false, fmt.Errorf("%w: holiday %q is not YYYY-MM-DD", models.ErrInvalidSchedule, h)
		}
		if h == today {
			return false, nil
		}
	}

	if len(s.WorkingDays) > 0 && !slices.Contains(s.WorkingDays, int(local.Weekday())) {
		return false, nil
	}

	minute := local.Hour()*60 + local.Minute()
	if start <= end {
		return minute >= start && minute <= end, nil
	}
	// 跨午夜，例如 22:00-06:00
	return minute >= start || minute <= end, nil
}
