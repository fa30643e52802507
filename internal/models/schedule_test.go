package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"9:30", 0, true},
		{"09-30", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchedule)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedule_Validate(t *testing.T) {
	valid := &Schedule{
		Timezone:    "Europe/Moscow",
		WorkingDays: []int{1, 2, 3, 4, 5},
		StartTime:   "09:00",
		EndTime:     "18:00",
		Holidays:    []string{"2025-01-01"},
	}
	assert.NoError(t, valid.Validate())

	var nilSchedule *Schedule
	assert.NoError(t, nilSchedule.Validate())

	noTZ := *valid
	noTZ.Timezone = ""
	assert.NoError(t, noTZ.Validate())
	assert.Equal(t, "UTC", noTZ.LocationName())

	badTZ := *valid
	badTZ.Timezone = "Mars/Olympus"
	assert.ErrorIs(t, badTZ.Validate(), ErrInvalidSchedule)

	badDay := *valid
	badDay.WorkingDays = []int{7}
	assert.ErrorIs(t, badDay.Validate(), ErrInvalidSchedule)

	badTime := *valid
	badTime.EndTime = "6pm"
	assert.ErrorIs(t, badTime.Validate(), ErrInvalidSchedule)

	badHoliday := *valid
	badHoliday.Holidays = []string{"01/01/2025"}
	assert.ErrorIs(t, badHoliday.Validate(), ErrInvalidSchedule)
}
