package accounting_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/autosum/shift-engine/accounting"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2024, time.January, 15, hour, min, sec, 0, time.UTC)
}

func TestClassify_DayShift(t *testing.T) {
	sched := accounting.DefaultSchedule()

	for _, ts := range []time.Time{at(6, 0, 0), at(7, 0, 0), at(12, 30, 45), at(18, 0, 0)} {
		shift, date := sched.Classify(ts)
		assert.Equal(t, accounting.Shift1, shift, "at %v", ts)
		assert.Equal(t, "2024-01-15", date.String())
	}
}

func TestClassify_EveningShift(t *testing.T) {
	sched := accounting.DefaultSchedule()

	for _, ts := range []time.Time{at(18, 1, 0), at(19, 30, 0), at(22, 0, 0)} {
		shift, date := sched.Classify(ts)
		assert.Equal(t, accounting.Shift2, shift, "at %v", ts)
		assert.Equal(t, "2024-01-15", date.String())
	}
}

func TestClassify_OverlapPrefersEveningShift(t *testing.T) {
	// The 20:01-22:00 range matches both the shift2 and shift3 windows.
	// Declaration order decides: shift2 wins. This mirrors the schedule
	// the business runs on and must not be "corrected".
	sched := accounting.DefaultSchedule()

	for _, ts := range []time.Time{at(20, 1, 0), at(20, 30, 0), at(21, 59, 59), at(22, 0, 0)} {
		shift, _ := sched.Classify(ts)
		assert.Equal(t, accounting.Shift2, shift, "at %v", ts)
	}
}

func TestClassify_NightShift_BeforeMidnight(t *testing.T) {
	sched := accounting.DefaultSchedule()

	for _, ts := range []time.Time{at(22, 0, 1), at(23, 0, 0), at(23, 59, 59)} {
		shift, date := sched.Classify(ts)
		assert.Equal(t, accounting.Shift3, shift, "at %v", ts)
		assert.Equal(t, "2024-01-15", date.String(), "business date stays on the calendar date before midnight")
	}
}

func TestClassify_NightShift_AfterMidnight(t *testing.T) {
	// 00:00:00 through 05:59:59 is the tail of the previous day's
	// overnight shift.
	sched := accounting.DefaultSchedule()

	for _, ts := range []time.Time{at(0, 0, 0), at(1, 0, 0), at(5, 59, 59)} {
		shift, date := sched.Classify(ts)
		assert.Equal(t, accounting.Shift3, shift, "at %v", ts)
		assert.Equal(t, "2024-01-14", date.String(), "business date rolls back one day")
	}

	// 06:00:00 exactly belongs to shift1 on the calendar date.
	shift, date := sched.Classify(at(6, 0, 0))
	assert.Equal(t, accounting.Shift1, shift)
	assert.Equal(t, "2024-01-15", date.String())
}

func TestClassify_MidnightRollsAcrossMonthBoundary(t *testing.T) {
	sched := accounting.DefaultSchedule()

	shift, date := sched.Classify(time.Date(2024, time.February, 1, 2, 0, 0, 0, time.UTC))
	assert.Equal(t, accounting.Shift3, shift)
	assert.Equal(t, "2024-01-31", date.String())
}

func TestClassify_GapFallsBackToNightShift(t *testing.T) {
	// 18:00:01-18:00:59 sits between the shift1 and shift2 windows.
	// The fallback keeps classification total.
	sched := accounting.DefaultSchedule()

	shift, date := sched.Classify(at(18, 0, 30))
	assert.Equal(t, accounting.Shift3, shift)
	assert.Equal(t, "2024-01-15", date.String())
}

func TestClassify_SweepWholeDay(t *testing.T) {
	// Every minute of the day classifies to something; the two spec'd
	// ranges hold across the sweep.
	sched := accounting.DefaultSchedule()

	for minute := 0; minute < 24*60; minute++ {
		ts := at(minute/60, minute%60, 0)
		shift, date := sched.Classify(ts)

		switch {
		case minute >= 6*60 && minute <= 18*60:
			assert.Equal(t, accounting.Shift1, shift, "at %v", ts)
			assert.Equal(t, "2024-01-15", date.String())
		case minute < 6*60:
			assert.Equal(t, accounting.Shift3, shift, "at %v", ts)
			assert.Equal(t, "2024-01-14", date.String())
		default:
			assert.NotEmpty(t, shift, "at %v", ts)
		}
	}
}

func TestParseShift(t *testing.T) {
	shift, err := accounting.ParseShift("shift2")
	assert.NoError(t, err)
	assert.Equal(t, accounting.Shift2, shift)

	_, err = accounting.ParseShift("shift4")
	assert.ErrorIs(t, err, accounting.ErrUnknownShift)
}

func TestParseDate(t *testing.T) {
	date, err := accounting.ParseDate("2024-01-02")
	assert.NoError(t, err)
	assert.Equal(t, accounting.Date{Year: 2024, Month: time.January, Day: 2}, date)

	_, err = accounting.ParseDate("02/01/2024")
	assert.ErrorIs(t, err, accounting.ErrInvalidDate)
}

func TestDateAddDays(t *testing.T) {
	d := accounting.Date{Year: 2024, Month: time.March, Day: 1}
	assert.Equal(t, "2024-02-29", d.AddDays(-1).String(), "leap year")
	assert.Equal(t, "2024-03-02", d.AddDays(1).String())
}
