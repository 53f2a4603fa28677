/*
shift.go - Shift windows and timestamp classification

PURPOSE:
  Maps a wall-clock timestamp to (shift, business date). Pure and
  deterministic: no I/O, no clock access. The schedule is data, so the
  classifier is generic over any configured set of windows.

THE DEFAULT SCHEDULE:
  shift1  06:00:00-18:00:00  business date = calendar date
  shift2  18:01:00-22:00:00  business date = calendar date
  shift3  20:01:00-23:59:59  business date = calendar date
  shift3  00:00:00-05:59:59  business date = calendar date - 1 day

  The last window is the after-midnight tail of the overnight shift:
  money counted at 01:00 belongs to the previous day's shift3.

KNOWN QUIRK:
  The shift2 and shift3 windows overlap (20:01-22:00 matches both).
  Windows are evaluated in declaration order and the first match wins,
  so 20:01-22:00 lands in shift2. This reproduces the schedule the
  business actually runs on; do not "fix" the overlap without changing
  the declared windows themselves.

FALLBACK:
  Timestamps outside every window (e.g. the 18:00:01-18:00:59 sliver
  between shift1 and shift2) classify as (shift3, calendar date). This
  keeps classification total: recording can never fail on a timestamp.
*/
package accounting

import "time"

// =============================================================================
// TIME OF DAY
// =============================================================================

// TimeOfDay is a wall-clock time within a day, at second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// =============================================================================
// SHIFT WINDOW / SCHEDULE
// =============================================================================

// ShiftWindow maps an inclusive time-of-day range to a shift. DateOffset
// is added to the calendar date to obtain the business date; the
// after-midnight tail of an overnight shift uses -1.
type ShiftWindow struct {
	Shift      Shift
	Start      TimeOfDay
	End        TimeOfDay
	DateOffset int
}

func (w ShiftWindow) contains(t TimeOfDay) bool {
	s := t.seconds()
	return s >= w.Start.seconds() && s <= w.End.seconds()
}

// Schedule is an ordered list of shift windows. Order is significant:
// classification takes the first matching window.
type Schedule []ShiftWindow

// DefaultSchedule returns the three-shift reference schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		{Shift: Shift1, Start: TimeOfDay{6, 0, 0}, End: TimeOfDay{18, 0, 0}},
		{Shift: Shift2, Start: TimeOfDay{18, 1, 0}, End: TimeOfDay{22, 0, 0}},
		{Shift: Shift3, Start: TimeOfDay{20, 1, 0}, End: TimeOfDay{23, 59, 59}},
		{Shift: Shift3, Start: TimeOfDay{0, 0, 0}, End: TimeOfDay{5, 59, 59}, DateOffset: -1},
	}
}

// Classify maps a timestamp to its shift and business date.
func (s Schedule) Classify(t time.Time) (Shift, Date) {
	tod := TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
	for _, w := range s {
		if w.contains(tod) {
			return w.Shift, DateOf(t).AddDays(w.DateOffset)
		}
	}
	// Unreachable gap between windows. Classification must stay total,
	// so fall back to the overnight shift on today's date.
	return Shift3, DateOf(t)
}
