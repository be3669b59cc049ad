package notification

import (
	"math"
	"time"
)

// addUnits adds n steps of u to t.
//
// Seconds, minutes and hours are fixed durations. Days and weeks keep the
// wall clock time in t's location. Months, quarters and years clamp the day
// of month to the last valid day of the target month, so Jan 31 + 1 month is
// the last day of February and never overflows into March.
func addUnits(t time.Time, u Unit, n int) time.Time {
	switch u {
	case UnitSecond, UnitMinute, UnitHour:
		// Whole seconds, so steps beyond time.Duration's range stay exact.
		secs := int64(n) * avgSeconds(u)
		return time.Unix(t.Unix()+secs, int64(t.Nanosecond())).In(t.Location())
	case UnitDay:
		return t.AddDate(0, 0, n)
	case UnitWeek:
		return t.AddDate(0, 0, 7*n)
	case UnitMonth:
		return addMonths(t, n)
	case UnitQuarter:
		return addMonths(t, 3*n)
	case UnitYear:
		return addMonths(t, 12*n)
	}
	return t
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()

	// Normalize the target month first, on day 1, where no overflow can happen.
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	ty, tm, _ := target.Date()

	if last := daysIn(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// maxStep is an upper bound of one step of u, DST shifts included. Dividing
// an elapsed duration by it never overshoots the exact occurrence index.
func maxStep(u Unit) time.Duration {
	const day = 24 * time.Hour
	switch u {
	case UnitSecond:
		return time.Second
	case UnitMinute:
		return time.Minute
	case UnitHour:
		return time.Hour
	case UnitDay:
		return day + time.Hour
	case UnitWeek:
		return 7*day + time.Hour
	case UnitMonth:
		return 31*day + time.Hour
	case UnitQuarter:
		return 92*day + time.Hour
	case UnitYear:
		return 366*day + time.Hour
	}
	return time.Second
}

// maxCount bounds Interval.Count so that one step fits in a time.Duration.
func maxCount(u Unit) int {
	return int(time.Duration(math.MaxInt64) / maxStep(u))
}

// avgSeconds is the mean length of one step of u in seconds. It estimates
// occurrence indexes; callers correct the estimate against the calendar.
func avgSeconds(u Unit) int64 {
	const day = 24 * 60 * 60
	switch u {
	case UnitSecond:
		return 1
	case UnitMinute:
		return 60
	case UnitHour:
		return 60 * 60
	case UnitDay:
		return day
	case UnitWeek:
		return 7 * day
	case UnitMonth:
		return 31556952 / 12
	case UnitQuarter:
		return 31556952 / 4
	case UnitYear:
		return 31556952
	}
	return 1
}
