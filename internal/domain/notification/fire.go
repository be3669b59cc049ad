package notification

import (
	"iter"
	"slices"
	"time"
)

// Calculator derives fire dates from triggers. It is a pure value: the same
// (trigger, now) always yields the same sequence.
type Calculator struct {
	loc *time.Location
}

// NewCalculator returns a calculator doing calendar arithmetic in loc.
// A nil loc keeps each trigger's own location.
func NewCalculator(loc *time.Location) Calculator {
	return Calculator{loc: loc}
}

// FireDates returns the fire dates of t as a lazy sequence.
//
// At and non-repeating Interval triggers yield exactly one date, even when it
// lies before now. Repeating triggers start at the first occurrence at or
// after now, keeping the phase of First, and are unbounded unless horizon > 0
// or the trigger has a Before bound. Past triggers yield nothing.
func (c Calculator) FireDates(t Trigger, now time.Time, horizon int) iter.Seq[time.Time] {
	// The location is captured once so a concurrent change of the process
	// default cannot shift occurrences mid-sequence.
	loc := c.loc

	return func(yield func(time.Time) bool) {
		switch t := t.(type) {
		case At:
			yield(t.Date)
		case Interval:
			if ValidateTrigger(t) != nil {
				return
			}
			first := t.First
			if loc != nil {
				first = first.In(loc)
			}
			if !t.Repeats {
				yield(first)
				return
			}
			n := 0
			limit := seriesLimit(t)
			for k := startIndex(t, first, now); k <= limit; k++ {
				d := occurrence(t, first, k)
				if !t.Before.IsZero() && !d.Before(t.Before) {
					return
				}
				if !yield(d) {
					return
				}
				n++
				if horizon > 0 && n >= horizon {
					return
				}
			}
		}
	}
}

// Occurrences collects at most n fire dates of t.
func (c Calculator) Occurrences(t Trigger, now time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	return slices.Collect(c.FireDates(t, now, n))
}

// Next returns the first fire date of t, or false when t never fires again.
func (c Calculator) Next(t Trigger, now time.Time) (time.Time, bool) {
	for d := range c.FireDates(t, now, 1) {
		return d, true
	}
	return time.Time{}, false
}

// IsOccurrence reports whether at is one of the fire dates of t.
func (c Calculator) IsOccurrence(t Trigger, at time.Time) bool {
	switch t := t.(type) {
	case At:
		return t.Date.Equal(at)
	case Interval:
		if ValidateTrigger(t) != nil {
			return false
		}
		if !t.Repeats {
			return t.First.Equal(at)
		}
		next, ok := c.Next(t, at)
		return ok && next.Equal(at)
	}
	return false
}

// Settle applies the past-date policy at registration time: a non-repeating
// trigger whose fire date is strictly before now becomes Past. Repeating
// triggers are left alone since FireDates fast-forwards them.
func Settle(t Trigger, now time.Time) Trigger {
	if IsRepeating(t) {
		return t
	}
	switch t.(type) {
	case At, Interval:
		if d, ok := firstDate(t); ok && d.Before(now) {
			return Past{Original: d}
		}
	}
	return t
}

// occurrence is the k-th fire date, computed from first directly rather than
// by repeated addition so clamped month days never drift.
func occurrence(t Interval, first time.Time, k int) time.Time {
	return addUnits(first, t.Unit, k*t.Count)
}

// seriesSpan is how far past its first date a repeating series runs.
const seriesSpan = 10000 * 31556952 // seconds, about 10000 years

// seriesLimit is the last occurrence index of t, which keeps k*Count and the
// arithmetic of addUnits far from integer overflow.
func seriesLimit(t Interval) int {
	return int(seriesSpan/(avgSeconds(t.Unit)*int64(t.Count))) + 1
}

// startIndex is the smallest k with occurrence(k) >= now. The estimate from
// Unix seconds is off by a step or two at most (DST, month lengths), so the
// correction loops stay short however far apart first and now are.
func startIndex(t Interval, first, now time.Time) int {
	if !first.Before(now) {
		return 0
	}
	step := avgSeconds(t.Unit) * int64(t.Count)
	k := int((now.Unix() - first.Unix()) / step)
	if limit := seriesLimit(t); k > limit {
		return limit + 1
	}
	for occurrence(t, first, k).Before(now) {
		k++
	}
	for k > 0 && !occurrence(t, first, k-1).Before(now) {
		k--
	}
	return k
}
