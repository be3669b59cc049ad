package notification

import (
	"strings"
	"time"
)

// Unit is the step of an interval trigger.
type Unit string

const (
	UnitSecond  Unit = "second"
	UnitMinute  Unit = "minute"
	UnitHour    Unit = "hour"
	UnitDay     Unit = "day"
	UnitWeek    Unit = "week"
	UnitMonth   Unit = "month"
	UnitQuarter Unit = "quarter"
	UnitYear    Unit = "year"
)

// ParseUnit accepts unit names case-insensitively, singular or plural.
func ParseUnit(s string) (Unit, bool) {
	u := Unit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	return u, u.Valid()
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitSecond, UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear:
		return true
	}
	return false
}

// calendar reports whether the unit is added on the calendar (wall clock)
// rather than as a fixed duration.
func (u Unit) calendar() bool {
	switch u {
	case UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear:
		return true
	}
	return false
}

const (
	kindAt       = "at"
	kindInterval = "interval"
	kindPast     = "past"
)

// Trigger decides when a notification fires. The set of variants is closed:
// At, Interval and Past.
type Trigger interface {
	kind() string
}

// At fires once at Date.
type At struct {
	Date time.Time
}

// Interval fires at First and, when Repeats is set, at every
// First + k*Count*Unit after it. A non-zero Before stops the series:
// no occurrence at or after Before is produced.
type Interval struct {
	Unit    Unit
	Count   int
	First   time.Time
	Repeats bool
	Before  time.Time
}

// Past is the settled form of a non-repeating trigger whose fire date was
// already behind when it was registered. It never fires.
type Past struct {
	Original time.Time
}

func (At) kind() string       { return kindAt }
func (Interval) kind() string { return kindInterval }
func (Past) kind() string     { return kindPast }

// ValidateTrigger checks the structural invariants of t.
func ValidateTrigger(t Trigger) error {
	switch t := t.(type) {
	case At:
		if t.Date.IsZero() {
			return invalidTrigger("trigger date is required")
		}
	case Interval:
		if !t.Unit.Valid() {
			return invalidTrigger("unsupported trigger unit %q", t.Unit)
		}
		if t.Count < 1 {
			return invalidTrigger("trigger count must be at least 1, got %d", t.Count)
		}
		if t.Count > maxCount(t.Unit) {
			return invalidTrigger("trigger count %d is out of range for unit %s", t.Count, t.Unit)
		}
		if t.First.IsZero() {
			return invalidTrigger("trigger first date is required")
		}
		if !t.Before.IsZero() && !t.Before.After(t.First) {
			return invalidTrigger("trigger before must be after the first date")
		}
	case Past:
		if t.Original.IsZero() {
			return invalidTrigger("trigger date is required")
		}
	case nil:
		return invalidTrigger("trigger is required")
	default:
		return invalidTrigger("unsupported trigger %T", t)
	}
	return nil
}

// IsRepeating reports whether t can fire more than once.
func IsRepeating(t Trigger) bool {
	iv, ok := t.(Interval)
	return ok && iv.Repeats
}

// firstDate is the first scheduled fire date of t, before any fast-forward.
func firstDate(t Trigger) (time.Time, bool) {
	switch t := t.(type) {
	case At:
		return t.Date, true
	case Interval:
		return t.First, true
	case Past:
		return t.Original, true
	}
	return time.Time{}, false
}
