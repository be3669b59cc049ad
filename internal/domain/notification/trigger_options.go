package notification

import (
	"strings"
	"time"
)

// legacyTriggerKeys are read from the top level when no trigger mapping is given.
var legacyTriggerKeys = map[string]string{
	"at":      "at",
	"firstAt": "firstAt",
	"date":    "at",
	"every":   "every",
	"count":   "count",
	"before":  "before",
}

func (p *Parser) parseTrigger(raw map[string]any) (Trigger, error) {
	if v, ok := first(raw, "trigger"); ok {
		spec, isMap := v.(map[string]any)
		if !isMap {
			return nil, invalidTrigger("trigger must be a mapping, got %T", v)
		}
		return p.ParseTrigger(spec)
	}

	spec := make(map[string]any)
	for from, to := range legacyTriggerKeys {
		if v, ok := raw[from]; ok && v != nil {
			spec[to] = v
		}
	}
	return p.ParseTrigger(spec)
}

// ParseTrigger builds a trigger from a trigger option mapping:
//
//	{type: "date", at: <date>}                        fires once
//	{in: 2, unit: "hour"}                             fires once, relative to now
//	{type: "calendar", every: "day", count: 2,
//	 firstAt: <date>, before: <date>}                 repeats every 2 days
//
// An empty mapping yields a nil trigger, which fires as soon as the
// definition is scheduled.
func (p *Parser) ParseTrigger(spec map[string]any) (Trigger, error) {
	now := p.now().In(p.loc)

	kind := strings.ToLower(strings.TrimSpace(asText(spec["type"])))
	switch kind {
	case "", "date", "calendar":
	default:
		return nil, invalidTrigger("unsupported trigger type %q", kind)
	}

	inValue, hasIn := first(spec, "in")
	everyValue, hasEvery := first(spec, "every")

	switch {
	case hasIn && hasEvery:
		return nil, invalidTrigger("trigger in and every are mutually exclusive")

	case hasIn:
		n, ok := asInteger(inValue, false)
		if !ok || n < 1 {
			return nil, invalidTrigger("trigger in must be a positive integer, got %v", inValue)
		}
		unit := UnitMinute
		if v, ok := first(spec, "unit"); ok {
			if unit, ok = ParseUnit(asText(v)); !ok {
				return nil, invalidTrigger("unsupported trigger unit %v", v)
			}
		}
		if n > int64(maxCount(unit)) {
			return nil, invalidTrigger("trigger in %d is out of range for unit %s", n, unit)
		}
		iv := Interval{Unit: unit, Count: int(n), First: addUnits(now, unit, int(n))}
		return iv, ValidateTrigger(iv)

	case hasEvery:
		if kind == "date" {
			return nil, invalidTrigger("date trigger cannot repeat")
		}
		name, isString := everyValue.(string)
		if !isString {
			return nil, invalidTrigger("trigger every must be a unit name")
		}
		unit, ok := ParseUnit(name)
		if !ok {
			return nil, invalidTrigger("unsupported trigger unit %q", name)
		}

		count := 1
		if v, ok := first(spec, "count"); ok {
			n, isInt := asInteger(v, false)
			if !isInt || n < 1 {
				return nil, invalidTrigger("trigger count must be a positive integer, got %v", v)
			}
			if n > int64(maxCount(unit)) {
				return nil, invalidTrigger("trigger count %d is out of range for unit %s", n, unit)
			}
			count = int(n)
		}

		iv := Interval{Unit: unit, Count: count, Repeats: true}
		if v, ok := first(spec, "firstAt", "at"); ok {
			d, err := asDate(v, p.loc)
			if err != nil {
				return nil, invalidTrigger("trigger firstAt: %v", err)
			}
			iv.First = d
		} else {
			iv.First = addUnits(now, unit, count)
		}
		if v, ok := first(spec, "before"); ok {
			d, err := asDate(v, p.loc)
			if err != nil {
				return nil, invalidTrigger("trigger before: %v", err)
			}
			iv.Before = d
		}
		return iv, ValidateTrigger(iv)
	}

	if kind == "calendar" {
		return nil, invalidTrigger("calendar trigger requires every")
	}

	v, ok := first(spec, "at", "firstAt", "date")
	if !ok {
		return nil, nil
	}
	at, err := asDate(v, p.loc)
	if err != nil {
		return nil, invalidTrigger("trigger at: %v", err)
	}
	return At{Date: at}, nil
}

func triggerOptions(t Trigger) map[string]any {
	switch t := t.(type) {
	case At:
		return map[string]any{"type": "date", "at": formatDate(t.Date)}
	case Interval:
		if !t.Repeats {
			return map[string]any{"type": "date", "at": formatDate(t.First)}
		}
		m := map[string]any{
			"type":    "calendar",
			"every":   string(t.Unit),
			"count":   t.Count,
			"firstAt": formatDate(t.First),
		}
		if !t.Before.IsZero() {
			m["before"] = formatDate(t.Before)
		}
		return m
	case Past:
		return map[string]any{"type": "date", "at": formatDate(t.Original), "past": true}
	}
	return nil
}

func formatDate(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
