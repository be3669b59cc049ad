package notification

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// asInteger converts the loosely typed numbers a JSON bridge produces.
// Strings are accepted only when allowString is set.
func asInteger(v any, allowString bool) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return floatInteger(float64(n))
	case float64:
		return floatInteger(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return floatInteger(f)
		}
	case string:
		if !allowString {
			return 0, false
		}
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatInteger(f)
		}
	}
	return 0, false
}

func floatInteger(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// asText renders scalar option values as text. Text fields never fail.
func asText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return fmt.Sprint(s)
	}
	return ""
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// asDate accepts time.Time, date strings and epoch milliseconds. Strings
// without an offset are read in loc.
func asDate(v any, loc *time.Location) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fmt.Errorf("zero date")
		}
		return d, nil
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, fmt.Errorf("zero date")
		}
		return *d, nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, nil
			}
		}
		if ms, ok := asInteger(s, true); ok {
			return time.UnixMilli(ms).In(loc), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", d)
	}
	if ms, ok := asInteger(v, false); ok {
		if ms <= 0 {
			return time.Time{}, fmt.Errorf("epoch milliseconds must be positive")
		}
		return time.UnixMilli(ms).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unsupported date value of type %T", v)
}

// asMap accepts a mapping or its JSON text.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(m), &out); err == nil {
			return out, true
		}
	}
	return nil, false
}

// first returns the first present, non-nil value among keys.
func first(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
