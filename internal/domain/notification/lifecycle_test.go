package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	now := date(2026, 1, 1, 12, 0)
	daily := Interval{Unit: UnitDay, Count: 1, First: date(2025, 1, 1, 9, 0), Repeats: true}
	ended := daily
	ended.Before = date(2025, 6, 1, 0, 0)

	tests := []struct {
		name      string
		trigger   Trigger
		delivered bool
		want      State
	}{
		{"future date", At{Date: now.Add(time.Minute)}, false, StateScheduled},
		{"date at now", At{Date: now}, false, StateTriggered},
		{"past date", At{Date: now.Add(-time.Minute)}, false, StateTriggered},
		{"delivered future date", At{Date: now.Add(time.Hour)}, true, StateTriggered},
		{"stored past", Past{Original: now.Add(-time.Hour)}, false, StateTriggered},
		{"repeating", daily, false, StateScheduled},
		{"repeating delivered", daily, true, StateScheduled},
		{"repeating ended", ended, true, StateTriggered},
		{"non-repeating interval ahead", Interval{Unit: UnitHour, Count: 1, First: now.Add(time.Hour)}, false, StateScheduled},
		{"missing trigger", nil, false, StateUnknown},
		{"malformed interval", Interval{Unit: "fortnight", Count: 1, First: now}, false, StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, utc.Classify(tt.trigger, now, tt.delivered))
		})
	}
}

func TestStateMatches(t *testing.T) {
	assert.True(t, StateScheduled.Matches(TypeAll))
	assert.True(t, StateUnknown.Matches(TypeAll))
	assert.True(t, StateScheduled.Matches(TypeScheduled))
	assert.False(t, StateScheduled.Matches(TypeTriggered))
	assert.False(t, StateUnknown.Matches(TypeScheduled))
	assert.False(t, StateUnknown.Matches(TypeTriggered))
}
