package notification

import "time"

// Classify derives the lifecycle state of a stored trigger at now.
// delivered tells whether the host already reports the entry as delivered.
func (c Calculator) Classify(t Trigger, now time.Time, delivered bool) State {
	if ValidateTrigger(t) != nil {
		return StateUnknown
	}
	if _, ok := t.(Past); ok {
		return StateTriggered
	}

	if IsRepeating(t) {
		// A repeating trigger stays scheduled while it has occurrences left.
		if _, ok := c.Next(t, now); ok {
			return StateScheduled
		}
		return StateTriggered
	}

	if delivered {
		return StateTriggered
	}
	d, _ := firstDate(t)
	if d.After(now) {
		return StateScheduled
	}
	return StateTriggered
}
