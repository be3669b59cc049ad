package notification

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"time"
)

// ID identifies one notification across its whole lifecycle.
// It is supplied by the caller and survives updates.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Type filters queries by lifecycle state.
type Type string

const (
	TypeAll       Type = "all"
	TypeScheduled Type = "scheduled"
	TypeTriggered Type = "triggered"
)

// ParseType converts a query value into a Type. The empty string means TypeAll.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "", TypeAll:
		return TypeAll, nil
	case TypeScheduled, TypeTriggered:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unsupported notification type filter: %q", s)
	}
}

// State is the derived lifecycle state of a stored definition.
type State string

const (
	StateScheduled State = "scheduled"
	StateTriggered State = "triggered"
	StateUnknown   State = "unknown"
)

// Matches reports whether a definition in state s passes the type filter t.
func (s State) Matches(t Type) bool {
	switch t {
	case TypeAll, "":
		return true
	case TypeScheduled:
		return s == StateScheduled
	case TypeTriggered:
		return s == StateTriggered
	default:
		return false
	}
}

// Sound references a platform sound. The zero value means silent.
type Sound string

const (
	SoundNone    Sound = ""
	SoundDefault Sound = "res://platform_default"
)

// Definition is one notification: identity, content and trigger.
// Once handed to the host center it is only replaced wholesale through an update.
type Definition struct {
	ID               ID
	Title            string
	Subtitle         string
	Body             string
	Badge            *int
	Sound            Sound
	UserInfo         map[string]any
	ActionCategoryID string

	// Trigger is nil when the options named no fire date. Scheduling
	// resolves it to the instant the definition is handed to the center.
	Trigger Trigger
}

// Clone returns a deep enough copy that the caller can mutate freely.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	c := *d
	if d.Badge != nil {
		b := *d.Badge
		c.Badge = &b
	}
	if d.UserInfo != nil {
		c.UserInfo = maps.Clone(d.UserInfo)
	}
	return &c
}

// Category returns the action category the definition is presented with.
func (d *Definition) Category() string {
	if d.ActionCategoryID == "" {
		return GeneralCategory
	}
	return d.ActionCategoryID
}

// definitionJSON is the storage representation used by host centers.
type definitionJSON struct {
	ID               ID             `json:"id"`
	Title            string         `json:"title,omitempty"`
	Subtitle         string         `json:"subtitle,omitempty"`
	Body             string         `json:"text,omitempty"`
	Badge            *int           `json:"badge,omitempty"`
	Sound            Sound          `json:"sound,omitempty"`
	UserInfo         map[string]any `json:"data,omitempty"`
	ActionCategoryID string         `json:"actionCategoryId,omitempty"`
	Trigger          *triggerJSON   `json:"trigger,omitempty"`
}

type triggerJSON struct {
	Kind    string     `json:"kind"`
	At      *time.Time `json:"at,omitempty"`
	Unit    Unit       `json:"unit,omitempty"`
	Count   int        `json:"count,omitempty"`
	FirstAt *time.Time `json:"firstAt,omitempty"`
	Repeats bool       `json:"repeats,omitempty"`
	Before  *time.Time `json:"before,omitempty"`
}

// MarshalJSON encodes the definition for persistence in a host center.
func (d Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(definitionJSON{
		ID:               d.ID,
		Title:            d.Title,
		Subtitle:         d.Subtitle,
		Body:             d.Body,
		Badge:            d.Badge,
		Sound:            d.Sound,
		UserInfo:         d.UserInfo,
		ActionCategoryID: d.ActionCategoryID,
		Trigger:          encodeTrigger(d.Trigger),
	})
}

// UnmarshalJSON decodes a stored definition. An unrecognized trigger decodes
// to nil so the entry still lists, classified as StateUnknown.
func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw definitionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Definition{
		ID:               raw.ID,
		Title:            raw.Title,
		Subtitle:         raw.Subtitle,
		Body:             raw.Body,
		Badge:            raw.Badge,
		Sound:            raw.Sound,
		UserInfo:         raw.UserInfo,
		ActionCategoryID: raw.ActionCategoryID,
		Trigger:          decodeTrigger(raw.Trigger),
	}
	return nil
}

func encodeTrigger(t Trigger) *triggerJSON {
	switch t := t.(type) {
	case At:
		return &triggerJSON{Kind: kindAt, At: timePtr(t.Date)}
	case Interval:
		w := &triggerJSON{
			Kind:    kindInterval,
			Unit:    t.Unit,
			Count:   t.Count,
			FirstAt: timePtr(t.First),
			Repeats: t.Repeats,
		}
		if !t.Before.IsZero() {
			w.Before = timePtr(t.Before)
		}
		return w
	case Past:
		return &triggerJSON{Kind: kindPast, At: timePtr(t.Original)}
	default:
		return nil
	}
}

func decodeTrigger(w *triggerJSON) Trigger {
	if w == nil {
		return nil
	}
	switch w.Kind {
	case kindAt:
		if w.At == nil {
			return nil
		}
		return At{Date: *w.At}
	case kindInterval:
		if w.FirstAt == nil {
			return nil
		}
		iv := Interval{Unit: w.Unit, Count: w.Count, First: *w.FirstAt, Repeats: w.Repeats}
		if w.Before != nil {
			iv.Before = *w.Before
		}
		return iv
	case kindPast:
		if w.At == nil {
			return nil
		}
		return Past{Original: *w.At}
	default:
		return nil
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
