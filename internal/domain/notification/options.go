package notification

import (
	"maps"
	"strings"
	"time"
)

// Defaults fill option keys the caller left out.
type Defaults struct {
	Title            string `json:"title,omitempty"`
	Body             string `json:"text,omitempty"`
	Sound            Sound  `json:"sound,omitempty"`
	Badge            *int   `json:"badge,omitempty"`
	ActionCategoryID string `json:"actionCategoryId,omitempty"`
}

// DefaultDefaults mirrors what a fresh install presents: default sound, no badge.
func DefaultDefaults() Defaults {
	return Defaults{Sound: SoundDefault}
}

// Parser turns raw option mappings into definitions. It has no side effects;
// action categories are checked later, when a definition is scheduled.
type Parser struct {
	now      func() time.Time
	loc      *time.Location
	sounds   SoundResolver
	defaults Defaults
}

// NewParser creates a parser. Relative triggers resolve against now and
// offset-less date strings are read in loc.
func NewParser(now func() time.Time, loc *time.Location, sounds SoundResolver, defaults Defaults) *Parser {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	if sounds == nil {
		sounds = AssetSoundResolver{}
	}
	return &Parser{now: now, loc: loc, sounds: sounds, defaults: defaults}
}

// Parse validates raw and builds a definition from it.
func (p *Parser) Parse(raw map[string]any) (*Definition, error) {
	if raw == nil {
		return nil, invalidID("notification options are required")
	}

	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		ID:               id,
		Title:            p.defaults.Title,
		Body:             p.defaults.Body,
		Sound:            p.defaults.Sound,
		ActionCategoryID: p.defaults.ActionCategoryID,
	}
	if p.defaults.Badge != nil {
		b := *p.defaults.Badge
		def.Badge = &b
	}

	if v, ok := first(raw, "title"); ok {
		def.Title = asText(v)
	}
	if v, ok := first(raw, "subtitle"); ok {
		def.Subtitle = asText(v)
	}
	if v, ok := first(raw, "text", "body", "message"); ok {
		def.Body = asText(v)
	}

	if v, ok := first(raw, "badge"); ok {
		n, isInt := asInteger(v, false)
		if !isInt || n < 0 {
			return nil, invalidBadge("badge must be a non-negative integer, got %v", v)
		}
		b := int(n)
		def.Badge = &b
	}

	if v, present := raw["sound"]; present {
		def.Sound = p.parseSound(v)
	}

	if v, ok := first(raw, "data", "userInfo", "json"); ok {
		if m, isMap := asMap(v); isMap {
			def.UserInfo = maps.Clone(m)
		} else {
			def.UserInfo = map[string]any{"value": v}
		}
	}

	if v, ok := first(raw, "actionCategoryId", "actionGroupId", "category"); ok {
		def.ActionCategoryID = strings.TrimSpace(asText(v))
	}

	trigger, err := p.parseTrigger(raw)
	if err != nil {
		return nil, err
	}
	def.Trigger = trigger

	return def, nil
}

// WithDefaults returns a copy of the parser using d.
func (p *Parser) WithDefaults(d Defaults) *Parser {
	c := *p
	c.defaults = d
	return &c
}

// Defaults returns the defaults the parser applies.
func (p *Parser) Defaults() Defaults {
	return p.defaults
}

func parseID(raw map[string]any) (ID, error) {
	v, ok := first(raw, "id")
	if !ok {
		return 0, invalidID("notification id is required")
	}
	n, isInt := asInteger(v, true)
	if !isInt {
		return 0, invalidID("notification id must be an integer, got %v", v)
	}
	if n <= 0 {
		return 0, invalidID("notification id must be positive, got %d", n)
	}
	return ID(n), nil
}

// parseSound resolves the sound option. An unresolvable reference falls back
// to the default sound instead of failing the parse.
func (p *Parser) parseSound(v any) Sound {
	switch s := v.(type) {
	case nil:
		return SoundNone
	case bool:
		if s {
			return SoundDefault
		}
		return SoundNone
	case string:
		if resolved, ok := p.sounds.Resolve(s); ok {
			return resolved
		}
	}
	return SoundDefault
}

// ToOptions renders def back into the option mapping the bridge speaks.
func ToOptions(def *Definition) map[string]any {
	m := map[string]any{
		"id":       int64(def.ID),
		"title":    def.Title,
		"subtitle": def.Subtitle,
		"text":     def.Body,
	}
	if def.Badge != nil {
		m["badge"] = *def.Badge
	}
	if def.Sound == SoundNone {
		m["sound"] = false
	} else {
		m["sound"] = string(def.Sound)
	}
	if def.UserInfo != nil {
		m["data"] = maps.Clone(def.UserInfo)
	}
	if def.ActionCategoryID != "" {
		m["actionCategoryId"] = def.ActionCategoryID
	}
	if t := triggerOptions(def.Trigger); t != nil {
		m["trigger"] = t
	}
	return m
}
