package notification

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// GeneralCategory always exists and cannot be unregistered. Definitions
// without an explicit category are presented with it.
const GeneralCategory = "general"

// ActionFlags tune how the host presents an action.
type ActionFlags struct {
	Destructive  bool `json:"destructive,omitempty"`
	RequiresAuth bool `json:"requiresAuth,omitempty"`
	Foreground   bool `json:"foreground,omitempty"`
	TextInput    bool `json:"textInput,omitempty"`
}

// ActionSpec is one interactive action.
type ActionSpec struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Flags ActionFlags `json:"flags"`

	// Only meaningful when Flags.TextInput is set.
	SubmitTitle string `json:"submitTitle,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// ActionCategory is a named, ordered group of actions.
type ActionCategory struct {
	ID      string       `json:"id"`
	Actions []ActionSpec `json:"actions"`
}

// Equal reports whether both categories have identical content.
func (c ActionCategory) Equal(o ActionCategory) bool {
	return c.ID == o.ID && slices.Equal(c.Actions, o.Actions)
}

// Validate checks identifiers and the action limit (0 means unlimited).
func (c ActionCategory) Validate(maxActions int) error {
	if strings.TrimSpace(c.ID) == "" {
		return invalidCategory("action category id is required")
	}
	if maxActions > 0 && len(c.Actions) > maxActions {
		return invalidCategory("action category %q has %d actions, at most %d allowed", c.ID, len(c.Actions), maxActions)
	}
	seen := make(map[string]bool, len(c.Actions))
	for i, a := range c.Actions {
		if strings.TrimSpace(a.ID) == "" {
			return invalidCategory("action %d of category %q has no id", i, c.ID)
		}
		if seen[a.ID] {
			return invalidCategory("duplicate action %q in category %q", a.ID, c.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// ParseCategory builds a category from the bridge's action list. Actions of
// unknown type are skipped.
func ParseCategory(id string, rawActions []any) (ActionCategory, error) {
	c := ActionCategory{ID: strings.TrimSpace(id)}
	for i, v := range rawActions {
		m, ok := v.(map[string]any)
		if !ok {
			return ActionCategory{}, invalidCategory("action %d must be a mapping", i)
		}

		kind := asText(m["type"])
		if kind == "" {
			kind = "button"
		}
		if kind != "button" && kind != "input" {
			continue
		}

		a := ActionSpec{
			ID:    asText(m["id"]),
			Title: asText(m["title"]),
			Flags: ActionFlags{
				Destructive:  asBool(m, "destructive"),
				RequiresAuth: asBool(m, "requiresAuth", "needsAuth"),
				Foreground:   asBool(m, "foreground", "launch"),
				TextInput:    kind == "input",
			},
		}
		if a.Flags.TextInput {
			a.SubmitTitle = asText(m["submitTitle"])
			if v, ok := first(m, "placeholder", "emptyText"); ok {
				a.Placeholder = asText(v)
			}
		}
		c.Actions = append(c.Actions, a)
	}
	return c, c.Validate(0)
}

func asBool(m map[string]any, keys ...string) bool {
	v, ok := first(m, keys...)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Registry holds the action categories known to one engine instance.
type Registry struct {
	mu         sync.RWMutex
	categories map[string]ActionCategory
	maxActions int
}

// NewRegistry creates a registry holding only the general category.
func NewRegistry(maxActions int) *Registry {
	return &Registry{
		categories: map[string]ActionCategory{
			GeneralCategory: {ID: GeneralCategory},
		},
		maxActions: maxActions,
	}
}

// Register inserts or replaces c. changed is false when an identical
// category was already registered.
func (r *Registry) Register(c ActionCategory) (changed bool, err error) {
	if err := c.Validate(r.maxActions); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.categories[c.ID]; ok && existing.Equal(c) {
		return false, nil
	}
	c.Actions = slices.Clone(c.Actions)
	r.categories[c.ID] = c
	return true, nil
}

// Unregister removes id. Unknown ids are ignored; the general category
// cannot be removed.
func (r *Registry) Unregister(id string) (removed bool, err error) {
	if id == GeneralCategory {
		return false, ErrReservedCategory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return false, nil
	}
	delete(r.categories, id)
	return true, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.categories[id]
	return ok
}

// Get returns a copy of the category registered under id.
func (r *Registry) Get(id string) (ActionCategory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	if !ok {
		return ActionCategory{}, false
	}
	c.Actions = slices.Clone(c.Actions)
	return c, true
}

// IDs lists the registered identifiers in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.categories))
}
