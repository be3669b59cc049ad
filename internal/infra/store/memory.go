package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"localnotify/internal/domain/notification"
)

var (
	_ notification.Center         = (*MemoryCenter)(nil)
	_ notification.DeliveryLedger = (*MemoryCenter)(nil)
)

// MemoryCenter is a process-local notification center. It backs the memory
// store driver and is the test double for the engine.
type MemoryCenter struct {
	mu         sync.RWMutex
	pending    map[notification.ID]*notification.Definition
	delivered  map[notification.ID]*notification.Definition
	categories map[string]notification.ActionCategory
	granted    bool
	grantable  bool
	badge      int
}

// NewMemoryCenter creates an empty center with notification permission granted.
func NewMemoryCenter() *MemoryCenter {
	return &MemoryCenter{
		pending:    make(map[notification.ID]*notification.Definition),
		delivered:  make(map[notification.ID]*notification.Definition),
		categories: make(map[string]notification.ActionCategory),
		granted:    true,
		grantable:  true,
	}
}

// SetPermission sets whether notifications are allowed, and whether a later
// RequestPermission may grant them.
func (m *MemoryCenter) SetPermission(granted, grantable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.granted = granted
	m.grantable = grantable
}

func (m *MemoryCenter) Submit(_ context.Context, def *notification.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.delivered, def.ID)
	m.pending[def.ID] = def.Clone()
	return nil
}

func (m *MemoryCenter) Withdraw(_ context.Context, id notification.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	delete(m.delivered, id)
	return nil
}

func (m *MemoryCenter) WithdrawAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.pending)
	clear(m.delivered)
	return nil
}

func (m *MemoryCenter) ClearDelivered(_ context.Context, id notification.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.delivered, id)
	return nil
}

func (m *MemoryCenter) ClearAllDelivered(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.delivered)
	return nil
}

func (m *MemoryCenter) ListPending(_ context.Context) ([]*notification.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedCopies(m.pending), nil
}

func (m *MemoryCenter) ListDelivered(_ context.Context) ([]*notification.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedCopies(m.delivered), nil
}

func sortedCopies(src map[notification.ID]*notification.Definition) []*notification.Definition {
	out := make([]*notification.Definition, 0, len(src))
	for _, id := range slices.Sorted(maps.Keys(src)) {
		out = append(out, src[id].Clone())
	}
	return out
}

// MarkDelivered records a delivery. Ids no longer pending are ignored.
func (m *MemoryCenter) MarkDelivered(_ context.Context, id notification.ID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.pending[id]
	if !ok {
		return nil
	}
	m.delivered[id] = def.Clone()
	if !notification.IsRepeating(def.Trigger) {
		delete(m.pending, id)
	}
	return nil
}

func (m *MemoryCenter) RegisterCategory(_ context.Context, c notification.ActionCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Actions = slices.Clone(c.Actions)
	m.categories[c.ID] = c
	return nil
}

func (m *MemoryCenter) UnregisterCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.categories, id)
	return nil
}

// ListCategories returns the categories registered with the center, sorted by id.
func (m *MemoryCenter) ListCategories(_ context.Context) ([]notification.ActionCategory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]notification.ActionCategory, 0, len(m.categories))
	for _, c := range m.categories {
		c.Actions = slices.Clone(c.Actions)
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b notification.ActionCategory) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryCenter) HasPermission(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.granted, nil
}

func (m *MemoryCenter) RequestPermission(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grantable {
		m.granted = true
	}
	return m.granted, nil
}

func (m *MemoryCenter) SetBadge(_ context.Context, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badge = n
	return nil
}

// Badge returns the last badge number set.
func (m *MemoryCenter) Badge() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.badge
}
