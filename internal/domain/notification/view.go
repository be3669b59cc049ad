package notification

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// StoreView answers queries over the host center's live set. It holds no
// state of its own: every call lists the center again and classifies
// entries at the instant of the call.
type StoreView struct {
	center Center
	calc   Calculator
	now    func() time.Time
}

// NewStoreView creates a query view over center.
func NewStoreView(center Center, calc Calculator, now func() time.Time) *StoreView {
	if now == nil {
		now = time.Now
	}
	return &StoreView{center: center, calc: calc, now: now}
}

type entry struct {
	def       *Definition
	delivered bool
}

// snapshot merges the pending and delivered lists by id, sorted by id.
func (v *StoreView) snapshot(ctx context.Context) ([]entry, error) {
	pending, err := v.center.ListPending(ctx)
	if err != nil {
		return nil, hostError("list_pending", err)
	}
	delivered, err := v.center.ListDelivered(ctx)
	if err != nil {
		return nil, hostError("list_delivered", err)
	}

	index := make(map[ID]int, len(pending)+len(delivered))
	out := make([]entry, 0, len(pending)+len(delivered))
	for _, d := range pending {
		if d == nil {
			continue
		}
		index[d.ID] = len(out)
		out = append(out, entry{def: d})
	}
	for _, d := range delivered {
		if d == nil {
			continue
		}
		if i, ok := index[d.ID]; ok {
			out[i].delivered = true
			continue
		}
		index[d.ID] = len(out)
		out = append(out, entry{def: d, delivered: true})
	}

	slices.SortFunc(out, func(a, b entry) int { return cmp.Compare(a.def.ID, b.def.ID) })
	return out, nil
}

func (v *StoreView) state(e entry, now time.Time) State {
	return v.calc.Classify(e.def.Trigger, now, e.delivered)
}

// All returns every definition the center knows.
func (v *StoreView) All(ctx context.Context) ([]*Definition, error) {
	return v.ByType(ctx, TypeAll)
}

// ByType returns the definitions whose current state matches t.
func (v *StoreView) ByType(ctx context.Context, t Type) ([]*Definition, error) {
	return v.filter(ctx, t, nil)
}

// ByIDs returns the definitions among ids whose current state matches t.
// Ids the center does not know are skipped. The result is sorted by id.
func (v *StoreView) ByIDs(ctx context.Context, ids []ID, t Type) ([]*Definition, error) {
	wanted := make(map[ID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return v.filter(ctx, t, wanted)
}

func (v *StoreView) filter(ctx context.Context, t Type, wanted map[ID]bool) ([]*Definition, error) {
	entries, err := v.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := v.now()
	out := make([]*Definition, 0, len(entries))
	for _, e := range entries {
		if wanted != nil && !wanted[e.def.ID] {
			continue
		}
		if v.state(e, now).Matches(t) {
			out = append(out, e.def.Clone())
		}
	}
	return out, nil
}

// Find returns the definition stored under id, or nil when there is none.
func (v *StoreView) Find(ctx context.Context, id ID) (*Definition, error) {
	e, ok, err := v.lookup(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return e.def.Clone(), nil
}

// Exists reports whether id is stored and its current state matches t.
func (v *StoreView) Exists(ctx context.Context, id ID, t Type) (bool, error) {
	e, ok, err := v.lookup(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	return v.state(e, v.now()).Matches(t), nil
}

// IDs returns the ids whose current state matches t, sorted.
func (v *StoreView) IDs(ctx context.Context, t Type) ([]ID, error) {
	defs, err := v.ByType(ctx, t)
	if err != nil {
		return nil, err
	}
	ids := make([]ID, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	return ids, nil
}

// State returns the current lifecycle state of id.
func (v *StoreView) State(ctx context.Context, id ID) (State, error) {
	e, ok, err := v.lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", notFound(id)
	}
	return v.state(e, v.now()), nil
}

func (v *StoreView) lookup(ctx context.Context, id ID) (entry, bool, error) {
	entries, err := v.snapshot(ctx)
	if err != nil {
		return entry{}, false, err
	}
	for _, e := range entries {
		if e.def.ID == id {
			return e, true, nil
		}
	}
	return entry{}, false, nil
}
