package notification

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"localnotify/internal/common"
)

// Dispatcher arms delivery of one occurrence of a notification.
// This allows the service to be decoupled from the specific queue implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, id ID, at time.Time) error
	Revoke(ctx context.Context, id ID, at time.Time) error
}

// Option configures a Service.
type Option func(*Service)

// WithDispatcher arms a delivery for the next occurrence of every scheduled definition.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithEvents reports lifecycle transitions to sink.
func WithEvents(sink EventSink) Option {
	return func(s *Service) { s.events = sink }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the calendar location for trigger arithmetic and offset-less dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithSoundResolver replaces the asset based sound resolver.
func WithSoundResolver(r SoundResolver) Option {
	return func(s *Service) {
		if r != nil {
			s.sounds = r
		}
	}
}

// WithMaxActions limits the number of actions per category (0 means unlimited).
func WithMaxActions(n int) Option {
	return func(s *Service) { s.maxActions = n }
}

// WithDefaults sets the option defaults applied by Parse.
func WithDefaults(d Defaults) Option {
	return func(s *Service) { s.defaults = d }
}

// Service is the notification engine for one host center.
// All store and registry operations are serialized; parsing and trigger
// arithmetic are pure and run without the lock.
type Service struct {
	mu sync.Mutex

	center     Center
	dispatcher Dispatcher
	events     EventSink
	registry   *Registry
	view       *StoreView
	parser     atomic.Pointer[Parser]
	calc       Calculator

	now        func() time.Time
	loc        *time.Location
	sounds     SoundResolver
	maxActions int
	defaults   Defaults
}

// NewService creates a notification engine over center.
func NewService(center Center, opts ...Option) *Service {
	s := &Service{
		center:   center,
		now:      time.Now,
		loc:      time.Local,
		sounds:   AssetSoundResolver{},
		defaults: DefaultDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.calc = NewCalculator(s.loc)
	s.registry = NewRegistry(s.maxActions)
	s.view = NewStoreView(center, s.calc, s.now)
	s.parser.Store(NewParser(s.now, s.loc, s.sounds, s.defaults))
	return s
}

// Init loads the categories the host center already knows into the
// registry and registers the general category with it.
func (s *Service) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known, err := s.center.ListCategories(ctx)
	if err != nil {
		return hostError("list_categories", err)
	}
	hasGeneral := false
	for _, c := range known {
		if c.ID == GeneralCategory {
			hasGeneral = true
			continue
		}
		if _, err := s.registry.Register(c); err != nil {
			slog.Warn("skipping stored action category", "category", c.ID, "error", err)
		}
	}

	if !hasGeneral {
		general, _ := s.registry.Get(GeneralCategory)
		if err := s.center.RegisterCategory(ctx, general); err != nil {
			return hostError("register_category", err)
		}
	}

	slog.Info("notification engine initialized", "categories", len(s.registry.IDs()))
	return nil
}

// Calculator returns the trigger calculator the engine uses.
func (s *Service) Calculator() Calculator {
	return s.calc
}

// View returns the query view over the host center.
func (s *Service) View() *StoreView {
	return s.view
}

// ==========================================
// Options
// ==========================================

// Parse builds a definition from raw options without side effects.
func (s *Service) Parse(raw map[string]any) (*Definition, error) {
	return s.parser.Load().Parse(raw)
}

// Defaults returns the option defaults currently applied by Parse.
func (s *Service) Defaults() Defaults {
	return s.parser.Load().Defaults()
}

// SetDefaults replaces the option defaults.
func (s *Service) SetDefaults(d Defaults) error {
	if d.Badge != nil && *d.Badge < 0 {
		return invalidBadge("default badge must be non-negative, got %d", *d.Badge)
	}
	s.parser.Store(s.parser.Load().WithDefaults(d))
	slog.Info("notification defaults updated", "sound", d.Sound, "category", d.ActionCategoryID)
	return nil
}

// ==========================================
// Scheduling
// ==========================================

// Schedule hands def to the host center. A def whose single fire date is
// already behind is stored as triggered and never delivered. An existing
// entry with the same id is replaced.
func (s *Service) Schedule(ctx context.Context, def *Definition) (*Definition, error) {
	out, err := s.ScheduleAll(ctx, []*Definition{def})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ScheduleAll validates every definition before submitting any of them.
func (s *Service) ScheduleAll(ctx context.Context, defs []*Definition) ([]*Definition, error) {
	return s.schedule(ctx, defs, nil)
}

// schedule validates defs together with the categories they bring along,
// then registers those categories and submits defs. Nothing reaches the
// host center unless every definition and category is valid.
func (s *Service) schedule(ctx context.Context, defs []*Definition, inline []ActionCategory) ([]*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[string]bool, len(inline))
	for _, c := range inline {
		if err := c.Validate(s.maxActions); err != nil {
			return nil, err
		}
		incoming[c.ID] = true
	}

	now := s.now()
	prepared := make([]*Definition, len(defs))
	for i, def := range defs {
		stored, err := s.prepare(ctx, def, now, incoming)
		if err != nil {
			return nil, err
		}
		prepared[i] = stored
	}

	for _, c := range inline {
		if err := s.registerCategory(ctx, c); err != nil {
			return nil, err
		}
	}

	out := make([]*Definition, len(prepared))
	for i, stored := range prepared {
		previous, err := s.view.Find(ctx, stored.ID)
		if err != nil {
			return nil, err
		}
		if err := s.center.Submit(ctx, stored); err != nil {
			return nil, hostError("submit", err)
		}
		s.revoke(ctx, previous, now)
		if err := s.dispatch(ctx, stored, now); err != nil {
			return nil, err
		}

		slog.Info("notification scheduled",
			"id", stored.ID,
			"state", s.calc.Classify(stored.Trigger, now, false),
			"replaced", previous != nil,
		)
		emit(ctx, s.events, EventSchedule, stored, now)
		out[i] = stored.Clone()
	}
	return out, nil
}

// ScheduleOptions parses every option mapping, registers inline action
// categories ("actions" next to "actionCategoryId") and schedules the result.
func (s *Service) ScheduleOptions(ctx context.Context, raws []map[string]any) ([]*Definition, error) {
	defs := make([]*Definition, len(raws))
	var inline []ActionCategory
	for i, raw := range raws {
		def, err := s.Parse(raw)
		if err != nil {
			return nil, err
		}
		defs[i] = def

		if actions, ok := raw["actions"].([]any); ok && def.ActionCategoryID != "" {
			c, err := ParseCategory(def.ActionCategoryID, actions)
			if err != nil {
				return nil, err
			}
			inline = append(inline, c)
		}
	}

	return s.schedule(ctx, defs, inline)
}

// Update replaces the definition stored under id. def.ID must equal id and
// the entry must exist. The trigger is settled again as if freshly scheduled.
// On failure the stored entry is left untouched.
func (s *Service) Update(ctx context.Context, id ID, def *Definition) (*Definition, error) {
	if def == nil || def.ID != id {
		return nil, common.NewValidationError(common.CodeIDMismatch,
			fmt.Sprintf("update of notification %s carries a different id", id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.view.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, notFound(id)
	}

	now := s.now()
	stored, err := s.prepare(ctx, def, now, nil)
	if err != nil {
		return nil, err
	}

	if err := s.center.Submit(ctx, stored); err != nil {
		return nil, hostError("submit", err)
	}
	s.revoke(ctx, previous, now)
	if err := s.dispatch(ctx, stored, now); err != nil {
		return nil, err
	}

	slog.Info("notification updated",
		"id", id,
		"state", s.calc.Classify(stored.Trigger, now, false),
	)
	emit(ctx, s.events, EventUpdate, stored, now)
	return stored.Clone(), nil
}

// UpdateOptions merges raw over the stored options of id and updates the
// entry with the result.
func (s *Service) UpdateOptions(ctx context.Context, id ID, raw map[string]any) (*Definition, error) {
	previous, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, notFound(id)
	}

	merged := ToOptions(previous)
	if past, ok := previous.Trigger.(Past); ok {
		merged["trigger"] = map[string]any{"type": "date", "at": formatDate(past.Original)}
	}
	for key := range legacyTriggerKeys {
		if _, ok := raw[key]; ok {
			// Top-level trigger keys replace the stored trigger mapping.
			delete(merged, "trigger")
			break
		}
	}
	maps.Copy(merged, raw)
	if _, ok := raw["id"]; !ok {
		merged["id"] = int64(id)
	}

	def, err := s.Parse(merged)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, id, def)
}

// prepare validates def and applies the past-date policy to a copy of it.
// A nil trigger resolves to now. incoming names categories registered
// together with def.
func (s *Service) prepare(ctx context.Context, def *Definition, now time.Time, incoming map[string]bool) (*Definition, error) {
	if def == nil {
		return nil, invalidID("notification definition is required")
	}
	if def.ID <= 0 {
		return nil, invalidID("notification id must be positive, got %d", def.ID)
	}
	if def.Badge != nil && *def.Badge < 0 {
		return nil, invalidBadge("badge must be non-negative, got %d", *def.Badge)
	}
	trigger := def.Trigger
	if trigger == nil {
		trigger = At{Date: now}
	}
	if err := ValidateTrigger(trigger); err != nil {
		return nil, err
	}
	if def.ActionCategoryID != "" && !incoming[def.ActionCategoryID] && !s.registry.Has(def.ActionCategoryID) {
		return nil, common.NewValidationError(common.CodeUnknownActionCategory,
			fmt.Sprintf("action category %q is not registered", def.ActionCategoryID))
	}

	granted, err := s.center.HasPermission(ctx)
	if err != nil {
		return nil, hostError("has_permission", err)
	}
	if !granted {
		return nil, ErrPermissionDenied
	}

	stored := def.Clone()
	stored.Trigger = Settle(trigger, now)
	if _, past := stored.Trigger.(Past); past {
		slog.Info("notification fire date already passed, storing as triggered",
			"id", stored.ID,
			"fire_at", stored.Trigger.(Past).Original,
		)
	}
	return stored, nil
}

func (s *Service) dispatch(ctx context.Context, def *Definition, now time.Time) error {
	if s.dispatcher == nil {
		return nil
	}
	next, ok := s.calc.Next(def.Trigger, now)
	if !ok {
		return nil
	}
	if err := s.dispatcher.Dispatch(ctx, def.ID, next); err != nil {
		// The entry is stored; the sweeper arms it again on its next pass.
		slog.Error("dispatching notification failed", "id", def.ID, "fire_at", next, "error", err)
		return hostError("dispatch", err)
	}
	return nil
}

// revoke is best effort: the delivery worker drops occurrences that no
// longer match the stored trigger.
func (s *Service) revoke(ctx context.Context, def *Definition, now time.Time) {
	if s.dispatcher == nil || def == nil {
		return
	}
	next, ok := s.calc.Next(def.Trigger, now)
	if !ok {
		return
	}
	if err := s.dispatcher.Revoke(ctx, def.ID, next); err != nil {
		slog.Warn("revoking notification delivery failed", "id", def.ID, "fire_at", next, "error", err)
	}
}

// ==========================================
// Cancel / clear
// ==========================================

// Cancel removes id from the host center. Unknown ids are not an error.
func (s *Service) Cancel(ctx context.Context, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, err := s.view.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.center.Withdraw(ctx, id); err != nil {
		return hostError("withdraw", err)
	}
	s.revoke(ctx, previous, s.now())

	if previous != nil {
		slog.Info("notification canceled", "id", id)
		emit(ctx, s.events, EventCancel, previous, s.now())
	}
	return nil
}

// CancelAll removes every entry from the host center.
func (s *Service) CancelAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.view.All(ctx)
	if err != nil {
		return err
	}
	if err := s.center.WithdrawAll(ctx); err != nil {
		return hostError("withdraw_all", err)
	}
	now := s.now()
	for _, def := range all {
		s.revoke(ctx, def, now)
	}

	slog.Info("all notifications canceled", "count", len(all))
	emit(ctx, s.events, EventCancelAll, nil, now)
	return nil
}

// Clear dismisses a delivered notification. Pending repeats keep firing.
func (s *Service) Clear(ctx context.Context, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx, id)
}

func (s *Service) clear(ctx context.Context, id ID) error {
	e, found, err := s.view.lookup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.center.ClearDelivered(ctx, id); err != nil {
		return hostError("clear_delivered", err)
	}
	if found && e.delivered {
		slog.Info("notification cleared", "id", id)
		emit(ctx, s.events, EventClear, e.def, s.now())
	}
	return nil
}

// Click reports that the user opened a delivered notification, optionally
// through one of its category's actions, and dismisses it.
func (s *Service) Click(ctx context.Context, id ID, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found, err := s.view.lookup(ctx, id)
	if err != nil {
		return err
	}
	if !found || !e.delivered {
		return notFound(id)
	}
	if action != "" {
		c, _ := s.registry.Get(e.def.Category())
		if !slices.ContainsFunc(c.Actions, func(a ActionSpec) bool { return a.ID == action }) {
			return invalidCategory("action %q is not part of category %q", action, e.def.Category())
		}
	}

	if s.events != nil {
		s.events.Emit(ctx, Event{Type: EventClick, ID: id, Notification: e.def.Clone(), Action: action, At: s.now()})
	}
	slog.Info("notification clicked", "id", id, "action", action)
	return s.clear(ctx, id)
}

// ClearAll dismisses every delivered notification.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.center.ClearAllDelivered(ctx); err != nil {
		return hostError("clear_all_delivered", err)
	}
	slog.Info("all delivered notifications cleared")
	emit(ctx, s.events, EventClearAll, nil, s.now())
	return nil
}

// ==========================================
// Queries
// ==========================================

// All returns every stored definition, sorted by id.
func (s *Service) All(ctx context.Context) ([]*Definition, error) {
	return s.ByType(ctx, TypeAll)
}

// ByType returns the definitions in the given state at the current instant.
func (s *Service) ByType(ctx context.Context, t Type) ([]*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.ByType(ctx, t)
}

// ByIDs returns the stored definitions among ids matching t.
func (s *Service) ByIDs(ctx context.Context, ids []ID, t Type) ([]*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.ByIDs(ctx, ids, t)
}

// Find returns the definition stored under id, or nil.
func (s *Service) Find(ctx context.Context, id ID) (*Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Find(ctx, id)
}

// Get is Find for callers that require the entry to exist.
func (s *Service) Get(ctx context.Context, id ID) (*Definition, error) {
	def, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, notFound(id)
	}
	return def, nil
}

// Exists reports whether id is stored in a state matching t.
func (s *Service) Exists(ctx context.Context, id ID, t Type) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Exists(ctx, id, t)
}

// IsPresent reports whether id is stored in any state.
func (s *Service) IsPresent(ctx context.Context, id ID) (bool, error) {
	return s.Exists(ctx, id, TypeAll)
}

// IDs returns the ids in the given state, sorted.
func (s *Service) IDs(ctx context.Context, t Type) ([]ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.IDs(ctx, t)
}

// State returns the lifecycle state of id.
func (s *Service) State(ctx context.Context, id ID) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.State(ctx, id)
}

// ==========================================
// Action categories
// ==========================================

// RegisterCategory inserts or replaces c. Registering identical content
// again does not reach the host center.
func (s *Service) RegisterCategory(ctx context.Context, c ActionCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerCategory(ctx, c)
}

func (s *Service) registerCategory(ctx context.Context, c ActionCategory) error {
	if existing, ok := s.registry.Get(c.ID); ok && existing.Equal(c) {
		return nil
	}
	if err := c.Validate(s.maxActions); err != nil {
		return err
	}
	if err := s.center.RegisterCategory(ctx, c); err != nil {
		return hostError("register_category", err)
	}
	if _, err := s.registry.Register(c); err != nil {
		return err
	}

	slog.Info("action category registered", "category", c.ID, "actions", len(c.Actions))
	return nil
}

// UnregisterCategory removes a category. Unknown ids are ignored.
func (s *Service) UnregisterCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == GeneralCategory {
		return ErrReservedCategory
	}
	if !s.registry.Has(id) {
		return nil
	}
	if err := s.center.UnregisterCategory(ctx, id); err != nil {
		return hostError("unregister_category", err)
	}
	if _, err := s.registry.Unregister(id); err != nil {
		return err
	}

	slog.Info("action category unregistered", "category", id)
	return nil
}

// HasCategory reports whether id is registered.
func (s *Service) HasCategory(id string) bool {
	return s.registry.Has(id)
}

// Category returns the category registered under id.
func (s *Service) Category(id string) (ActionCategory, bool) {
	return s.registry.Get(id)
}

// CategoryIDs lists the registered category ids.
func (s *Service) CategoryIDs() []string {
	return s.registry.IDs()
}

// CategoryReferences counts the stored definitions per category, derived
// from the host center on every call.
func (s *Service) CategoryReferences(ctx context.Context) (map[string]int, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]int)
	for _, def := range all {
		refs[def.Category()]++
	}
	return refs, nil
}

// ==========================================
// Host capabilities
// ==========================================

// HasPermission asks the host whether notifications may be scheduled.
func (s *Service) HasPermission(ctx context.Context) (bool, error) {
	granted, err := s.center.HasPermission(ctx)
	if err != nil {
		return false, hostError("has_permission", err)
	}
	return granted, nil
}

// RequestPermission asks the host to grant the notification capability.
func (s *Service) RequestPermission(ctx context.Context) (bool, error) {
	granted, err := s.center.RequestPermission(ctx)
	if err != nil {
		return false, hostError("request_permission", err)
	}
	slog.Info("notification permission requested", "granted", granted)
	return granted, nil
}

// SetBadge sets the application badge number.
func (s *Service) SetBadge(ctx context.Context, n int) error {
	if n < 0 {
		return invalidBadge("badge must be non-negative, got %d", n)
	}
	if err := s.center.SetBadge(ctx, n); err != nil {
		return hostError("set_badge", err)
	}
	return nil
}
