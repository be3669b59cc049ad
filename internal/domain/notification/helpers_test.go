package notification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"localnotify/internal/domain/notification"
	"localnotify/internal/infra/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// tickingClock moves forward by step on every read, like a real clock
// between two calls.
type tickingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

type recordingSink struct {
	mu     sync.Mutex
	events []notification.Event
}

func (s *recordingSink) Emit(_ context.Context, e notification.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Types() []notification.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func (s *recordingSink) Events() []notification.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification.Event(nil), s.events...)
}

type dispatch struct {
	ID notification.ID
	At time.Time
}

type recordingDispatcher struct {
	mu         sync.Mutex
	dispatched []dispatch
	revoked    []dispatch
	err        error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, id notification.ID, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, dispatch{ID: id, At: at})
	return nil
}

func (d *recordingDispatcher) Revoke(_ context.Context, id notification.ID, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked = append(d.revoked, dispatch{ID: id, At: at})
	return nil
}

func (d *recordingDispatcher) Dispatched() []dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatch(nil), d.dispatched...)
}

func (d *recordingDispatcher) Revoked() []dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatch(nil), d.revoked...)
}

var errCenterDown = errors.New("center unavailable")

// flakyCenter fails the operations named in failing.
type flakyCenter struct {
	*store.MemoryCenter
	failing map[string]bool
}

func (f *flakyCenter) Submit(ctx context.Context, def *notification.Definition) error {
	if f.failing["submit"] {
		return errCenterDown
	}
	return f.MemoryCenter.Submit(ctx, def)
}

func (f *flakyCenter) ListPending(ctx context.Context) ([]*notification.Definition, error) {
	if f.failing["list_pending"] {
		return nil, errCenterDown
	}
	return f.MemoryCenter.ListPending(ctx)
}

func (f *flakyCenter) ListCategories(ctx context.Context) ([]notification.ActionCategory, error) {
	if f.failing["list_categories"] {
		return nil, errCenterDown
	}
	return f.MemoryCenter.ListCategories(ctx)
}

func (f *flakyCenter) RegisterCategory(ctx context.Context, c notification.ActionCategory) error {
	if f.failing["register_category"] {
		return errCenterDown
	}
	return f.MemoryCenter.RegisterCategory(ctx, c)
}

func hostCategoryIDs(t *testing.T, center notification.Center) []string {
	t.Helper()
	categories, err := center.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("listing categories: %v", err)
	}
	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	return ids
}

func utcDate(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

type fixture struct {
	center     *store.MemoryCenter
	dispatcher *recordingDispatcher
	clock      *testClock
	service    *notification.Service
}

func newFixture(t *testing.T, opts ...notification.Option) *fixture {
	t.Helper()
	f := &fixture{
		center:     store.NewMemoryCenter(),
		dispatcher: &recordingDispatcher{},
		clock:      newClock(utcDate(2026, 1, 1, 12, 0)),
	}
	f.service = notification.NewService(f.center, append([]notification.Option{
		notification.WithDispatcher(f.dispatcher),
		notification.WithClock(f.clock.Now),
		notification.WithLocation(time.UTC),
	}, opts...)...)
	if err := f.service.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return f
}
