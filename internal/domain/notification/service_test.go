package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"localnotify/internal/common"
	"localnotify/internal/domain/notification"
	"localnotify/internal/infra/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_FutureDateTransitionsToTriggered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Schedule(ctx, &notification.Definition{
		ID:      1,
		Title:   "New year",
		Trigger: notification.At{Date: utcDate(2030, 1, 1, 0, 0)},
	})
	require.NoError(t, err)

	ok, err := f.service.Exists(ctx, 1, notification.TypeScheduled)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.service.Exists(ctx, 1, notification.TypeTriggered)
	require.NoError(t, err)
	assert.False(t, ok)

	f.clock.Set(utcDate(2030, 1, 1, 0, 1))

	ok, err = f.service.Exists(ctx, 1, notification.TypeTriggered)
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := f.service.IDs(ctx, notification.TypeScheduled)
	require.NoError(t, err)
	assert.NotContains(t, ids, notification.ID(1))
}

func TestService_ScheduleDispatchesNextOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Schedule(ctx, &notification.Definition{
		ID: 2,
		Trigger: notification.Interval{
			Unit: notification.UnitDay, Count: 1, Repeats: true,
			First: utcDate(2025, 6, 1, 9, 0),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []dispatch{{ID: 2, At: utcDate(2026, 1, 2, 9, 0)}}, f.dispatcher.Dispatched())

	state, err := f.service.State(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, notification.StateScheduled, state)
}

func TestService_PastDateIsStoredAsTriggered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.service.Schedule(ctx, &notification.Definition{
		ID:      3,
		Trigger: notification.At{Date: utcDate(2025, 12, 31, 23, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, notification.Past{Original: utcDate(2025, 12, 31, 23, 0)}, stored.Trigger)

	state, err := f.service.State(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, notification.StateTriggered, state)
	assert.Empty(t, f.dispatcher.Dispatched(), "a past date must never be delivered")

	def, err := f.service.Find(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, def)
}

func TestService_ReplaceRevokesPreviousDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := utcDate(2026, 2, 1, 8, 0)
	second := utcDate(2026, 3, 1, 8, 0)
	_, err := f.service.Schedule(ctx, &notification.Definition{ID: 4, Trigger: notification.At{Date: first}})
	require.NoError(t, err)
	_, err = f.service.Schedule(ctx, &notification.Definition{ID: 4, Trigger: notification.At{Date: second}})
	require.NoError(t, err)

	assert.Equal(t, []dispatch{{ID: 4, At: first}}, f.dispatcher.Revoked())

	all, err := f.service.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, notification.At{Date: second}, all[0].Trigger)
}

func TestService_UpdateWithCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.RegisterCategory(ctx, notification.ActionCategory{
		ID:      "cat1",
		Actions: []notification.ActionSpec{{ID: "ok", Title: "OK"}},
	}))
	_, err := f.service.Schedule(ctx, &notification.Definition{ID: 5, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}})
	require.NoError(t, err)

	updated, err := f.service.Update(ctx, 5, &notification.Definition{
		ID:               5,
		Title:            "with actions",
		ActionCategoryID: "cat1",
		Trigger:          notification.At{Date: utcDate(2026, 6, 1, 0, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, "cat1", updated.ActionCategoryID)

	_, err = f.service.Update(ctx, 5, &notification.Definition{
		ID:               5,
		Title:            "broken",
		ActionCategoryID: "unknown",
		Trigger:          notification.At{Date: utcDate(2026, 6, 1, 0, 0)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, notification.ErrUnknownActionCategory))

	stored, err := f.service.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "cat1", stored.ActionCategoryID)
	assert.Equal(t, "with actions", stored.Title)
}

func TestService_UpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trigger := notification.At{Date: utcDate(2026, 6, 1, 0, 0)}

	_, err := f.service.Update(ctx, 6, &notification.Definition{ID: 6, Trigger: trigger})
	assert.True(t, errors.Is(err, notification.ErrNotFound))

	_, err = f.service.Update(ctx, 6, &notification.Definition{ID: 7, Trigger: trigger})
	assert.True(t, errors.Is(err, notification.ErrIDMismatch))
}

func TestService_UpdateOptionsMergesStoredOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ScheduleOptions(ctx, []map[string]any{{
		"id":      8,
		"title":   "Water plants",
		"text":    "Kitchen",
		"trigger": map[string]any{"type": "date", "at": "2026-05-01T08:00:00Z"},
	}})
	require.NoError(t, err)

	updated, err := f.service.UpdateOptions(ctx, 8, map[string]any{"text": "Balcony"})
	require.NoError(t, err)
	assert.Equal(t, "Water plants", updated.Title)
	assert.Equal(t, "Balcony", updated.Body)
	assert.Equal(t, notification.At{Date: utcDate(2026, 5, 1, 8, 0)}, updated.Trigger)
}

func TestService_ScheduleAllIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ScheduleOptions(ctx, []map[string]any{
		{"id": 10, "title": "fine"},
		{"id": 11, "badge": -2},
	})
	assert.True(t, errors.Is(err, notification.ErrInvalidBadge))

	_, err = f.service.ScheduleAll(ctx, []*notification.Definition{
		{ID: 12, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}},
		{ID: 13, ActionCategoryID: "missing", Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}},
	})
	assert.True(t, errors.Is(err, notification.ErrUnknownActionCategory))

	all, err := f.service.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_ScheduleOptionsRegistersInlineActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ScheduleOptions(ctx, []map[string]any{{
		"id":               20,
		"actionCategoryId": "chat",
		"actions": []any{
			map[string]any{"id": "reply", "title": "Reply", "type": "input"},
		},
	}})
	require.NoError(t, err)

	assert.True(t, f.service.HasCategory("chat"))
	assert.Equal(t, []string{"chat", notification.GeneralCategory}, hostCategoryIDs(t, f.center))

	refs, err := f.service.CategoryReferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"chat": 1}, refs)
}

func TestService_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.center.SetPermission(false, false)

	_, err := f.service.Schedule(ctx, &notification.Definition{ID: 30, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}})
	assert.True(t, errors.Is(err, notification.ErrPermissionDenied))

	granted, err := f.service.RequestPermission(ctx)
	require.NoError(t, err)
	assert.False(t, granted)

	all, err := f.service.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	f.center.SetPermission(false, true)
	granted, err = f.service.RequestPermission(ctx)
	require.NoError(t, err)
	assert.True(t, granted)

	_, err = f.service.Schedule(ctx, &notification.Definition{ID: 30, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}})
	assert.NoError(t, err)
}

func TestService_HostErrorsCarryOperation(t *testing.T) {
	center := &flakyCenter{MemoryCenter: store.NewMemoryCenter(), failing: map[string]bool{"submit": true}}
	svc := notification.NewService(center)
	ctx := context.Background()

	_, err := svc.Schedule(ctx, &notification.Definition{ID: 1, Trigger: notification.At{Date: utcDate(2099, 1, 1, 0, 0)}})
	require.Error(t, err)

	var hostErr *common.HostError
	require.True(t, errors.As(err, &hostErr))
	assert.Equal(t, "submit", hostErr.Op)
	assert.True(t, errors.Is(err, errCenterDown))

	center.failing = map[string]bool{"list_pending": true}
	_, err = svc.All(ctx)
	require.True(t, errors.As(err, &hostErr))
	assert.Equal(t, "list_pending", hostErr.Op)
}

func TestService_FailedCategoryRegistrationKeepsRegistry(t *testing.T) {
	center := &flakyCenter{MemoryCenter: store.NewMemoryCenter(), failing: map[string]bool{"register_category": true}}
	svc := notification.NewService(center)

	err := svc.RegisterCategory(context.Background(), notification.ActionCategory{ID: "cat"})
	require.Error(t, err)
	assert.False(t, svc.HasCategory("cat"))
	assert.Equal(t, []string{notification.GeneralCategory}, svc.CategoryIDs())
}

func TestService_DispatchFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.dispatcher.err = errors.New("queue down")

	_, err := f.service.Schedule(ctx, &notification.Definition{ID: 40, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}})
	var hostErr *common.HostError
	require.True(t, errors.As(err, &hostErr))
	assert.Equal(t, "dispatch", hostErr.Op)

	present, err := f.service.IsPresent(ctx, 40)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestService_CancelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Schedule(ctx, &notification.Definition{ID: 50, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}})
	require.NoError(t, err)

	require.NoError(t, f.service.Cancel(ctx, 50))
	require.NoError(t, f.service.Cancel(ctx, 50))
	require.NoError(t, f.service.Cancel(ctx, 999))

	present, err := f.service.IsPresent(ctx, 50)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, []dispatch{{ID: 50, At: utcDate(2026, 6, 1, 0, 0)}}, f.dispatcher.Revoked())

	_, err = f.service.State(ctx, 50)
	assert.True(t, errors.Is(err, notification.ErrNotFound))
}

func TestService_CancelAllAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	daily := notification.Interval{Unit: notification.UnitDay, Count: 1, Repeats: true, First: utcDate(2026, 1, 2, 9, 0)}
	_, err := f.service.ScheduleAll(ctx, []*notification.Definition{
		{ID: 60, Trigger: notification.At{Date: utcDate(2026, 1, 1, 12, 30)}},
		{ID: 61, Trigger: daily},
	})
	require.NoError(t, err)

	require.NoError(t, f.center.MarkDelivered(ctx, 60, utcDate(2026, 1, 1, 12, 30)))
	require.NoError(t, f.center.MarkDelivered(ctx, 61, utcDate(2026, 1, 2, 9, 0)))

	// Clearing delivered entries keeps the pending repeat.
	require.NoError(t, f.service.ClearAll(ctx))
	ids, err := f.service.IDs(ctx, notification.TypeAll)
	require.NoError(t, err)
	assert.Equal(t, []notification.ID{61}, ids)

	require.NoError(t, f.service.CancelAll(ctx))
	ids, err = f.service.IDs(ctx, notification.TypeAll)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestService_ByIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ScheduleAll(ctx, []*notification.Definition{
		{ID: 70, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}},
		{ID: 71, Trigger: notification.At{Date: utcDate(2025, 6, 1, 0, 0)}},
		{ID: 72, Trigger: notification.At{Date: utcDate(2026, 7, 1, 0, 0)}},
	})
	require.NoError(t, err)

	defs, err := f.service.ByIDs(ctx, []notification.ID{72, 71, 99}, notification.TypeAll)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, notification.ID(71), defs[0].ID)
	assert.Equal(t, notification.ID(72), defs[1].ID)

	defs, err = f.service.ByIDs(ctx, []notification.ID{70, 71}, notification.TypeTriggered)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, notification.ID(71), defs[0].ID)

	found, err := f.service.Find(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestService_ReturnedDefinitionsAreCopies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Schedule(ctx, &notification.Definition{
		ID:       80,
		Title:    "original",
		UserInfo: map[string]any{"k": "v"},
		Trigger:  notification.At{Date: utcDate(2026, 6, 1, 0, 0)},
	})
	require.NoError(t, err)

	def, err := f.service.Get(ctx, 80)
	require.NoError(t, err)
	def.Title = "mutated"
	def.UserInfo["k"] = "mutated"

	again, err := f.service.Get(ctx, 80)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
	assert.Equal(t, "v", again.UserInfo["k"])
}

func TestService_Categories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, errors.Is(f.service.UnregisterCategory(ctx, notification.GeneralCategory), notification.ErrReservedCategory))
	assert.NoError(t, f.service.UnregisterCategory(ctx, "never-registered"))

	c := notification.ActionCategory{ID: "cat", Actions: []notification.ActionSpec{{ID: "a", Title: "A"}}}
	require.NoError(t, f.service.RegisterCategory(ctx, c))
	require.NoError(t, f.service.RegisterCategory(ctx, c))

	got, ok := f.service.Category("cat")
	require.True(t, ok)
	assert.True(t, got.Equal(c))

	require.NoError(t, f.service.UnregisterCategory(ctx, "cat"))
	assert.False(t, f.service.HasCategory("cat"))
	assert.Equal(t, []string{notification.GeneralCategory}, hostCategoryIDs(t, f.center))
}

func TestService_SetBadgeAndDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.SetBadge(ctx, 3))
	assert.Equal(t, 3, f.center.Badge())
	assert.True(t, errors.Is(f.service.SetBadge(ctx, -1), notification.ErrInvalidBadge))

	require.NoError(t, f.service.SetDefaults(notification.Defaults{Title: "Hello", Sound: notification.SoundNone}))
	def, err := f.service.Parse(map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "Hello", def.Title)
	assert.Equal(t, notification.SoundNone, def.Sound)

	negative := -1
	assert.Error(t, f.service.SetDefaults(notification.Defaults{Badge: &negative}))
	assert.Equal(t, "Hello", f.service.Defaults().Title)
}

func TestService_OptionsWithoutTriggerFireWhenScheduled(t *testing.T) {
	ctx := context.Background()
	center := store.NewMemoryCenter()
	dispatcher := &recordingDispatcher{}
	clock := &tickingClock{now: utcDate(2026, 1, 1, 12, 0), step: time.Millisecond}

	svc := notification.NewService(center,
		notification.WithDispatcher(dispatcher),
		notification.WithClock(clock.Now),
		notification.WithLocation(time.UTC),
	)
	require.NoError(t, svc.Init(ctx))

	defs, err := svc.ScheduleOptions(ctx, []map[string]any{{"id": 1, "title": "hi"}})
	require.NoError(t, err)

	at, ok := defs[0].Trigger.(notification.At)
	require.True(t, ok, "stored trigger is %T", defs[0].Trigger)

	dispatched := dispatcher.Dispatched()
	require.Len(t, dispatched, 1)
	assert.Equal(t, notification.ID(1), dispatched[0].ID)
	assert.Equal(t, at.Date, dispatched[0].At)
}

func TestService_FailedBatchRegistersNoInlineCategory(t *testing.T) {
	ctx := context.Background()
	inline := map[string]any{
		"id":               1,
		"actionCategoryId": "inline",
		"actions":          []any{map[string]any{"id": "ok", "title": "OK"}},
	}

	t.Run("unknown category later in the batch", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.ScheduleOptions(ctx, []map[string]any{
			inline,
			{"id": 2, "actionCategoryId": "missing"},
		})
		assert.True(t, errors.Is(err, notification.ErrUnknownActionCategory))
		assert.False(t, f.service.HasCategory("inline"))
		assert.Equal(t, []string{notification.GeneralCategory}, hostCategoryIDs(t, f.center))
	})

	t.Run("permission denied", func(t *testing.T) {
		f := newFixture(t)
		f.center.SetPermission(false, false)

		_, err := f.service.ScheduleOptions(ctx, []map[string]any{inline})
		assert.True(t, errors.Is(err, notification.ErrPermissionDenied))
		assert.False(t, f.service.HasCategory("inline"))
		assert.Equal(t, []string{notification.GeneralCategory}, hostCategoryIDs(t, f.center))
	})

	t.Run("inline category serves the whole batch", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.ScheduleOptions(ctx, []map[string]any{
			{"id": 2, "actionCategoryId": "inline"},
			inline,
		})
		require.NoError(t, err)
		assert.True(t, f.service.HasCategory("inline"))
	})
}

func TestService_InitRestoresCategoriesFromCenter(t *testing.T) {
	ctx := context.Background()
	center := store.NewMemoryCenter()
	clock := newClock(utcDate(2026, 1, 1, 12, 0))
	newService := func() *notification.Service {
		svc := notification.NewService(center, notification.WithClock(clock.Now), notification.WithLocation(time.UTC))
		require.NoError(t, svc.Init(ctx))
		return svc
	}

	chat := notification.ActionCategory{ID: "cat1", Actions: []notification.ActionSpec{{ID: "reply", Title: "Reply"}}}
	first := newService()
	require.NoError(t, first.RegisterCategory(ctx, chat))
	_, err := first.Schedule(ctx, &notification.Definition{
		ID: 5, ActionCategoryID: "cat1", Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)},
	})
	require.NoError(t, err)

	restarted := newService()
	got, ok := restarted.Category("cat1")
	require.True(t, ok)
	assert.True(t, got.Equal(chat))
	assert.Equal(t, []string{"cat1", notification.GeneralCategory}, restarted.CategoryIDs())

	_, err = restarted.Update(ctx, 5, &notification.Definition{
		ID: 5, Title: "again", ActionCategoryID: "cat1", Trigger: notification.At{Date: utcDate(2026, 7, 1, 0, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat1", notification.GeneralCategory}, hostCategoryIDs(t, center))
}

func TestService_InitFailsWhenCategoriesCannotBeListed(t *testing.T) {
	center := &flakyCenter{MemoryCenter: store.NewMemoryCenter(), failing: map[string]bool{"list_categories": true}}
	svc := notification.NewService(center)

	var hostErr *common.HostError
	require.True(t, errors.As(svc.Init(context.Background()), &hostErr))
	assert.Equal(t, "list_categories", hostErr.Op)
}

func TestService_UpdateOptionsTopLevelTriggerKeysReplaceStoredTrigger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.ScheduleOptions(ctx, []map[string]any{{
		"id":      9,
		"trigger": map[string]any{"type": "date", "at": "2026-05-01T08:00:00Z"},
	}})
	require.NoError(t, err)

	updated, err := f.service.UpdateOptions(ctx, 9, map[string]any{"at": "2026-08-01T08:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, notification.At{Date: utcDate(2026, 8, 1, 8, 0)}, updated.Trigger)

	updated, err = f.service.UpdateOptions(ctx, 9, map[string]any{"every": "day", "firstAt": "2026-09-01T08:00:00Z"})
	require.NoError(t, err)
	assert.True(t, notification.IsRepeating(updated.Trigger))
}

func TestService_EmitsLifecycleEvents(t *testing.T) {
	sink := &recordingSink{}
	f := newFixture(t, notification.WithEvents(sink))
	ctx := context.Background()

	chat := notification.ActionCategory{ID: "chat", Actions: []notification.ActionSpec{{ID: "reply", Title: "Reply"}}}
	require.NoError(t, f.service.RegisterCategory(ctx, chat))

	fireAt := utcDate(2026, 1, 1, 13, 0)
	_, err := f.service.Schedule(ctx, &notification.Definition{ID: 1, ActionCategoryID: "chat", Trigger: notification.At{Date: fireAt}})
	require.NoError(t, err)
	_, err = f.service.Update(ctx, 1, &notification.Definition{ID: 1, Title: "edited", ActionCategoryID: "chat", Trigger: notification.At{Date: fireAt}})
	require.NoError(t, err)

	worker := notification.NewWorker(f.center, f.center, f.dispatcher, f.service.Calculator(), notification.WithWorkerEvents(sink))
	require.NoError(t, worker.ProcessTask(ctx, 1, fireAt))

	assert.True(t, errors.Is(f.service.Click(ctx, 1, "dismiss"), notification.ErrInvalidCategory))
	require.NoError(t, f.service.Click(ctx, 1, "reply"))
	assert.True(t, errors.Is(f.service.Click(ctx, 1, ""), notification.ErrNotFound))

	_, err = f.service.Schedule(ctx, &notification.Definition{ID: 2, Trigger: notification.At{Date: utcDate(2026, 6, 1, 0, 0)}})
	require.NoError(t, err)
	require.NoError(t, f.service.Cancel(ctx, 2))
	require.NoError(t, f.service.Cancel(ctx, 2))
	require.NoError(t, f.service.Clear(ctx, 2))
	require.NoError(t, f.service.CancelAll(ctx))
	require.NoError(t, f.service.ClearAll(ctx))

	assert.Equal(t, []notification.EventType{
		notification.EventSchedule,
		notification.EventUpdate,
		notification.EventTrigger,
		notification.EventClick,
		notification.EventClear,
		notification.EventSchedule,
		notification.EventCancel,
		notification.EventCancelAll,
		notification.EventClearAll,
	}, sink.Types())

	events := sink.Events()
	assert.Equal(t, "edited", events[2].Notification.Title)
	assert.Equal(t, fireAt, events[2].At)
	assert.Equal(t, "reply", events[3].Action)
	assert.Equal(t, notification.ID(1), events[4].ID)
	assert.Nil(t, events[7].Notification)
}
