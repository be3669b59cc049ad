package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"localnotify/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisCenter connects to the Redis named by LOCALNOTIFY_TEST_REDIS_ADDR
// and isolates the test under its own key prefix.
func newTestRedisCenter(t *testing.T) *RedisCenter {
	t.Helper()

	addr := os.Getenv("LOCALNOTIFY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LOCALNOTIFY_TEST_REDIS_ADDR not set, skipping Redis integration test")
	}

	client := NewRedisClient(addr, "", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	prefix := fmt.Sprintf("localnotify-test-%d", time.Now().UnixNano())
	center := NewRedisCenter(client, prefix)
	t.Cleanup(func() {
		keys, _ := client.Keys(context.Background(), prefix+":*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
		_ = center.Close()
	})
	return center
}

func TestRedisCenter_Contract(t *testing.T) {
	centerContract(t, newTestRedisCenter(t))
}

func TestRedisCenter_CategoriesPermissionBadge(t *testing.T) {
	center := newTestRedisCenter(t)
	ctx := context.Background()

	c := notification.ActionCategory{ID: "chat", Actions: []notification.ActionSpec{{ID: "reply", Title: "Reply"}}}
	require.NoError(t, center.RegisterCategory(ctx, c))
	categories, err := center.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []notification.ActionCategory{c}, categories)

	require.NoError(t, center.SetBadge(ctx, 7))
	badge, err := center.Badge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, badge)

	require.NoError(t, center.SetPermission(ctx, false))
	granted, err := center.RequestPermission(ctx)
	require.NoError(t, err)
	assert.False(t, granted)

	require.NoError(t, center.SetPermission(ctx, true))
	granted, err = center.HasPermission(ctx)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestRedisCenter_PreservesDefinition(t *testing.T) {
	center := newTestRedisCenter(t)
	ctx := context.Background()

	badge := 2
	def := &notification.Definition{
		ID:               5,
		Title:            "Rent",
		Body:             "Due today",
		Badge:            &badge,
		Sound:            notification.SoundDefault,
		UserInfo:         map[string]any{"account": "main"},
		ActionCategoryID: "bills",
		Trigger: notification.Interval{
			Unit: notification.UnitMonth, Count: 1, Repeats: true,
			First: at(2099, 1, 31),
		},
	}
	require.NoError(t, center.Submit(ctx, def))

	pending, err := center.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, def, pending[0])
}

func TestRedisCenter_PublishesEvents(t *testing.T) {
	center := newTestRedisCenter(t)
	ctx := context.Background()

	sub := center.client.Subscribe(ctx, center.EventsChannel())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	def := &notification.Definition{ID: 3, Title: "hi", Trigger: notification.At{Date: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}}
	center.Emit(ctx, notification.Event{Type: notification.EventSchedule, ID: 3, Notification: def, At: time.Now()})

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)

	var got notification.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, notification.EventSchedule, got.Type)
	assert.Equal(t, notification.ID(3), got.ID)
	require.NotNil(t, got.Notification)
	assert.Equal(t, def.Trigger, got.Notification.Trigger)
}
