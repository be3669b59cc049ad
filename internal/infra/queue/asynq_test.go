package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"localnotify/internal/domain/notification"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverTask_RoundTrip(t *testing.T) {
	fireAt := time.Date(2030, 1, 1, 9, 0, 0, 123, time.FixedZone("CET", 3600))

	task, err := notification.NewDeliverTask(42, fireAt)
	require.NoError(t, err)
	assert.Equal(t, notification.TaskTypeDeliverNotification, task.Type())

	p, err := notification.ParseDeliverPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, notification.ID(42), p.ID)
	assert.True(t, p.FireAt.Equal(fireAt))
}

func TestDeliverTaskID_IsPerOccurrence(t *testing.T) {
	a := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, notification.DeliverTaskID(1, a), notification.DeliverTaskID(1, a.In(time.FixedZone("X", 7200))))
	assert.NotEqual(t, notification.DeliverTaskID(1, a), notification.DeliverTaskID(1, a.Add(time.Second)))
	assert.NotEqual(t, notification.DeliverTaskID(1, a), notification.DeliverTaskID(2, a))
}

func TestHandleDeliver_MalformedPayloadSkipsRetry(t *testing.T) {
	handler := HandleDeliver(nil)

	for _, payload := range []string{`not json`, `{"id":0,"fire_at":"2030-01-01T00:00:00Z"}`, `{"id":3}`} {
		err := handler(context.Background(), asynq.NewTask(notification.TaskTypeDeliverNotification, []byte(payload)))
		require.Error(t, err, payload)
		assert.True(t, errors.Is(err, asynq.SkipRetry), payload)
	}
}

func TestDispatcher_RevokeWithoutInspector(t *testing.T) {
	d := NewDispatcher(nil, nil, 3)
	assert.NoError(t, d.Revoke(context.Background(), 1, time.Now()))
}
