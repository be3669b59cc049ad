package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"localnotify/internal/domain/notification"

	"github.com/hibiken/asynq"
)

// QueueName is the asynq queue delivery tasks are scheduled on.
const QueueName = "notifications"

func redisOpt(redisAddr, password string, db int) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	}
}

// NewClient creates a new asynq client connected to Redis.
func NewClient(redisAddr, password string, db int) *asynq.Client {
	return asynq.NewClient(redisOpt(redisAddr, password, db))
}

// NewInspector creates a new asynq inspector connected to Redis.
func NewInspector(redisAddr, password string, db int) *asynq.Inspector {
	return asynq.NewInspector(redisOpt(redisAddr, password, db))
}

// NewServer creates a new asynq server connected to Redis.
func NewServer(redisAddr, password string, db int, concurrency int) *asynq.Server {
	return asynq.NewServer(
		redisOpt(redisAddr, password, db),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueName: 10, // priority weight
				"default": 1,
			},
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s, 40s, 80s
				return time.Duration(5*(1<<uint(n-1))) * time.Second
			},
		},
	)
}

var _ notification.Dispatcher = (*Dispatcher)(nil)

// Dispatcher arms deliveries as asynq tasks processed at the fire date.
// Each occurrence gets its own task id, so arming it twice is a no-op.
type Dispatcher struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	maxRetry  int
}

// NewDispatcher creates a new asynq-backed dispatcher. inspector may be nil,
// in which case Revoke does nothing and the worker drops stale tasks.
func NewDispatcher(client *asynq.Client, inspector *asynq.Inspector, maxRetry int) *Dispatcher {
	return &Dispatcher{client: client, inspector: inspector, maxRetry: maxRetry}
}

// Dispatch schedules delivery of id at the given fire date.
func (d *Dispatcher) Dispatch(ctx context.Context, id notification.ID, at time.Time) error {
	task, err := notification.NewDeliverTask(id, at)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.TaskID(notification.DeliverTaskID(id, at)),
		asynq.ProcessAt(at),
		asynq.MaxRetry(d.maxRetry),
		asynq.Queue(QueueName),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}
	return nil
}

// Revoke deletes the scheduled delivery of id at the given fire date.
func (d *Dispatcher) Revoke(ctx context.Context, id notification.ID, at time.Time) error {
	if d.inspector == nil {
		return nil
	}
	taskID := notification.DeliverTaskID(id, at)
	err := d.inspector.DeleteTask(QueueName, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	slog.Debug("delivery revoked", "id", id, "fire_at", at)
	return nil
}

// HandleDeliver adapts worker to an asynq handler for delivery tasks.
func HandleDeliver(worker *notification.Worker) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := notification.ParseDeliverPayload(t.Payload())
		if err != nil {
			// A malformed payload never becomes valid; do not retry it.
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return worker.ProcessTask(ctx, p.ID, p.FireAt)
	}
}
