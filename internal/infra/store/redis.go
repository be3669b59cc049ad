package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"localnotify/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var (
	_ notification.Center         = (*RedisCenter)(nil)
	_ notification.DeliveryLedger = (*RedisCenter)(nil)
	_ notification.EventSink      = (*RedisCenter)(nil)
)

const (
	permissionGranted = "granted"
	permissionDenied  = "denied"
)

// RedisCenter persists the notification center in Redis hashes keyed by
// notification id:
//
//	<prefix>:pending     id -> definition JSON
//	<prefix>:delivered   id -> definition JSON
//	<prefix>:categories  category id -> category JSON
//	<prefix>:permission  "granted" | "denied" (absent means granted)
//	<prefix>:badge       badge number
//
// Lifecycle events are published as JSON on the <prefix>:events channel.
type RedisCenter struct {
	client *redis.Client
	prefix string
}

// NewRedisClient creates a go-redis client for the center.
func NewRedisClient(redisAddr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
}

// NewRedisCenter creates a Redis-backed notification center.
func NewRedisCenter(client *redis.Client, prefix string) *RedisCenter {
	if prefix == "" {
		prefix = "localnotify"
	}
	return &RedisCenter{client: client, prefix: prefix}
}

func (r *RedisCenter) key(name string) string {
	return r.prefix + ":" + name
}

// EventsChannel is the pub/sub channel lifecycle events are published on.
func (r *RedisCenter) EventsChannel() string {
	return r.key("events")
}

// Emit publishes e on the events channel. Failures are logged, not returned.
func (r *RedisCenter) Emit(ctx context.Context, e notification.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("encoding notification event", "event", e.Type, "id", e.ID, "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.EventsChannel(), data).Err(); err != nil {
		slog.Warn("publishing notification event", "event", e.Type, "id", e.ID, "error", err)
	}
}

func field(id notification.ID) string {
	return strconv.FormatInt(int64(id), 10)
}

// Submit replaces the entry in one MULTI/EXEC so readers never see it missing.
func (r *RedisCenter) Submit(ctx context.Context, def *notification.Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding notification %s: %w", def.ID, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.key("delivered"), field(def.ID))
		pipe.HSet(ctx, r.key("pending"), field(def.ID), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("submitting notification %s: %w", def.ID, err)
	}
	return nil
}

func (r *RedisCenter) Withdraw(ctx context.Context, id notification.ID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.key("pending"), field(id))
		pipe.HDel(ctx, r.key("delivered"), field(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("withdrawing notification %s: %w", id, err)
	}
	return nil
}

func (r *RedisCenter) WithdrawAll(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key("pending"), r.key("delivered")).Err(); err != nil {
		return fmt.Errorf("withdrawing all notifications: %w", err)
	}
	return nil
}

func (r *RedisCenter) ClearDelivered(ctx context.Context, id notification.ID) error {
	if err := r.client.HDel(ctx, r.key("delivered"), field(id)).Err(); err != nil {
		return fmt.Errorf("clearing delivered notification %s: %w", id, err)
	}
	return nil
}

func (r *RedisCenter) ClearAllDelivered(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key("delivered")).Err(); err != nil {
		return fmt.Errorf("clearing delivered notifications: %w", err)
	}
	return nil
}

func (r *RedisCenter) ListPending(ctx context.Context) ([]*notification.Definition, error) {
	return r.list(ctx, "pending")
}

func (r *RedisCenter) ListDelivered(ctx context.Context) ([]*notification.Definition, error) {
	return r.list(ctx, "delivered")
}

func (r *RedisCenter) list(ctx context.Context, name string) ([]*notification.Definition, error) {
	raw, err := r.client.HGetAll(ctx, r.key(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s notifications: %w", name, err)
	}
	out := make([]*notification.Definition, 0, len(raw))
	for f, data := range raw {
		var def notification.Definition
		if err := json.Unmarshal([]byte(data), &def); err != nil {
			return nil, fmt.Errorf("decoding %s notification %s: %w", name, f, err)
		}
		out = append(out, &def)
	}
	slices.SortFunc(out, func(a, b *notification.Definition) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// MarkDelivered moves a non-repeating entry from pending to delivered and
// copies a repeating one. The read and the write run under WATCH so a
// concurrent Submit or Withdraw aborts the move instead of being undone.
func (r *RedisCenter) MarkDelivered(ctx context.Context, id notification.ID, _ time.Time) error {
	pending := r.key("pending")
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, pending, field(id)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var def notification.Definition
		if err := json.Unmarshal([]byte(data), &def); err != nil {
			return fmt.Errorf("decoding pending notification %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key("delivered"), field(id), data)
			if !notification.IsRepeating(def.Trigger) {
				pipe.HDel(ctx, pending, field(id))
			}
			return nil
		})
		return err
	}, pending)
	if err != nil {
		return fmt.Errorf("marking notification %s delivered: %w", id, err)
	}
	return nil
}

func (r *RedisCenter) RegisterCategory(ctx context.Context, c notification.ActionCategory) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding category %s: %w", c.ID, err)
	}
	if err := r.client.HSet(ctx, r.key("categories"), c.ID, data).Err(); err != nil {
		return fmt.Errorf("registering category %s: %w", c.ID, err)
	}
	return nil
}

func (r *RedisCenter) UnregisterCategory(ctx context.Context, id string) error {
	if err := r.client.HDel(ctx, r.key("categories"), id).Err(); err != nil {
		return fmt.Errorf("unregistering category %s: %w", id, err)
	}
	return nil
}

// ListCategories returns the categories registered with the center, sorted by id.
func (r *RedisCenter) ListCategories(ctx context.Context) ([]notification.ActionCategory, error) {
	raw, err := r.client.HGetAll(ctx, r.key("categories")).Result()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	out := make([]notification.ActionCategory, 0, len(raw))
	for id, data := range raw {
		var c notification.ActionCategory
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("decoding category %s: %w", id, err)
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b notification.ActionCategory) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *RedisCenter) permission(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.key("permission")).Result()
	if errors.Is(err, redis.Nil) {
		return permissionGranted, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading permission: %w", err)
	}
	return v, nil
}

func (r *RedisCenter) HasPermission(ctx context.Context) (bool, error) {
	v, err := r.permission(ctx)
	if err != nil {
		return false, err
	}
	return v == permissionGranted, nil
}

// RequestPermission grants the permission unless an operator denied it.
func (r *RedisCenter) RequestPermission(ctx context.Context) (bool, error) {
	v, err := r.permission(ctx)
	if err != nil {
		return false, err
	}
	if v == permissionDenied {
		return false, nil
	}
	if err := r.client.Set(ctx, r.key("permission"), permissionGranted, 0).Err(); err != nil {
		return false, fmt.Errorf("granting permission: %w", err)
	}
	return true, nil
}

// SetPermission records an operator decision on the notification permission.
func (r *RedisCenter) SetPermission(ctx context.Context, granted bool) error {
	v := permissionDenied
	if granted {
		v = permissionGranted
	}
	if err := r.client.Set(ctx, r.key("permission"), v, 0).Err(); err != nil {
		return fmt.Errorf("setting permission: %w", err)
	}
	return nil
}

func (r *RedisCenter) SetBadge(ctx context.Context, n int) error {
	if err := r.client.Set(ctx, r.key("badge"), n, 0).Err(); err != nil {
		return fmt.Errorf("setting badge: %w", err)
	}
	return nil
}

// Badge returns the stored badge number.
func (r *RedisCenter) Badge(ctx context.Context) (int, error) {
	n, err := r.client.Get(ctx, r.key("badge")).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading badge: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (r *RedisCenter) Close() error {
	return r.client.Close()
}
