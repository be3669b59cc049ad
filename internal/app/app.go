// Package app wires configuration into the engine's collaborators. It is
// shared by the HTTP server and the delivery worker.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"localnotify/internal/config"
	"localnotify/internal/domain/notification"
	"localnotify/internal/infra/store"
)

// Backend is a host notification center that also records deliveries.
type Backend interface {
	notification.Center
	notification.DeliveryLedger
}

// SetupLogger installs the JSON slog handler at the configured level.
func SetupLogger(cfg config.LogConfig) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)
}

// OpenBackend opens the notification center selected by store.driver.
// The returned close function releases its connections.
func OpenBackend(cfg *config.Config) (Backend, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemoryCenter(), func() error { return nil }, nil
	case config.DriverRedis:
		client := store.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		center := store.NewRedisCenter(client, cfg.Store.KeyPrefix)
		return center, center.Close, nil
	case config.DriverSupabase:
		center, err := store.NewSupabaseCenter(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.Supabase.Table)
		if err != nil {
			return nil, nil, err
		}
		return center, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Events returns the backend's lifecycle event sink, or nil when the
// backend has no event channel.
func Events(backend Backend) notification.EventSink {
	if sink, ok := backend.(notification.EventSink); ok {
		return sink
	}
	return nil
}

// EngineOptions translates the engine section into service options.
func EngineOptions(cfg config.EngineConfig) ([]notification.Option, error) {
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	defaults := notification.DefaultDefaults()
	switch cfg.DefaultSound {
	case "", "none":
		defaults.Sound = notification.SoundNone
	default:
		if s, ok := (notification.AssetSoundResolver{}).Resolve(cfg.DefaultSound); ok {
			defaults.Sound = s
		} else {
			slog.Warn("engine.default_sound not resolvable, using platform default", "sound", cfg.DefaultSound)
		}
	}

	return []notification.Option{
		notification.WithLocation(loc),
		notification.WithMaxActions(cfg.MaxActions),
		notification.WithDefaults(defaults),
	}, nil
}
