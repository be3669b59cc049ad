package notification

import (
	"context"
	"log/slog"
	"time"
)

// SweeperConfig holds configuration for the delivery sweeper.
type SweeperConfig struct {
	// Interval is how often the sweeper re-arms pending deliveries.
	Interval time.Duration

	// BatchSize caps the deliveries armed per sweep (0 means no cap).
	BatchSize int
}

// Sweeper periodically re-arms the next occurrence of every pending
// notification. This restores deliveries after a restart or after the queue
// lost its data: the host center is the source of truth and the sweeper
// reconciles the queue with it on a timer.
//
// Dispatching is idempotent per (id, fire date), so re-arming an occurrence
// that is still queued is harmless. A one-shot whose date passed while no
// worker ran is armed at its own date and delivered late.
type Sweeper struct {
	view       *StoreView
	dispatcher Dispatcher
	calc       Calculator
	now        func() time.Time
	config     SweeperConfig
}

// NewSweeper creates a new delivery sweeper.
func NewSweeper(center Center, dispatcher Dispatcher, calc Calculator, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	return &Sweeper{
		view:       NewStoreView(center, calc, time.Now),
		dispatcher: dispatcher,
		calc:       calc,
		now:        time.Now,
		config:     cfg,
	}
}

// Run sweeps once immediately, then on every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("sweeper started", "interval", s.config.Interval)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one cycle and returns how many occurrences it armed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	entries, err := s.view.snapshot(ctx)
	if err != nil {
		slog.Error("sweeper: failed to list notifications", "error", err)
		return 0
	}

	now := s.now()
	armed := 0
	for _, e := range entries {
		if s.config.BatchSize > 0 && armed >= s.config.BatchSize {
			slog.Warn("sweeper: batch size reached, remaining entries wait for the next sweep",
				"batch_size", s.config.BatchSize,
			)
			break
		}
		// Delivered one-shots are done; repeating ones keep their next occurrence.
		if e.delivered && !IsRepeating(e.def.Trigger) {
			continue
		}
		next, ok := s.calc.Next(e.def.Trigger, now)
		if !ok {
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, e.def.ID, next); err != nil {
			slog.Error("sweeper: failed to arm delivery",
				"id", e.def.ID,
				"fire_at", next,
				"error", err,
			)
			continue
		}
		armed++
	}

	if armed > 0 {
		slog.Debug("sweeper: sweep complete", "armed", armed, "total", len(entries))
	}
	return armed
}
