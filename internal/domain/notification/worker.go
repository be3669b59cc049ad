package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Worker delivers notification occurrences picked up from the queue.
// It re-reads the definition from the host center, drops occurrences that no
// longer match it, records the delivery and arms the next occurrence of
// repeating triggers.
type Worker struct {
	view       *StoreView
	ledger     DeliveryLedger
	dispatcher Dispatcher
	calc       Calculator
	events     EventSink
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerEvents reports every delivery to sink as a trigger event.
func WithWorkerEvents(sink EventSink) WorkerOption {
	return func(w *Worker) { w.events = sink }
}

// NewWorker creates a new delivery worker.
func NewWorker(center Center, ledger DeliveryLedger, dispatcher Dispatcher, calc Calculator, opts ...WorkerOption) *Worker {
	w := &Worker{
		view:       NewStoreView(center, calc, time.Now),
		ledger:     ledger,
		dispatcher: dispatcher,
		calc:       calc,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ProcessTask handles one delivery task from the queue.
func (w *Worker) ProcessTask(ctx context.Context, id ID, fireAt time.Time) error {
	start := time.Now()

	def, err := w.view.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching notification %s: %w", id, err)
	}
	if def == nil {
		slog.Info("notification no longer stored, dropping delivery", "id", id, "fire_at", fireAt)
		return nil
	}

	if !w.calc.IsOccurrence(def.Trigger, fireAt) {
		slog.Info("stale delivery dropped", "id", id, "fire_at", fireAt)
		return nil
	}

	if err := w.ledger.MarkDelivered(ctx, id, fireAt); err != nil {
		return fmt.Errorf("recording delivery of notification %s: %w", id, err)
	}
	emit(ctx, w.events, EventTrigger, def, fireAt)

	var next time.Time
	if IsRepeating(def.Trigger) && w.dispatcher != nil {
		n, ok := w.calc.Next(def.Trigger, fireAt.Add(time.Nanosecond))
		if ok {
			if err := w.dispatcher.Dispatch(ctx, id, n); err != nil {
				return fmt.Errorf("dispatching next occurrence of notification %s: %w", id, err)
			}
			next = n
		}
	}

	slog.Info("notification delivered",
		"id", id,
		"title", def.Title,
		"category", def.Category(),
		"fire_at", fireAt,
		"next_fire_at", next,
		"lag", time.Since(fireAt).Round(time.Millisecond),
		"duration", time.Since(start),
	)
	return nil
}
