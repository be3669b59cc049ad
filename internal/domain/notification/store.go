package notification

import (
	"context"
	"time"
)

// Center is the host notification center. It owns the live set of
// definitions; the engine keeps no copy and re-reads it for every query.
// Implementations live in infra/store/ (memory, Redis, Supabase).
type Center interface {
	// Submit stores def as pending, replacing any entry with the same id in
	// a single step. A replaced entry also leaves the delivered list.
	Submit(ctx context.Context, def *Definition) error

	// Withdraw removes id from both the pending and the delivered list.
	// Unknown ids are not an error.
	Withdraw(ctx context.Context, id ID) error

	// WithdrawAll removes every entry.
	WithdrawAll(ctx context.Context) error

	// ClearDelivered dismisses a delivered entry. Pending repeats are kept.
	ClearDelivered(ctx context.Context, id ID) error

	// ClearAllDelivered dismisses every delivered entry.
	ClearAllDelivered(ctx context.Context) error

	// ListPending returns definitions waiting for (another) delivery.
	ListPending(ctx context.Context) ([]*Definition, error)

	// ListDelivered returns definitions that were delivered and not cleared.
	ListDelivered(ctx context.Context) ([]*Definition, error)

	RegisterCategory(ctx context.Context, category ActionCategory) error
	UnregisterCategory(ctx context.Context, id string) error

	// ListCategories returns the categories registered so far, so a
	// restarted engine can rebuild its registry.
	ListCategories(ctx context.Context) ([]ActionCategory, error)

	HasPermission(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) (bool, error)

	// SetBadge sets the application badge number.
	SetBadge(ctx context.Context, n int) error
}

// DeliveryLedger records deliveries made by the host side worker.
// A non-repeating entry moves from pending to delivered; a repeating entry
// is listed as delivered and stays pending.
type DeliveryLedger interface {
	MarkDelivered(ctx context.Context, id ID, at time.Time) error
}
