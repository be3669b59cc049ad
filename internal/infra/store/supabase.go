package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"localnotify/internal/domain/notification"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const defaultTable = "local_notifications"

var (
	_ notification.Center         = (*SupabaseCenter)(nil)
	_ notification.DeliveryLedger = (*SupabaseCenter)(nil)
)

// SupabaseCenter persists the notification center in PostgREST tables:
//
//	<table>             one row per notification id with pending/delivered flags
//	<table>_categories  registered action categories
//	<table>_settings    permission and badge
type SupabaseCenter struct {
	client     *supa.Client
	table      string
	categories string
	settings   string
}

// NewSupabaseCenter creates a new Supabase-backed notification center.
func NewSupabaseCenter(supabaseURL, serviceKey, table string) (*SupabaseCenter, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	if table == "" {
		table = defaultTable
	}
	return &SupabaseCenter{
		client:     client,
		table:      table,
		categories: table + "_categories",
		settings:   table + "_settings",
	}, nil
}

// notificationRow is the internal representation for PostgREST insert/update.
type notificationRow struct {
	ID          int64           `json:"id"`
	Pending     bool            `json:"pending"`
	Delivered   bool            `json:"delivered"`
	Definition  json.RawMessage `json:"definition"`
	UpdatedAt   string          `json:"updated_at,omitempty"`
	DeliveredAt *string         `json:"delivered_at,omitempty"`
}

type categoryRow struct {
	ID      string                    `json:"id"`
	Actions []notification.ActionSpec `json:"actions"`
}

type settingRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func idValue(id notification.ID) string {
	return strconv.FormatInt(int64(id), 10)
}

func nowValue() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Submit upserts the row, resetting it to pending and not delivered.
func (s *SupabaseCenter) Submit(ctx context.Context, def *notification.Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding notification %s: %w", def.ID, err)
	}
	row := notificationRow{
		ID:         int64(def.ID),
		Pending:    true,
		Definition: data,
		UpdatedAt:  nowValue(),
	}
	_, _, err = s.client.From(s.table).Insert(row, true, "id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("upserting notification %s: %w", def.ID, err)
	}
	return nil
}

func (s *SupabaseCenter) Withdraw(ctx context.Context, id notification.ID) error {
	_, _, err := s.client.From(s.table).Delete("minimal", "").Eq("id", idValue(id)).Execute()
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

func (s *SupabaseCenter) WithdrawAll(ctx context.Context) error {
	// PostgREST refuses unfiltered deletes.
	_, _, err := s.client.From(s.table).Delete("minimal", "").Gt("id", "0").Execute()
	if err != nil {
		return fmt.Errorf("deleting all notifications: %w", err)
	}
	return nil
}

// ClearDelivered drops a delivered-only row and unflags a still pending one.
func (s *SupabaseCenter) ClearDelivered(ctx context.Context, id notification.ID) error {
	_, _, err := s.client.From(s.table).Delete("minimal", "").
		Eq("id", idValue(id)).
		Eq("pending", "false").
		Execute()
	if err != nil {
		return fmt.Errorf("deleting delivered notification %s: %w", id, err)
	}
	_, _, err = s.client.From(s.table).Update(map[string]any{"delivered": false, "updated_at": nowValue()}, "minimal", "").
		Eq("id", idValue(id)).
		Execute()
	if err != nil {
		return fmt.Errorf("clearing delivered notification %s: %w", id, err)
	}
	return nil
}

func (s *SupabaseCenter) ClearAllDelivered(ctx context.Context) error {
	_, _, err := s.client.From(s.table).Delete("minimal", "").
		Eq("pending", "false").
		Execute()
	if err != nil {
		return fmt.Errorf("deleting delivered notifications: %w", err)
	}
	_, _, err = s.client.From(s.table).Update(map[string]any{"delivered": false, "updated_at": nowValue()}, "minimal", "").
		Eq("delivered", "true").
		Execute()
	if err != nil {
		return fmt.Errorf("clearing delivered notifications: %w", err)
	}
	return nil
}

func (s *SupabaseCenter) ListPending(ctx context.Context) ([]*notification.Definition, error) {
	return s.list("pending")
}

func (s *SupabaseCenter) ListDelivered(ctx context.Context) ([]*notification.Definition, error) {
	return s.list("delivered")
}

func (s *SupabaseCenter) list(flag string) ([]*notification.Definition, error) {
	data, _, err := s.client.From(s.table).
		Select("*", "", false).
		Eq(flag, "true").
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing %s notifications: %w", flag, err)
	}

	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s notifications: %w", flag, err)
	}

	defs := make([]*notification.Definition, len(rows))
	for i, row := range rows {
		var def notification.Definition
		if err := json.Unmarshal(row.Definition, &def); err != nil {
			return nil, fmt.Errorf("parsing notification %d: %w", row.ID, err)
		}
		defs[i] = &def
	}
	return defs, nil
}

// MarkDelivered flags the row delivered; a non-repeating entry also stops
// being pending. The update is conditioned on the row still being pending.
func (s *SupabaseCenter) MarkDelivered(ctx context.Context, id notification.ID, at time.Time) error {
	data, _, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("id", idValue(id)).
		Eq("pending", "true").
		Execute()
	if err != nil {
		return fmt.Errorf("fetching notification %s: %w", id, err)
	}
	var rows []notificationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parsing notification %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil
	}

	var def notification.Definition
	if err := json.Unmarshal(rows[0].Definition, &def); err != nil {
		return fmt.Errorf("parsing notification %s: %w", id, err)
	}

	update := map[string]any{
		"delivered":    true,
		"pending":      notification.IsRepeating(def.Trigger),
		"delivered_at": at.UTC().Format(time.RFC3339Nano),
		"updated_at":   nowValue(),
	}
	_, _, err = s.client.From(s.table).Update(update, "minimal", "").
		Eq("id", idValue(id)).
		Eq("pending", "true").
		Execute()
	if err != nil {
		return fmt.Errorf("marking notification %s delivered: %w", id, err)
	}
	return nil
}

func (s *SupabaseCenter) RegisterCategory(ctx context.Context, c notification.ActionCategory) error {
	row := categoryRow{ID: c.ID, Actions: c.Actions}
	if row.Actions == nil {
		row.Actions = []notification.ActionSpec{}
	}
	_, _, err := s.client.From(s.categories).Insert(row, true, "id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("upserting category %s: %w", c.ID, err)
	}
	return nil
}

func (s *SupabaseCenter) UnregisterCategory(ctx context.Context, id string) error {
	_, _, err := s.client.From(s.categories).Delete("minimal", "").Eq("id", id).Execute()
	if err != nil {
		return fmt.Errorf("deleting category %s: %w", id, err)
	}
	return nil
}

func (s *SupabaseCenter) ListCategories(ctx context.Context) ([]notification.ActionCategory, error) {
	data, _, err := s.client.From(s.categories).
		Select("*", "", false).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	var rows []categoryRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing categories: %w", err)
	}
	out := make([]notification.ActionCategory, len(rows))
	for i, row := range rows {
		out[i] = notification.ActionCategory{ID: row.ID, Actions: row.Actions}
	}
	return out, nil
}

// setting returns the value stored under key, or "" when absent.
func (s *SupabaseCenter) setting(key string) (string, error) {
	data, _, err := s.client.From(s.settings).Select("*", "", false).Eq("key", key).Execute()
	if err != nil {
		return "", fmt.Errorf("fetching setting %s: %w", key, err)
	}
	var rows []settingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("parsing setting %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Value, nil
}

func (s *SupabaseCenter) putSetting(key, value string) error {
	_, _, err := s.client.From(s.settings).Insert(settingRow{Key: key, Value: value}, true, "key", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("upserting setting %s: %w", key, err)
	}
	return nil
}

func (s *SupabaseCenter) HasPermission(ctx context.Context) (bool, error) {
	v, err := s.setting("permission")
	if err != nil {
		return false, err
	}
	return v != permissionDenied, nil
}

// RequestPermission grants the permission unless an operator denied it.
func (s *SupabaseCenter) RequestPermission(ctx context.Context) (bool, error) {
	v, err := s.setting("permission")
	if err != nil {
		return false, err
	}
	if v == permissionDenied {
		return false, nil
	}
	if err := s.putSetting("permission", permissionGranted); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SupabaseCenter) SetBadge(ctx context.Context, n int) error {
	return s.putSetting("badge", strconv.Itoa(n))
}
