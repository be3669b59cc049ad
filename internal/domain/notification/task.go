package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeDeliverNotification is the asynq task type for delivering one occurrence.
const TaskTypeDeliverNotification = "notification:deliver"

// DeliverPayload is the serialized payload for a delivery task.
type DeliverPayload struct {
	ID     ID        `json:"id"`
	FireAt time.Time `json:"fire_at"`
}

// NewDeliverTask creates a new asynq task delivering id at fireAt.
func NewDeliverTask(id ID, fireAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverPayload{ID: id, FireAt: fireAt.UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDeliverNotification, payload), nil
}

// ParseDeliverPayload deserializes the task payload.
func ParseDeliverPayload(data []byte) (*DeliverPayload, error) {
	var p DeliverPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	if p.ID <= 0 || p.FireAt.IsZero() {
		return nil, fmt.Errorf("incomplete task payload: id=%d fire_at=%v", p.ID, p.FireAt)
	}
	return &p, nil
}

// DeliverTaskID is the asynq task id of one occurrence. It makes dispatching
// the same occurrence twice a no-op.
func DeliverTaskID(id ID, fireAt time.Time) string {
	return fmt.Sprintf("localnotify:%d:%d", id, fireAt.UnixNano())
}
