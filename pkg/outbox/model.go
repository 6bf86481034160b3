package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one row of the outbox collection. IDs are UUIDv7 so id order is
// creation order.
type Event struct {
	ID            string            `json:"id"`
	AggregateType string            `json:"aggregate_type"`
	AggregateID   string            `json:"aggregate_id"`
	Type          string            `json:"type"`
	Payload       []byte            `json:"payload"`
	Headers       map[string]string `json:"headers,omitempty"`
	Traceparent   string            `json:"traceparent,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Status        Status            `json:"status"`
	RelayID       string            `json:"relay_id,omitempty"`
	LeaseUntil    *time.Time        `json:"lease_until,omitempty"`
	RetryCount    int               `json:"retry_count"`
	LastError     *string           `json:"last_error,omitempty"`
}
