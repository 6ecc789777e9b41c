// internal/domain/webhook/entity.go
package webhook

import (
	"database/sql"
	"time"
)

// Kind classifies a normalized platform event.
type Kind string

const (
	KindChatStarted Kind = "chat_started"
	KindChatEnded   Kind = "chat_ended"
	KindCallStarted Kind = "call_started"
	KindCallEnded   Kind = "call_ended"

	// KindNone marks payloads that carry nothing actionable (no internal call
	// leg, unclassified status). These acknowledge with 200 and do nothing.
	KindNone Kind = ""
)

// Event is the canonical form every platform payload is normalized into
// before it reaches the pipeline.
type Event struct {
	Kind     Kind
	Platform string

	// AgentKey is the platform-side agent identifier: the LiveChat agent id
	// or the RingCentral extension id.
	AgentKey string

	// Chat fields
	ChatID             string
	LiveChatCustomerID string
	CustomerEmail      string
	CustomerName       string

	// Call fields
	SessionID  string
	Direction  string
	FromNumber string
	ToNumber   string
	CallStatus string

	OccurredAt time.Time
}

// Record is one idempotency-ledger entry, keyed by the platform-supplied
// webhook id. Once processed it is never reprocessed.
type Record struct {
	ID int64 `json:"id" db:"id"`

	WebhookID string `json:"webhook_id" db:"webhook_id"`
	Platform  string `json:"platform" db:"platform"`
	EventType string `json:"event_type" db:"event_type"`

	Processed  bool `json:"processed" db:"processed"`
	RetryCount int  `json:"retry_count" db:"retry_count"`

	Payload []byte `json:"-" db:"payload_json"`

	ReceivedAt  time.Time    `json:"received_at" db:"received_at"`
	ProcessedAt sql.NullTime `json:"processed_at,omitempty" db:"processed_at"`
	ExpiresAt   time.Time    `json:"expires_at" db:"expires_at"`
}
