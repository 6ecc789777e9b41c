// internal/domain/conversation/entity.go
package conversation

import (
	"database/sql"
	"time"
)

// Conversation types.
const (
	TypeChat = "chat"
	TypeCall = "call"
)

// Originating platforms.
const (
	PlatformLiveChat    = "livechat"
	PlatformRingCentral = "ringcentral"
)

// Conversation statuses.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
	StatusFailed = "failed"
)

// Call directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message sender roles.
const (
	SenderAgent    = "agent"
	SenderCustomer = "customer"
	SenderSystem   = "system"
)

// Conversation is one chat or call session. Exactly one of LiveChatChatID /
// RingCentralSessionID is populated depending on the type. At most one active
// conversation exists per external session id.
type Conversation struct {
	ID int64 `json:"id" db:"id"`

	ConversationType string `json:"conversation_type" db:"conversation_type"`
	Platform         string `json:"platform" db:"platform"`

	LiveChatChatID       sql.NullString `json:"livechat_chat_id,omitempty" db:"livechat_chat_id"`
	RingCentralSessionID sql.NullString `json:"ringcentral_session_id,omitempty" db:"ringcentral_session_id"`

	AgentID    int64         `json:"agent_id" db:"agent_id"`
	CustomerID sql.NullInt64 `json:"customer_id,omitempty" db:"customer_id"`

	StartedAt       time.Time     `json:"started_at" db:"started_at"`
	EndedAt         sql.NullTime  `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds sql.NullInt64 `json:"duration_seconds,omitempty" db:"duration_seconds"`

	Status string `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ExternalID returns whichever platform session id is populated.
func (c *Conversation) ExternalID() string {
	if c.LiveChatChatID.Valid {
		return c.LiveChatChatID.String
	}
	return c.RingCentralSessionID.String
}

// Message belongs to exactly one conversation, ordered by sent_at.
// Append-only.
type Message struct {
	ID             int64 `json:"id" db:"id"`
	ConversationID int64 `json:"conversation_id" db:"conversation_id"`

	ExternalMessageID sql.NullString `json:"external_message_id,omitempty" db:"external_message_id"`
	SenderType        string         `json:"sender_type" db:"sender_type"`
	SenderID          sql.NullString `json:"sender_id,omitempty" db:"sender_id"`

	MessageText string `json:"message_text" db:"message_text"`
	MessageType string `json:"message_type" db:"message_type"`

	SyncedToLiveChat    bool `json:"synced_to_livechat" db:"synced_to_livechat"`
	SyncedToRingCentral bool `json:"synced_to_ringcentral" db:"synced_to_ringcentral"`

	SentAt    time.Time `json:"sent_at" db:"sent_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CallRecord is the 1:1 telephony extension of a call-type conversation.
type CallRecord struct {
	ID             int64 `json:"id" db:"id"`
	ConversationID int64 `json:"conversation_id" db:"conversation_id"`

	SessionID  string         `json:"session_id" db:"session_id"`
	Direction  string         `json:"direction" db:"direction"`
	FromNumber sql.NullString `json:"from_number,omitempty" db:"from_number"`
	ToNumber   sql.NullString `json:"to_number,omitempty" db:"to_number"`

	CallStatus string `json:"call_status" db:"call_status"`

	RecordingURL      sql.NullString `json:"recording_url,omitempty" db:"recording_url"`
	RecordingDuration sql.NullInt64  `json:"recording_duration,omitempty" db:"recording_duration"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
