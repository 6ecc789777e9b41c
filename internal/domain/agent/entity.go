// internal/domain/agent/entity.go
package agent

import (
	"database/sql"
	"time"
)

// LiveChat agent statuses.
const (
	StatusAcceptingChats    = "accepting_chats"
	StatusNotAcceptingChats = "not_accepting_chats"
)

// RingCentral presence values.
const (
	PresenceAvailable = "Available"
	PresenceBusy      = "Busy"
	PresenceOffline   = "Offline"
)

// Presence change reasons.
const (
	ReasonAvailable = "available"
	ReasonChatting  = "chatting"
	ReasonOnCall    = "on_call"
	ReasonManual    = "manual"
)

// Agent joins a LiveChat agent id and a RingCentral extension id into one
// internal identity. Both external ids are unique across agents.
type Agent struct {
	ID                     int64          `json:"id" db:"id"`
	LiveChatAgentID        string         `json:"livechat_agent_id" db:"livechat_agent_id"`
	RingCentralExtensionID string         `json:"ringcentral_extension_id" db:"ringcentral_extension_id"`
	Email                  sql.NullString `json:"email,omitempty" db:"email"`
	Name                   sql.NullString `json:"name,omitempty" db:"name"`
	CreatedAt              time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at" db:"updated_at"`
}

// PresenceRecord is one immutable entry in the append-only presence log.
// The latest record by state_changed_at is the agent's current state.
type PresenceRecord struct {
	ID                  int64          `json:"id" db:"id"`
	AgentID             int64          `json:"agent_id" db:"agent_id"`
	LiveChatStatus      string         `json:"livechat_status" db:"livechat_status"`
	RingCentralPresence string         `json:"ringcentral_presence" db:"ringcentral_presence"`
	Reason              sql.NullString `json:"reason,omitempty" db:"reason"`
	StateChangedAt      time.Time      `json:"state_changed_at" db:"state_changed_at"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}
