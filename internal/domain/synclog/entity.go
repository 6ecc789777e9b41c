// internal/domain/synclog/entity.go
package synclog

import (
	"database/sql"
	"time"
)

// Operation types.
const (
	OpAgentStateSync = "agent_state_sync"
	OpTranscriptSync = "transcript_sync"
	OpCallSummary    = "call_summary_sync"
)

// Outcomes.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Entry is one append-only record of a synchronization attempt against a
// remote platform. Written by the pipeline, read by reporting.
type Entry struct {
	ID int64 `json:"id" db:"id"`

	OperationType  string         `json:"operation_type" db:"operation_type"`
	SourcePlatform string         `json:"source_platform" db:"source_platform"`
	TargetPlatform sql.NullString `json:"target_platform,omitempty" db:"target_platform"`

	Status       string         `json:"status" db:"status"`
	ErrorMessage sql.NullString `json:"error_message,omitempty" db:"error_message"`
	RetryCount   int            `json:"retry_count" db:"retry_count"`

	AgentID        sql.NullInt64 `json:"agent_id,omitempty" db:"agent_id"`
	ConversationID sql.NullInt64 `json:"conversation_id,omitempty" db:"conversation_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
