// internal/repository/postgres/call_record_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"syncbridge-service/internal/domain/conversation"
	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CallRecordRepository struct {
	db *pgxpool.Pool
}

func NewCallRecordRepository(db *pgxpool.Pool) *CallRecordRepository {
	return &CallRecordRepository{db: db}
}

// Upsert inserts the call record for a session or, on re-delivery, updates the
// stored call status only. session_id carries a unique constraint so a session
// never grows a second record.
func (r *CallRecordRepository) Upsert(ctx context.Context, rec *conversation.CallRecord) error {
	query := `
		INSERT INTO call_records (
			conversation_id, session_id, direction, from_number, to_number, call_status
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
			SET call_status = EXCLUDED.call_status,
			    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		rec.ConversationID, rec.SessionID, rec.Direction, rec.FromNumber, rec.ToNumber, rec.CallStatus,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert call record: %w", err)
	}

	return nil
}

// FindByConversation retrieves the call record for a conversation.
func (r *CallRecordRepository) FindByConversation(ctx context.Context, conversationID int64) (*conversation.CallRecord, error) {
	query := `
		SELECT id, conversation_id, session_id, direction, from_number, to_number,
		       call_status, recording_url, recording_duration, created_at, updated_at
		FROM call_records
		WHERE conversation_id = $1
	`

	var rec conversation.CallRecord
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&rec.ID, &rec.ConversationID, &rec.SessionID, &rec.Direction, &rec.FromNumber, &rec.ToNumber,
		&rec.CallStatus, &rec.RecordingURL, &rec.RecordingDuration, &rec.CreatedAt, &rec.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find call record: %w", err)
	}

	return &rec, nil
}

// UpdateStatus sets the call status for a session.
func (r *CallRecordRepository) UpdateStatus(ctx context.Context, sessionID, status string) error {
	query := `UPDATE call_records SET call_status = $2, updated_at = NOW() WHERE session_id = $1`

	result, err := r.db.Exec(ctx, query, sessionID, status)
	if err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
