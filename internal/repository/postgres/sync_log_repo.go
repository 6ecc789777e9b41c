// internal/repository/postgres/sync_log_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"syncbridge-service/internal/domain/synclog"
	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SyncLogRepository struct {
	db *pgxpool.Pool
}

func NewSyncLogRepository(db *pgxpool.Pool) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Insert appends one sync attempt record.
func (r *SyncLogRepository) Insert(ctx context.Context, e *synclog.Entry) error {
	query := `
		INSERT INTO sync_logs (
			operation_type, source_platform, target_platform, status,
			error_message, retry_count, agent_id, conversation_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		e.OperationType, e.SourcePlatform, e.TargetPlatform, e.Status,
		e.ErrorMessage, e.RetryCount, e.AgentID, e.ConversationID,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert sync log: %w", err)
	}

	return nil
}

// List retrieves sync log entries newest first with pagination.
func (r *SyncLogRepository) List(ctx context.Context, limit, offset int) ([]synclog.Entry, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sync_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync logs: %w", err)
	}

	query := `
		SELECT id, operation_type, source_platform, target_platform, status,
		       error_message, retry_count, agent_id, conversation_id, created_at
		FROM sync_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync logs: %w", err)
	}
	defer rows.Close()

	var entries []synclog.Entry
	for rows.Next() {
		var e synclog.Entry
		if err := rows.Scan(
			&e.ID, &e.OperationType, &e.SourcePlatform, &e.TargetPlatform, &e.Status,
			&e.ErrorMessage, &e.RetryCount, &e.AgentID, &e.ConversationID, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan sync log: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, total, rows.Err()
}

// CountByStatus returns the number of entries with the given status.
func (r *SyncLogRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sync_logs WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync logs: %w", err)
	}
	return n, nil
}

// CountAll returns the all-time sync log count.
func (r *SyncLogRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sync_logs`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync logs: %w", err)
	}
	return n, nil
}

// CountSince returns entries created at or after t.
func (r *SyncLogRepository) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sync_logs WHERE created_at >= $1`, t).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync logs: %w", err)
	}
	return n, nil
}

// Latest returns the most recent entry.
func (r *SyncLogRepository) Latest(ctx context.Context) (*synclog.Entry, error) {
	query := `
		SELECT id, operation_type, source_platform, target_platform, status,
		       error_message, retry_count, agent_id, conversation_id, created_at
		FROM sync_logs
		ORDER BY created_at DESC
		LIMIT 1
	`

	var e synclog.Entry
	err := r.db.QueryRow(ctx, query).Scan(
		&e.ID, &e.OperationType, &e.SourcePlatform, &e.TargetPlatform, &e.Status,
		&e.ErrorMessage, &e.RetryCount, &e.AgentID, &e.ConversationID, &e.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest sync log: %w", err)
	}

	return &e, nil
}
