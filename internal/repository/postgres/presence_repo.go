// internal/repository/postgres/presence_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"syncbridge-service/internal/domain/agent"
	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PresenceRepository writes and reads the append-only agent_states log.
// Rows are never updated after insert.
type PresenceRepository struct {
	db *pgxpool.Pool
}

func NewPresenceRepository(db *pgxpool.Pool) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Insert appends one presence record.
func (r *PresenceRepository) Insert(ctx context.Context, rec *agent.PresenceRecord) error {
	query := `
		INSERT INTO agent_states (
			agent_id, livechat_status, ringcentral_presence, reason, state_changed_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		rec.AgentID, rec.LiveChatStatus, rec.RingCentralPresence, rec.Reason, rec.StateChangedAt,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert presence record: %w", err)
	}

	return nil
}

// LatestForAgent returns the most recent presence record for an agent.
func (r *PresenceRepository) LatestForAgent(ctx context.Context, agentID int64) (*agent.PresenceRecord, error) {
	query := `
		SELECT id, agent_id, livechat_status, ringcentral_presence, reason,
		       state_changed_at, created_at
		FROM agent_states
		WHERE agent_id = $1
		ORDER BY state_changed_at DESC
		LIMIT 1
	`

	var rec agent.PresenceRecord
	err := r.db.QueryRow(ctx, query, agentID).Scan(
		&rec.ID, &rec.AgentID, &rec.LiveChatStatus, &rec.RingCentralPresence, &rec.Reason,
		&rec.StateChangedAt, &rec.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest presence record: %w", err)
	}

	return &rec, nil
}

// HistoryForAgent returns presence records for an agent, newest first.
func (r *PresenceRepository) HistoryForAgent(ctx context.Context, agentID int64, limit int) ([]agent.PresenceRecord, error) {
	query := `
		SELECT id, agent_id, livechat_status, ringcentral_presence, reason,
		       state_changed_at, created_at
		FROM agent_states
		WHERE agent_id = $1
		ORDER BY state_changed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list presence records: %w", err)
	}
	defer rows.Close()

	var records []agent.PresenceRecord
	for rows.Next() {
		var rec agent.PresenceRecord
		if err := rows.Scan(
			&rec.ID, &rec.AgentID, &rec.LiveChatStatus, &rec.RingCentralPresence, &rec.Reason,
			&rec.StateChangedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan presence record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
