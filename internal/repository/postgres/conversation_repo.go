// internal/repository/postgres/conversation_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"syncbridge-service/internal/domain/conversation"
	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `
	id, conversation_type, platform, livechat_chat_id, ringcentral_session_id,
	agent_id, customer_id, started_at, ended_at, duration_seconds, status,
	created_at, updated_at
`

func scanConversation(row pgx.Row) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(
		&c.ID, &c.ConversationType, &c.Platform, &c.LiveChatChatID, &c.RingCentralSessionID,
		&c.AgentID, &c.CustomerID, &c.StartedAt, &c.EndedAt, &c.DurationSeconds, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	return &c, nil
}

// InsertChatIfAbsent creates an active chat conversation unless one already
// exists for the chat id. The partial unique index on active rows makes this
// safe under concurrent re-delivery; the losing insert falls back to lookup.
func (r *ConversationRepository) InsertChatIfAbsent(ctx context.Context, c *conversation.Conversation) (bool, error) {
	query := `
		INSERT INTO conversations (
			conversation_type, platform, livechat_chat_id, agent_id, customer_id,
			started_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (livechat_chat_id) WHERE status = 'active' DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.ConversationType, c.Platform, c.LiveChatChatID, c.AgentID, c.CustomerID,
		c.StartedAt, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: an active conversation for this chat id already exists.
		existing, lookupErr := r.FindActiveByChatID(ctx, c.LiveChatChatID.String)
		if lookupErr != nil {
			return false, lookupErr
		}
		*c = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert chat conversation: %w", err)
	}

	return true, nil
}

// InsertCallIfAbsent creates an active call conversation unless one already
// exists for the session id.
func (r *ConversationRepository) InsertCallIfAbsent(ctx context.Context, c *conversation.Conversation) (bool, error) {
	query := `
		INSERT INTO conversations (
			conversation_type, platform, ringcentral_session_id, agent_id, customer_id,
			started_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ringcentral_session_id) WHERE status = 'active' DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.ConversationType, c.Platform, c.RingCentralSessionID, c.AgentID, c.CustomerID,
		c.StartedAt, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, lookupErr := r.FindActiveBySessionID(ctx, c.RingCentralSessionID.String)
		if lookupErr != nil {
			return false, lookupErr
		}
		*c = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert call conversation: %w", err)
	}

	return true, nil
}

// FindActiveByChatID retrieves the active conversation for a LiveChat chat id.
func (r *ConversationRepository) FindActiveByChatID(ctx context.Context, chatID string) (*conversation.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE livechat_chat_id = $1 AND status = 'active'`
	return scanConversation(r.db.QueryRow(ctx, query, chatID))
}

// FindActiveBySessionID retrieves the active conversation for a RingCentral session id.
func (r *ConversationRepository) FindActiveBySessionID(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE ringcentral_session_id = $1 AND status = 'active'`
	return scanConversation(r.db.QueryRow(ctx, query, sessionID))
}

// FindByID retrieves a conversation by internal ID.
func (r *ConversationRepository) FindByID(ctx context.Context, id int64) (*conversation.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRow(ctx, query, id))
}

// CloseByChatID ends the active conversation for a chat id, computing the
// whole-second duration. Zero affected rows is a benign no-op for callers.
func (r *ConversationRepository) CloseByChatID(ctx context.Context, chatID string, endedAt time.Time) (int64, *conversation.Conversation, error) {
	return r.close(ctx, "livechat_chat_id", chatID, endedAt)
}

// CloseBySessionID ends the active conversation for a telephony session id.
func (r *ConversationRepository) CloseBySessionID(ctx context.Context, sessionID string, endedAt time.Time) (int64, *conversation.Conversation, error) {
	return r.close(ctx, "ringcentral_session_id", sessionID, endedAt)
}

func (r *ConversationRepository) close(ctx context.Context, column, externalID string, endedAt time.Time) (int64, *conversation.Conversation, error) {
	query := `
		UPDATE conversations
		SET status = 'ended',
		    ended_at = $2,
		    duration_seconds = CAST(EXTRACT(EPOCH FROM ($2::timestamptz - started_at)) AS BIGINT),
		    updated_at = NOW()
		WHERE ` + column + ` = $1 AND status = 'active'
		RETURNING ` + conversationColumns

	conv, err := scanConversation(r.db.QueryRow(ctx, query, externalID, endedAt))
	if errors.Is(err, xerrors.ErrNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("failed to close conversation: %w", err)
	}

	return 1, conv, nil
}

// HasActiveForAgent reports whether the agent owns any active conversation.
func (r *ConversationRepository) HasActiveForAgent(ctx context.Context, agentID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM conversations WHERE agent_id = $1 AND status = 'active')`
	if err := r.db.QueryRow(ctx, query, agentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active conversations: %w", err)
	}
	return exists, nil
}

// List retrieves conversations newest first with pagination.
func (r *ConversationRepository) List(ctx context.Context, limit, offset int) ([]conversation.Conversation, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []conversation.Conversation
	for rows.Next() {
		var c conversation.Conversation
		if err := rows.Scan(
			&c.ID, &c.ConversationType, &c.Platform, &c.LiveChatChatID, &c.RingCentralSessionID,
			&c.AgentID, &c.CustomerID, &c.StartedAt, &c.EndedAt, &c.DurationSeconds, &c.Status,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, c)
	}

	return convs, total, rows.Err()
}

// CountActive returns the number of currently active conversations.
func (r *ConversationRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE status = 'active'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active conversations: %w", err)
	}
	return n, nil
}

// CountStartedSince returns the number of conversations started at or after t.
func (r *ConversationRepository) CountStartedSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE started_at >= $1`, t).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}

// CountAll returns the all-time conversation count.
func (r *ConversationRepository) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}
