// internal/repository/postgres/message_repo.go
package postgres

import (
	"context"
	"fmt"

	"syncbridge-service/internal/domain/conversation"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert appends one message to a conversation.
func (r *MessageRepository) Insert(ctx context.Context, m *conversation.Message) error {
	query := `
		INSERT INTO messages (
			conversation_id, external_message_id, sender_type, sender_id,
			message_text, message_type, synced_to_livechat, synced_to_ringcentral, sent_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		m.ConversationID, m.ExternalMessageID, m.SenderType, m.SenderID,
		m.MessageText, m.MessageType, m.SyncedToLiveChat, m.SyncedToRingCentral, m.SentAt,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListByConversation retrieves messages for a conversation ordered by sent time.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID int64) ([]conversation.Message, error) {
	query := `
		SELECT id, conversation_id, external_message_id, sender_type, sender_id,
		       message_text, message_type, synced_to_livechat, synced_to_ringcentral,
		       sent_at, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.ExternalMessageID, &m.SenderType, &m.SenderID,
			&m.MessageText, &m.MessageType, &m.SyncedToLiveChat, &m.SyncedToRingCentral,
			&m.SentAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// CountByConversation returns the number of messages in a conversation.
func (r *MessageRepository) CountByConversation(ctx context.Context, conversationID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}
