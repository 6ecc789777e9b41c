// internal/repository/postgres/webhook_event_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"syncbridge-service/internal/domain/webhook"
	xerrors "syncbridge-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookEventRepository persists the idempotency ledger. webhook_id carries a
// unique constraint; a concurrent insert for the same id loses the race at the
// database and falls back to lookup instead of creating a second row.
type WebhookEventRepository struct {
	db *pgxpool.Pool
}

func NewWebhookEventRepository(db *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

const webhookEventColumns = `
	id, webhook_id, platform, event_type, processed, retry_count, payload_json,
	received_at, processed_at, expires_at
`

func scanWebhookEvent(row pgx.Row) (*webhook.Record, error) {
	var rec webhook.Record
	err := row.Scan(
		&rec.ID, &rec.WebhookID, &rec.Platform, &rec.EventType, &rec.Processed, &rec.RetryCount, &rec.Payload,
		&rec.ReceivedAt, &rec.ProcessedAt, &rec.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan webhook event: %w", err)
	}
	return &rec, nil
}

// InsertIfAbsent records a webhook id atomically. It returns created=false
// with the existing row when the id has been seen before.
func (r *WebhookEventRepository) InsertIfAbsent(ctx context.Context, webhookID, platform, eventType string, payload []byte, ttl time.Duration) (bool, *webhook.Record, error) {
	query := `
		INSERT INTO webhook_events (
			webhook_id, platform, event_type, payload_json, processed, expires_at
		) VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (webhook_id) DO NOTHING
		RETURNING ` + webhookEventColumns

	expiresAt := time.Now().UTC().Add(ttl)
	rec, err := scanWebhookEvent(r.db.QueryRow(ctx, query, webhookID, platform, eventType, payload, expiresAt))
	if errors.Is(err, xerrors.ErrNotFound) {
		existing, lookupErr := r.FindByWebhookID(ctx, webhookID)
		if lookupErr != nil {
			return false, nil, lookupErr
		}
		return false, existing, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return true, rec, nil
}

// FindByWebhookID retrieves a ledger entry.
func (r *WebhookEventRepository) FindByWebhookID(ctx context.Context, webhookID string) (*webhook.Record, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE webhook_id = $1`
	return scanWebhookEvent(r.db.QueryRow(ctx, query, webhookID))
}

// MarkProcessed sets the processed flag. Idempotent.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, webhookID string) error {
	query := `
		UPDATE webhook_events
		SET processed = TRUE, processed_at = COALESCE(processed_at, NOW())
		WHERE webhook_id = $1
	`

	if _, err := r.db.Exec(ctx, query, webhookID); err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry counter. Observability only.
func (r *WebhookEventRepository) IncrementRetry(ctx context.Context, webhookID string) error {
	query := `UPDATE webhook_events SET retry_count = retry_count + 1 WHERE webhook_id = $1`

	if _, err := r.db.Exec(ctx, query, webhookID); err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	return nil
}

// DeleteExpired garbage-collects ledger entries past their expiry.
func (r *WebhookEventRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM webhook_events WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired webhook events: %w", err)
	}
	return result.RowsAffected(), nil
}
