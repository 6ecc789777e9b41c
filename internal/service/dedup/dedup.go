// Package dedup is the idempotency ledger gate every inbound webhook passes
// through before anything acts on it.
package dedup

import (
	"context"
	"time"

	"syncbridge-service/internal/domain/webhook"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Ledger is the persistent side of the idempotency check. The database owns
// correctness: webhook_id is unique, so concurrent deliveries of the same
// event produce exactly one row.
type Ledger interface {
	InsertIfAbsent(ctx context.Context, webhookID, platform, eventType string, payload []byte, ttl time.Duration) (bool, *webhook.Record, error)
	FindByWebhookID(ctx context.Context, webhookID string) (*webhook.Record, error)
	MarkProcessed(ctx context.Context, webhookID string) error
	IncrementRetry(ctx context.Context, webhookID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type Service struct {
	ledger Ledger
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewService builds the dedup gate. redisClient may be nil; the redis SETNX
// is only a fast path and its absence (or failure) degrades to DB-only
// checks, never to wrong answers.
func NewService(ledger Ledger, redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// CheckAndRecord atomically looks up and, if new, records a webhook id.
// Returns (true, existing) for duplicates without mutating anything.
func (s *Service) CheckAndRecord(ctx context.Context, webhookID, platform, eventType string, payload []byte) (bool, *webhook.Record, error) {
	if s.redis != nil {
		set, err := s.redis.SetNX(ctx, "webhook:seen:"+webhookID, 1, s.ttl).Result()
		if err != nil {
			s.logger.Warn("redis dedup fast path unavailable", zap.Error(err))
		} else if !set {
			// Seen before per redis; the ledger row is still authoritative
			// for the processed flag.
			rec, err := s.ledger.FindByWebhookID(ctx, webhookID)
			if err == nil {
				s.logger.Info("webhook duplicate detected",
					zap.String("webhook_id", webhookID),
					zap.String("platform", platform),
					zap.Bool("processed", rec.Processed),
				)
				return true, rec, nil
			}
			// Redis remembers an id the database lost (e.g. rolled-back
			// insert). Fall through and let the DB decide.
		}
	}

	created, rec, err := s.ledger.InsertIfAbsent(ctx, webhookID, platform, eventType, payload, s.ttl)
	if err != nil {
		return false, nil, err
	}

	if !created {
		s.logger.Info("webhook duplicate detected",
			zap.String("webhook_id", webhookID),
			zap.String("platform", platform),
			zap.Bool("processed", rec.Processed),
		)
		return true, rec, nil
	}

	s.logger.Info("webhook recorded",
		zap.String("webhook_id", webhookID),
		zap.String("platform", platform),
		zap.String("event_type", eventType),
	)
	return false, rec, nil
}

// MarkProcessed flags a webhook as fully processed. Idempotent.
func (s *Service) MarkProcessed(ctx context.Context, webhookID string) error {
	if err := s.ledger.MarkProcessed(ctx, webhookID); err != nil {
		return err
	}
	s.logger.Info("webhook marked processed", zap.String("webhook_id", webhookID))
	return nil
}

// IncrementRetry bumps the retry counter for observability. It never
// triggers retries itself.
func (s *Service) IncrementRetry(ctx context.Context, webhookID string) error {
	return s.ledger.IncrementRetry(ctx, webhookID)
}

// PurgeExpired garbage-collects ledger rows past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) error {
	n, err := s.ledger.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("expired webhook events purged", zap.Int64("count", n))
	}
	return nil
}
