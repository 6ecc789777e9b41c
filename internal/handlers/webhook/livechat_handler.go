// internal/handlers/webhook/livechat_handler.go
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	domain "syncbridge-service/internal/domain/webhook"
	xerrors "syncbridge-service/internal/pkg/errors"
	"syncbridge-service/internal/pkg/response"
	"syncbridge-service/internal/pkg/signature"
	"syncbridge-service/internal/platform/livechat"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deduper is the idempotency gate handlers admit events through.
type Deduper interface {
	CheckAndRecord(ctx context.Context, webhookID, platform, eventType string, payload []byte) (bool, *domain.Record, error)
	MarkProcessed(ctx context.Context, webhookID string) error
}

// Pipeline processes admitted events off the request path.
type Pipeline interface {
	Process(ctx context.Context, webhookID string, ev domain.Event) error
	ProcessMessage(ctx context.Context, webhookID, chatID, externalMessageID, authorID, text string, sentAt time.Time) error
}

// Enqueuer defers work to the worker pool.
type Enqueuer interface {
	Enqueue(name string, run func(ctx context.Context) error) (string, error)
}

type LiveChatHandler struct {
	secret   string
	deduper  Deduper
	pipeline Pipeline
	pool     Enqueuer
	logger   *zap.Logger
}

func NewLiveChatHandler(secret string, deduper Deduper, pipeline Pipeline, pool Enqueuer, logger *zap.Logger) *LiveChatHandler {
	return &LiveChatHandler{
		secret:   secret,
		deduper:  deduper,
		pipeline: pipeline,
		pool:     pool,
		logger:   logger,
	}
}

// Handle admits one LiveChat webhook: verify, dedup, enqueue, acknowledge.
// The 200 means "accepted", not "processed"; processing happens on the pool.
func (h *LiveChatHandler) Handle(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	if !signature.Verify(raw, c.GetHeader(livechat.SignatureHeader), h.secret) {
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	webhookID := livechat.ExtractWebhookID(raw)
	if webhookID == "" {
		response.ValidationError(c, "webhook_id is required", nil)
		return
	}

	action := livechat.Action(raw)

	duplicate, rec, err := h.deduper.CheckAndRecord(c.Request.Context(), webhookID, "livechat", action, raw)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to record webhook", err)
		return
	}
	if duplicate {
		if rec.Processed {
			response.Success(c, http.StatusOK, "already processed", gin.H{
				"webhook_id": webhookID,
				"processed":  true,
			})
			return
		}
		// The prior attempt never finished, so this redelivery runs the
		// pipeline again. Downstream writes are re-run safe.
		h.logger.Info("retrying unprocessed webhook",
			zap.String("webhook_id", webhookID),
			zap.Int("retry_count", rec.RetryCount),
		)
	}

	switch action {
	case "incoming_chat":
		h.enqueueEvent(c, webhookID, raw, livechat.ParseChatStarted)
	case "chat_deactivated":
		h.enqueueEvent(c, webhookID, raw, livechat.ParseChatEnded)
	case "incoming_event":
		h.enqueueMessage(c, webhookID, raw)
	default:
		h.acknowledgeNoop(c, webhookID, action)
	}
}

func (h *LiveChatHandler) enqueueEvent(c *gin.Context, webhookID string, raw []byte, parse func([]byte) (domain.Event, error)) {
	ev, err := parse(raw)
	if err != nil {
		h.logger.Warn("livechat payload rejected",
			zap.String("webhook_id", webhookID),
			zap.Error(err),
		)
		if merr := h.deduper.MarkProcessed(c.Request.Context(), webhookID); merr != nil {
			h.logger.Error("failed to mark webhook processed", zap.Error(merr))
		}
		response.ValidationError(c, "invalid webhook payload", err)
		return
	}

	_, err = h.pool.Enqueue("livechat:"+string(ev.Kind), func(ctx context.Context) error {
		return h.pipeline.Process(ctx, webhookID, ev)
	})
	if errors.Is(err, xerrors.ErrQueueFull) {
		response.Unavailable(c, "service overloaded, retry later")
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to enqueue webhook", err)
		return
	}

	response.Success(c, http.StatusOK, "webhook accepted", gin.H{"webhook_id": webhookID})
}

func (h *LiveChatHandler) enqueueMessage(c *gin.Context, webhookID string, raw []byte) {
	msg, ok, err := livechat.ParseChatMessage(raw)
	if err != nil {
		if merr := h.deduper.MarkProcessed(c.Request.Context(), webhookID); merr != nil {
			h.logger.Error("failed to mark webhook processed", zap.Error(merr))
		}
		response.ValidationError(c, "invalid webhook payload", err)
		return
	}
	if !ok {
		h.acknowledgeNoop(c, webhookID, "incoming_event")
		return
	}

	_, err = h.pool.Enqueue("livechat:message", func(ctx context.Context) error {
		return h.pipeline.ProcessMessage(ctx, webhookID, msg.ChatID, msg.ExternalMessageID, msg.AuthorID, msg.Text, msg.SentAt)
	})
	if errors.Is(err, xerrors.ErrQueueFull) {
		response.Unavailable(c, "service overloaded, retry later")
		return
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to enqueue webhook", err)
		return
	}

	response.Success(c, http.StatusOK, "webhook accepted", gin.H{"webhook_id": webhookID})
}

// acknowledgeNoop marks an event that needs no work as processed and returns
// 200 so the platform stops redelivering it.
func (h *LiveChatHandler) acknowledgeNoop(c *gin.Context, webhookID, action string) {
	if err := h.deduper.MarkProcessed(c.Request.Context(), webhookID); err != nil {
		h.logger.Error("failed to mark webhook processed", zap.Error(err))
	}

	h.logger.Info("livechat webhook ignored",
		zap.String("webhook_id", webhookID),
		zap.String("action", action),
	)
	response.Success(c, http.StatusOK, "event ignored", gin.H{"webhook_id": webhookID})
}
