// internal/handlers/webhook/ringcentral_handler.go
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	domain "syncbridge-service/internal/domain/webhook"
	xerrors "syncbridge-service/internal/pkg/errors"
	"syncbridge-service/internal/pkg/response"
	"syncbridge-service/internal/pkg/signature"
	"syncbridge-service/internal/platform/ringcentral"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RingCentralHandler struct {
	secret   string
	deduper  Deduper
	pipeline Pipeline
	pool     Enqueuer
	logger   *zap.Logger
}

func NewRingCentralHandler(secret string, deduper Deduper, pipeline Pipeline, pool Enqueuer, logger *zap.Logger) *RingCentralHandler {
	return &RingCentralHandler{
		secret:   secret,
		deduper:  deduper,
		pipeline: pipeline,
		pool:     pool,
		logger:   logger,
	}
}

// Handle admits one RingCentral webhook. The subscription handshake is
// answered before signature verification because handshakes are unsigned.
func (h *RingCentralHandler) Handle(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "failed to read request body", err)
		return
	}

	if token := ringcentral.ValidationToken(raw); token != "" {
		c.Header("Validation-Token", token)
		c.JSON(http.StatusOK, gin.H{"validationToken": token})
		return
	}

	if !signature.Verify(raw, c.GetHeader(ringcentral.SignatureHeader), h.secret) {
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	webhookID, fallback := ringcentral.ExtractWebhookID(raw)
	if fallback {
		h.logger.Warn("ringcentral payload has no uuid, using synthesized id",
			zap.String("webhook_id", webhookID),
		)
	}

	duplicate, rec, err := h.deduper.CheckAndRecord(c.Request.Context(), webhookID, "ringcentral", ringcentral.EventType(raw), raw)
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
		h.logger.Info("retrying unprocessed webhook",
			zap.String("webhook_id", webhookID),
			zap.Int("retry_count", rec.RetryCount),
		)
	}

	ev, err := ringcentral.ParseSession(raw)
	if err != nil {
		if merr := h.deduper.MarkProcessed(c.Request.Context(), webhookID); merr != nil {
			h.logger.Error("failed to mark webhook processed", zap.Error(merr))
		}
		response.ValidationError(c, "invalid webhook payload", err)
		return
	}

	if ev.Kind == domain.KindNone {
		if err := h.deduper.MarkProcessed(c.Request.Context(), webhookID); err != nil {
			h.logger.Error("failed to mark webhook processed", zap.Error(err))
		}
		h.logger.Info("ringcentral webhook ignored",
			zap.String("webhook_id", webhookID),
			zap.String("session_id", ev.SessionID),
		)
		response.Success(c, http.StatusOK, "event ignored", gin.H{"webhook_id": webhookID})
		return
	}

	_, err = h.pool.Enqueue("ringcentral:"+string(ev.Kind), func(ctx context.Context) error {
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
