package mediahttp

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uniedit/mediagen/internal/adapter/inbound/realtime"
	mediamod "github.com/uniedit/mediagen/internal/module/media"
	apperrors "github.com/uniedit/mediagen/internal/utils/errors"
)

// WebhookSecretHeader carries the shared webhook secret.
const WebhookSecretHeader = "X-Webhook-Secret"

const maxWebhookBody = 64 << 10

// WebhookHandler accepts "media ready" pushes over HTTP.
type WebhookHandler struct {
	notifier realtime.Notifier
	secret   []byte
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler. An empty secret accepts
// unsigned requests.
func NewWebhookHandler(notifier realtime.Notifier, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		notifier: notifier,
		secret:   []byte(secret),
		logger:   logger.Named("media.webhook"),
	}
}

// RegisterRoutes registers webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/media-ready", h.MediaReady)
}

// MediaReady applies a {task_id, media_url, error} push to its task.
func (h *WebhookHandler) MediaReady(c *gin.Context) {
	if len(h.secret) > 0 {
		got := []byte(c.GetHeader(WebhookSecretHeader))
		if subtle.ConstantTimeCompare(got, h.secret) != 1 {
			apperrors.Respond(c, apperrors.Unauthorized(apperrors.CodeUnauthorized, "invalid webhook secret"))
			return
		}
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		apperrors.Respond(c, apperrors.InvalidInput("cannot read body"))
		return
	}

	ev, err := realtime.DecodeReadyEvent(payload)
	if err != nil {
		apperrors.Respond(c, apperrors.InvalidInput(err.Error()))
		return
	}

	task, err := h.notifier.Notify(c.Request.Context(), ev)
	if err != nil {
		h.logger.Warn("webhook event not applied", zap.String("task_id", ev.TaskID), zap.Error(err))
		handleMediaError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, mediamod.NewTaskOutput(task))
}
