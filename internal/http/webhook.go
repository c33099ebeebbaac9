package http

import (
	"crypto/subtle"
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	"github.com/open-builders/exmatrikulator-bot/internal/platform/telegram"
)

const (
	WebhookPath         = "/telegram/webhook"
	WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// WebhookHandler accepts updates pushed by Telegram and forwards them as events.
type WebhookHandler struct {
	secret string
	out    chan<- chat.Event
}

func NewWebhookHandler(secret string, out chan<- chat.Event) *WebhookHandler {
	return &WebhookHandler{secret: secret, out: out}
}

func (h *WebhookHandler) Register(r gin.IRoutes) {
	r.POST(WebhookPath, h.receive)
}

func (h *WebhookHandler) receive(c *gin.Context) {
	got := c.GetHeader(WebhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		c.AbortWithStatusJSON(nethttp.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		abortWithError(c, apperrors.NewValidationError("update", err.Error()))
		return
	}

	// Telegram retries until it gets a 2xx, so block rather than drop.
	select {
	case h.out <- u.Event():
		c.Status(nethttp.StatusOK)
	case <-c.Request.Context().Done():
		c.AbortWithStatus(nethttp.StatusServiceUnavailable)
	}
}
