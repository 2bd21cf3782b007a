package handler

import (
	"io"

	"github.com/mhkaycey/wallet-service/internal/adapter/gateway/paystack"
	"github.com/mhkaycey/wallet-service/internal/core/ports"
	"github.com/mhkaycey/wallet-service/pkg/apperror"
	"github.com/mhkaycey/wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives gateway notifications.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// Receive handles POST /api/v1/webhooks/paystack. The signature is
// computed over the exact raw bytes, so the body must be read before
// any JSON binding touches it.
func (h *WebhookHandler) Receive(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	ack, err := h.webhookSvc.HandleNotification(c.Request.Context(), rawBody, c.GetHeader(paystack.SignatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"received": true, "duplicate": ack.AlreadyProcessed})
}
