package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gotyolo/booking-service/internal/models"
	"github.com/gotyolo/booking-service/internal/services"
)

// WebhookHandler handles payment provider notifications
type WebhookHandler struct {
	webhookService *services.WebhookService
	logger         *logrus.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhookService *services.WebhookService, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, logger: logger}
}

// PaymentWebhook handles POST /api/v1/payments/webhook.
//
// The provider retries until it receives 200, so this endpoint acknowledges
// unconditionally — including unreadable bodies. Processing is idempotent;
// anything that went wrong internally is logged and settled on redelivery or
// by the expiry sweeper.
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	var req models.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Unparseable webhook payload, acknowledging anyway")
		c.JSON(http.StatusOK, gin.H{"acknowledged": true})
		return
	}

	h.webhookService.ProcessWebhook(&req)

	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}
