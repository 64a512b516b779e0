package handlers

import (
	"net/http"

	"leadmarket/services/payment"
	"leadmarket/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var WebhookReconciler *payment.Reconciler

// StripeWebhookHandler receives payment processor events. The signature is
// checked against the raw body before anything is parsed; reconcile failures
// return 500 so the processor redelivers the event.
func StripeWebhookHandler(c *gin.Context) {
	logger := getLogger(c)

	payload, err := c.GetRawData()
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Unreadable payload", err.Error())
		return
	}

	event, err := payment.VerifyWebhookEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid signature", err.Error())
		return
	}

	if err := WebhookReconciler.HandleEvent(c.Request.Context(), event); err != nil {
		logger.Error("Webhook reconciliation failed",
			zap.String("eventId", event.ID), zap.String("type", string(event.Type)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reconciliation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
