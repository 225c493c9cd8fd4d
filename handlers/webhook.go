package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/middleware"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/webhooks"
)

type WebhookHandler struct {
	engine *webhooks.Engine
	logger *zap.Logger
}

func NewWebhookHandler(engine *webhooks.Engine, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{engine: engine, logger: logger}
}

var webhookGateways = map[string]models.PaymentMethod{
	"paytabs": models.MethodPayTabs,
	"paymob":  models.MethodPaymob,
	"stripe":  models.MethodStripe,
}

// signatureHeaders names the header each gateway signs its deliveries with.
var signatureHeaders = map[models.PaymentMethod]string{
	models.MethodPayTabs: "Signature",
	models.MethodPaymob:  "Hmac",
	models.MethodStripe:  "Stripe-Signature",
}

// Receive ingests one gateway notification. The raw body is captured before
// any parsing so the signature covers exactly the bytes the gateway sent.
// Duplicates, replays of already-applied states and out-of-order deliveries
// are all acknowledged with 200 so the gateway stops retrying.
func (h *WebhookHandler) Receive(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "ReceiveWebhook")
	defer span.End()

	gateway, ok := webhookGateways[c.Param("gateway")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown gateway"})
		return
	}
	span.SetAttributes(attribute.String("webhook.gateway", string(gateway)))

	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		middleware.RecordWebhookProcessed(string(gateway), "malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty or unreadable body"})
		return
	}

	signature := c.GetHeader(signatureHeaders[gateway])

	outcome, err := h.engine.Reconcile(ctx, gateway, body, signature)
	if err != nil {
		var validationErr *models.ValidationError
		switch {
		case errors.Is(err, models.ErrInvalidSignature):
			middleware.RecordWebhookProcessed(string(gateway), "invalid_signature")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		case errors.Is(err, models.ErrNotFound):
			middleware.RecordWebhookProcessed(string(gateway), "order_not_found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not resolved"})
		case errors.As(err, &validationErr):
			// A signed but unparseable payload will never become valid;
			// answer 4xx so the gateway stops re-delivering it.
			middleware.RecordWebhookProcessed(string(gateway), "malformed")
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		default:
			middleware.RecordWebhookProcessed(string(gateway), "error")
			h.logger.Error("Webhook processing failed",
				zap.String("gateway", string(gateway)),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	result := "applied"
	switch {
	case outcome.Duplicate:
		result = "duplicate"
	case outcome.Anomaly:
		result = "anomaly"
	case outcome.NoOp:
		result = "noop"
	}
	middleware.RecordWebhookProcessed(string(gateway), result)

	span.SetAttributes(
		attribute.Int("order.id", outcome.OrderID),
		attribute.String("webhook.result", result),
	)

	c.JSON(http.StatusOK, gin.H{"received": true, "result": result})
}
