package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/middleware"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/payments"
)

type PaymentHandler struct {
	service *payments.Service
	logger  *zap.Logger
}

func NewPaymentHandler(service *payments.Service, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

type initiatePaymentRequest struct {
	Method  models.PaymentMethod  `json:"method" binding:"required"`
	Billing *payments.BillingData `json:"billing"`
}

// InitiatePayment starts checkout with the chosen gateway. Re-initiating with
// the same method returns the stored checkout artifact instead of creating a
// second gateway transaction.
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "InitiatePayment")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.String("payment.method", string(req.Method)),
	)

	result, err := h.service.InitiatePayment(ctx, orderID, uid, req.Method, req.Billing)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	middleware.RecordPaymentInitiated(string(req.Method))
	h.logger.Info("Payment initiated",
		zap.Int("order_id", orderID),
		zap.String("method", string(req.Method)),
		zap.String("correlation_id", result.CorrelationID))

	c.JSON(http.StatusOK, result)
}

type submitReceiptRequest struct {
	ReceiptRef string `json:"receipt_ref" binding:"required"`
}

// SubmitReceipt records a bank transfer receipt reference and parks the order
// for admin review.
func (h *PaymentHandler) SubmitReceipt(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "SubmitBankReceipt")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req submitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(attribute.Int("order.id", orderID))

	if err := h.service.SubmitReceipt(ctx, orderID, uid, req.ReceiptRef); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Bank receipt submitted",
		zap.Int("order_id", orderID),
		zap.Int("user_id", uid))

	c.JSON(http.StatusOK, gin.H{"message": "Receipt submitted, awaiting review"})
}

type bankDecisionRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// AdminDecideBankTransfer approves or rejects a submitted bank transfer.
func (h *PaymentHandler) AdminDecideBankTransfer(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "AdminDecideBankTransfer")
	defer span.End()

	aid, ok := adminID(c)
	if !ok {
		return
	}

	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req bankDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.Bool("approved", req.Approve),
	)

	if err := h.service.AdminDecide(ctx, orderID, req.Approve, req.Notes, aid); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Bank transfer decided",
		zap.Int("order_id", orderID),
		zap.Bool("approved", req.Approve),
		zap.Int("admin_id", aid))

	c.JSON(http.StatusOK, gin.H{"message": "Decision recorded", "approved": req.Approve})
}
