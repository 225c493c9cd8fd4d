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
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/orders"
)

type OrderHandler struct {
	assembler *orders.Assembler
	repo      *orders.Repo
	logger    *zap.Logger
}

func NewOrderHandler(assembler *orders.Assembler, repo *orders.Repo, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{assembler: assembler, repo: repo, logger: logger}
}

// CreateOrder converts the caller's cart into an order in a single
// transaction. The cart is cleared only when the order commits.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", uid),
		attribute.Int("order.items", len(req.Items)),
	)

	order, err := h.assembler.CreateOrder(ctx, uid, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	middleware.RecordOrderCreated()
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	h.logger.Info("Order created",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Float64("total", order.TotalAmount))

	c.JSON(http.StatusCreated, order)
}

// GetOrder returns one order with items, payment and tracking. Regular users
// only see their own orders.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "GetOrder")
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

	span.SetAttributes(
		attribute.Int("user.id", uid),
		attribute.Int("order.id", orderID),
	)

	order, err := h.repo.GetOrder(ctx, orderID, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders returns the caller's orders, newest first.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "ListOrders")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", uid))

	list, err := h.repo.ListOrders(ctx, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

type updateStatusRequest struct {
	Status      models.OrderStatus `json:"status" binding:"required"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
}

// AdminUpdateStatus moves an order along the lifecycle. Transitions outside
// the state machine are rejected with a conflict.
func (h *OrderHandler) AdminUpdateStatus(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "AdminUpdateOrderStatus")
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

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("order.id", orderID),
		attribute.String("order.status", string(req.Status)),
	)

	title := req.Title
	if title == "" {
		title = "Status updated"
	}

	if err := h.repo.AdminUpdateStatus(ctx, orderID, req.Status, title, req.Description, aid); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Order status updated by admin",
		zap.Int("order_id", orderID),
		zap.String("status", string(req.Status)),
		zap.Int("admin_id", aid))

	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "status": req.Status})
}
