package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/cart"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

type CartHandler struct {
	manager *cart.Manager
	logger  *zap.Logger
}

func NewCartHandler(manager *cart.Manager, logger *zap.Logger) *CartHandler {
	return &CartHandler{manager: manager, logger: logger}
}

// GetCart returns the caller's cart, empty if none exists yet.
func (h *CartHandler) GetCart(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "GetCart")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("user.id", uid))

	cartModel, err := h.manager.GetCart(ctx, uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, cartModel)
}

// AddItem adds a service (optionally with an option) to the cart, merging
// quantities into an existing line for the same service and option.
func (h *CartHandler) AddItem(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "AddCartItem")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}

	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", uid),
		attribute.Int("service.id", req.ServiceID),
		attribute.Int("quantity", req.Quantity),
	)

	item, err := h.manager.AddItem(ctx, uid, req.ServiceID, req.OptionID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("Cart item added",
		zap.Int("user_id", uid),
		zap.Int("service_id", req.ServiceID),
		zap.Int("quantity", item.Quantity))

	c.JSON(http.StatusCreated, item)
}

// UpdateQuantity sets the quantity of a cart line owned by the caller.
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "UpdateCartItem")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}

	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var req models.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", uid),
		attribute.Int("cart_item.id", itemID),
		attribute.Int("quantity", req.Quantity),
	)

	if err := h.manager.UpdateQuantity(ctx, uid, itemID, req.Quantity); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Quantity updated"})
}

// RemoveItem deletes one cart line owned by the caller.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "RemoveCartItem")
	defer span.End()

	uid, ok := userID(c)
	if !ok {
		return
	}

	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	span.SetAttributes(
		attribute.Int("user.id", uid),
		attribute.Int("cart_item.id", itemID),
	)

	if err := h.manager.RemoveItem(ctx, uid, itemID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}
