package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/coupons"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/middleware"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

type CouponHandler struct {
	repo   *coupons.Repo
	logger *zap.Logger
}

func NewCouponHandler(repo *coupons.Repo, logger *zap.Logger) *CouponHandler {
	return &CouponHandler{repo: repo, logger: logger}
}

// ValidateCoupon is a dry run: it reports the discount a code would yield
// against a total without consuming a use. The use is consumed when the order
// is created with the code attached.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	tracer := otel.Tracer("booking-service")
	ctx, span := tracer.Start(c.Request.Context(), "ValidateCoupon")
	defer span.End()

	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("coupon.code", req.Code),
		attribute.Float64("order.total", req.OrderTotal),
	)

	result, err := h.repo.Validate(ctx, req.Code, req.OrderTotal, time.Now())
	if err != nil {
		var rejected *models.CouponRejectedError
		if errors.As(err, &rejected) {
			middleware.RecordCouponValidation(string(rejected.Reason))
			c.JSON(http.StatusOK, gin.H{
				"valid":  false,
				"reason": rejected.Reason,
			})
			return
		}
		middleware.RecordCouponValidation("error")
		respondError(c, h.logger, err)
		return
	}

	middleware.RecordCouponValidation("valid")
	c.JSON(http.StatusOK, models.ValidateCouponResponse{
		Valid:    true,
		Discount: result.Discount,
		NewTotal: result.NewTotal,
	})
}
