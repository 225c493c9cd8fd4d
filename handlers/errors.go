package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// respondError maps the domain error taxonomy onto HTTP responses. Transient
// failures carry retryable=true so clients know a retry may help.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validationErr *models.ValidationError
		stockErr      *models.StockExceededError
		couponErr     *models.CouponRejectedError
		transitionErr *models.InvalidTransitionError
	)

	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     stockErr.Error(),
			"service":   stockErr.ServiceTitle,
			"remaining": stockErr.Remaining,
		})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  couponErr.Error(),
			"reason": couponErr.Reason,
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	case errors.Is(err, models.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "Payment gateway unavailable",
			"retryable": true,
		})
	case errors.Is(err, models.ErrPersistenceConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Conflicting update, please retry",
			"retryable": true,
		})
	default:
		logger.Error("Internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// userID reads the authenticated user id set by the fronting auth layer.
func userID(c *gin.Context) (int, bool) {
	id, err := atoiHeader(c, "X-User-ID")
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid user identity"})
		return 0, false
	}
	return id, true
}

func atoiHeader(c *gin.Context, name string) (int, error) {
	raw := c.GetHeader(name)
	if raw == "" {
		return 0, errors.New("missing header " + name)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid header " + name)
	}
	return id, nil
}

func adminID(c *gin.Context) (int, bool) {
	id, err := atoiHeader(c, "X-Admin-ID")
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid admin identity"})
		return 0, false
	}
	return id, true
}
