package coupons

import (
	"math"
	"time"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

type Result struct {
	Discount float64
	NewTotal float64
}

// Calculate validates a coupon against an order total and computes the
// discount. It is a pure dry-run: usage counters are only consumed inside the
// order-creation transaction (see Repo.ApplyTx).
//
// Checks short-circuit in order: active -> validity window -> usage cap ->
// minimum order amount.
func Calculate(c *models.Coupon, orderTotal float64, now time.Time) (*Result, error) {
	if c == nil {
		return nil, &models.CouponRejectedError{Reason: models.CouponInvalidCode}
	}
	if !c.Active {
		return nil, &models.CouponRejectedError{Code: c.Code, Reason: models.CouponInactive}
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return nil, &models.CouponRejectedError{Code: c.Code, Reason: models.CouponExpired}
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return nil, &models.CouponRejectedError{Code: c.Code, Reason: models.CouponExhausted}
	}
	if c.MinOrderAmount != nil && orderTotal < *c.MinOrderAmount {
		return nil, &models.CouponRejectedError{Code: c.Code, Reason: models.CouponBelowMinimum}
	}

	var discount float64
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = orderTotal * c.DiscountValue / 100
		if c.MaxDiscount != nil && discount > *c.MaxDiscount {
			discount = *c.MaxDiscount
		}
	case models.DiscountFixed:
		discount = math.Min(c.DiscountValue, orderTotal)
	default:
		return nil, &models.CouponRejectedError{Code: c.Code, Reason: models.CouponInvalidCode}
	}

	discount = RoundMoney(discount)
	return &Result{Discount: discount, NewTotal: RoundMoney(orderTotal - discount)}, nil
}

// RoundMoney rounds to the currency's minor unit (2 decimals), half up.
func RoundMoney(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
