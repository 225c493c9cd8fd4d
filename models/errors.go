package models

import (
	"errors"
	"fmt"
)

// Sentinel errors. Handlers map these onto HTTP statuses; callers can test
// with errors.Is / errors.As to tell retryable failures from terminal ones.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrPersistenceConflict = errors.New("persistence conflict")
)

// ValidationError covers malformed, user-correctable input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StockExceededError carries enough detail to render a user-facing message.
type StockExceededError struct {
	ServiceTitle string
	Remaining    int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: %d remaining", e.ServiceTitle, e.Remaining)
}

type CouponRejectReason string

const (
	CouponInvalidCode  CouponRejectReason = "invalid_code"
	CouponInactive     CouponRejectReason = "inactive"
	CouponExpired      CouponRejectReason = "expired"
	CouponBelowMinimum CouponRejectReason = "below_minimum"
	CouponExhausted    CouponRejectReason = "exhausted"
)

type CouponRejectedError struct {
	Code   string
	Reason CouponRejectReason
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon %q rejected: %s", e.Code, e.Reason)
}

// InvalidTransitionError marks a state-machine anomaly. Webhook handling logs
// it and acks anyway so the gateway stops re-delivering.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition %s -> %s", e.From, e.To)
}
