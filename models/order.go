package models

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderStatusReceived        OrderStatus = "received"
	OrderStatusPendingApproval OrderStatus = "pending_admin_approval"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodPayTabs      PaymentMethod = "paytabs"
	MethodPaymob       PaymentMethod = "paymob"
	MethodStripe       PaymentMethod = "stripe"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

type BankTransferStatus string

const (
	BankTransferSubmitted BankTransferStatus = "submitted"
	BankTransferApproved  BankTransferStatus = "approved"
	BankTransferRejected  BankTransferStatus = "rejected"
)

// Order is immutable after creation except for status/payment fields and admin
// annotations. Line prices are frozen at order time.
type Order struct {
	ID             int           `json:"id"`
	OrderNumber    string        `json:"order_number"`
	UserID         int           `json:"user_id"`
	TotalAmount    float64       `json:"total_amount"`
	DiscountAmount float64       `json:"discount_amount"`
	CouponID       *int          `json:"coupon_id,omitempty"`
	CouponCode     string        `json:"coupon_code,omitempty"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	PaymentMethod  PaymentMethod `json:"payment_method,omitempty"`

	// Gateway correlation ids, one per integration.
	PayTabsTranRef   string `json:"paytabs_tran_ref,omitempty"`
	PaymobOrderID    string `json:"paymob_order_id,omitempty"`
	PaymobPaymentKey string `json:"-"`
	StripeIntentID   string `json:"stripe_intent_id,omitempty"`

	// Manual bank-transfer path.
	BankReceiptRef     string             `json:"bank_receipt_ref,omitempty"`
	BankTransferStatus BankTransferStatus `json:"bank_transfer_status,omitempty"`
	ApprovedBy         *int               `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time         `json:"approved_at,omitempty"`

	Notes         string          `json:"notes,omitempty"`
	ScheduledDate *time.Time      `json:"scheduled_date,omitempty"`
	Items         []OrderItem     `json:"items,omitempty"`
	Payment       *Payment        `json:"payment,omitempty"`
	Tracking      []OrderTracking `json:"tracking,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// GrandTotal is the amount actually charged.
func (o *Order) GrandTotal() float64 {
	return o.TotalAmount - o.DiscountAmount
}

type OrderItem struct {
	ID         int     `json:"id"`
	OrderID    int     `json:"order_id"`
	ServiceID  int     `json:"service_id"`
	OptionID   *int    `json:"option_id,omitempty"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
	Notes      string  `json:"notes,omitempty"`
}

type Payment struct {
	ID            int             `json:"id"`
	OrderID       int             `json:"order_id"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	Gateway       PaymentMethod   `json:"gateway"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Status        PaymentStatus   `json:"status"`
	CheckoutRef   string          `json:"-"` // redirect URL / iframe URL / client secret
	RawPayload    json.RawMessage `json:"-"` // last gateway payload, kept for audit
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderTracking rows are append-only; automated transitions and admin actions
// share the same log.
type OrderTracking struct {
	ID          int         `json:"id"`
	OrderID     int         `json:"order_id"`
	Status      OrderStatus `json:"status"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	AdminID     *int        `json:"admin_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type LineItemInput struct {
	ServiceID int    `json:"service_id" binding:"required"`
	OptionID  *int   `json:"option_id"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Notes     string `json:"notes"`
}

type CreateOrderRequest struct {
	Items         []LineItemInput `json:"items" binding:"required,min=1,dive"`
	Notes         string          `json:"notes"`
	ScheduledDate *time.Time      `json:"scheduled_date"`
	CouponCode    string          `json:"coupon_code"`
}

// OrderEvent is published to Kafka for the notification pipeline. Delivery is
// best-effort and never part of the order's correctness contract.
type OrderEvent struct {
	EventType     string        `json:"event_type"` // order_created, order_status_changed, payment_completed, payment_failed
	OrderID       int           `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	UserID        int           `json:"user_id"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Amount        float64       `json:"amount"`
}
