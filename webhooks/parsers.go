package webhooks

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// Event is the gateway-neutral view of a webhook payload: just enough to
// resolve the order and drive the state machine. Everything provider-specific
// stays inside the parser for that provider.
type Event struct {
	ID            string // dedup key
	CorrelationID string // resolves the order via the stored gateway id
	TransactionID string // gateway transaction reference for the payment record
	Payment       models.PaymentStatus
	Order         models.OrderStatus
	Ignore        bool // event type carries no payment outcome
}

type parser func(body []byte) (*Event, error)

var parsers = map[models.PaymentMethod]parser{
	models.MethodPayTabs: parsePayTabs,
	models.MethodPaymob:  parsePaymob,
	models.MethodStripe:  parseStripe,
}

func parsePayTabs(body []byte) (*Event, error) {
	var p struct {
		TranRef       string `json:"tran_ref"`
		CartID        string `json:"cart_id"`
		PaymentResult struct {
			ResponseStatus string `json:"response_status"`
		} `json:"payment_result"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, models.NewValidationError("malformed paytabs payload: %v", err)
	}
	if p.TranRef == "" {
		return nil, models.NewValidationError("paytabs payload missing tran_ref")
	}

	ev := &Event{
		// PayTabs sends no event id; the transaction reference plus the
		// reported status identify a delivery.
		ID:            fmt.Sprintf("%s:%s", p.TranRef, p.PaymentResult.ResponseStatus),
		CorrelationID: p.TranRef,
		TransactionID: p.TranRef,
	}
	switch p.PaymentResult.ResponseStatus {
	case "A": // authorized
		ev.Payment, ev.Order = models.PaymentStatusCompleted, models.OrderStatusProcessing
	case "P", "H": // pending / held for review
		ev.Payment, ev.Order = models.PaymentStatusPending, models.OrderStatusReceived
	case "D", "E", "V": // declined / error / voided
		ev.Payment, ev.Order = models.PaymentStatusFailed, models.OrderStatusCancelled
	default:
		return nil, models.NewValidationError("unknown paytabs response status %q", p.PaymentResult.ResponseStatus)
	}
	return ev, nil
}

func parsePaymob(body []byte) (*Event, error) {
	var p struct {
		Obj struct {
			ID      int64 `json:"id"`
			Success bool  `json:"success"`
			Pending bool  `json:"pending"`
			Order   struct {
				ID int64 `json:"id"`
			} `json:"order"`
		} `json:"obj"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, models.NewValidationError("malformed paymob payload: %v", err)
	}
	if p.Obj.ID == 0 || p.Obj.Order.ID == 0 {
		return nil, models.NewValidationError("paymob payload missing transaction or order id")
	}

	ev := &Event{
		ID:            strconv.FormatInt(p.Obj.ID, 10),
		CorrelationID: strconv.FormatInt(p.Obj.Order.ID, 10),
		TransactionID: strconv.FormatInt(p.Obj.ID, 10),
	}
	switch {
	case p.Obj.Pending:
		ev.Payment, ev.Order = models.PaymentStatusPending, models.OrderStatusReceived
	case p.Obj.Success:
		ev.Payment, ev.Order = models.PaymentStatusCompleted, models.OrderStatusProcessing
	default:
		ev.Payment, ev.Order = models.PaymentStatusFailed, models.OrderStatusCancelled
	}
	return ev, nil
}

func parseStripe(body []byte) (*Event, error) {
	var p struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, models.NewValidationError("malformed stripe payload: %v", err)
	}
	if p.ID == "" || p.Data.Object.ID == "" {
		return nil, models.NewValidationError("stripe payload missing event or intent id")
	}

	ev := &Event{
		ID:            p.ID,
		CorrelationID: p.Data.Object.ID,
		TransactionID: p.Data.Object.ID,
	}
	switch p.Type {
	case "payment_intent.succeeded":
		ev.Payment, ev.Order = models.PaymentStatusCompleted, models.OrderStatusProcessing
	case "payment_intent.processing", "payment_intent.created":
		ev.Payment, ev.Order = models.PaymentStatusPending, models.OrderStatusReceived
	case "payment_intent.payment_failed", "payment_intent.canceled":
		ev.Payment, ev.Order = models.PaymentStatusFailed, models.OrderStatusCancelled
	default:
		// Stripe fans out many event types per intent; only payment
		// outcomes drive the state machine.
		ev.Ignore = true
	}
	return ev, nil
}
