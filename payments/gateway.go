package payments

import (
	"context"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// BillingData is forwarded to gateways that require customer details at
// initiation time.
type BillingData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// InitiationResult is what the storefront needs to continue checkout. Exactly
// one of RedirectURL, IframeURL or ClientSecret is set, depending on the
// gateway's confirmation model.
type InitiationResult struct {
	Method        models.PaymentMethod `json:"method"`
	CorrelationID string               `json:"correlation_id"`
	RedirectURL   string               `json:"redirect_url,omitempty"`
	IframeURL     string               `json:"iframe_url,omitempty"`
	ClientSecret  string               `json:"client_secret,omitempty"`

	// PaymentKey is Paymob's short-lived token, stored next to the order id
	// because the iframe URL cannot be rebuilt without it.
	PaymentKey string `json:"-"`
}

// CheckoutRef is the client-facing artifact persisted for idempotent
// re-initiation.
func (r *InitiationResult) CheckoutRef() string {
	switch {
	case r.RedirectURL != "":
		return r.RedirectURL
	case r.IframeURL != "":
		return r.IframeURL
	default:
		return r.ClientSecret
	}
}

// Gateway is the capability interface over the automated payment providers.
// Implementations are pure HTTP clients; persistence and idempotency live in
// Service so they are written once.
type Gateway interface {
	Method() models.PaymentMethod
	Initiate(ctx context.Context, order *models.Order, billing *BillingData) (*InitiationResult, error)
}

// Registry dispatches a payment method to its gateway implementation.
type Registry struct {
	gateways map[models.PaymentMethod]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[models.PaymentMethod]Gateway)}
	for _, g := range gateways {
		r.gateways[g.Method()] = g
	}
	return r
}

func (r *Registry) Get(method models.PaymentMethod) (Gateway, bool) {
	g, ok := r.gateways[method]
	return g, ok
}
