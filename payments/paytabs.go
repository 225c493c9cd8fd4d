package payments

import (
	"context"
	"fmt"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/config"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// PayTabs is the hosted-checkout gateway: one payment request returns a
// transaction reference plus a redirect URL where the customer completes
// payment. The tran_ref is the correlation id for webhooks.
type PayTabs struct {
	cfg      config.GatewayConfig
	client   *Client
	currency string
}

func NewPayTabs(cfg config.GatewayConfig, client *Client, currency string) *PayTabs {
	return &PayTabs{cfg: cfg, client: client, currency: currency}
}

func (g *PayTabs) Method() models.PaymentMethod { return models.MethodPayTabs }

func (g *PayTabs) Initiate(ctx context.Context, order *models.Order, billing *BillingData) (*InitiationResult, error) {
	body := map[string]any{
		"profile_id":       g.cfg.ProfileID,
		"tran_type":        "sale",
		"tran_class":       "ecom",
		"cart_id":          order.OrderNumber,
		"cart_currency":    g.currency,
		"cart_amount":      order.GrandTotal(),
		"cart_description": fmt.Sprintf("Order %s", order.OrderNumber),
	}
	if billing != nil {
		body["customer_details"] = map[string]string{
			"name":  billing.Name,
			"email": billing.Email,
			"phone": billing.Phone,
		}
	}

	var resp struct {
		TranRef     string `json:"tran_ref"`
		RedirectURL string `json:"redirect_url"`
	}
	headers := map[string]string{"Authorization": g.cfg.SecretKey}
	if err := g.client.PostJSON(ctx, g.cfg.BaseURL+"/payment/request", headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.TranRef == "" || resp.RedirectURL == "" {
		return nil, fmt.Errorf("%w: paytabs returned no transaction reference", models.ErrGatewayUnavailable)
	}

	return &InitiationResult{
		Method:        models.MethodPayTabs,
		CorrelationID: resp.TranRef,
		RedirectURL:   resp.RedirectURL,
	}, nil
}
