package payments

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/config"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// Paymob is the iframe gateway. Checkout takes three calls: authenticate,
// register a merchant order, then mint a short-lived payment key that is bound
// to the hosted iframe URL. The merchant order id is the correlation id; the
// payment key is stored alongside because the iframe cannot be rebuilt
// without it.
type Paymob struct {
	cfg      config.GatewayConfig
	client   *Client
	currency string
}

func NewPaymob(cfg config.GatewayConfig, client *Client, currency string) *Paymob {
	return &Paymob{cfg: cfg, client: client, currency: currency}
}

func (g *Paymob) Method() models.PaymentMethod { return models.MethodPaymob }

func (g *Paymob) Initiate(ctx context.Context, order *models.Order, billing *BillingData) (*InitiationResult, error) {
	var auth struct {
		Token string `json:"token"`
	}
	err := g.client.PostJSON(ctx, g.cfg.BaseURL+"/api/auth/tokens", nil,
		map[string]string{"api_key": g.cfg.SecretKey}, &auth)
	if err != nil {
		return nil, err
	}

	amountCents := int(math.Round(order.GrandTotal() * 100))

	var remote struct {
		ID int64 `json:"id"`
	}
	err = g.client.PostJSON(ctx, g.cfg.BaseURL+"/api/ecommerce/orders", nil, map[string]any{
		"auth_token":        auth.Token,
		"delivery_needed":   false,
		"amount_cents":      amountCents,
		"currency":          g.currency,
		"merchant_order_id": order.OrderNumber,
	}, &remote)
	if err != nil {
		return nil, err
	}
	if remote.ID == 0 {
		return nil, fmt.Errorf("%w: paymob returned no order id", models.ErrGatewayUnavailable)
	}

	billingData := map[string]string{
		"first_name":   "NA",
		"last_name":    "NA",
		"email":        "NA",
		"phone_number": "NA",
	}
	if billing != nil {
		billingData["first_name"] = billing.Name
		billingData["email"] = billing.Email
		billingData["phone_number"] = billing.Phone
	}

	var key struct {
		Token string `json:"token"`
	}
	err = g.client.PostJSON(ctx, g.cfg.BaseURL+"/api/acceptance/payment_keys", nil, map[string]any{
		"auth_token":     auth.Token,
		"amount_cents":   amountCents,
		"currency":       g.currency,
		"order_id":       remote.ID,
		"integration_id": g.cfg.IntegrationID,
		"billing_data":   billingData,
	}, &key)
	if err != nil {
		return nil, err
	}
	if key.Token == "" {
		return nil, fmt.Errorf("%w: paymob returned no payment key", models.ErrGatewayUnavailable)
	}

	return &InitiationResult{
		Method:        models.MethodPaymob,
		CorrelationID: strconv.FormatInt(remote.ID, 10),
		PaymentKey:    key.Token,
		IframeURL: fmt.Sprintf("%s/api/acceptance/iframes/%s?payment_token=%s",
			g.cfg.BaseURL, g.cfg.IframeID, key.Token),
	}, nil
}
