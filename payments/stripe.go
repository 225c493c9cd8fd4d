package payments

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/iMDK-cs/SmoothFLow-Store-sub001/config"
	"github.com/iMDK-cs/SmoothFLow-Store-sub001/models"
)

// Stripe is the direct-token gateway: one call creates a payment intent and
// the returned client secret lets the storefront confirm the card on the
// client side. The intent id is the correlation id.
type Stripe struct {
	cfg      config.GatewayConfig
	client   *Client
	currency string
}

func NewStripe(cfg config.GatewayConfig, client *Client, currency string) *Stripe {
	return &Stripe{cfg: cfg, client: client, currency: currency}
}

func (g *Stripe) Method() models.PaymentMethod { return models.MethodStripe }

func (g *Stripe) Initiate(ctx context.Context, order *models.Order, _ *BillingData) (*InitiationResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.Itoa(int(math.Round(order.GrandTotal()*100))))
	form.Set("currency", g.currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	form.Set("metadata[order_number]", order.OrderNumber)

	var resp struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	headers := map[string]string{"Authorization": "Bearer " + g.cfg.SecretKey}
	if err := g.client.PostForm(ctx, g.cfg.BaseURL+"/v1/payment_intents", headers, form, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.ClientSecret == "" {
		return nil, fmt.Errorf("%w: stripe returned no payment intent", models.ErrGatewayUnavailable)
	}

	return &InitiationResult{
		Method:        models.MethodStripe,
		CorrelationID: resp.ID,
		ClientSecret:  resp.ClientSecret,
	}, nil
}
