// Package stripe wraps the hosted-checkout payment gateway.
package stripe

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// Client creates hosted checkout sessions for the storefront.
type Client struct {
	client *stripe.Client
}

func NewClient(secretKey string) *Client {
	return &Client{
		client: stripe.NewClient(secretKey),
	}
}

// LineItem is one cart line as presented on the hosted payment page. Prices
// are integer minor units.
type LineItem struct {
	Name           string
	ImageURL       string
	UnitPricePence int64
	Quantity       int64
}

// CheckoutSessionParams holds parameters for creating a checkout session.
// BrandID and OrderID round-trip through Stripe metadata so the webhook can be
// matched back to the originating order.
type CheckoutSessionParams struct {
	BrandID       string
	OrderID       uuid.UUID
	Currency      string
	Items         []LineItem
	ShippingPence int64
	TaxPence      int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CreateCheckoutSession creates a hosted checkout session for an order.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if len(params.Items) == 0 {
		return nil, fmt.Errorf("at least one line item is required")
	}

	currency := params.Currency
	if currency == "" {
		currency = "gbp"
	}

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(params.Items))
	for _, item := range params.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		productData := &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitPricePence),
			},
			Quantity: stripe.Int64(quantity),
		})
	}

	// Tax is charged as its own line so the session total always matches the
	// order total, whatever the configured tax strategy produces.
	if params.TaxPence > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String("VAT"),
				},
				UnitAmount: stripe.Int64(params.TaxPence),
			},
			Quantity: stripe.Int64(1),
		})
	}

	sessionParams := &stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(params.SuccessURL),
		CancelURL:          stripe.String(params.CancelURL),
		LineItems:          lineItems,
		ShippingOptions: []*stripe.CheckoutSessionCreateShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionCreateShippingOptionShippingRateDataParams{
					DisplayName: stripe.String("Shipping"),
					Type:        stripe.String(string(stripe.ShippingRateTypeFixedAmount)),
					FixedAmount: &stripe.CheckoutSessionCreateShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(params.ShippingPence),
						Currency: stripe.String(currency),
					},
				},
			},
		},
		// The shipping address is captured at checkout and snapshotted on the
		// order, so Stripe is not asked to collect it again.
		// Customer email is optional. Only send if present to avoid Stripe validation errors.
		CustomerEmail: stripe.String(params.CustomerEmail),
		Metadata: map[string]string{
			"brand_id": params.BrandID,
			"order_id": params.OrderID.String(),
		},
	}

	if params.CustomerEmail == "" {
		sessionParams.CustomerEmail = nil
	}

	sess, err := c.client.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess, nil
}
