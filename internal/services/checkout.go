package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/lawsonsstudio/storefront/internal/catalog"
	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/logging"
	"github.com/lawsonsstudio/storefront/internal/observability"
	"github.com/lawsonsstudio/storefront/internal/stripe"
)

const maxLineQuantity = 50

type variantReader interface {
	GetActiveByIDs(ctx context.Context, variantIDs []uuid.UUID) ([]*db.Variant, error)
}

type checkoutOrderStore interface {
	CreateWithItems(ctx context.Context, order *db.Order, items []*db.OrderItem) error
	SetCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
}

type checkoutGateway interface {
	CreateCheckoutSession(ctx context.Context, params stripe.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
}

// CheckoutService validates a cart against the variant catalog, persists the
// pending order, and requests a hosted payment session.
type CheckoutService struct {
	variants variantReader
	orders   checkoutOrderStore
	gateway  checkoutGateway
	shipping catalog.ShippingCalculator
	tax      catalog.TaxCalculator
	brandID  string
	baseURL  string
	logger   *slog.Logger
}

func NewCheckoutService(
	variants variantReader,
	orders checkoutOrderStore,
	gateway checkoutGateway,
	shipping catalog.ShippingCalculator,
	tax catalog.TaxCalculator,
	brandID string,
	baseURL string,
	logger *slog.Logger,
) *CheckoutService {
	if shipping == nil {
		shipping = catalog.FreeShipping{}
	}
	if tax == nil {
		tax = catalog.ZeroTax{}
	}

	return &CheckoutService{
		variants: variants,
		orders:   orders,
		gateway:  gateway,
		shipping: shipping,
		tax:      tax,
		brandID:  brandID,
		baseURL:  baseURL,
		logger:   logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CartLine struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=50"`
}

type CustomerInput struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

type AddressInput struct {
	Line1    string `json:"line1" validate:"required"`
	Line2    string `json:"line2"`
	City     string `json:"city" validate:"required"`
	County   string `json:"county"`
	Postcode string `json:"postcode" validate:"required"`
	Country  string `json:"country" validate:"required,iso3166_1_alpha2"`
}

type CheckoutInput struct {
	Items           []CartLine    `json:"items" validate:"required,min=1,max=50,dive"`
	Customer        *CustomerInput `json:"customer" validate:"required"`
	ShippingAddress *AddressInput  `json:"shipping_address" validate:"required"`
	BillingAddress  *AddressInput  `json:"billing_address"`
}

type CheckoutResult struct {
	OrderID     uuid.UUID `json:"order_id"`
	RedirectURL string    `json:"redirect_url"`
}

var checkoutValidator = validator.New()

// CreateCheckoutSession runs the full checkout flow. Prices come exclusively
// from the variant store; nothing monetary in the input is trusted.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.create_session",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("CreateCheckoutSession"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.Count("checkout.received", 1)
	recordFailure := func(reason string) {
		meter.Count("checkout.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	if err := checkoutValidator.Struct(input); err != nil {
		recordFailure("validation")
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	lines, err := mergeCartLines(input.Items)
	if err != nil {
		recordFailure("validation")
		return nil, err
	}

	variantIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		variantIDs = append(variantIDs, line.VariantID)
	}

	variants, err := s.variants.GetActiveByIDs(ctx, variantIDs)
	if err != nil {
		recordFailure("variant_lookup")
		return nil, fmt.Errorf("failed to look up variants: %w", err)
	}

	byID := make(map[uuid.UUID]*db.Variant, len(variants))
	for _, variant := range variants {
		byID[variant.ID] = variant
	}

	// Out-of-stock variants are filtered at the store, but the reader is an
	// interface; re-check here so the rule holds regardless of the backend.
	var missing []uuid.UUID
	for _, line := range lines {
		if variant, ok := byID[line.VariantID]; !ok || !variant.InStock {
			missing = append(missing, line.VariantID)
		}
	}
	if len(missing) > 0 {
		recordFailure("invalid_cart")
		return nil, &InvalidCartError{MissingVariantIDs: missing}
	}

	currency := ""
	subtotalPence := 0
	items := make([]*db.OrderItem, 0, len(lines))
	for _, line := range lines {
		variant := byID[line.VariantID]
		lineTotal := variant.PricePence * line.Quantity
		subtotalPence += lineTotal
		if currency == "" {
			currency = variant.Currency
		} else if currency != variant.Currency {
			recordFailure("mixed_currency")
			return nil, fmt.Errorf("%w: cart mixes currencies %s and %s", ErrValidation, currency, variant.Currency)
		}

		items = append(items, &db.OrderItem{
			ProductID:            variant.ProductID,
			VariantID:            variant.ID,
			ProductName:          variant.ProductName,
			VariantName:          variant.Name,
			SKU:                  variant.SKU,
			FulfillmentProductID: variant.FulfillmentProductID,
			FulfillmentVariantID: variant.FulfillmentVariantID,
			UnitPricePence:       variant.PricePence,
			Quantity:             line.Quantity,
			LineTotalPence:       lineTotal,
			Currency:             variant.Currency,
		})
	}

	shippingPence := s.shipping.ShippingPence(subtotalPence, input.ShippingAddress.Country)
	taxPence := s.tax.TaxPence(subtotalPence, shippingPence, input.ShippingAddress.Country)

	order := &db.Order{
		Status:          db.StatusPendingPayment,
		CustomerEmail:   input.Customer.Email,
		CustomerName:    input.Customer.Name,
		CustomerPhone:   input.Customer.Phone,
		ShippingAddress: addressFromInput(input.ShippingAddress),
		BillingAddress:  addressFromInput(input.BillingAddress),
		SubtotalPence:   subtotalPence,
		ShippingPence:   shippingPence,
		TaxPence:        taxPence,
		TotalPence:      subtotalPence + shippingPence + taxPence,
		Currency:        currency,
	}

	if err := s.orders.CreateWithItems(ctx, order, items); err != nil {
		recordFailure("persist")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	meter.Count("order.created", 1)

	sessionItems := make([]stripe.LineItem, 0, len(items))
	for _, item := range items {
		variant := byID[item.VariantID]
		sessionItems = append(sessionItems, stripe.LineItem{
			Name:           fmt.Sprintf("%s - %s", item.ProductName, item.VariantName),
			ImageURL:       variant.ProductImageURL,
			UnitPricePence: int64(item.UnitPricePence),
			Quantity:       int64(item.Quantity),
		})
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		BrandID:       s.brandID,
		OrderID:       order.ID,
		Currency:      currency,
		Items:         sessionItems,
		ShippingPence: int64(shippingPence),
		TaxPence:      int64(taxPence),
		CustomerEmail: input.Customer.Email,
		SuccessURL:    s.baseURL + "/checkout/complete?order=" + order.ID.String(),
		CancelURL:     s.baseURL + "/checkout/cancelled?order=" + order.ID.String(),
	})
	if err != nil {
		recordFailure("gateway")
		// The pending order stays behind as-is; a reconciliation job or an
		// operator cancels stale pendings.
		logger.Error("failed to create checkout session", "error", err, "order_id", order.ID)
		return nil, fmt.Errorf("%w: %s", ErrPaymentGateway, err)
	}

	if err := s.orders.SetCheckoutSession(ctx, order.ID, session.ID); err != nil {
		recordFailure("session_persist")
		return nil, fmt.Errorf("failed to record checkout session id: %w", err)
	}

	meter.Count("checkout.session.created", 1)
	logger.Info("checkout session created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total_pence", order.TotalPence,
		"session_id", session.ID,
	)

	return &CheckoutResult{
		OrderID:     order.ID,
		RedirectURL: session.URL,
	}, nil
}

// mergeCartLines collapses duplicate variant lines and enforces the quantity
// cap on the merged result.
func mergeCartLines(lines []CartLine) ([]CartLine, error) {
	merged := make([]CartLine, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if pos, ok := index[line.VariantID]; ok {
			merged[pos].Quantity += line.Quantity
			if merged[pos].Quantity > maxLineQuantity {
				return nil, fmt.Errorf("%w: quantity for variant %s exceeds %d", ErrValidation, line.VariantID, maxLineQuantity)
			}
			continue
		}
		index[line.VariantID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func addressFromInput(input *AddressInput) *db.Address {
	if input == nil {
		return nil
	}
	return &db.Address{
		Line1:    input.Line1,
		Line2:    input.Line2,
		City:     input.City,
		County:   input.County,
		Postcode: input.Postcode,
		Country:  input.Country,
	}
}
