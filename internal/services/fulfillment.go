package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/fulfillment"
	"github.com/lawsonsstudio/storefront/internal/logging"
	"github.com/lawsonsstudio/storefront/internal/observability"
)

type fulfillmentGateway interface {
	CreateOrder(ctx context.Context, req fulfillment.OrderRequest) (*fulfillment.OrderResponse, error)
}

type fulfillmentOrderStore interface {
	MarkInProduction(ctx context.Context, orderID uuid.UUID, fulfillmentOrderID, fulfillmentStatus string) error
}

// FulfillmentService submits paid orders to the print-on-demand provider.
// A failed submission never unwinds the paid order; the order keeps its paid
// status so the submission can be retried by hand.
type FulfillmentService struct {
	gateway fulfillmentGateway
	orders  fulfillmentOrderStore
	logger  *slog.Logger
}

func NewFulfillmentService(gateway fulfillmentGateway, orders fulfillmentOrderStore, logger *slog.Logger) *FulfillmentService {
	return &FulfillmentService{
		gateway: gateway,
		orders:  orders,
		logger:  logger,
	}
}

func (s *FulfillmentService) SubmitOrder(ctx context.Context, order *db.Order, items []*db.OrderItem) error {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.submit_order",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("SubmitOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := logging.FromContext(ctx, s.logger)
	meter := observability.MeterFromContext(ctx)
	meter.Count("fulfillment.submit.attempted", 1)

	req, err := s.buildOrderRequest(order, items)
	if err != nil {
		return &FulfillmentSubmissionError{OrderID: order.ID, Reason: "invalid order", Err: err}
	}

	resp, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		return &FulfillmentSubmissionError{OrderID: order.ID, Reason: "gateway request failed", Err: err}
	}
	if !resp.Success {
		return &FulfillmentSubmissionError{
			OrderID: order.ID,
			Reason:  fmt.Sprintf("order rejected: %s", resp.RejectionDetail()),
		}
	}

	if err := s.orders.MarkInProduction(ctx, order.ID, resp.OrderID, "submitted"); err != nil {
		// The provider accepted the order; surface the bookkeeping failure
		// but do not pretend the submission failed.
		logger.Error("order submitted but status update failed",
			"error", err, "order_id", order.ID, "fulfillment_order_id", resp.OrderID)
		return &FulfillmentSubmissionError{OrderID: order.ID, Reason: "status update failed", Err: err}
	}

	meter.Count("fulfillment.submit.succeeded", 1)
	logger.Info("order submitted for fulfillment",
		"order_id", order.ID, "order_number", order.OrderNumber, "fulfillment_order_id", resp.OrderID)
	return nil
}

func (s *FulfillmentService) buildOrderRequest(order *db.Order, items []*db.OrderItem) (fulfillment.OrderRequest, error) {
	if order.ShippingAddress == nil {
		return fulfillment.OrderRequest{}, fmt.Errorf("order has no shipping address")
	}
	if len(items) == 0 {
		return fulfillment.OrderRequest{}, fmt.Errorf("order has no items")
	}

	req := fulfillment.OrderRequest{
		Reference: order.ID.String(),
		Recipient: fulfillment.Recipient{
			Name:         order.CustomerName,
			AddressLine1: order.ShippingAddress.Line1,
			AddressLine2: order.ShippingAddress.Line2,
			City:         order.ShippingAddress.City,
			County:       order.ShippingAddress.County,
			Postcode:     order.ShippingAddress.Postcode,
			Country:      order.ShippingAddress.Country,
			Phone:        order.CustomerPhone,
		},
	}

	for _, item := range items {
		if item.FulfillmentProductID == "" || item.FulfillmentVariantID == "" {
			return fulfillment.OrderRequest{}, fmt.Errorf("item %s has no fulfillment mapping", item.SKU)
		}
		req.Items = append(req.Items, fulfillment.Item{
			ProductID: item.FulfillmentProductID,
			VariantID: item.FulfillmentVariantID,
			Quantity:  item.Quantity,
		})
	}

	return req, nil
}
