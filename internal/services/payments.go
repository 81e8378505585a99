package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/logging"
	"github.com/lawsonsstudio/storefront/internal/observability"
)

type paymentOrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*db.Order, error)
	ItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]*db.OrderItem, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID, sessionID string) error
	MarkExpired(ctx context.Context, orderID uuid.UUID) error
}

type fulfillmentSubmitter interface {
	SubmitOrder(ctx context.Context, order *db.Order, items []*db.OrderItem) error
}

// PaymentService is the webhook-driven state machine for the
// pending_payment → paid transition. The paid transition is the durable,
// must-not-fail step; everything after it is best-effort.
type PaymentService struct {
	orders      paymentOrderStore
	fulfillment fulfillmentSubmitter
	emailSender OrderEmailSender
	brandID     string
	logger      *slog.Logger
}

func NewPaymentService(orders paymentOrderStore, fulfillment fulfillmentSubmitter, emailSender OrderEmailSender, brandID string, logger *slog.Logger) *PaymentService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}

	return &PaymentService{
		orders:      orders,
		fulfillment: fulfillment,
		emailSender: emailSender,
		brandID:     brandID,
		logger:      logger,
	}
}

func (s *PaymentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// HandleCheckoutSessionCompleted processes a verified
// checkout.session.completed event. The store's conditional update makes the
// transition idempotent: a redelivered event finds the order already paid and
// acknowledges without resubmitting fulfillment.
func (s *PaymentService) HandleCheckoutSessionCompleted(ctx context.Context, payload []byte) error {
	span := sentry.StartSpan(
		ctx,
		"service.payment.checkout_session_completed",
		sentry.WithOpName("service.payment"),
		sentry.WithDescription("HandleCheckoutSessionCompleted"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.Count("payment.completed.received", 1)

	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return fmt.Errorf("invalid event object: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("missing session ID")
	}

	orderID, err := s.parseCorrelationMetadata(session.Metadata)
	if err != nil {
		meter.Count("payment.completed.rejected", 1, sentry.WithAttributes(
			attribute.String("reason", "correlation"),
		))
		return err
	}

	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}

	if markErr := s.orders.MarkPaid(ctx, orderID, paymentIntentID, session.ID); markErr != nil {
		if errors.Is(markErr, db.ErrAlreadyPaid) {
			logger.Info("ignoring redelivered checkout.session.completed", "order_id", orderID, "session_id", session.ID)
			meter.Count("payment.completed.duplicate", 1)
			return nil
		}
		if errors.Is(markErr, db.ErrInvalidStatusTransition) {
			logger.Warn("ignoring checkout.session.completed due to state transition", "order_id", orderID, "session_id", session.ID, "error", markErr)
			meter.Count("payment.completed.rejected", 1, sentry.WithAttributes(
				attribute.String("reason", "invalid_transition"),
			))
			return nil
		}
		return fmt.Errorf("failed to mark order as paid: %w", markErr)
	}
	meter.Count("order.paid", 1)
	logger.Info("order paid", "order_id", orderID, "session_id", session.ID)

	// Payment is durably recorded from here on. Nothing below may fail the
	// webhook, or the gateway would retry an already-successful payment.
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		logger.Error("failed to reload paid order", "error", err, "order_id", orderID)
		return nil
	}

	items, err := s.orders.ItemsByOrder(ctx, orderID)
	if err != nil {
		logger.Error("failed to load order items for fulfillment", "error", err, "order_id", orderID)
		return nil
	}
	if len(items) == 0 {
		// An order without items can not be created through checkout; this is
		// a data-integrity fault, not a fulfillment problem.
		logger.Error("paid order has no items; refusing to submit fulfillment", "order_id", orderID)
		meter.Count("payment.integrity_fault", 1)
		return nil
	}

	if err := s.fulfillment.SubmitOrder(ctx, order, items); err != nil {
		logger.Error("fulfillment submission failed; order stays paid for manual recovery",
			"error", err, "order_id", orderID, "order_number", order.OrderNumber)
		meter.Count("fulfillment.submit.failed", 1)
	}

	if err := s.sendConfirmationEmail(ctx, order, items); err != nil {
		logger.Error("failed to send order confirmation email", "error", err, "order_id", orderID)
	}

	return nil
}

// HandleCheckoutSessionExpired marks an abandoned pending order as expired.
func (s *PaymentService) HandleCheckoutSessionExpired(ctx context.Context, payload []byte) error {
	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return fmt.Errorf("invalid event object: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("missing session ID")
	}

	orderID, err := s.parseCorrelationMetadata(session.Metadata)
	if err != nil {
		return err
	}

	if markErr := s.orders.MarkExpired(ctx, orderID); markErr != nil {
		if errors.Is(markErr, db.ErrInvalidStatusTransition) {
			logger.Info("ignoring checkout.session.expired due to state transition", "order_id", orderID, "error", markErr)
			return nil
		}
		return fmt.Errorf("failed to mark order as expired: %w", markErr)
	}

	meter.Count("order.expired", 1)
	logger.Info("checkout session expired", "order_id", orderID, "session_id", session.ID)
	return nil
}

func (s *PaymentService) parseCorrelationMetadata(metadata map[string]string) (uuid.UUID, error) {
	if len(metadata) == 0 {
		return uuid.Nil, fmt.Errorf("%w: no metadata on event", ErrCorrelationMissing)
	}

	brandID, ok := metadata["brand_id"]
	if !ok || brandID == "" {
		return uuid.Nil, fmt.Errorf("%w: no brand_id", ErrCorrelationMissing)
	}
	if brandID != s.brandID {
		return uuid.Nil, fmt.Errorf("%w: event for foreign brand %q", ErrCorrelationMissing, brandID)
	}

	orderIDStr, ok := metadata["order_id"]
	if !ok || orderIDStr == "" {
		return uuid.Nil, fmt.Errorf("%w: no order_id", ErrCorrelationMissing)
	}
	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid order_id: %s", ErrCorrelationMissing, err)
	}

	return orderID, nil
}

func (s *PaymentService) sendConfirmationEmail(ctx context.Context, order *db.Order, items []*db.OrderItem) error {
	return s.emailSender.SendOrderConfirmation(ctx, order, items)
}
