package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/lawsonsstudio/storefront/internal/logging"
	"github.com/lawsonsstudio/storefront/internal/observability"
	"github.com/lawsonsstudio/storefront/internal/services"
)

// StripeEventRouter dispatches verified webhook events to the payment
// pipeline. Event types without a processor are acknowledged and dropped so
// the gateway does not retry them.
type StripeEventRouter struct {
	service *services.PaymentService
	logger  *slog.Logger
}

func NewStripeEventRouter(service *services.PaymentService, logger *slog.Logger) *StripeEventRouter {
	return &StripeEventRouter{
		service: service,
		logger:  logger,
	}
}

func (r *StripeEventRouter) Handle(ctx context.Context, event *stripeapi.Event) error {
	span := sentry.StartSpan(
		ctx,
		"handler.stripe_router.handle",
		sentry.WithOpName("handler.stripe_router"),
		sentry.WithDescription("StripeEventRouter.Handle"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("webhook.provider", "stripe"))
	meter.Count("webhook.router.received", 1)
	recordFailed := func(reason string) {
		meter.Count("webhook.router.failed", 1, sentry.WithAttributes(attribute.String("reason", reason)))
	}

	if event == nil {
		recordFailed("missing_event")
		return fmt.Errorf("missing stripe event")
	}
	if event.Data == nil {
		recordFailed("missing_event_data")
		return fmt.Errorf("missing stripe event data")
	}
	meter.SetAttributes(attribute.String("webhook.event_type", string(event.Type)))

	process := r.processorFor(event.Type)
	if process == nil {
		logging.FromContext(ctx, r.logger).Info("unhandled Stripe event type", "type", event.Type)
		meter.Count("webhook.router.unhandled", 1)
		span.Status = sentry.SpanStatusOK
		return nil
	}

	if err := process(ctx, event.Data.Raw); err != nil {
		recordFailed(string(event.Type))
		return err
	}
	meter.Count("webhook.router.processed", 1)
	span.Status = sentry.SpanStatusOK
	return nil
}

func (r *StripeEventRouter) processorFor(eventType stripeapi.EventType) func(context.Context, []byte) error {
	switch eventType {
	case "checkout.session.completed":
		return r.service.HandleCheckoutSessionCompleted
	case "checkout.session.expired":
		return r.service.HandleCheckoutSessionExpired
	}
	return nil
}
