package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/lawsonsstudio/storefront/internal/cache"
	"github.com/lawsonsstudio/storefront/internal/services"
	stripewebhook "github.com/lawsonsstudio/storefront/internal/stripe"
)

// stripeWebhookIdempotencyTTL is how long webhook event IDs are kept for deduplication
const stripeWebhookIdempotencyTTL = 24 * time.Hour

// StripeWebhook receives payment events. A 200 tells Stripe to stop
// redelivering; anything transient must come back as a 5xx so the event is
// retried.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := stripewebhook.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Error("failed to read Stripe webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	if event == nil || event.ID == "" {
		logger.Error("missing Stripe event ID")
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	cacheKey := cache.WebhookKey("stripe", event.ID)
	_, err = h.cacheProvider.Get(ctx, cacheKey)
	if err == nil {
		logger.Info("webhook already processed", "event_id", event.ID)
		h.writeJSON(ctx, w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.stripeRouter.Handle(ctx, event); err != nil {
		if errors.Is(err, services.ErrCorrelationMissing) {
			// Retrying an event that cannot be matched to an order will never
			// succeed; reject it permanently.
			logger.Error("rejecting uncorrelatable Stripe event", "error", err, "event_id", event.ID, "type", event.Type)
			http.Error(w, "Uncorrelatable event", http.StatusBadRequest)
			return
		}
		logger.Error("failed to process Stripe webhook", "error", err, "type", event.Type)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	if err := h.cacheProvider.Set(ctx, cacheKey, "processed", stripeWebhookIdempotencyTTL); err != nil {
		logger.Error("failed to mark webhook as processed in cache", "error", err)
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]bool{"received": true})
}
