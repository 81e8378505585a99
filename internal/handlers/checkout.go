package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lawsonsstudio/storefront/internal/services"
)

const maxCheckoutBodyBytes = 64 << 10 // 64 KB

// CreateCheckout accepts a cart, creates a pending order, and responds with
// the hosted payment redirect.
func (h *Handlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxCheckoutBodyBytes)

	var input services.CheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.checkoutService.CreateCheckoutSession(ctx, input)
	if err != nil {
		var cartErr *services.InvalidCartError
		switch {
		case errors.As(err, &cartErr):
			h.writeJSON(ctx, w, http.StatusUnprocessableEntity, map[string]any{
				"error":               "cart references unknown or inactive variants",
				"missing_variant_ids": cartErr.MissingVariantIDs,
			})
		case errors.Is(err, services.ErrValidation):
			h.writeError(ctx, w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrPaymentGateway):
			h.writeError(ctx, w, http.StatusBadGateway, "payment provider unavailable")
		default:
			logger.Error("checkout failed", "error", err)
			h.writeError(ctx, w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	h.writeJSON(ctx, w, http.StatusCreated, result)
}
