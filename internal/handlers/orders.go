package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/lawsonsstudio/storefront/internal/db"
)

// orderSummary is the customer-facing view of an order. Payment and
// fulfillment identifiers stay internal.
type orderSummary struct {
	ID          uuid.UUID      `json:"id"`
	OrderNumber int            `json:"order_number"`
	Status      db.OrderStatus `json:"status"`
	TotalPence  int            `json:"total_pence"`
	Currency    string         `json:"currency"`

	TrackingNumber string `json:"tracking_number,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

// GetOrder returns the public status of a single order. Order IDs are
// unguessable UUIDs handed out at checkout, which is what gates this lookup.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(ctx, w, http.StatusNotFound, "order not found")
		return
	}

	order, err := h.orderStore.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(ctx, w, http.StatusNotFound, "order not found")
			return
		}
		logger.Error("failed to load order", "error", err, "order_id", orderID)
		h.writeError(ctx, w, http.StatusInternalServerError, "failed to load order")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, orderSummary{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		TotalPence:     order.TotalPence,
		Currency:       order.Currency,
		TrackingNumber: order.TrackingNumber,
		TrackingURL:    order.TrackingURL,
		Carrier:        order.Carrier,
	})
}
