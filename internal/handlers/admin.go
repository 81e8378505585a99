package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"

	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/services"
)

// AdminListOrders returns recent orders for the back office.
func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			h.writeError(ctx, w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	orders, err := h.orderStore.ListRecent(ctx, limit)
	if err != nil {
		logger.Error("failed to list orders", "error", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []*db.Order{}
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"orders": orders})
}

// AdminGetOrder returns the full order record, items included.
func (h *Handlers) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	items, err := h.orderStore.ItemsByOrder(ctx, order.ID)
	if err != nil {
		logger.Error("failed to load order items", "error", err, "order_id", order.ID)
		h.writeError(ctx, w, http.StatusInternalServerError, "failed to load order")
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"order": order,
		"items": items,
	})
}

type shipOrderRequest struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
}

// AdminShipOrder records shipment details and notifies the customer. The
// fulfillment partner has no shipment webhook, so this is driven by the back
// office.
func (h *Handlers) AdminShipOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	var req shipOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TrackingNumber == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "tracking_number is required")
		return
	}

	carrier := services.NormalizeCarrierName(req.Carrier)
	trackingURL := req.TrackingURL
	if trackingURL == "" {
		trackingURL = services.BuildTrackingURL(carrier, req.TrackingNumber)
	}

	if err := h.orderStore.MarkShipped(ctx, order.ID, req.TrackingNumber, trackingURL, carrier); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			h.writeError(ctx, w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("failed to mark order shipped", "error", err, "order_id", order.ID)
		h.writeError(ctx, w, http.StatusInternalServerError, "failed to update order")
		return
	}
	logger.Info("order shipped", "order_id", order.ID, "carrier", carrier, "tracking_number", req.TrackingNumber)

	shipped, err := h.orderStore.GetByID(ctx, order.ID)
	if err != nil {
		logger.Error("failed to reload shipped order", "error", err, "order_id", order.ID)
		h.writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "shipped"})
		return
	}
	if err := h.emailSender.SendOrderShipped(ctx, shipped); err != nil {
		logger.Error("failed to send shipping notification", "error", err, "order_id", order.ID)
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]any{"order": shipped})
}

// AdminDeliverOrder records delivery confirmation.
func (h *Handlers) AdminDeliverOrder(w http.ResponseWriter, r *http.Request) {
	h.markOrder(w, r, "delivered", h.orderStore.MarkDelivered)
}

// AdminCancelOrder cancels an order that has not shipped.
func (h *Handlers) AdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.markOrder(w, r, "cancelled", h.orderStore.MarkCancelled)
}

// AdminRefundOrder records a refund issued through the payment provider's
// dashboard.
func (h *Handlers) AdminRefundOrder(w http.ResponseWriter, r *http.Request) {
	h.markOrder(w, r, "refunded", h.orderStore.MarkRefunded)
}

func (h *Handlers) markOrder(w http.ResponseWriter, r *http.Request, action string, mark func(ctx context.Context, orderID uuid.UUID) error) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	if err := mark(ctx, order.ID); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			h.writeError(ctx, w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("failed to update order status", "error", err, "order_id", order.ID, "action", action)
		h.writeError(ctx, w, http.StatusInternalServerError, "failed to update order")
		return
	}

	logger.Info("order status updated", "order_id", order.ID, "action", action)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"status": action})
}

func (h *Handlers) loadOrder(w http.ResponseWriter, r *http.Request) (*db.Order, bool) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(ctx, w, http.StatusNotFound, "order not found")
		return nil, false
	}

	order, err := h.orderStore.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(ctx, w, http.StatusNotFound, "order not found")
			return nil, false
		}
		logger.Error("failed to load order", "error", err, "order_id", orderID)
		h.writeError(ctx, w, http.StatusInternalServerError, "failed to load order")
		return nil, false
	}

	return order, true
}
