package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/lawsonsstudio/storefront/internal/cache"
	"github.com/lawsonsstudio/storefront/internal/config"
	"github.com/lawsonsstudio/storefront/internal/db"
	"github.com/lawsonsstudio/storefront/internal/services"
)

const testWebhookSecret = "whsec_test_secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type webhookOrderStore struct {
	order *db.Order
	items []*db.OrderItem

	markPaidCalls int
	markPaidErr   error
}

func (s *webhookOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*db.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, fmt.Errorf("order not found")
	}
	return s.order, nil
}

func (s *webhookOrderStore) ItemsByOrder(_ context.Context, _ uuid.UUID) ([]*db.OrderItem, error) {
	return s.items, nil
}

func (s *webhookOrderStore) MarkPaid(_ context.Context, _ uuid.UUID, _, _ string) error {
	s.markPaidCalls++
	if s.markPaidErr != nil {
		return s.markPaidErr
	}
	s.order.Status = db.StatusPaid
	return nil
}

func (s *webhookOrderStore) MarkExpired(_ context.Context, _ uuid.UUID) error {
	s.order.Status = db.StatusExpired
	return nil
}

type webhookSubmitter struct {
	calls int
}

func (s *webhookSubmitter) SubmitOrder(_ context.Context, _ *db.Order, _ []*db.OrderItem) error {
	s.calls++
	return nil
}

func newWebhookHandlers(t *testing.T, store *webhookOrderStore, submitter *webhookSubmitter) *Handlers {
	t.Helper()

	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = cacheProvider.Close() })

	paymentService := services.NewPaymentService(store, submitter, nil, "lawsons-studio", discardLogger())

	return &Handlers{
		config:        &config.Config{StripeWebhookSecret: testWebhookSecret},
		cacheProvider: cacheProvider,
		stripeRouter:  NewStripeEventRouter(paymentService, discardLogger()),
		logger:        discardLogger(),
	}
}

func signedEventRequest(t *testing.T, eventID string, eventType string, object map[string]any) *http.Request {
	t.Helper()

	objectJSON, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("failed to marshal event object: %v", err)
	}
	payload := []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","api_version":"2026-01-28.clover","type":%q,"data":{"object":%s}}`,
		eventID, eventType, objectJSON,
	))

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func completedSessionObject(orderID uuid.UUID, brandID string) map[string]any {
	return map[string]any{
		"id":     "cs_test_abc",
		"object": "checkout.session",
		"metadata": map[string]string{
			"brand_id": brandID,
			"order_id": orderID.String(),
		},
		"payment_intent": map[string]any{"id": "pi_test_123"},
	}
}

func webhookTestOrder() (*db.Order, []*db.OrderItem) {
	orderID := uuid.New()
	order := &db.Order{
		ID:     orderID,
		Status: db.StatusPendingPayment,
		ShippingAddress: &db.Address{
			Line1:    "12 Harbour Lane",
			City:     "Whitstable",
			Postcode: "CT5 1AB",
			Country:  "GB",
		},
	}
	items := []*db.OrderItem{{
		ID:                   uuid.New(),
		OrderID:              orderID,
		SKU:                  "PRINT-A2",
		FulfillmentProductID: "ink-print",
		FulfillmentVariantID: "ink-print-a2",
		Quantity:             1,
	}}
	return order, items
}

func TestStripeWebhook_RejectsUnsignedPayload(t *testing.T) {
	t.Parallel()

	h := newWebhookHandlers(t, &webhookOrderStore{}, &webhookSubmitter{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBufferString(`{"id":"evt_1"}`))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStripeWebhook_ProcessesCompletedSession(t *testing.T) {
	t.Parallel()

	order, items := webhookTestOrder()
	store := &webhookOrderStore{order: order, items: items}
	submitter := &webhookSubmitter{}
	h := newWebhookHandlers(t, store, submitter)

	req := signedEventRequest(t, "evt_1", "checkout.session.completed", completedSessionObject(order.ID, "lawsons-studio"))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if store.markPaidCalls != 1 {
		t.Errorf("MarkPaid called %d times, want 1", store.markPaidCalls)
	}
	if submitter.calls != 1 {
		t.Errorf("fulfillment submitted %d times, want 1", submitter.calls)
	}
}

func TestStripeWebhook_DuplicateEventIsAcknowledgedWithoutReprocessing(t *testing.T) {
	t.Parallel()

	order, items := webhookTestOrder()
	store := &webhookOrderStore{order: order, items: items}
	submitter := &webhookSubmitter{}
	h := newWebhookHandlers(t, store, submitter)

	object := completedSessionObject(order.ID, "lawsons-studio")
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.StripeWebhook(rec, signedEventRequest(t, "evt_dup", "checkout.session.completed", object))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	if store.markPaidCalls != 1 {
		t.Errorf("MarkPaid called %d times, want 1", store.markPaidCalls)
	}
	if submitter.calls != 1 {
		t.Errorf("fulfillment submitted %d times, want 1", submitter.calls)
	}
}

func TestStripeWebhook_UncorrelatableEventGetsBadRequest(t *testing.T) {
	t.Parallel()

	h := newWebhookHandlers(t, &webhookOrderStore{}, &webhookSubmitter{})

	object := map[string]any{"id": "cs_no_metadata", "object": "checkout.session"}
	req := signedEventRequest(t, "evt_2", "checkout.session.completed", object)
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStripeWebhook_TransientFailureGetsServerError(t *testing.T) {
	t.Parallel()

	order, items := webhookTestOrder()
	store := &webhookOrderStore{order: order, items: items, markPaidErr: fmt.Errorf("connection reset")}
	submitter := &webhookSubmitter{}
	h := newWebhookHandlers(t, store, submitter)

	req := signedEventRequest(t, "evt_3", "checkout.session.completed", completedSessionObject(order.ID, "lawsons-studio"))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	// The failed event must not be marked processed; a retry should reach the
	// store again.
	store.markPaidErr = nil
	rec = httptest.NewRecorder()
	h.StripeWebhook(rec, signedEventRequest(t, "evt_3", "checkout.session.completed", completedSessionObject(order.ID, "lawsons-studio")))
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d, want 200", rec.Code)
	}
	if store.markPaidCalls != 2 {
		t.Errorf("MarkPaid called %d times, want 2", store.markPaidCalls)
	}
}

func TestStripeWebhook_UnhandledEventTypeIsAcknowledged(t *testing.T) {
	t.Parallel()

	h := newWebhookHandlers(t, &webhookOrderStore{}, &webhookSubmitter{})

	req := signedEventRequest(t, "evt_4", "invoice.created", map[string]any{"id": "in_test"})
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
