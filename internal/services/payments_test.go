package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/lawsonsstudio/storefront/internal/db"
)

type fakePaymentOrderStore struct {
	order *db.Order
	items []*db.OrderItem

	markPaidCalls    int
	markPaidErr      error
	markExpiredCalls int
	markExpiredErr   error
	itemsErr         error

	paidPaymentIntentID string
	paidSessionID       string
}

func (f *fakePaymentOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*db.Order, error) {
	if f.order == nil || f.order.ID != orderID {
		return nil, fmt.Errorf("order not found")
	}
	return f.order, nil
}

func (f *fakePaymentOrderStore) ItemsByOrder(_ context.Context, _ uuid.UUID) ([]*db.OrderItem, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return f.items, nil
}

func (f *fakePaymentOrderStore) MarkPaid(_ context.Context, _ uuid.UUID, paymentIntentID, sessionID string) error {
	f.markPaidCalls++
	if f.markPaidErr != nil {
		return f.markPaidErr
	}
	f.order.Status = db.StatusPaid
	f.paidPaymentIntentID = paymentIntentID
	f.paidSessionID = sessionID
	return nil
}

func (f *fakePaymentOrderStore) MarkExpired(_ context.Context, _ uuid.UUID) error {
	f.markExpiredCalls++
	if f.markExpiredErr != nil {
		return f.markExpiredErr
	}
	f.order.Status = db.StatusExpired
	return nil
}

type fakeSubmitter struct {
	calls int
	err   error
}

func (f *fakeSubmitter) SubmitOrder(_ context.Context, _ *db.Order, _ []*db.OrderItem) error {
	f.calls++
	return f.err
}

type recordingEmailSender struct {
	confirmations int
	shipped       int
	err           error
}

func (r *recordingEmailSender) SendOrderConfirmation(_ context.Context, _ *db.Order, _ []*db.OrderItem) error {
	r.confirmations++
	return r.err
}

func (r *recordingEmailSender) SendOrderShipped(_ context.Context, _ *db.Order) error {
	r.shipped++
	return r.err
}

func pendingOrder() (*db.Order, []*db.OrderItem) {
	orderID := uuid.New()
	order := &db.Order{
		ID:            orderID,
		OrderNumber:   77,
		Status:        db.StatusPendingPayment,
		CustomerEmail: "anna@example.com",
		CustomerName:  "Anna Lawson",
		CustomerPhone: "+44 7700 900123",
		ShippingAddress: &db.Address{
			Line1:    "12 Harbour Lane",
			City:     "Whitstable",
			Postcode: "CT5 1AB",
			Country:  "GB",
		},
		SubtotalPence: 2999,
		TotalPence:    2999,
		Currency:      "gbp",
	}
	items := []*db.OrderItem{{
		ID:                   uuid.New(),
		OrderID:              orderID,
		ProductName:          "Harbour Sketch",
		VariantName:          "A2",
		SKU:                  "PRINT-A2",
		FulfillmentProductID: "ink-print",
		FulfillmentVariantID: "ink-print-a2",
		UnitPricePence:       2999,
		Quantity:             1,
		LineTotalPence:       2999,
		Currency:             "gbp",
	}}
	return order, items
}

func completedSessionPayload(t *testing.T, orderID uuid.UUID, brandID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id": "cs_test_abc",
		"metadata": map[string]string{
			"brand_id": brandID,
			"order_id": orderID.String(),
		},
		"payment_intent": map[string]any{"id": "pi_test_123"},
	})
	if err != nil {
		t.Fatalf("failed to build payload: %v", err)
	}
	return payload
}

func TestHandleCheckoutSessionCompleted_MarksPaidAndSubmitsFulfillment(t *testing.T) {
	t.Parallel()

	order, items := pendingOrder()
	store := &fakePaymentOrderStore{order: order, items: items}
	submitter := &fakeSubmitter{}
	emails := &recordingEmailSender{}
	svc := NewPaymentService(store, submitter, emails, "lawsons-studio", discardLogger())

	err := svc.HandleCheckoutSessionCompleted(context.Background(), completedSessionPayload(t, order.ID, "lawsons-studio"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.markPaidCalls != 1 {
		t.Errorf("MarkPaid called %d times, want 1", store.markPaidCalls)
	}
	if store.paidPaymentIntentID != "pi_test_123" {
		t.Errorf("payment intent = %q, want pi_test_123", store.paidPaymentIntentID)
	}
	if store.paidSessionID != "cs_test_abc" {
		t.Errorf("session id = %q, want cs_test_abc", store.paidSessionID)
	}
	if submitter.calls != 1 {
		t.Errorf("fulfillment submitted %d times, want 1", submitter.calls)
	}
	if emails.confirmations != 1 {
		t.Errorf("confirmation emails = %d, want 1", emails.confirmations)
	}
}

func TestHandleCheckoutSessionCompleted_RedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	order, items := pendingOrder()
	store := &fakePaymentOrderStore{order: order, items: items}
	submitter := &fakeSubmitter{}
	svc := NewPaymentService(store, submitter, nil, "lawsons-studio", discardLogger())

	payload := completedSessionPayload(t, order.ID, "lawsons-studio")
	if err := svc.HandleCheckoutSessionCompleted(context.Background(), payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// The order is now paid; the conditional update reports ErrAlreadyPaid.
	store.markPaidErr = db.ErrAlreadyPaid
	if err := svc.HandleCheckoutSessionCompleted(context.Background(), payload); err != nil {
		t.Fatalf("redelivery should be acknowledged, got %v", err)
	}

	if submitter.calls != 1 {
		t.Errorf("fulfillment submitted %d times, want exactly 1", submitter.calls)
	}
	if order.Status != db.StatusPaid {
		t.Errorf("status = %s, want paid", order.Status)
	}
}

func TestHandleCheckoutSessionCompleted_RejectsBadCorrelation(t *testing.T) {
	t.Parallel()

	order, items := pendingOrder()

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{
			name:    "no metadata",
			payload: map[string]any{"id": "cs_test_abc"},
		},
		{
			name: "missing order id",
			payload: map[string]any{
				"id":       "cs_test_abc",
				"metadata": map[string]string{"brand_id": "lawsons-studio"},
			},
		},
		{
			name: "malformed order id",
			payload: map[string]any{
				"id":       "cs_test_abc",
				"metadata": map[string]string{"brand_id": "lawsons-studio", "order_id": "not-a-uuid"},
			},
		},
		{
			name: "foreign brand",
			payload: map[string]any{
				"id":       "cs_test_abc",
				"metadata": map[string]string{"brand_id": "someone-else", "order_id": order.ID.String()},
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &fakePaymentOrderStore{order: order, items: items}
			submitter := &fakeSubmitter{}
			svc := NewPaymentService(store, submitter, nil, "lawsons-studio", discardLogger())

			payload, err := json.Marshal(tc.payload)
			if err != nil {
				t.Fatalf("failed to build payload: %v", err)
			}

			err = svc.HandleCheckoutSessionCompleted(context.Background(), payload)
			if !errors.Is(err, ErrCorrelationMissing) {
				t.Fatalf("expected ErrCorrelationMissing, got %v", err)
			}
			if store.markPaidCalls != 0 {
				t.Error("MarkPaid should not be called")
			}
			if submitter.calls != 0 {
				t.Error("fulfillment should not be submitted")
			}
		})
	}
}

func TestHandleCheckoutSessionCompleted_FulfillmentFailureStillAcks(t *testing.T) {
	t.Parallel()

	order, items := pendingOrder()
	store := &fakePaymentOrderStore{order: order, items: items}
	submitter := &fakeSubmitter{err: &FulfillmentSubmissionError{OrderID: order.ID, Reason: "gateway request failed"}}
	svc := NewPaymentService(store, submitter, nil, "lawsons-studio", discardLogger())

	err := svc.HandleCheckoutSessionCompleted(context.Background(), completedSessionPayload(t, order.ID, "lawsons-studio"))
	if err != nil {
		t.Fatalf("fulfillment failure must not fail the webhook, got %v", err)
	}
	if order.Status != db.StatusPaid {
		t.Errorf("status = %s, want paid", order.Status)
	}
}

func TestHandleCheckoutSessionCompleted_StoreFailurePropagates(t *testing.T) {
	t.Parallel()

	order, items := pendingOrder()
	store := &fakePaymentOrderStore{order: order, items: items, markPaidErr: errors.New("connection reset")}
	submitter := &fakeSubmitter{}
	svc := NewPaymentService(store, submitter, nil, "lawsons-studio", discardLogger())

	err := svc.HandleCheckoutSessionCompleted(context.Background(), completedSessionPayload(t, order.ID, "lawsons-studio"))
	if err == nil {
		t.Fatal("a transient store failure must propagate so the event is retried")
	}
	if submitter.calls != 0 {
		t.Error("fulfillment should not be submitted when the paid transition failed")
	}
}

func TestHandleCheckoutSessionCompleted_EmptyOrderRefusesFulfillment(t *testing.T) {
	t.Parallel()

	order, _ := pendingOrder()
	store := &fakePaymentOrderStore{order: order}
	submitter := &fakeSubmitter{}
	svc := NewPaymentService(store, submitter, nil, "lawsons-studio", discardLogger())

	err := svc.HandleCheckoutSessionCompleted(context.Background(), completedSessionPayload(t, order.ID, "lawsons-studio"))
	if err != nil {
		t.Fatalf("integrity fault must still be acknowledged, got %v", err)
	}
	if submitter.calls != 0 {
		t.Error("an order with no items must not be submitted for fulfillment")
	}
}

func TestHandleCheckoutSessionExpired(t *testing.T) {
	t.Parallel()

	t.Run("marks pending order expired", func(t *testing.T) {
		t.Parallel()

		order, _ := pendingOrder()
		store := &fakePaymentOrderStore{order: order}
		svc := NewPaymentService(store, &fakeSubmitter{}, nil, "lawsons-studio", discardLogger())

		err := svc.HandleCheckoutSessionExpired(context.Background(), completedSessionPayload(t, order.ID, "lawsons-studio"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != db.StatusExpired {
			t.Errorf("status = %s, want expired", order.Status)
		}
	})

	t.Run("tolerates an already-paid order", func(t *testing.T) {
		t.Parallel()

		order, _ := pendingOrder()
		order.Status = db.StatusPaid
		store := &fakePaymentOrderStore{
			order:          order,
			markExpiredErr: fmt.Errorf("%w: expected pending_payment, have paid", db.ErrInvalidStatusTransition),
		}
		svc := NewPaymentService(store, &fakeSubmitter{}, nil, "lawsons-studio", discardLogger())

		err := svc.HandleCheckoutSessionExpired(context.Background(), completedSessionPayload(t, order.ID, "lawsons-studio"))
		if err != nil {
			t.Fatalf("expired event racing a completed event must be acknowledged, got %v", err)
		}
		if order.Status != db.StatusPaid {
			t.Errorf("status = %s, want paid", order.Status)
		}
	})
}
