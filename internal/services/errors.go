package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrValidation covers malformed or incomplete checkout requests,
	// rejected before any write.
	ErrValidation = errors.New("invalid checkout request")

	// ErrCorrelationMissing reports a webhook event without the expected
	// correlation metadata. Likely a misconfigured or foreign event; never
	// guessed around.
	ErrCorrelationMissing = errors.New("missing correlation metadata")

	// ErrPaymentGateway reports a failure creating the hosted payment
	// session. The pending order is left behind, not retried.
	ErrPaymentGateway = errors.New("payment gateway request failed")
)

// InvalidCartError names the variant ids that were requested but are not
// purchasable (missing, inactive, or belonging to an inactive product).
type InvalidCartError struct {
	MissingVariantIDs []uuid.UUID
}

func (e *InvalidCartError) Error() string {
	ids := make([]string, len(e.MissingVariantIDs))
	for i, id := range e.MissingVariantIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("cart references unknown or inactive variants: %s", strings.Join(ids, ", "))
}

// FulfillmentSubmissionError reports a failed handoff to the fulfillment
// partner. The order stays paid; an operator must re-submit or cancel.
type FulfillmentSubmissionError struct {
	OrderID uuid.UUID
	Reason  string
	Err     error
}

func (e *FulfillmentSubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fulfillment submission failed for order %s: %s: %v", e.OrderID, e.Reason, e.Err)
	}
	return fmt.Sprintf("fulfillment submission failed for order %s: %s", e.OrderID, e.Reason)
}

func (e *FulfillmentSubmissionError) Unwrap() error {
	return e.Err
}
