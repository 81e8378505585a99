package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInvalidStatusTransition = errors.New("invalid order status transition")

	// ErrAlreadyPaid reports a paid transition for an order that is already at
	// or past paid. Webhook redelivery lands here; it is not a fault.
	ErrAlreadyPaid = errors.New("order already paid")
)

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_number, status, customer_email, customer_name, customer_phone,
	shipping_address, billing_address,
	subtotal_pence, shipping_pence, tax_pence, total_pence, currency,
	checkout_session_id, payment_intent_id,
	fulfillment_order_id, fulfillment_status,
	tracking_number, tracking_url, carrier,
	created_at, paid_at, shipped_at, delivered_at
`

// CreateWithItems persists the order and all of its items in one transaction.
// Either everything lands or nothing does; an order row with zero items can
// never be left behind.
func (s *OrderStore) CreateWithItems(ctx context.Context, order *Order, items []*OrderItem) error {
	if order == nil {
		return fmt.Errorf("order is required")
	}
	if len(items) == 0 {
		return fmt.Errorf("order must have at least one item")
	}

	shippingAddressJSON, err := marshalAddress(order.ShippingAddress)
	if err != nil {
		return err
	}
	billingAddressJSON, err := marshalAddress(order.BillingAddress)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertOrder = `
		INSERT INTO orders (
			status, customer_email, customer_name, customer_phone,
			shipping_address, billing_address,
			subtotal_pence, shipping_pence, tax_pence, total_pence, currency
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, order_number, created_at
	`
	var createdAt pgtype.Timestamptz
	err = tx.QueryRow(ctx, insertOrder,
		string(order.Status),
		order.CustomerEmail,
		order.CustomerName,
		order.CustomerPhone,
		shippingAddressJSON,
		billingAddressJSON,
		order.SubtotalPence,
		order.ShippingPence,
		order.TaxPence,
		order.TotalPence,
		order.Currency,
	).Scan(&order.ID, &order.OrderNumber, &createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	order.CreatedAt = createdAt.Time

	const insertItem = `
		INSERT INTO order_items (
			order_id, product_id, variant_id,
			product_name, variant_name, sku,
			fulfillment_product_id, fulfillment_variant_id,
			unit_price_pence, quantity, line_total_pence, currency
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	for _, item := range items {
		item.OrderID = order.ID
		err = tx.QueryRow(ctx, insertItem,
			item.OrderID,
			item.ProductID,
			item.VariantID,
			item.ProductName,
			item.VariantName,
			item.SKU,
			item.FulfillmentProductID,
			item.FulfillmentVariantID,
			item.UnitPricePence,
			item.Quantity,
			item.LineTotalPence,
			item.Currency,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item for variant %s: %w", item.VariantID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return s.scanOrder(s.pool.QueryRow(ctx, query, orderID))
}

func (s *OrderStore) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE checkout_session_id = $1`
	return s.scanOrder(s.pool.QueryRow(ctx, query, sessionID))
}

func (s *OrderStore) ItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error) {
	const query = `
		SELECT id, order_id, product_id, variant_id,
		       product_name, variant_name, sku,
		       fulfillment_product_id, fulfillment_variant_id,
		       unit_price_pence, quantity, line_total_pence, currency
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*OrderItem
	for rows.Next() {
		item := &OrderItem{}
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.ProductName, &item.VariantName, &item.SKU,
			&item.FulfillmentProductID, &item.FulfillmentVariantID,
			&item.UnitPricePence, &item.Quantity, &item.LineTotalPence, &item.Currency,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *OrderStore) ListRecent(ctx context.Context, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := s.scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *OrderStore) SetCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	const query = `UPDATE orders SET checkout_session_id = $1 WHERE id = $2`
	_, err := s.pool.Exec(ctx, query, sessionID, orderID)
	return err
}

// MarkPaid transitions the order to paid only from pending_payment. The WHERE
// clause is the idempotency guard: a redelivered or concurrently delivered
// webhook affects zero rows and gets ErrAlreadyPaid instead of a second
// transition.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentIntentID, sessionID string) error {
	const query = `
		UPDATE orders
		SET status = $1, payment_intent_id = $2, checkout_session_id = $3, paid_at = NOW()
		WHERE id = $4 AND status = 'pending_payment'
	`
	cmdTag, err := s.pool.Exec(ctx, query, StatusPaid, paymentIntentID, sessionID, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		status, statusErr := s.currentStatus(ctx, orderID)
		if statusErr != nil {
			return statusErr
		}
		switch status {
		case StatusPaid, StatusInProduction, StatusShipped, StatusDelivered:
			return ErrAlreadyPaid
		}
		return fmt.Errorf("%w: expected pending_payment, have %s", ErrInvalidStatusTransition, status)
	}
	return nil
}

func (s *OrderStore) MarkInProduction(ctx context.Context, orderID uuid.UUID, fulfillmentOrderID, fulfillmentStatus string) error {
	const query = `
		UPDATE orders
		SET status = $1, fulfillment_order_id = $2, fulfillment_status = $3
		WHERE id = $4 AND status = 'paid'
	`
	cmdTag, err := s.pool.Exec(ctx, query, StatusInProduction, fulfillmentOrderID, fulfillmentStatus, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected paid", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkExpired(ctx context.Context, orderID uuid.UUID) error {
	const query = `
		UPDATE orders
		SET status = $1
		WHERE id = $2 AND status = 'pending_payment'
	`
	cmdTag, err := s.pool.Exec(ctx, query, StatusExpired, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending_payment", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber, trackingURL, carrier string) error {
	const query = `
		UPDATE orders
		SET status = $1, tracking_number = $2, tracking_url = $3, carrier = $4, shipped_at = NOW()
		WHERE id = $5 AND status IN ('paid', 'in_production')
	`
	cmdTag, err := s.pool.Exec(ctx, query, StatusShipped, trackingNumber, trackingURL, carrier, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected paid/in_production", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	const query = `
		UPDATE orders
		SET status = $1, delivered_at = NOW()
		WHERE id = $2 AND status = 'shipped'
	`
	cmdTag, err := s.pool.Exec(ctx, query, StatusDelivered, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected shipped", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkCancelled(ctx context.Context, orderID uuid.UUID) error {
	const query = `
		UPDATE orders
		SET status = $1
		WHERE id = $2 AND status IN ('pending_payment', 'paid', 'in_production')
	`
	cmdTag, err := s.pool.Exec(ctx, query, StatusCancelled, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected a pre-shipped status", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	const query = `
		UPDATE orders
		SET status = $1
		WHERE id = $2 AND status IN ('paid', 'in_production', 'cancelled')
	`
	cmdTag, err := s.pool.Exec(ctx, query, StatusRefunded, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected paid/in_production/cancelled", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) currentStatus(ctx context.Context, orderID uuid.UUID) (OrderStatus, error) {
	var status string
	if err := s.pool.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status); err != nil {
		return "", err
	}
	return OrderStatus(status), nil
}

func (s *OrderStore) scanOrder(row pgx.Row) (*Order, error) {
	return scanOrderFrom(row)
}

func (s *OrderStore) scanOrderRow(rows pgx.Rows) (*Order, error) {
	return scanOrderFrom(rows)
}

func scanOrderFrom(row pgx.Row) (*Order, error) {
	var (
		order               Order
		status              string
		shippingAddressJSON []byte
		billingAddressJSON  []byte
		checkoutSessionID   pgtype.Text
		paymentIntentID     pgtype.Text
		fulfillmentOrderID  pgtype.Text
		fulfillmentStatus   pgtype.Text
		trackingNumber      pgtype.Text
		trackingURL         pgtype.Text
		carrier             pgtype.Text
		createdAt           pgtype.Timestamptz
		paidAt              pgtype.Timestamptz
		shippedAt           pgtype.Timestamptz
		deliveredAt         pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID, &order.OrderNumber, &status,
		&order.CustomerEmail, &order.CustomerName, &order.CustomerPhone,
		&shippingAddressJSON, &billingAddressJSON,
		&order.SubtotalPence, &order.ShippingPence, &order.TaxPence, &order.TotalPence, &order.Currency,
		&checkoutSessionID, &paymentIntentID,
		&fulfillmentOrderID, &fulfillmentStatus,
		&trackingNumber, &trackingURL, &carrier,
		&createdAt, &paidAt, &shippedAt, &deliveredAt,
	)
	if err != nil {
		return nil, err
	}

	order.Status = OrderStatus(status)
	order.CheckoutSessionID = checkoutSessionID.String
	order.PaymentIntentID = paymentIntentID.String
	order.FulfillmentOrderID = fulfillmentOrderID.String
	order.FulfillmentStatus = fulfillmentStatus.String
	order.TrackingNumber = trackingNumber.String
	order.TrackingURL = trackingURL.String
	order.Carrier = carrier.String
	order.CreatedAt = createdAt.Time
	order.PaidAt = paidAt.Time
	order.ShippedAt = shippedAt.Time
	order.DeliveredAt = deliveredAt.Time

	if order.ShippingAddress, err = unmarshalAddress(shippingAddressJSON); err != nil {
		return nil, err
	}
	if order.BillingAddress, err = unmarshalAddress(billingAddressJSON); err != nil {
		return nil, err
	}

	return &order, nil
}

func marshalAddress(address *Address) ([]byte, error) {
	if address == nil {
		return nil, nil
	}
	payload, err := json.Marshal(address)
	if err != nil {
		return nil, fmt.Errorf("failed to encode address: %w", err)
	}
	return payload, nil
}

func unmarshalAddress(payload []byte) (*Address, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var address Address
	if err := json.Unmarshal(payload, &address); err != nil {
		return nil, fmt.Errorf("failed to decode address: %w", err)
	}
	return &address, nil
}
