package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
	StatusInProduction   OrderStatus = "in_production"
	StatusShipped        OrderStatus = "shipped"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
	StatusExpired        OrderStatus = "expired"
)

// Address is the shipping/billing snapshot captured at order time. It is
// stored as JSON on the order and never re-resolved against a live customer
// record.
type Address struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

type Order struct {
	ID            uuid.UUID   `json:"id"`
	OrderNumber   int         `json:"order_number"`
	Status        OrderStatus `json:"status"`
	CustomerEmail string      `json:"customer_email"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`

	ShippingAddress *Address `json:"shipping_address"`
	BillingAddress  *Address `json:"billing_address,omitempty"`

	SubtotalPence int    `json:"subtotal_pence"`
	ShippingPence int    `json:"shipping_pence"`
	TaxPence      int    `json:"tax_pence"`
	TotalPence    int    `json:"total_pence"`
	Currency      string `json:"currency"`

	CheckoutSessionID string `json:"checkout_session_id"`
	PaymentIntentID   string `json:"payment_intent_id"`

	FulfillmentOrderID string `json:"fulfillment_order_id"`
	FulfillmentStatus  string `json:"fulfillment_status"`
	TrackingNumber     string `json:"tracking_number"`
	TrackingURL        string `json:"tracking_url"`
	Carrier            string `json:"carrier"`

	CreatedAt   time.Time `json:"created_at"`
	PaidAt      time.Time `json:"paid_at"`
	ShippedAt   time.Time `json:"shipped_at"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// OrderItem is one purchased line. Name, SKU, price and the fulfillment
// product/variant ids are denormalized at purchase time; they are the durable
// record of what was sold and must not follow later catalog edits.
type OrderItem struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id"`

	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	SKU         string `json:"sku"`

	FulfillmentProductID string `json:"fulfillment_product_id"`
	FulfillmentVariantID string `json:"fulfillment_variant_id"`

	UnitPricePence int    `json:"unit_price_pence"`
	Quantity       int    `json:"quantity"`
	LineTotalPence int    `json:"line_total_pence"`
	Currency       string `json:"currency"`
}
