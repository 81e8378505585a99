package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Variant is a purchasable SKU of a Product. The core reads variants to price
// and validate carts and never writes them; price is authoritative here, not
// in anything the client sends.
type Variant struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`

	Name string `json:"name"`
	SKU  string `json:"sku"`

	PricePence int    `json:"price_pence"`
	Currency   string `json:"currency"`

	FulfillmentProductID string `json:"fulfillment_product_id"`
	FulfillmentVariantID string `json:"fulfillment_variant_id"`

	ProductName     string `json:"product_name"`
	ProductImageURL string `json:"product_image_url"`

	Active  bool `json:"active"`
	InStock bool `json:"in_stock"`
}
