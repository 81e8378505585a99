package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VariantStore is read-only to the checkout path. Prices and fulfillment ids
// always come from here, never from the client.
type VariantStore struct {
	pool *pgxpool.Pool
}

func NewVariantStore(pool *pgxpool.Pool) *VariantStore {
	return &VariantStore{pool: pool}
}

// GetActiveByIDs returns the active, in-stock variants among the requested
// ids, joined with their product for snapshot fields. Missing, inactive, and
// out-of-stock ids are simply absent from the result; the caller decides what
// that means.
func (s *VariantStore) GetActiveByIDs(ctx context.Context, variantIDs []uuid.UUID) ([]*Variant, error) {
	const query = `
		SELECT v.id, v.product_id, v.name, v.sku,
		       v.price_pence, v.currency,
		       v.fulfillment_product_id, v.fulfillment_variant_id,
		       p.name, p.image_url,
		       v.active, v.in_stock
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1) AND v.active AND p.active AND v.in_stock
	`
	rows, err := s.pool.Query(ctx, query, variantIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []*Variant
	for rows.Next() {
		variant := &Variant{}
		err := rows.Scan(
			&variant.ID, &variant.ProductID, &variant.Name, &variant.SKU,
			&variant.PricePence, &variant.Currency,
			&variant.FulfillmentProductID, &variant.FulfillmentVariantID,
			&variant.ProductName, &variant.ProductImageURL,
			&variant.Active, &variant.InStock,
		)
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
	return variants, rows.Err()
}
