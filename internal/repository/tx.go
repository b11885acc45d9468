package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bazarhub/checkout/internal/domain/address"
	"github.com/bazarhub/checkout/internal/domain/order"
	"github.com/bazarhub/checkout/internal/domain/product"
)

const (
	insertOrderSQL = `INSERT INTO orders (
		id, user_id, status, payment_status,
		shipping_address, shipping_phone_number, shipping_email,
		shipping_line1, shipping_city, shipping_district, shipping_instructions,
		sub_total, shipping_cost, tax_total, discount_total, total
	) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''),
		NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''),
		$12, $13, $14, $15, $16)
	RETURNING created_at, updated_at`

	recordTokenSQL = `INSERT INTO order_idempotency_keys (token, user_id, order_id)
		VALUES ($1, $2, $3)`

	saveAddressSQL = `INSERT INTO user_addresses (
		id, user_id, label, address, phone, line1, line2, district, area,
		post_code, country, latitude, longitude, is_default
	) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''),
		NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''),
		COALESCE(NULLIF($11, ''), 'Bangladesh'), $12, $13, $14)`
)

var _ order.Tx = (*orderTx)(nil)

// orderTx is the unit of work for one order placement. All statements run on
// the same pgx.Tx; the enclosing OrderStore.InTx commits or rolls back.
type orderTx struct {
	tx     pgx.Tx
	ledger *IdempotencyLedger
}

// LockProducts acquires FOR UPDATE row locks on the referenced products. The
// statement orders by id so concurrent placements always lock in the same
// global order.
func (t *orderTx) LockProducts(ctx context.Context, ids []uuid.UUID) ([]product.Product, error) {
	rows, err := t.tx.Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, o.Status, o.PaymentStatus,
		o.Shipping.Address, o.Shipping.PhoneNumber, o.Shipping.Email,
		o.Shipping.Line1, o.Shipping.City, o.Shipping.District,
		o.Shipping.Instructions,
		o.SubTotal, o.ShippingCost, o.TaxTotal, o.DiscountTotal, o.Total,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}
	return nil
}

// InsertItems bulk-inserts the order's line items via COPY.
func (t *orderTx) InsertItems(ctx context.Context, items []order.Item) error {
	_, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{
			"id", "order_id", "product_id", "product_name", "product_image",
			"cost_price", "unit_price", "discounted_price", "quantity", "total_price",
		},
		pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
			it := items[i]
			var image any
			if it.ProductImage != "" {
				image = it.ProductImage
			}
			return []any{
				it.ID, it.OrderID, it.ProductID, it.ProductName, image,
				it.CostPrice, it.UnitPrice, it.DiscountedPrice, it.Quantity, it.TotalPrice,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("inserting order items: %w", err)
	}
	return nil
}

// DecrementStock performs the guarded decrement. The predicate re-checks
// availability at write time, so the operation stays correct even if the
// earlier read-then-check window was not perfectly serialized.
func (t *orderTx) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrementing stock for product %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStockConflict
	}
	return nil
}

func (t *orderTx) SaveAddress(ctx context.Context, a *address.Address) error {
	_, err := t.tx.Exec(ctx, saveAddressSQL,
		a.ID, a.UserID, a.Label, a.Address, a.Phone,
		a.Line1, a.Line2, a.District, a.Area, a.PostCode, a.Country,
		a.Latitude, a.Longitude, a.IsDefault,
	)
	if err != nil {
		return fmt.Errorf("saving address for user %q: %w", a.UserID, err)
	}
	return nil
}

// RecordToken inserts the idempotency mapping. A unique violation means a
// concurrent request with the same token committed first.
func (t *orderTx) RecordToken(ctx context.Context, ref order.Ref) error {
	_, err := t.tx.Exec(ctx, recordTokenSQL, ref.Token, ref.UserID, ref.OrderID)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrTokenExists
		}
		return fmt.Errorf("recording idempotency token: %w", err)
	}

	// Warm the negative cache. The transaction may still roll back, which
	// only costs a spurious lookup later; bloom false positives are expected.
	t.ledger.remember(ref.Token)

	return nil
}
