package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarhub/checkout/internal/domain/order"
)

const (
	orderColumns = `id, user_id, status, payment_status,
		shipping_address, shipping_phone_number,
		COALESCE(shipping_email, ''), COALESCE(shipping_line1, ''),
		COALESCE(shipping_city, ''), COALESCE(shipping_district, ''),
		COALESCE(shipping_instructions, ''),
		sub_total, shipping_cost, tax_total, discount_total, total,
		created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersFirstPageSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	listOrdersAfterCursorSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	countOrdersSQL = `SELECT count(*) FROM orders`

	orderItemColumns = `id, order_id, product_id, product_name,
		COALESCE(product_image, ''), cost_price, unit_price, discounted_price,
		quantity, total_price`

	getItemsByOrderSQL = `SELECT ` + orderItemColumns + ` FROM order_items
		WHERE order_id = $1 ORDER BY created_at, id`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Placement writes
// run through InTx; reads use the pool directly at default isolation.
type OrderStore struct {
	pool   *pgxpool.Pool
	ledger *IdempotencyLedger
}

// NewOrderStore returns an OrderStore that uses the given pool. The ledger
// is notified of recorded tokens so its negative cache stays warm.
func NewOrderStore(pool *pgxpool.Pool, ledger *IdempotencyLedger) *OrderStore {
	return &OrderStore{pool: pool, ledger: ledger}
}

// InTx runs fn inside a single database transaction. Any error from fn (or
// from commit) rolls the whole transaction back.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx, ledger: s.ledger})
	})
}

// GetByID returns an order with its items.
func (s *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	itemRows, err := s.pool.Query(ctx, getItemsByOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", id, err)
	}

	return &o, nil
}

// ListByUser returns one page of a user's orders, newest first. The cursor
// is opaque to callers and encodes the last row's (created_at, id) pair.
func (s *OrderStore) ListByUser(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]order.Order, string, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if cursor == "" {
		rows, err = s.pool.Query(ctx, listOrdersFirstPageSQL, userID, limit)
	} else {
		var after cursorKey
		after, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		rows, err = s.pool.Query(ctx, listOrdersAfterCursorSQL, userID, after.createdAt, after.id, limit)
	}
	if err != nil {
		return nil, "", fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	page, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, "", fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	next := ""
	if len(page) == limit {
		last := page[len(page)-1]
		next = encodeCursor(cursorKey{createdAt: last.CreatedAt, id: last.ID})
	}

	return page, next, nil
}

// ListAll returns one page of all orders (operator view) plus the total
// order count. Pages are 1-based.
func (s *OrderStore) ListAll(ctx context.Context, page, limit int) ([]order.Order, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx, listAllOrdersSQL, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	result, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	var total int
	if err := s.pool.QueryRow(ctx, countOrdersSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	return result, total, nil
}

// cursorKey is the natural ordering key behind an opaque pagination cursor.
type cursorKey struct {
	createdAt time.Time
	id        uuid.UUID
}

var errBadCursor = errors.New("malformed pagination cursor")

func encodeCursor(k cursorKey) string {
	raw := strconv.FormatInt(k.createdAt.UnixMicro(), 10) + "|" + k.id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (cursorKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursorKey{}, errBadCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return cursorKey{}, errBadCursor
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return cursorKey{}, errBadCursor
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return cursorKey{}, errBadCursor
	}

	return cursorKey{createdAt: time.UnixMicro(micros).UTC(), id: id}, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.Shipping.Address, &o.Shipping.PhoneNumber,
		&o.Shipping.Email, &o.Shipping.Line1,
		&o.Shipping.City, &o.Shipping.District,
		&o.Shipping.Instructions,
		&o.SubTotal, &o.ShippingCost, &o.TaxTotal, &o.DiscountTotal, &o.Total,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
		&it.ProductImage, &it.CostPrice, &it.UnitPrice, &it.DiscountedPrice,
		&it.Quantity, &it.TotalPrice,
	)
	return it, err
}
