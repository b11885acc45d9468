package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazarhub/checkout/internal/domain/address"
	"github.com/bazarhub/checkout/internal/domain/product"
)

// Order lifecycle statuses owned by this core. Later transitions
// (fulfillment, cancellation) belong to other collaborators.
const (
	StatusPending = "pending"

	PaymentUnpaid = "unpaid"
)

// ShippingAddress is the address snapshot embedded in an order. It is copied
// by value at order time and never references a mutable address row.
type ShippingAddress struct {
	Address      string
	PhoneNumber  string
	Email        string
	Line1        string
	City         string
	District     string
	Instructions string
}

// Order is an order header with its monetary totals and address snapshot.
type Order struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Status        string
	PaymentStatus string

	Shipping ShippingAddress

	SubTotal      decimal.Decimal
	ShippingCost  decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal

	Items []Item

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one line of an order. All product fields are snapshots frozen at
// pricing time so later catalog edits never alter historical orders.
type Item struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProductID       uuid.UUID
	ProductName     string
	ProductImage    string
	CostPrice       decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountedPrice *decimal.Decimal
	Quantity        int
	TotalPrice      decimal.Decimal
}

// Ref maps an idempotency token to the order it produced.
type Ref struct {
	Token   string
	UserID  uuid.UUID
	OrderID uuid.UUID
}

// RequestItem is a requested (product, quantity) pair.
type RequestItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// PlaceOrderRequest is the validated input for order placement, as delivered
// by the upstream request layer.
type PlaceOrderRequest struct {
	UserID           uuid.UUID
	IdempotencyToken string
	Items            []RequestItem

	Shipping      ShippingAddress
	ShippingCost  decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal

	// SaveAddress persists the shipping address for future pre-fill. The
	// save rides in the order transaction, so it happens at most once per
	// token.
	SaveAddress  bool
	AddressLabel string
}

// PlacedItem is one priced line in a placement result.
type PlacedItem struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// PlaceOrderResult is returned from PlaceOrder. Replayed is true when the
// idempotency token already mapped to an order and no new order was created.
type PlaceOrderResult struct {
	ID       uuid.UUID
	Status   string
	Items    []PlacedItem
	Replayed bool
}

// Tx is the unit of work for one order placement. Every method runs inside
// the same database transaction; any error aborts the whole transaction.
type Tx interface {
	// LockProducts acquires row locks on the given products in ascending id
	// order and returns the locked rows. Missing ids are simply absent from
	// the result.
	LockProducts(ctx context.Context, ids []uuid.UUID) ([]product.Product, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, items []Item) error
	// DecrementStock performs the guarded decrement. It returns
	// ErrStockConflict when the guard predicate matches no row.
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
	SaveAddress(ctx context.Context, a *address.Address) error
	// RecordToken inserts the idempotency mapping. It returns ErrTokenExists
	// when the token is already present.
	RecordToken(ctx context.Context, ref Ref) error
}

// Store provides transactional and read access to orders.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]Order, string, error)
	ListAll(ctx context.Context, page, limit int) ([]Order, int, error)
}

// Ledger is the idempotency ledger consulted before the transaction opens.
type Ledger interface {
	// MightContain reports whether the token could have been recorded. A
	// false result from a fresh process is possible for tokens recorded
	// elsewhere; the ledger's primary key remains the authoritative dedup
	// signal.
	MightContain(token string) bool
	// Lookup reads the token mapping from the store, or nil when absent.
	Lookup(ctx context.Context, token string) (*Ref, error)
}
