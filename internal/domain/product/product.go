package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item. The checkout core treats it as
// read-only except for the guarded stock decrement performed inside the
// order transaction.
type Product struct {
	ID            uuid.UUID
	Name          string
	Slug          string
	Description   string
	ImageURL      string
	StockQuantity int
	CostPrice     decimal.Decimal
	RegularPrice  decimal.Decimal
	SalePrice     *decimal.Decimal
	IsPublished   bool
}

// Repository defines read operations on the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
}
