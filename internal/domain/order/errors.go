package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Sentinel errors for order placement.
var (
	ErrTokenRequired = errors.New("idempotency token required")
	ErrEmptyItems    = errors.New("items required")
	ErrNotFound      = errors.New("order not found")

	// ErrTokenExists is returned by Tx.RecordToken when the token row already
	// exists. The service treats it as "another request won the race" and
	// re-reads the ledger instead of failing.
	ErrTokenExists = errors.New("idempotency token already recorded")

	// ErrStockConflict is returned by Tx.DecrementStock when the guarded
	// update matches no row.
	ErrStockConflict = errors.New("stock decrement guard failed")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID uuid.UUID
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// OutOfStockError indicates a product cannot cover the requested quantity.
type OutOfStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %s is out of stock: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// NegativeAmountError indicates a monetary input that must be non-negative.
type NegativeAmountError struct {
	Field string
}

func (e *NegativeAmountError) Error() string {
	return fmt.Sprintf("%s must not be negative", e.Field)
}
