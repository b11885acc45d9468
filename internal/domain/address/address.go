package address

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Address is a reusable shipping address saved for future pre-fill. Orders
// never reference these rows; each order carries its own embedded snapshot.
type Address struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Label     string
	Address   string
	Phone     string
	Line1     string
	Line2     string
	District  string
	Area      string
	PostCode  string
	Country   string
	Latitude  *decimal.Decimal
	Longitude *decimal.Decimal
	IsDefault bool
	CreatedAt time.Time
}

// Repository defines read operations on saved addresses. Writes happen only
// inside the order transaction (see order.Tx.SaveAddress).
type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Address, error)
}
