package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarhub/checkout/internal/domain/address"
)

const listAddressesByUserSQL = `SELECT id, user_id, COALESCE(label, ''),
		address, phone, COALESCE(line1, ''), COALESCE(line2, ''),
		COALESCE(district, ''), COALESCE(area, ''), COALESCE(post_code, ''),
		COALESCE(country, ''), latitude, longitude,
		COALESCE(is_default, FALSE), created_at
	FROM user_addresses WHERE user_id = $1 ORDER BY created_at DESC`

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
// Inserts happen inside the order transaction (orderTx.SaveAddress).
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// ListByUser returns a user's saved addresses, newest first.
func (r *AddressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses for user %q: %w", userID, err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (address.Address, error) {
		var a address.Address
		err := row.Scan(
			&a.ID, &a.UserID, &a.Label, &a.Address, &a.Phone,
			&a.Line1, &a.Line2, &a.District, &a.Area, &a.PostCode,
			&a.Country, &a.Latitude, &a.Longitude, &a.IsDefault, &a.CreatedAt,
		)
		return a, err
	})
}
