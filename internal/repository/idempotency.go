package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarhub/checkout/internal/domain/order"
)

const lookupTokenSQL = `SELECT token, user_id, order_id
	FROM order_idempotency_keys WHERE token = $1`

// Sizing for the in-process token filter. At 0.1% false positive rate a
// filter for one million tokens costs under 2 MiB.
const (
	tokenFilterCapacity = 1_000_000
	tokenFilterFPR      = 0.001
)

var _ order.Ledger = (*IdempotencyLedger)(nil)

// IdempotencyLedger maps client-supplied tokens to the orders they produced.
//
// A bloom filter fronts the lookup as a negative cache: a token this process
// has never seen skips the pre-check SELECT entirely. Tokens recorded by
// other replicas can slip past the filter, which is safe — such requests
// fall through to the ledger's primary key and take the conflict-retry path.
type IdempotencyLedger struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewIdempotencyLedger returns a ledger backed by the given pool.
func NewIdempotencyLedger(pool *pgxpool.Pool) *IdempotencyLedger {
	return &IdempotencyLedger{
		pool:   pool,
		filter: bloom.NewWithEstimates(tokenFilterCapacity, tokenFilterFPR),
	}
}

// MightContain reports whether token may have been recorded by this process.
// False positives occur at the configured rate; false negatives only for
// tokens recorded elsewhere.
func (l *IdempotencyLedger) MightContain(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter.TestString(token)
}

// Lookup reads the token mapping, or returns nil when the token is absent.
func (l *IdempotencyLedger) Lookup(ctx context.Context, token string) (*order.Ref, error) {
	rows, err := l.pool.Query(ctx, lookupTokenSQL, token)
	if err != nil {
		return nil, fmt.Errorf("looking up idempotency token: %w", err)
	}

	ref, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Ref, error) {
		var r order.Ref
		err := row.Scan(&r.Token, &r.UserID, &r.OrderID)
		return r, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up idempotency token: %w", err)
	}

	return &ref, nil
}

func (l *IdempotencyLedger) remember(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter.AddString(token)
}
