package order

import (
	"context"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarhub/checkout/internal/domain/address"
	"github.com/bazarhub/checkout/internal/domain/product"
)

// --- In-memory store fake ---
//
// fakeStore implements Store with staged writes: changes made through the Tx
// are buffered and applied only when the InTx callback succeeds, mirroring
// the rollback behavior of a real database transaction.

type fakeStore struct {
	products  map[uuid.UUID]*product.Product
	orders    map[uuid.UUID]*Order
	tokens    map[string]Ref
	addresses []address.Address

	// forceStockConflict makes DecrementStock fail for the given product,
	// simulating a concurrent transaction winning the guarded update.
	forceStockConflict map[uuid.UUID]bool
}

func newFakeStore(products ...product.Product) *fakeStore {
	s := &fakeStore{
		products:           make(map[uuid.UUID]*product.Product),
		orders:             make(map[uuid.UUID]*Order),
		tokens:             make(map[string]Ref),
		forceStockConflict: make(map[uuid.UUID]bool),
	}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
	}
	return s
}

func (s *fakeStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &fakeTx{
		store:       s,
		stagedStock: make(map[uuid.UUID]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) ListByUser(_ context.Context, userID uuid.UUID, _ string, limit int) ([]Order, string, error) {
	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, "", nil
}

func (s *fakeStore) ListAll(_ context.Context, _, limit int) ([]Order, int, error) {
	var out []Order
	for _, o := range s.orders {
		out = append(out, *o)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, len(s.orders), nil
}

type fakeTx struct {
	store *fakeStore

	stagedOrder *Order
	stagedItems []Item
	stagedStock map[uuid.UUID]int
	stagedAddrs []address.Address
	stagedToken *Ref
}

func (t *fakeTx) LockProducts(_ context.Context, ids []uuid.UUID) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := t.store.products[id]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (t *fakeTx) InsertOrder(_ context.Context, o *Order) error {
	cp := *o
	t.stagedOrder = &cp
	return nil
}

func (t *fakeTx) InsertItems(_ context.Context, items []Item) error {
	t.stagedItems = append(t.stagedItems, items...)
	return nil
}

func (t *fakeTx) DecrementStock(_ context.Context, productID uuid.UUID, quantity int) error {
	if t.store.forceStockConflict[productID] {
		return ErrStockConflict
	}
	p, ok := t.store.products[productID]
	if !ok {
		return ErrStockConflict
	}
	if p.StockQuantity-t.stagedStock[productID] < quantity {
		return ErrStockConflict
	}
	t.stagedStock[productID] += quantity
	return nil
}

func (t *fakeTx) SaveAddress(_ context.Context, a *address.Address) error {
	t.stagedAddrs = append(t.stagedAddrs, *a)
	return nil
}

func (t *fakeTx) RecordToken(_ context.Context, ref Ref) error {
	if _, exists := t.store.tokens[ref.Token]; exists {
		return ErrTokenExists
	}
	t.stagedToken = &ref
	return nil
}

func (t *fakeTx) commit() {
	if t.stagedOrder != nil {
		t.stagedOrder.Items = t.stagedItems
		t.store.orders[t.stagedOrder.ID] = t.stagedOrder
	}
	for id, qty := range t.stagedStock {
		t.store.products[id].StockQuantity -= qty
	}
	t.store.addresses = append(t.store.addresses, t.stagedAddrs...)
	if t.stagedToken != nil {
		t.store.tokens[t.stagedToken.Token] = *t.stagedToken
	}
}

// fakeLedger fronts the store's token map. seen mimics the bloom filter: a
// token absent from it skips the pre-check, like a token recorded by another
// replica would.
type fakeLedger struct {
	store *fakeStore
	seen  map[string]bool
}

func newFakeLedger(store *fakeStore) *fakeLedger {
	return &fakeLedger{store: store, seen: make(map[string]bool)}
}

func (l *fakeLedger) MightContain(token string) bool {
	return l.seen[token]
}

func (l *fakeLedger) Lookup(_ context.Context, token string) (*Ref, error) {
	ref, ok := l.store.tokens[token]
	if !ok {
		return nil, nil
	}
	return &ref, nil
}

// --- Helpers ---

func newService(store *fakeStore) (*Service, *fakeLedger) {
	ledger := newFakeLedger(store)
	return NewService(store, ledger), ledger
}

func validRequest(userID uuid.UUID, token string, items ...RequestItem) PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID:           userID,
		IdempotencyToken: token,
		Items:            items,
		Shipping: ShippingAddress{
			Address:     "House 12, Road 5, Dhanmondi",
			PhoneNumber: "+8801712345678",
		},
		ShippingCost:  dec("2.00"),
		TaxTotal:      dec("1.00"),
		DiscountTotal: dec("0.00"),
	}
}

// --- Tests ---

func TestPlaceOrder_TokenRequired(t *testing.T) {
	svc, _ := newService(newFakeStore())

	req := validRequest(uuid.New(), "")
	req.Items = []RequestItem{{ProductID: uuid.New(), Quantity: 1}}

	_, err := svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrTokenRequired)
}

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc, _ := newService(newFakeStore())

	_, err := svc.PlaceOrder(context.Background(), validRequest(uuid.New(), "tok-1"))
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	p := newTestProduct("widget", 5, "10.00")
	svc, _ := newService(newFakeStore(p))

	_, err := svc.PlaceOrder(context.Background(),
		validRequest(uuid.New(), "tok-1", RequestItem{ProductID: p.ID, Quantity: 0}))

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, p.ID, iqErr.ProductID)
}

func TestPlaceOrder_Success(t *testing.T) {
	p := newTestProduct("widget", 5, "10.00")
	store := newFakeStore(p)
	svc, _ := newService(store)
	userID := uuid.New()

	result, err := svc.PlaceOrder(context.Background(),
		validRequest(userID, "tok-1", RequestItem{ProductID: p.ID, Quantity: 3}))

	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
	assert.False(t, result.Replayed)
	require.Len(t, result.Items, 1)
	assert.True(t, dec("10.00").Equal(result.Items[0].UnitPrice))
	assert.True(t, dec("30.00").Equal(result.Items[0].TotalPrice))

	// Persisted order carries the totals and address snapshot.
	persisted := store.orders[result.ID]
	require.NotNil(t, persisted)
	assert.Equal(t, userID, persisted.UserID)
	assert.True(t, dec("30.00").Equal(persisted.SubTotal))
	assert.True(t, dec("33.00").Equal(persisted.Total))
	assert.Equal(t, "House 12, Road 5, Dhanmondi", persisted.Shipping.Address)
	require.Len(t, persisted.Items, 1)
	assert.Equal(t, "widget", persisted.Items[0].ProductName)

	// Stock decremented, token recorded.
	assert.Equal(t, 2, store.products[p.ID].StockQuantity)
	assert.Equal(t, result.ID, store.tokens["tok-1"].OrderID)
}

func TestPlaceOrder_SequentialRetryReturnsSameOrder(t *testing.T) {
	p := newTestProduct("widget", 5, "10.00")
	store := newFakeStore(p)
	svc, ledger := newService(store)
	userID := uuid.New()

	req := validRequest(userID, "tok-1", RequestItem{ProductID: p.ID, Quantity: 3})

	first, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	ledger.seen["tok-1"] = true

	second, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, StatusPending, second.Status)
	assert.True(t, second.Replayed)

	// No further stock movement, exactly one order.
	assert.Equal(t, 2, store.products[p.ID].StockQuantity)
	assert.Len(t, store.orders, 1)
}

func TestPlaceOrder_TokenConflictReturnsWinner(t *testing.T) {
	p := newTestProduct("widget", 5, "10.00")
	store := newFakeStore(p)
	svc, _ := newService(store)
	userID := uuid.New()

	// Another replica already committed this token: the mapping exists in
	// the store but this process's filter has never seen it, so the
	// pre-check is skipped and the transaction runs into the constraint.
	winner := &Order{ID: uuid.New(), UserID: userID, Status: StatusPending}
	store.orders[winner.ID] = winner
	store.tokens["tok-1"] = Ref{Token: "tok-1", UserID: userID, OrderID: winner.ID}

	result, err := svc.PlaceOrder(context.Background(),
		validRequest(userID, "tok-1", RequestItem{ProductID: p.ID, Quantity: 3}))

	require.NoError(t, err)
	assert.Equal(t, winner.ID, result.ID)
	assert.True(t, result.Replayed)

	// The losing transaction rolled back: no stock movement, one order.
	assert.Equal(t, 5, store.products[p.ID].StockQuantity)
	assert.Len(t, store.orders, 1)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	store := newFakeStore()
	svc, _ := newService(store)
	missing := uuid.New()

	_, err := svc.PlaceOrder(context.Background(),
		validRequest(uuid.New(), "tok-1", RequestItem{ProductID: missing, Quantity: 1}))

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, missing, pnfErr.ProductID)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.tokens)
}

func TestPlaceOrder_OutOfStock(t *testing.T) {
	p := newTestProduct("widget", 2, "10.00")
	store := newFakeStore(p)
	svc, _ := newService(store)

	_, err := svc.PlaceOrder(context.Background(),
		validRequest(uuid.New(), "tok-1", RequestItem{ProductID: p.ID, Quantity: 10}))

	var oosErr *OutOfStockError
	require.ErrorAs(t, err, &oosErr)
	assert.Equal(t, p.ID, oosErr.ProductID)
	assert.Equal(t, 10, oosErr.Requested)
	assert.Equal(t, 2, oosErr.Available)

	// Nothing persisted, stock untouched.
	assert.Equal(t, 2, store.products[p.ID].StockQuantity)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.tokens)
}

func TestPlaceOrder_AggregatesDuplicateLines(t *testing.T) {
	p := newTestProduct("widget", 5, "10.00")
	store := newFakeStore(p)
	svc, _ := newService(store)

	// Two lines for the same product: 3 + 3 > 5 in stock.
	_, err := svc.PlaceOrder(context.Background(),
		validRequest(uuid.New(), "tok-1",
			RequestItem{ProductID: p.ID, Quantity: 3},
			RequestItem{ProductID: p.ID, Quantity: 3},
		))

	var oosErr *OutOfStockError
	require.ErrorAs(t, err, &oosErr)
	assert.Equal(t, 6, oosErr.Requested)
	assert.Equal(t, 5, store.products[p.ID].StockQuantity)
}

func TestPlaceOrder_AtomicOnStockConflict(t *testing.T) {
	p1 := newTestProduct("widget", 5, "10.00")
	p2 := newTestProduct("gadget", 5, "20.00")
	store := newFakeStore(p1, p2)
	store.forceStockConflict[p2.ID] = true
	svc, _ := newService(store)

	_, err := svc.PlaceOrder(context.Background(),
		validRequest(uuid.New(), "tok-1",
			RequestItem{ProductID: p1.ID, Quantity: 2},
			RequestItem{ProductID: p2.ID, Quantity: 2},
		))

	var oosErr *OutOfStockError
	require.ErrorAs(t, err, &oosErr)
	assert.Equal(t, p2.ID, oosErr.ProductID)

	// The first product's staged decrement must not be visible either.
	assert.Equal(t, 5, store.products[p1.ID].StockQuantity)
	assert.Equal(t, 5, store.products[p2.ID].StockQuantity)
	assert.Empty(t, store.orders)
	assert.Empty(t, store.tokens)
}

func TestPlaceOrder_SavesAddressOnce(t *testing.T) {
	p := newTestProduct("widget", 5, "10.00")
	store := newFakeStore(p)
	svc, ledger := newService(store)
	userID := uuid.New()

	req := validRequest(userID, "tok-1", RequestItem{ProductID: p.ID, Quantity: 1})
	req.SaveAddress = true
	req.AddressLabel = "Office"

	_, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	ledger.seen["tok-1"] = true

	// A retried submission must not duplicate the saved address.
	_, err = svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, store.addresses, 1)
	assert.Equal(t, "Office", store.addresses[0].Label)
	assert.Equal(t, userID, store.addresses[0].UserID)
}

func TestGetOrder_NotFound(t *testing.T) {
	svc, _ := newService(newFakeStore())

	_, err := svc.GetOrder(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
