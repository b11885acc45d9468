package order

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/bazarhub/checkout/internal/domain/address"
	"github.com/bazarhub/checkout/internal/domain/product"
)

// Service encapsulates the order placement transaction and order reads.
type Service struct {
	store  Store
	ledger Ledger
}

// NewService creates an order Service with the required dependencies.
func NewService(store Store, ledger Ledger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
	}
}

// PlaceOrder places an order exactly once per idempotency token.
//
// The ledger pre-check is an optimization for retried submissions; the
// authoritative dedup signal is the token's primary key. When the final
// RecordToken insert loses a race, the whole transaction rolls back and the
// winner's order is returned instead.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.IdempotencyToken == "" {
		return nil, ErrTokenRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
	}

	if s.ledger.MightContain(req.IdempotencyToken) {
		ref, err := s.ledger.Lookup(ctx, req.IdempotencyToken)
		if err != nil {
			return nil, errors.Wrap(err, "ledger lookup")
		}
		if ref != nil {
			return s.replay(ctx, ref)
		}
	}

	var result *PlaceOrderResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		placed, err := s.placeInTx(ctx, tx, req)
		if err != nil {
			return err
		}
		result = placed
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenExists) {
			return s.replayWinner(ctx, req.IdempotencyToken)
		}
		return nil, err
	}

	return result, nil
}

// placeInTx runs steps 3-8 of the placement state machine inside one
// transaction: reserve, price, persist, decrement, optional address save,
// ledger insert.
func (s *Service) placeInTx(ctx context.Context, tx Tx, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	byID, err := s.reserveProducts(ctx, tx, req.Items)
	if err != nil {
		return nil, err
	}

	pricing, err := Price(req.Items, byID, req.ShippingCost, req.TaxTotal, req.DiscountTotal)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Shipping:      req.Shipping,
		SubTotal:      pricing.SubTotal,
		ShippingCost:  pricing.ShippingCost,
		TaxTotal:      pricing.TaxTotal,
		DiscountTotal: pricing.DiscountTotal,
		Total:         pricing.Total,
	}
	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	items := pricing.Items
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = o.ID
	}
	if err := tx.InsertItems(ctx, items); err != nil {
		return nil, errors.Wrap(err, "insert order items")
	}

	// Guarded decrement per line. A zero-row update here means another
	// transaction took the stock between our read and this write; abort.
	for _, it := range req.Items {
		if err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, ErrStockConflict) {
				p := byID[it.ProductID]
				return nil, &OutOfStockError{
					ProductID: it.ProductID,
					Requested: it.Quantity,
					Available: p.StockQuantity,
				}
			}
			return nil, errors.Wrapf(err, "decrement stock for product %s", it.ProductID)
		}
	}

	if req.SaveAddress {
		if err := tx.SaveAddress(ctx, savedAddress(req)); err != nil {
			return nil, errors.Wrap(err, "save address")
		}
	}

	if err := tx.RecordToken(ctx, Ref{
		Token:   req.IdempotencyToken,
		UserID:  req.UserID,
		OrderID: o.ID,
	}); err != nil {
		if errors.Is(err, ErrTokenExists) {
			return nil, err
		}
		return nil, errors.Wrap(err, "record idempotency token")
	}

	placedItems := make([]PlacedItem, len(items))
	for i, it := range items {
		placedItems[i] = PlacedItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}

	return &PlaceOrderResult{
		ID:     o.ID,
		Status: o.Status,
		Items:  placedItems,
	}, nil
}

// reserveProducts locks every referenced product row in ascending id order
// and verifies stock against the aggregated requested quantity per product.
func (s *Service) reserveProducts(ctx context.Context, tx Tx, items []RequestItem) (map[uuid.UUID]product.Product, error) {
	required := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		required[it.ProductID] += it.Quantity
	}

	// A stable global lock order avoids cross-transaction deadlock when two
	// orders reference overlapping product sets.
	ids := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}

	byID := make(map[uuid.UUID]product.Product, len(locked))
	for _, p := range locked {
		byID[p.ID] = p
	}

	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		if p.StockQuantity < required[id] {
			return nil, &OutOfStockError{
				ProductID: id,
				Requested: required[id],
				Available: p.StockQuantity,
			}
		}
	}

	return byID, nil
}

// replayWinner handles the lost idempotency race: the transaction rolled
// back on the token's unique constraint, so the mapping must now exist.
func (s *Service) replayWinner(ctx context.Context, token string) (*PlaceOrderResult, error) {
	ref, err := s.ledger.Lookup(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "ledger lookup after conflict")
	}
	if ref == nil {
		return nil, errors.Wrap(ErrTokenExists, "token conflict but mapping absent")
	}
	return s.replay(ctx, ref)
}

// replay returns the already-created order for a token without re-running
// pricing or inventory logic.
func (s *Service) replay(ctx context.Context, ref *Ref) (*PlaceOrderResult, error) {
	o, err := s.store.GetByID(ctx, ref.OrderID)
	if err != nil {
		return nil, errors.Wrapf(err, "load order %s for token replay", ref.OrderID)
	}

	items := make([]PlacedItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = PlacedItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		}
	}

	return &PlaceOrderResult{
		ID:       o.ID,
		Status:   o.Status,
		Items:    items,
		Replayed: true,
	}, nil
}

func savedAddress(req PlaceOrderRequest) *address.Address {
	label := req.AddressLabel
	if label == "" {
		label = "Home"
	}
	return &address.Address{
		ID:       uuid.New(),
		UserID:   req.UserID,
		Label:    label,
		Address:  req.Shipping.Address,
		Phone:    req.Shipping.PhoneNumber,
		Line1:    req.Shipping.Line1,
		District: req.Shipping.District,
	}
}

// GetOrder returns a single order with its items.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.store.GetByID(ctx, id)
}

// ListUserOrders returns one page of a user's orders in reverse
// chronological order, with an opaque cursor for the next page.
func (s *Service) ListUserOrders(ctx context.Context, userID uuid.UUID, cursor string, limit int) ([]Order, string, error) {
	return s.store.ListByUser(ctx, userID, cursor, limit)
}

// ListAllOrders returns one page of all orders for operators, plus the total
// order count.
func (s *Service) ListAllOrders(ctx context.Context, page, limit int) ([]Order, int, error) {
	return s.store.ListAll(ctx, page, limit)
}
