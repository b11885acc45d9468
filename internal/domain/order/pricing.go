package order

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazarhub/checkout/internal/domain/product"
)

// moneyPlaces is the fixed number of fractional digits carried by every
// monetary value. Inputs with excess precision are rounded with banker's
// rounding, once, on the way in.
const moneyPlaces = 2

// Pricing is the result of pricing a cart against locked product snapshots.
// Items carry the frozen product snapshots; totals satisfy
// Total = SubTotal + ShippingCost + TaxTotal - DiscountTotal to the cent.
type Pricing struct {
	Items         []Item
	SubTotal      decimal.Decimal
	ShippingCost  decimal.Decimal
	TaxTotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
}

// normalizeAmount brings an input amount to the fixed scale and rejects
// negatives.
func normalizeAmount(field string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Decimal{}, &NegativeAmountError{Field: field}
	}
	return amount.RoundBank(moneyPlaces), nil
}

// Price computes per-line and order-level totals using exact decimal
// arithmetic and freezes each product's name, image, and prices as line-item
// snapshots. It is a pure function: it never re-reads catalog state, so the
// caller must pass the rows locked by the enclosing transaction.
func Price(
	items []RequestItem,
	products map[uuid.UUID]product.Product,
	shippingCost, taxTotal, discountTotal decimal.Decimal,
) (*Pricing, error) {
	shippingCost, err := normalizeAmount("shipping_cost", shippingCost)
	if err != nil {
		return nil, err
	}
	taxTotal, err = normalizeAmount("tax_total", taxTotal)
	if err != nil {
		return nil, err
	}
	discountTotal, err = normalizeAmount("discount_total", discountTotal)
	if err != nil {
		return nil, err
	}

	priced := make([]Item, 0, len(items))
	subTotal := decimal.Zero

	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}

		unitPrice := p.RegularPrice.RoundBank(moneyPlaces)
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subTotal = subTotal.Add(lineTotal)

		var discounted *decimal.Decimal
		if p.SalePrice != nil {
			d := p.SalePrice.RoundBank(moneyPlaces)
			discounted = &d
		}

		priced = append(priced, Item{
			ProductID:       p.ID,
			ProductName:     p.Name,
			ProductImage:    p.ImageURL,
			CostPrice:       p.CostPrice.RoundBank(moneyPlaces),
			UnitPrice:       unitPrice,
			DiscountedPrice: discounted,
			Quantity:        it.Quantity,
			TotalPrice:      lineTotal,
		})
	}

	total := subTotal.Add(shippingCost).Add(taxTotal).Sub(discountTotal)

	return &Pricing{
		Items:         priced,
		SubTotal:      subTotal,
		ShippingCost:  shippingCost,
		TaxTotal:      taxTotal,
		DiscountTotal: discountTotal,
		Total:         total,
	}, nil
}
