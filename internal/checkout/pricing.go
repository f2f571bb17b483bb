package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocer-backend/internal/cart"
)

// TaxPolicy computes the tax owed on a subtotal.
type TaxPolicy interface {
	Tax(subtotal decimal.Decimal) decimal.Decimal
}

// DiscountPolicy computes a discount for a cart. Returning zero means no
// discount applies.
type DiscountPolicy interface {
	Discount(userID uuid.UUID, lines []cart.Line, subtotal decimal.Decimal) decimal.Decimal
}

// FlatRateTax charges Rate (0.10 == 10%) on the subtotal.
type FlatRateTax struct {
	Rate decimal.Decimal
}

func (f FlatRateTax) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(f.Rate)
}

// NoDiscount never discounts.
type NoDiscount struct{}

func (NoDiscount) Discount(uuid.UUID, []cart.Line, decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// Totals is the priced cart. Every amount is rounded half-up to cents.
type Totals struct {
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Discount   decimal.Decimal
	FinalTotal decimal.Decimal
}

// PriceLines totals the cart using the unit prices captured in the snapshot.
// The discount is clamped to [0, subtotal+tax].
func PriceLines(userID uuid.UUID, lines []cart.Line, tax TaxPolicy, discount DiscountPolicy) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}
	subtotal = subtotal.Round(2)

	t := Totals{Subtotal: subtotal, Tax: decimal.Zero, Discount: decimal.Zero}
	if tax != nil {
		t.Tax = tax.Tax(subtotal).Round(2)
	}
	if discount != nil {
		t.Discount = discount.Discount(userID, lines, subtotal).Round(2)
	}
	ceiling := t.Subtotal.Add(t.Tax)
	switch {
	case t.Discount.IsNegative():
		t.Discount = decimal.Zero
	case t.Discount.GreaterThan(ceiling):
		t.Discount = ceiling
	}
	t.FinalTotal = t.Subtotal.Add(t.Tax).Sub(t.Discount)
	return t
}
