package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Compute calculates the discount amount for the given coupon and order
// subtotal. It is a pure, total function: any well-formed coupon yields a
// non-negative amount rounded to 2 decimal places.
//
// Percentage coupons take subtotal * value / 100, clamped to MaxDiscount when
// set. Fixed coupons pass their value through unchanged, even when it exceeds
// the subtotal; callers floor the resulting total at zero.
func Compute(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal

	switch c.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount.Valid {
			amount = decimal.Min(amount, c.MaxDiscount.Decimal)
		}
	case DiscountFixed:
		amount = c.DiscountValue
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}
