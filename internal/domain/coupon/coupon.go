package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal,
	// optionally capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed amount. The amount is not clamped to the
	// subtotal; a fixed coupon larger than the order passes through as-is.
	DiscountFixed DiscountType = "fixed"
)

// ErrNotFound is returned when no active coupon matches the code within its
// validity window.
var ErrNotFound = errors.New("invalid or expired coupon")

// MinimumNotMetError indicates the order subtotal is below the coupon's
// minimum order amount.
type MinimumNotMetError struct {
	Minimum decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("minimum order amount should be %s", e.Minimum.StringFixed(2))
}

// Coupon defines a discount rule and its eligibility constraints.
// Codes are stored and compared uppercase.
type Coupon struct {
	Code           string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	MaxDiscount    decimal.NullDecimal
	MinOrderAmount decimal.Decimal
	ValidFrom      time.Time
	ValidTo        time.Time
	Active         bool
	UsedCount      int
}

// Repository provides coupon lookup and creation. FindUsable applies the
// active flag and validity-window filter but not the minimum-order check,
// which is the caller's responsibility. Redemption (used-count increment)
// happens inside the order transaction, not here.
type Repository interface {
	FindUsable(ctx context.Context, code string, asOf time.Time) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
}
