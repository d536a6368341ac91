package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Policy controls how coupon application failures are surfaced.
//
// The standalone validation endpoint and the order-placement path apply
// different strictness to the same rules on purpose: a shopper checking a
// code expects a hard answer, while an in-flight order degrades gracefully
// to zero discount rather than failing.
type Policy int

const (
	// PolicyStrict surfaces ErrNotFound and MinimumNotMetError to the caller.
	PolicyStrict Policy = iota
	// PolicyBestEffort swallows those failures and quotes a zero discount.
	PolicyBestEffort
)

// Quote is the outcome of applying a coupon to a subtotal.
type Quote struct {
	// Coupon is nil when no usable coupon applied.
	Coupon   *Coupon
	Discount decimal.Decimal
	// Redeemable reports whether a successful order should increment the
	// coupon's usage counter.
	Redeemable bool
}

// Validator resolves coupon codes against a Repository and computes the
// discount under a given policy.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Apply normalizes the code to uppercase, looks up a usable coupon as of now,
// checks the minimum order amount against the subtotal, and computes the
// discount.
//
// Under PolicyStrict a missing/expired code or unmet minimum is an error.
// Under PolicyBestEffort both cases yield a zero-discount Quote with no
// error; infrastructure failures still propagate under either policy.
func (v *Validator) Apply(ctx context.Context, code string, subtotal decimal.Decimal, policy Policy) (Quote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	c, err := v.repo.FindUsable(ctx, code, v.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) && policy == PolicyBestEffort {
			return Quote{Discount: decimal.Zero}, nil
		}
		if errors.Is(err, ErrNotFound) {
			return Quote{}, ErrNotFound
		}
		return Quote{}, errors.Wrap(err, "lookup coupon")
	}

	if subtotal.LessThan(c.MinOrderAmount) {
		if policy == PolicyBestEffort {
			return Quote{Discount: decimal.Zero}, nil
		}
		return Quote{}, &MinimumNotMetError{Minimum: c.MinOrderAmount}
	}

	return Quote{
		Coupon:     c,
		Discount:   Compute(c, subtotal),
		Redeemable: true,
	}, nil
}
