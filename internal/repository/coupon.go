package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmart/storefront/internal/domain/coupon"
)

const (
	findUsableCouponSQL = `SELECT code, discount_type, discount_value, max_discount,
		min_order_amount, valid_from, valid_to, is_active, used_count
		FROM coupons
		WHERE code = UPPER($1) AND is_active AND valid_from <= $2 AND valid_to >= $2`

	createCouponSQL = `INSERT INTO coupons
		(code, discount_type, discount_value, max_discount, min_order_amount, valid_from, valid_to, is_active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8)`

	incrementCouponUsageSQL = `UPDATE coupons SET used_count = used_count + 1 WHERE code = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindUsable looks up an active coupon by code, valid as of the given time.
// Codes are stored uppercase; the query uppercases the parameter so lookup
// is case-insensitive. Returns coupon.ErrNotFound when nothing matches.
func (r *CouponRepository) FindUsable(ctx context.Context, code string, asOf time.Time) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findUsableCouponSQL, code, asOf)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// Create persists a new coupon. The code is normalized to uppercase.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL,
		c.Code, string(c.DiscountType), c.DiscountValue, c.MaxDiscount,
		c.MinOrderAmount, c.ValidFrom, c.ValidTo, c.Active,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	c.Code = strings.ToUpper(c.Code)
	return nil
}

// incrementCouponUsage bumps the coupon usage counter. Runs inside the
// order transaction via the shared querier. The increment is unconditional:
// no usage cap exists, so concurrent redemptions may all succeed.
func incrementCouponUsage(ctx context.Context, q querier, code string) error {
	tag, err := q.Exec(ctx, incrementCouponUsageSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.Code, &discountType, &c.DiscountValue, &c.MaxDiscount,
		&c.MinOrderAmount, &c.ValidFrom, &c.ValidTo, &c.Active, &c.UsedCount,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
