package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmart/storefront/internal/domain/order"
	"github.com/oakmart/storefront/internal/domain/product"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, user_id, items, total_amount, discount_amount, shipping_address, coupon_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	orderColumns = `o.id, o.user_id, o.items, o.total_amount, o.discount_amount,
		o.shipping_address, o.coupon_code, o.status, o.created_at,
		u.name, u.email`

	getOrderSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN users u ON u.id = o.user_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders o JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order atomically: the order insert, every item's
// conditional stock decrement, and the coupon redemption run in one
// transaction. Any failure (including a short stock re-check) rolls back
// the whole placement, so no order can exist against un-decremented stock.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, redeemCoupon bool) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, o.TotalAmount, o.DiscountAmount,
		o.ShippingAddress, o.CouponCode, string(o.Status),
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		if _, err := decrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}

	if redeemCoupon && o.CouponCode != "" {
		if err := incrementCouponUsage(ctx, tx, o.CouponCode); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetExpanded returns an order joined with its owner and referenced
// products.
func (r *OrderRepository) GetExpanded(ctx context.Context, id string) (*order.Expanded, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanExpandedOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Errorf("order %s not found", id)
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := r.attachProducts(ctx, []order.Expanded{e}); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByUser returns a user's orders, newest first, with products attached.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Expanded, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

// ListAll returns every order, newest first, with products attached.
func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Expanded, error) {
	return r.list(ctx, listAllOrdersSQL)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Expanded, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanExpandedOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}

	if err := r.attachProducts(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachProducts batch-loads every product referenced by the given orders
// and distributes them onto each order's Products map.
func (r *OrderRepository) attachProducts(ctx context.Context, orders []order.Expanded) error {
	idSet := make(map[string]struct{})
	for _, e := range orders {
		for _, item := range e.Order.Items {
			idSet[item.ProductID] = struct{}{}
		}
	}
	if len(idSet) == 0 {
		return nil
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return fmt.Errorf("scanning order products: %w", err)
	}

	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for i := range orders {
		m := make(map[string]product.Product, len(orders[i].Order.Items))
		for _, item := range orders[i].Order.Items {
			if p, ok := byID[item.ProductID]; ok {
				m[item.ProductID] = p
			}
		}
		orders[i].Products = m
	}
	return nil
}

func scanExpandedOrder(row pgx.CollectableRow) (order.Expanded, error) {
	var (
		e         order.Expanded
		itemsJSON []byte
		status    string
	)
	err := row.Scan(
		&e.Order.ID, &e.Order.UserID, &itemsJSON, &e.Order.TotalAmount,
		&e.Order.DiscountAmount, &e.Order.ShippingAddress, &e.Order.CouponCode,
		&status, &e.Order.CreatedAt,
		&e.User.Name, &e.User.Email,
	)
	if err != nil {
		return e, err
	}

	e.Order.Status = order.Status(status)
	e.User.ID = e.Order.UserID

	if err := json.Unmarshal(itemsJSON, &e.Order.Items); err != nil {
		return e, fmt.Errorf("unmarshaling items for order %q: %w", e.Order.ID, err)
	}
	return e, nil
}
