package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmart/storefront/internal/domain/product"
)

const (
	productColumns = `p.id, p.name, p.description, p.price, p.stock, p.is_active, p.category_id, c.name, p.created_at`

	listProductsSQL = `SELECT ` + productColumns + `, COUNT(*) OVER ()
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.is_active
		  AND ($1 = '' OR p.category_id::text = $1)
		  AND ($2 = '' OR p.name ILIKE '%' || $2 || '%')
		ORDER BY p.created_at DESC
		LIMIT $3 OFFSET $4`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`

	getActiveProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1) AND p.is_active`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products p JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)`

	allProductsSQL = `SELECT ` + productColumns + `
		FROM products p JOIN categories c ON c.id = p.category_id
		ORDER BY p.name`

	createProductSQL = `INSERT INTO products (id, name, description, price, stock, is_active, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	setStockSQL = `UPDATE products SET stock = $2 WHERE id = $1 RETURNING stock`

	// Conditional decrement: the WHERE clause re-checks availability at
	// update time, so two concurrent orders can never drive stock below
	// zero even when both passed an earlier read.
	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND is_active AND stock >= $2
		RETURNING name, stock`

	productExistsSQL = `SELECT name FROM products WHERE id = $1 AND is_active`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns active products matching the filter plus the total match
// count for pagination.
func (r *ProductRepository) List(ctx context.Context, filter product.ListFilter) ([]product.Product, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := r.pool.Query(ctx, listProductsSQL, filter.CategoryID, filter.Search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}

	var total int
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Product, error) {
		var p product.Product
		err := row.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active,
			&p.CategoryID, &p.CategoryName, &p.CreatedAt, &total,
		)
		return p, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning products: %w", err)
	}
	return products, total, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetActiveByIDs returns active products matching any of the given IDs.
func (r *ProductRepository) GetActiveByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getActiveProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// All returns every product, active or not. Used by the stock audit.
func (r *ProductRepository) All(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, allProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing all products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, createProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Active, p.CategoryID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// SetStock overwrites a product's stock level and returns the updated
// product with category details.
func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int) (*product.Product, error) {
	var updated int
	err := r.pool.QueryRow(ctx, setStockSQL, id, stock).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("setting stock for product %q: %w", id, err)
	}
	return r.GetByID(ctx, id)
}

// DecrementStock atomically decrements a product's stock when enough
// remains, returning the product's name and new stock level.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (*product.Product, error) {
	return decrementStock(ctx, r.pool, id, quantity)
}

// decrementStock runs the conditional decrement against any querier, so the
// order transaction reuses the exact same statement.
func decrementStock(ctx context.Context, q querier, id string, quantity int) (*product.Product, error) {
	p := product.Product{ID: id}
	err := q.QueryRow(ctx, decrementStockSQL, id, quantity).Scan(&p.Name, &p.Stock)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("decrementing stock for product %q: %w", id, err)
	}

	// Zero rows: either the product is missing/inactive or stock is short.
	var name string
	switch err := q.QueryRow(ctx, productExistsSQL, id).Scan(&name); {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, product.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("checking product %q: %w", id, err)
	default:
		return nil, &product.InsufficientStockError{ProductID: id, Name: name, Requested: quantity}
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active,
		&p.CategoryID, &p.CategoryName, &p.CreatedAt,
	)
	return p, err
}
