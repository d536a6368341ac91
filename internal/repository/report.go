package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oakmart/storefront/internal/domain/report"
)

const (
	salesSummarySQL = `SELECT
		COUNT(*),
		COALESCE(SUM(total_amount), 0),
		COALESCE(AVG(total_amount), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2 AND status <> 'cancelled'`

	topProductsSQL = `SELECT
		p.name,
		SUM(i.price * i.quantity) AS revenue,
		SUM(i.quantity) AS quantity_sold
		FROM orders o,
		jsonb_to_recordset(o.items) AS i(product_id uuid, quantity int, price numeric)
		JOIN products p ON p.id = i.product_id
		WHERE o.created_at >= $1 AND o.created_at < $2 AND o.status <> 'cancelled'
		GROUP BY p.name
		ORDER BY revenue DESC
		LIMIT $3`
)

var _ report.Source = (*ReportRepository)(nil)

// ReportRepository aggregates sales figures straight from the orders table.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// SalesSummary returns order count, revenue and average order value for
// the window. Cancelled orders are excluded.
func (r *ReportRepository) SalesSummary(ctx context.Context, start, end time.Time) (report.Summary, error) {
	var s report.Summary
	err := r.pool.QueryRow(ctx, salesSummarySQL, start, end).Scan(
		&s.TotalOrders, &s.TotalRevenue, &s.AvgOrderValue,
	)
	if err != nil {
		return report.Summary{}, fmt.Errorf("aggregating sales summary: %w", err)
	}
	s.TotalRevenue = s.TotalRevenue.Round(2)
	s.AvgOrderValue = s.AvgOrderValue.Round(2)
	return s, nil
}

// TopProducts returns the highest-revenue products in the window, unnesting
// each order's items to attribute revenue per product. Cancelled orders are
// excluded.
func (r *ReportRepository) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]report.ProductRevenue, error) {
	rows, err := r.pool.Query(ctx, topProductsSQL, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregating top products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.ProductRevenue, error) {
		var (
			p       report.ProductRevenue
			revenue decimal.Decimal
		)
		if err := row.Scan(&p.Name, &revenue, &p.QuantitySold); err != nil {
			return p, err
		}
		p.Revenue = revenue.Round(2)
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning top products: %w", err)
	}
	return products, nil
}
