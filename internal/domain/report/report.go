// Package report aggregates sales figures over a time window and renders
// them as a PDF document. Cancelled orders never count toward revenue.
package report

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Period selects the reporting window relative to a reference date.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ErrInvalidPeriod is returned for an unrecognized period value.
var ErrInvalidPeriod = errors.New("invalid report period")

// topProductsLimit caps the product-revenue breakdown.
const topProductsLimit = 10

// Summary holds order-level aggregates for a window.
type Summary struct {
	TotalOrders   int
	TotalRevenue  decimal.Decimal
	AvgOrderValue decimal.Decimal
}

// ProductRevenue is per-product revenue within a window.
type ProductRevenue struct {
	Name         string
	Revenue      decimal.Decimal
	QuantitySold int
}

// Report is a fully assembled sales report.
type Report struct {
	Period      Period
	Start, End  time.Time
	Summary     Summary
	TopProducts []ProductRevenue
}

// Source provides the aggregation queries a report is built from.
type Source interface {
	SalesSummary(ctx context.Context, start, end time.Time) (Summary, error)
	TopProducts(ctx context.Context, start, end time.Time, limit int) ([]ProductRevenue, error)
}

// Service builds sales reports from a Source.
type Service struct {
	src Source
	now func() time.Time
}

// NewService creates a report Service.
func NewService(src Source) *Service {
	return &Service{src: src, now: time.Now}
}

// Build assembles the report for the given period anchored at date. A zero
// date means "now".
func (s *Service) Build(ctx context.Context, period Period, date time.Time) (*Report, error) {
	if date.IsZero() {
		date = s.now()
	}

	start, end, err := window(period, date, s.now())
	if err != nil {
		return nil, err
	}

	summary, err := s.src.SalesSummary(ctx, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "sales summary")
	}

	top, err := s.src.TopProducts(ctx, start, end, topProductsLimit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}

	return &Report{
		Period:      period,
		Start:       start,
		End:         end,
		Summary:     summary,
		TopProducts: top,
	}, nil
}

// window computes the half-open [start, end) range for a period anchored at
// date. The exclusive end matches the created_at < end filter in the source
// queries.
func window(period Period, date, now time.Time) (time.Time, time.Time, error) {
	switch period {
	case PeriodDaily:
		start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		return start, start.Add(24 * time.Hour), nil
	case PeriodWeekly:
		return date.AddDate(0, 0, -7), now, nil
	case PeriodMonthly:
		start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
}
