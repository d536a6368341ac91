package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	summary  Summary
	top      []ProductRevenue
	gotStart time.Time
	gotEnd   time.Time
	gotLimit int
}

func (s *stubSource) SalesSummary(_ context.Context, start, end time.Time) (Summary, error) {
	s.gotStart, s.gotEnd = start, end
	return s.summary, nil
}

func (s *stubSource) TopProducts(_ context.Context, _, _ time.Time, limit int) ([]ProductRevenue, error) {
	s.gotLimit = limit
	return s.top, nil
}

func TestBuild_DailyWindow(t *testing.T) {
	src := &stubSource{summary: Summary{TotalOrders: 3, TotalRevenue: decimal.NewFromInt(120)}}
	svc := NewService(src)

	date := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	r, err := svc.Build(context.Background(), PeriodDaily, date)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), r.Start)
	// End is exclusive: midnight of the following day.
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), r.End)
	assert.Equal(t, 3, r.Summary.TotalOrders)
	assert.Equal(t, topProductsLimit, src.gotLimit)
}

func TestBuild_MonthlyWindow(t *testing.T) {
	src := &stubSource{}
	svc := NewService(src)

	date := time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC)
	r, err := svc.Build(context.Background(), PeriodMonthly, date)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), r.End)
}

func TestBuild_WeeklyWindowEndsNow(t *testing.T) {
	src := &stubSource{}
	svc := NewService(src)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	r, err := svc.Build(context.Background(), PeriodWeekly, now)
	require.NoError(t, err)

	assert.Equal(t, now.AddDate(0, 0, -7), r.Start)
	assert.Equal(t, now, r.End)
}

func TestBuild_InvalidPeriod(t *testing.T) {
	svc := NewService(&stubSource{})

	_, err := svc.Build(context.Background(), Period("yearly"), time.Now())
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRenderPDF(t *testing.T) {
	r := &Report{
		Period: PeriodDaily,
		Start:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		Summary: Summary{
			TotalOrders:   2,
			TotalRevenue:  decimal.RequireFromString("150.00"),
			AvgOrderValue: decimal.RequireFromString("75.00"),
		},
		TopProducts: []ProductRevenue{
			{Name: "Widget", Revenue: decimal.RequireFromString("100.00"), QuantitySold: 4},
			{Name: "Gadget", Revenue: decimal.RequireFromString("50.00"), QuantitySold: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(&buf, r))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")), "output must be a PDF document")
}
