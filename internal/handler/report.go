package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/oakmart/storefront/internal/domain/report"
)

// salesReport streams the sales report PDF for the requested period. An
// optional date query pins the reference day; it defaults to today.
func (h *Handler) salesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	period := report.Period(q.Get("period"))
	if period == "" {
		period = report.PeriodDaily
	}

	date := time.Now().UTC()
	if raw := q.Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "Date must be formatted as YYYY-MM-DD")
			return
		}
		date = parsed
	}

	rep, err := h.reports.Build(r.Context(), period, date)
	if err != nil {
		if errors.Is(err, report.ErrInvalidPeriod) {
			writeError(w, r, http.StatusBadRequest, "Period must be daily, weekly or monthly")
			return
		}
		serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=sales-report-%s.pdf", period))
	if err := report.RenderPDF(w, rep); err != nil {
		// Headers are already out; all we can do is log.
		zctx.From(r.Context()).Error("render sales report", zap.Error(err))
	}
}
