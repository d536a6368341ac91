package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-pdf/fpdf"
)

// RenderPDF writes the report as an A4 PDF document to w.
func RenderPDF(w io.Writer, r *Report) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, "Sales Report", "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(0, 8, fmt.Sprintf("Period: %s", strings.ToUpper(string(r.Period))), "", 1, "L", false, 0, "")
	// End is exclusive; print the last day the report covers.
	doc.CellFormat(0, 8, fmt.Sprintf("Date Range: %s - %s",
		r.Start.Format("Jan 2, 2006"), r.End.Add(-time.Nanosecond).Format("Jan 2, 2006")), "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.CellFormat(0, 8, fmt.Sprintf("Total Orders: %d", r.Summary.TotalOrders), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 8, fmt.Sprintf("Total Revenue: $%s", r.Summary.TotalRevenue.StringFixed(2)), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 8, fmt.Sprintf("Average Order Value: $%s", r.Summary.AvgOrderValue.StringFixed(2)), "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "BU", 12)
	doc.CellFormat(0, 8, "Top Products by Revenue:", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)

	for _, p := range r.TopProducts {
		line := fmt.Sprintf("%s: $%s (%d units)", p.Name, p.Revenue.StringFixed(2), p.QuantitySold)
		doc.CellFormat(0, 8, line, "", 1, "L", false, 0, "")
	}

	if err := doc.Output(w); err != nil {
		return errors.Wrap(err, "render pdf")
	}
	return nil
}
