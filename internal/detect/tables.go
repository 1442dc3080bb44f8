package detect

import (
	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/table"
)

// TableDetector runs structural tax-table recognition and converts each
// detected table into field evidence: per-row breakdown entries plus the
// table's aggregate net, tax and gross sums.
type TableDetector struct {
	detector *table.Detector
}

func NewTableDetector(ix *lang.Index) *TableDetector {
	return &TableDetector{detector: table.NewDetector(ix)}
}

func (d *TableDetector) Name() string { return "table" }

func (d *TableDetector) Detect(rows []models.Row, language string) []models.Evidence {
	var out []models.Evidence

	for _, tbl := range d.detector.DetectTables(rows, language) {
		t := tbl
		for i := range t.Rows {
			row := &t.Rows[i]
			ev := newEvidence(models.SourceTable, models.FieldTaxBreakdown, row.Confidence)
			ev.Rate = models.WithRate(row.Rate)
			ev.Amount = models.WithAmount(row.Tax)
			ev.Position = row.Position
			ev.RawText = row.RawText
			ev.Support = models.TableSupport{Table: &t, Row: row}
			out = append(out, ev)
		}

		aggregate := func(field models.Field, amount float64) models.Evidence {
			ev := newEvidence(models.SourceTable, field, t.Confidence)
			ev.Amount = models.WithAmount(amount)
			ev.Position = t.Bounds
			ev.RawText = t.HeaderText
			ev.Support = models.TableSupport{Table: &t}
			return ev
		}
		out = append(out,
			aggregate(models.FieldSubtotal, t.TotalNet),
			aggregate(models.FieldTaxAmount, t.TotalTax),
			aggregate(models.FieldTotal, t.TotalGross),
		)
	}
	return out
}
