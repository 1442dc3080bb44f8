package detect

import (
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/numeric"
)

// TextDetector matches "(keyword)(separator)(amount)" lines per language and
// emits text evidence for subtotal, total and tax. Lines that also carry a
// percentage between keyword and amount become tax-breakdown evidence.
type TextDetector struct {
	keywords *lang.Index
}

func NewTextDetector(ix *lang.Index) *TextDetector {
	return &TextDetector{keywords: ix}
}

func (d *TextDetector) Name() string { return "text" }

func (d *TextDetector) Detect(rows []models.Row, language string) []models.Evidence {
	var out []models.Evidence

	for i := range rows {
		out = append(out, d.detectRow(rows[i], language)...)
	}
	return out
}

func (d *TextDetector) detectRow(row models.Row, language string) []models.Evidence {
	sigs := numeric.RowSignature(row)

	var amounts []numeric.Signature
	var percents []numeric.Signature
	for _, s := range sigs {
		switch s.Kind {
		case numeric.KindAmount:
			amounts = append(amounts, s)
		case numeric.KindPercent:
			percents = append(percents, s)
		}
	}
	if len(amounts) == 0 {
		return nil
	}
	// the field value reads at the right edge of the line
	value := amounts[len(amounts)-1]

	var out []models.Evidence

	// subtotal shadows total: "subtotal" contains the substring "total"
	if kw, ok := d.keywords.Match(row.Text, lang.ConceptSubtotal, language); ok {
		out = append(out, d.fieldEvidence(row, models.FieldSubtotal, kw, language, value, len(amounts)))
	} else if kw, ok := d.keywords.Match(row.Text, lang.ConceptTotal, language); ok {
		out = append(out, d.fieldEvidence(row, models.FieldTotal, kw, language, value, len(amounts)))
	}

	if kw, ok := d.keywords.Match(row.Text, lang.ConceptTax, language); ok {
		if len(percents) == 1 {
			// breakdown line like "ALV 24%: 0,38" names one rate's share,
			// not the document's tax amount
			ev := newEvidence(models.SourceText, models.FieldTaxBreakdown, d.confidence(row, kw, len(amounts)))
			ev.Rate = models.WithRate(percents[0].Value)
			ev.Amount = models.WithAmount(value.Value)
			ev.Position = &row.Box
			ev.RawText = row.Text
			ev.Support = models.TextSupport{Keyword: kw, Language: language}
			out = append(out, ev)
		} else if len(percents) == 0 {
			out = append(out, d.fieldEvidence(row, models.FieldTaxAmount, kw, language, value, len(amounts)))
		}
	}
	return out
}

func (d *TextDetector) fieldEvidence(row models.Row, field models.Field, keyword, language string, value numeric.Signature, amountCount int) models.Evidence {
	ev := newEvidence(models.SourceText, field, d.confidence(row, keyword, amountCount))
	ev.Amount = models.WithAmount(value.Value)
	ev.Position = &row.Box
	ev.RawText = row.Text
	ev.Support = models.TextSupport{Keyword: keyword, Language: language}
	return ev
}

// confidence rewards an unambiguous line: keyword leading the row and a
// single candidate amount.
func (d *TextDetector) confidence(row models.Row, keyword string, amountCount int) float64 {
	conf := 0.75
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(row.Text)), keyword) {
		conf += 0.1
	}
	if amountCount == 1 {
		conf += 0.05
	} else {
		conf -= 0.05 * float64(amountCount-1)
	}
	if conf < 0.3 {
		conf = 0.3
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}
