package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
)

func mkRow(y float64, tokens ...string) models.Row {
	row := models.Row{Text: strings.Join(tokens, " ")}
	for i, tok := range tokens {
		frag := models.TextFragment{
			Text:       tok,
			Box:        models.BoundingBox{X: float64(i) * 60, Y: y, Width: 50, Height: 15},
			Confidence: 0.9,
		}
		row.Fragments = append(row.Fragments, frag)
		if i == 0 {
			row.Box = frag.Box
		} else {
			row.Box = row.Box.Union(frag.Box)
		}
	}
	return row
}

func byField(evidence []models.Evidence, field models.Field) []models.Evidence {
	var out []models.Evidence
	for _, ev := range evidence {
		if ev.Field == field {
			out = append(out, ev)
		}
	}
	return out
}

func TestTextDetectorUSReceipt(t *testing.T) {
	rows := []models.Row{
		mkRow(700, "SUBTOTAL", "$208.98"),
		mkRow(720, "TAX", "$13.37"),
		mkRow(740, "TOTAL", "$222.35"),
	}

	evidence := NewTextDetector(lang.NewIndex()).Detect(rows, "en")
	require.Len(t, evidence, 3)

	want := map[models.Field]float64{
		models.FieldSubtotal:  208.98,
		models.FieldTaxAmount: 13.37,
		models.FieldTotal:     222.35,
	}
	for field, amount := range want {
		evs := byField(evidence, field)
		require.Len(t, evs, 1, "field %s", field)
		ev := evs[0]
		assert.Equal(t, models.SourceText, ev.Source)
		require.NotNil(t, ev.Amount)
		assert.InDelta(t, amount, *ev.Amount, 0.001)
		assert.Greater(t, ev.Confidence, 0.7, "field %s must clear the verbatim threshold", field)
	}
}

func TestTextDetectorSubtotalShadowsTotal(t *testing.T) {
	rows := []models.Row{mkRow(700, "SUBTOTAL", "$208.98")}

	evidence := NewTextDetector(lang.NewIndex()).Detect(rows, "en")
	require.Len(t, evidence, 1)
	assert.Equal(t, models.FieldSubtotal, evidence[0].Field)
}

func TestTextDetectorTaxBreakdownLine(t *testing.T) {
	rows := []models.Row{mkRow(600, "ALV", "24%", "0,38")}

	evidence := NewTextDetector(lang.NewIndex()).Detect(rows, "fi")
	require.Len(t, evidence, 1)

	ev := evidence[0]
	assert.Equal(t, models.FieldTaxBreakdown, ev.Field)
	require.NotNil(t, ev.Rate)
	require.NotNil(t, ev.Amount)
	assert.InDelta(t, 24.0, *ev.Rate, 0.001)
	assert.InDelta(t, 0.38, *ev.Amount, 0.001)
}

func TestSummaryCalculatorDerivesSubtotalAndTax(t *testing.T) {
	rows := []models.Row{
		mkRow(100, "ALV", "24%", "0,38"),
		mkRow(120, "ALV", "14%", "4,13"),
		mkRow(140, "Yhteensä", "35,62"),
	}

	evidence := NewSummaryCalculator(lang.NewIndex()).Detect(rows, "fi")

	subs := byField(evidence, models.FieldSubtotal)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SourceSummaryCalc, subs[0].Source)
	assert.InDelta(t, 31.11, *subs[0].Amount, 0.01)
	assert.GreaterOrEqual(t, subs[0].Confidence, 0.8)
	assert.LessOrEqual(t, subs[0].Confidence, 0.95)

	taxes := byField(evidence, models.FieldTaxAmount)
	require.Len(t, taxes, 1)
	assert.InDelta(t, 4.51, *taxes[0].Amount, 0.01)
	assert.InDelta(t, 0.92, taxes[0].Confidence, 0.001)

	totals := byField(evidence, models.FieldTotal)
	require.Len(t, totals, 1)
	assert.Equal(t, models.SourceCalculation, totals[0].Source)
	assert.InDelta(t, 35.62, *totals[0].Amount, 0.001)
	assert.Greater(t, totals[0].Confidence, 0.85, "perfect closure keeps the verification strong")
}

func TestSummaryCalculatorRejectsImplausibleSubtotal(t *testing.T) {
	// taxTotal exceeds the remainder: candidate must be dropped
	rows := []models.Row{
		mkRow(100, "ALV", "24%", "30,00"),
		mkRow(140, "Yhteensä", "35,62"),
	}

	evidence := NewSummaryCalculator(lang.NewIndex()).Detect(rows, "fi")
	assert.Empty(t, evidence)
}

func TestTableDetectorEmitsBreakdownAndAggregates(t *testing.T) {
	rows := []models.Row{
		mkRow(100, "Alv", "Brutto", "Netto", "Vero"),
		mkRow(120, "A", "24", "%", "1,97", "1,59", "0,38"),
		mkRow(140, "B", "14", "%", "33,65", "29,52", "4,13"),
	}

	evidence := NewTableDetector(lang.NewIndex()).Detect(rows, "fi")

	breakdown := byField(evidence, models.FieldTaxBreakdown)
	require.Len(t, breakdown, 2)
	for _, ev := range breakdown {
		assert.Equal(t, models.SourceTable, ev.Source)
		require.NotNil(t, ev.Rate)
		require.NotNil(t, ev.Amount)
		support, ok := ev.Support.(models.TableSupport)
		require.True(t, ok)
		assert.NotNil(t, support.Row)
	}

	subs := byField(evidence, models.FieldSubtotal)
	require.Len(t, subs, 1)
	assert.InDelta(t, 31.11, *subs[0].Amount, 0.001)

	taxes := byField(evidence, models.FieldTaxAmount)
	require.Len(t, taxes, 1)
	assert.InDelta(t, 4.51, *taxes[0].Amount, 0.001)

	totals := byField(evidence, models.FieldTotal)
	require.Len(t, totals, 1)
	assert.InDelta(t, 35.62, *totals[0].Amount, 0.001)
}

func TestCurrencyDetectorSymbolBeatsCode(t *testing.T) {
	rows := []models.Row{
		mkRow(700, "TOTAL", "$222.35"),
		mkRow(720, "Paid", "in", "USD"),
	}

	evidence := NewCurrencyDetector().Detect(rows, "en")
	require.Len(t, evidence, 1)
	assert.Equal(t, "USD", evidence[0].Currency)
	assert.GreaterOrEqual(t, evidence[0].Confidence, 0.9)
}

func TestPositionalDetectorBottomThirdTotal(t *testing.T) {
	rows := []models.Row{
		mkRow(100, "Coffee", "4,50"),
		mkRow(400, "Sandwich", "8,90"),
		mkRow(900, "35,62"),
	}

	evidence := NewPositionalDetector().Detect(rows, "fi")
	require.Len(t, evidence, 1)

	ev := evidence[0]
	assert.Equal(t, models.SourceBBox, ev.Source)
	assert.Equal(t, models.FieldTotal, ev.Field)
	assert.InDelta(t, 35.62, *ev.Amount, 0.001)
	assert.Less(t, ev.Confidence, 0.5, "geometry alone never rivals textual evidence")
}
