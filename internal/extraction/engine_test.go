package extraction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// frags lays one visual line of tokens out left to right at a baseline.
func frags(y float64, tokens ...string) []models.TextFragment {
	var out []models.TextFragment
	for i, tok := range tokens {
		out = append(out, models.TextFragment{
			Text:       tok,
			Box:        models.BoundingBox{X: float64(i) * 60, Y: y, Width: 50, Height: 15},
			Confidence: 0.9,
		})
	}
	return out
}

func lines(groups ...[]models.TextFragment) []models.TextFragment {
	var out []models.TextFragment
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func TestExtractFinnishTaxTable(t *testing.T) {
	input := lines(
		frags(100, "Alv", "Brutto", "Netto", "Vero"),
		frags(130, "A", "24", "%", "1,97", "1,59", "0,38"),
		frags(160, "B", "14", "%", "33,65", "29,52", "4,13"),
	)

	result := NewEngine(nil).Extract(input, "")

	assert.Equal(t, "fi", result.Language)

	require.NotNil(t, result.Subtotal)
	require.NotNil(t, result.TaxAmount)
	require.NotNil(t, result.Total)
	assert.InDelta(t, 31.11, *result.Subtotal, 0.01)
	assert.InDelta(t, 4.51, *result.TaxAmount, 0.01)
	assert.InDelta(t, 35.62, *result.Total, 0.01)

	require.Len(t, result.TaxBreakdown, 2)
	assert.InDelta(t, 14.0, result.TaxBreakdown[0].Rate, 0.001)
	assert.InDelta(t, 4.13, result.TaxBreakdown[0].Amount, 0.001)
	assert.InDelta(t, 24.0, result.TaxBreakdown[1].Rate, 0.001)
	assert.InDelta(t, 0.38, result.TaxBreakdown[1].Amount, 0.001)

	assert.Greater(t, result.Confidence, 0.5)
}

func TestExtractUSFreeTextReceipt(t *testing.T) {
	input := lines(
		frags(700, "SUBTOTAL", "$208.98"),
		frags(730, "TAX", "$13.37"),
		frags(760, "TOTAL", "$222.35"),
	)

	result := NewEngine(nil).Extract(input, "en")

	require.NotNil(t, result.Subtotal)
	require.NotNil(t, result.TaxAmount)
	require.NotNil(t, result.Total)
	assert.InDelta(t, 208.98, *result.Subtotal, 0.001)
	assert.InDelta(t, 13.37, *result.TaxAmount, 0.001)
	assert.InDelta(t, 222.35, *result.Total, 0.001)

	require.NotNil(t, result.Currency)
	assert.Equal(t, "USD", *result.Currency)
	assert.Contains(t, result.EvidenceSummary.SourcesUsed, "text")
}

func TestExtractHeaderContextRates(t *testing.T) {
	input := lines(
		frags(100, "A", "24%", "B", "14%", "Gross", "Net", "Tax"),
		frags(130, "A", "1.97", "1.59", "0.38"),
		frags(160, "B", "33.65", "29.52", "4.13"),
	)

	result := NewEngine(nil).Extract(input, "en")

	require.Len(t, result.TaxBreakdown, 2)
	assert.InDelta(t, 14.0, result.TaxBreakdown[0].Rate, 0.001)
	assert.InDelta(t, 24.0, result.TaxBreakdown[1].Rate, 0.001)

	require.NotNil(t, result.TaxAmount)
	assert.InDelta(t, 4.51, *result.TaxAmount, 0.01)
}

func TestExtractClosureInvariant(t *testing.T) {
	inputs := [][]models.TextFragment{
		lines(
			frags(100, "Alv", "Brutto", "Netto", "Vero"),
			frags(130, "A", "24", "%", "1,97", "1,59", "0,38"),
			frags(160, "B", "14", "%", "33,65", "29,52", "4,13"),
		),
		lines(
			frags(700, "SUBTOTAL", "$208.98"),
			frags(730, "TAX", "$13.37"),
			frags(760, "TOTAL", "$222.35"),
		),
	}

	for _, input := range inputs {
		result := NewEngine(nil).Extract(input, "")
		if result.Subtotal == nil || result.TaxAmount == nil || result.Total == nil {
			continue
		}
		closure := math.Abs(*result.Subtotal + *result.TaxAmount - *result.Total)
		if closure > math.Max(0.02, 0.02*(*result.Total)) {
			assert.NotEmpty(t, result.EvidenceSummary.Warnings,
				"an unclosed result must carry a deviation warning")
		}
	}
}

func TestExtractIdempotent(t *testing.T) {
	input := lines(
		frags(700, "SUBTOTAL", "$208.98"),
		frags(730, "TAX", "$13.37"),
		frags(760, "TOTAL", "$222.35"),
	)

	engine := NewEngine(nil)
	first := engine.Extract(input, "en")
	second := engine.Extract(input, "en")

	assert.Equal(t, *first.Subtotal, *second.Subtotal)
	assert.Equal(t, *first.TaxAmount, *second.TaxAmount)
	assert.Equal(t, *first.Total, *second.Total)
	assert.Equal(t, first.TaxBreakdown, second.TaxBreakdown)
}

func TestExtractEmptyInput(t *testing.T) {
	result := NewEngine(nil).Extract(nil, "")

	assert.Nil(t, result.Subtotal)
	assert.Nil(t, result.TaxAmount)
	assert.Nil(t, result.Total)
	assert.Nil(t, result.Currency)
	assert.Empty(t, result.TaxBreakdown)
	assert.Zero(t, result.Confidence)
	assert.Zero(t, result.RowCount)
}

func TestExtractDegradedNoisyRow(t *testing.T) {
	// an unparsable token drops silently; the rest of the line still counts
	input := lines(
		frags(700, "TOTAL", "##.!?", "$222.35"),
	)

	result := NewEngine(nil).Extract(input, "en")
	require.NotNil(t, result.Total)
	assert.InDelta(t, 222.35, *result.Total, 0.001)
}
