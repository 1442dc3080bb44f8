package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/weights"
)

func ev(source models.Source, field models.Field, amount, confidence float64) models.Evidence {
	return models.Evidence{
		Source:     source,
		Field:      field,
		Amount:     models.WithAmount(amount),
		Confidence: confidence,
	}
}

func breakdownEv(source models.Source, rate, amount, confidence float64) models.Evidence {
	e := ev(source, models.FieldTaxBreakdown, amount, confidence)
	e.Rate = models.WithRate(rate)
	return e
}

func newTestEngine() *Engine {
	return NewEngine(weights.NewStatic(), lang.NewIndex())
}

func TestFuseTrustedTextBeatsCalculation(t *testing.T) {
	out := newTestEngine().Fuse([]models.Evidence{
		ev(models.SourceText, models.FieldTotal, 222.35, 0.9),
		ev(models.SourceCalculation, models.FieldTotal, 222.30, 0.8),
	}, "en")

	require.NotNil(t, out.Total)
	assert.InDelta(t, 222.35, out.Total.Value, 0.001)
	assert.Equal(t, models.SourceText, out.Total.Source)
}

func TestFuseCalculationPromotesAgreeingText(t *testing.T) {
	// text alone is below the verbatim threshold, but a calculation within
	// 1% vouches for it
	out := newTestEngine().Fuse([]models.Evidence{
		ev(models.SourceText, models.FieldTotal, 35.62, 0.65),
		ev(models.SourceCalculation, models.FieldTotal, 35.60, 0.85),
	}, "en")

	require.NotNil(t, out.Total)
	assert.InDelta(t, 35.62, out.Total.Value, 0.001)
	assert.Equal(t, models.SourceText, out.Total.Source)
}

func TestFuseTotalVerifiedByTextSum(t *testing.T) {
	out := newTestEngine().Fuse([]models.Evidence{
		ev(models.SourceText, models.FieldSubtotal, 208.98, 0.9),
		ev(models.SourceText, models.FieldTaxAmount, 13.37, 0.9),
		ev(models.SourceText, models.FieldTotal, 222.35, 0.6),
		ev(models.SourceBBox, models.FieldTotal, 229.99, 0.65),
	}, "en")

	require.NotNil(t, out.Total)
	assert.InDelta(t, 222.35, out.Total.Value, 0.001,
		"the total matching subtotal+tax within 5 cents wins over a stray candidate")
}

func TestFuseBreakdownGroupsAndSorts(t *testing.T) {
	out := newTestEngine().Fuse([]models.Evidence{
		breakdownEv(models.SourceTable, 24.0, 0.38, 0.9),
		breakdownEv(models.SourceText, 24.02, 0.40, 0.6),
		breakdownEv(models.SourceTable, 14.0, 4.13, 0.9),
	}, "en")

	require.Len(t, out.Breakdown, 2)
	assert.InDelta(t, 14.0, out.Breakdown[0].Rate, 0.001)
	assert.InDelta(t, 24.0, out.Breakdown[1].Rate, 0.001)

	// 24.02 rounds into the 24.0 group; weighted mean leans on the
	// higher-confidence table amount
	assert.InDelta(t, 4.13, out.Breakdown[0].Amount, 0.001)
	assert.InDelta(t, 0.39, out.Breakdown[1].Amount, 0.01)
}

func TestFuseBreakdownWinsOnDeviation(t *testing.T) {
	out := newTestEngine().Fuse([]models.Evidence{
		ev(models.SourceText, models.FieldSubtotal, 28.00, 0.9),
		ev(models.SourceText, models.FieldTaxAmount, 3.00, 0.9),
		ev(models.SourceText, models.FieldTotal, 35.62, 0.9),
		breakdownEv(models.SourceTable, 24.0, 0.38, 0.9),
		breakdownEv(models.SourceTable, 14.0, 4.13, 0.9),
	}, "en")

	require.NotNil(t, out.TaxAmount)
	require.NotNil(t, out.Subtotal)
	assert.InDelta(t, 4.51, out.TaxAmount.Value, 0.001)
	assert.InDelta(t, 31.11, out.Subtotal.Value, 0.001)
	assert.Equal(t, models.SourceSummaryCalc, out.TaxAmount.Source)
	assert.NotEmpty(t, out.Warnings)
}

func TestFuseDropsLowConfidenceCluster(t *testing.T) {
	out := newTestEngine().Fuse([]models.Evidence{
		ev(models.SourceBBox, models.FieldTotal, 99.99, 0.2),
	}, "en")

	assert.Nil(t, out.Total)
	assert.NotEmpty(t, out.Warnings)
}

func TestFuseIdempotent(t *testing.T) {
	input := []models.Evidence{
		ev(models.SourceText, models.FieldSubtotal, 208.98, 0.9),
		ev(models.SourceText, models.FieldTaxAmount, 13.37, 0.9),
		ev(models.SourceText, models.FieldTotal, 222.35, 0.9),
		breakdownEv(models.SourceTable, 24.0, 0.38, 0.9),
	}

	first := newTestEngine().Fuse(input, "en")
	second := newTestEngine().Fuse(input, "en")

	require.NotNil(t, first.Total)
	require.NotNil(t, second.Total)
	assert.Equal(t, first.Total.Value, second.Total.Value)
	assert.Equal(t, first.Subtotal.Value, second.Subtotal.Value)
	assert.Equal(t, first.TaxAmount.Value, second.TaxAmount.Value)
	assert.Equal(t, len(first.Breakdown), len(second.Breakdown))
}

func TestClustererSplitsDistantAmounts(t *testing.T) {
	clusters := NewClusterer(weights.NewStatic()).Cluster([]models.Evidence{
		ev(models.SourceText, models.FieldTotal, 222.35, 0.9),
		ev(models.SourceCalculation, models.FieldTotal, 222.30, 0.8),
		ev(models.SourceBBox, models.FieldTotal, 999.00, 0.4),
	})

	totals := 0
	for _, cl := range clusters {
		if cl.Field == models.FieldTotal {
			totals++
		}
	}
	assert.Equal(t, 2, totals, "222.35 and 222.30 share a cluster, 999.00 does not")
}

func TestClustererNeverSplitsBreakdown(t *testing.T) {
	clusters := NewClusterer(weights.NewStatic()).Cluster([]models.Evidence{
		breakdownEv(models.SourceTable, 24.0, 0.38, 0.9),
		breakdownEv(models.SourceTable, 14.0, 4.13, 0.9),
		breakdownEv(models.SourceText, 10.0, 1.00, 0.7),
	})

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Items, 3)
}

func TestClusterBreakdownConsistencyFlagsBogusRates(t *testing.T) {
	clusters := NewClusterer(weights.NewStatic()).Cluster([]models.Evidence{
		breakdownEv(models.SourceTable, 24.0, 0.38, 0.9),
		breakdownEv(models.SourceText, 240.0, 1.00, 0.7),
	})

	require.Len(t, clusters, 1)
	assert.InDelta(t, 0.5, clusters[0].TaxBreakdownConsistency, 0.001)
}
