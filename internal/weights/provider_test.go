package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

func TestStaticOrdering(t *testing.T) {
	w := NewStatic().GetWeights()

	assert.Greater(t, w[models.SourceTable], w[models.SourceSummaryCalc])
	assert.Greater(t, w[models.SourceSummaryCalc], w[models.SourceCalculation])
	assert.Greater(t, w[models.SourceCalculation], w[models.SourceText])
	assert.Greater(t, w[models.SourceText], w[models.SourcePattern])
	assert.Greater(t, w[models.SourcePattern], w[models.SourceBBox])
}

func TestAdaptiveNeedsEvidenceBeforeShifting(t *testing.T) {
	a := NewAdaptive()

	a.RecordOutcome(models.SourceText, false, 0)
	assert.Equal(t, Default(models.SourceText), a.GetWeights()[models.SourceText],
		"fewer than five outcomes must not move the weight")

	for i := 0; i < 10; i++ {
		a.RecordOutcome(models.SourceText, false, 0)
	}
	assert.Less(t, a.GetWeights()[models.SourceText], Default(models.SourceText))

	b := NewAdaptive()
	for i := 0; i < 10; i++ {
		b.RecordOutcome(models.SourceTable, true, 1)
	}
	assert.GreaterOrEqual(t, b.GetWeights()[models.SourceTable], Default(models.SourceTable))
}
