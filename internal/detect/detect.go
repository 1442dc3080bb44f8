// Package detect hosts the independent evidence detectors. Every detector is
// a stateless function of (rows, language): detectors never share state and
// may run concurrently, with the caller fanning their evidence lists in.
package detect

import (
	"time"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// Detector produces typed evidence from segmented rows.
type Detector interface {
	Name() string
	Detect(rows []models.Row, language string) []models.Evidence
}

// newEvidence stamps the common envelope fields.
func newEvidence(source models.Source, field models.Field, confidence float64) models.Evidence {
	return models.Evidence{
		Source:     source,
		Field:      field,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
