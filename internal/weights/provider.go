// Package weights supplies per-source evidence weights to the fusion engine.
// The provider is advisory: extraction works identically with the static
// defaults, and a persistent implementation only shifts cluster weighting.
package weights

import (
	"sync"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// Provider hands out source weights and optionally records outcomes to
// adapt them. Implementations must be safe for concurrent readers.
type Provider interface {
	// GetWeights returns the weight per evidence source. Missing sources
	// fall back to the static default.
	GetWeights() map[models.Source]float64
	// RecordOutcome notes how a detector's evidence fared against the
	// fused result. Advisory: failures are swallowed by callers.
	RecordOutcome(source models.Source, success bool, quality float64)
}

// defaults orders sources by trustworthiness: structural table evidence
// outranks derived sums, which outrank raw text and positional guesses.
var defaults = map[models.Source]float64{
	models.SourceTable:       1.0,
	models.SourceSummaryCalc: 0.9,
	models.SourceCalculation: 0.8,
	models.SourceText:        0.7,
	models.SourcePattern:     0.6,
	models.SourceSpatial:     0.5,
	models.SourceBBox:        0.4,
}

// Default returns the weight for a source from the static table.
func Default(source models.Source) float64 {
	if w, ok := defaults[source]; ok {
		return w
	}
	return 0.5
}

// Static is the fixed-table provider used when no learning store is wired.
type Static struct{}

func NewStatic() *Static { return &Static{} }

func (Static) GetWeights() map[models.Source]float64 {
	out := make(map[models.Source]float64, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}

func (Static) RecordOutcome(models.Source, bool, float64) {}

// Adaptive tracks per-source success counters in memory and nudges the
// static weights toward observed quality. Single writer, many readers.
type Adaptive struct {
	mu       sync.RWMutex
	outcomes map[models.Source]*counter
}

type counter struct {
	total   int
	success int
	quality float64
}

func NewAdaptive() *Adaptive {
	return &Adaptive{outcomes: make(map[models.Source]*counter)}
}

func (a *Adaptive) GetWeights() map[models.Source]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[models.Source]float64, len(defaults))
	for source, base := range defaults {
		out[source] = base
		c := a.outcomes[source]
		if c == nil || c.total < 5 {
			continue
		}
		rate := float64(c.success) / float64(c.total)
		meanQuality := c.quality / float64(c.total)
		// shift at most ±0.2 around the static default
		out[source] = clamp(base+0.2*(rate*meanQuality-0.5), 0.1, 1.0)
	}
	return out
}

// Seed replays persisted aggregates into the in-memory counters.
func (a *Adaptive) Seed(source models.Source, total, success int, qualitySum float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outcomes[source] = &counter{total: total, success: success, quality: qualitySum}
}

func (a *Adaptive) RecordOutcome(source models.Source, success bool, quality float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c := a.outcomes[source]
	if c == nil {
		c = &counter{}
		a.outcomes[source] = c
	}
	c.total++
	if success {
		c.success++
	}
	c.quality += clamp(quality, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
