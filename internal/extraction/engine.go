// Package extraction wires the full pipeline: spatial segmentation, language
// resolution, parallel evidence detection, fusion and result assembly.
package extraction

import (
	"log"
	"sync"
	"time"

	"github.com/facturaIA/receipt-extract-service/internal/detect"
	"github.com/facturaIA/receipt-extract-service/internal/fusion"
	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/spatial"
	"github.com/facturaIA/receipt-extract-service/internal/weights"
)

// Engine is the single outward entry point for receipt extraction.
// Stateless across runs; safe for concurrent use.
type Engine struct {
	segmenter *spatial.Segmenter
	keywords  *lang.Index
	detectors []detect.Detector
	fusion    *fusion.Engine
	provider  weights.Provider
}

// NewEngine builds an engine with the full detector set and the given weight
// provider (nil means the static table).
func NewEngine(provider weights.Provider) *Engine {
	if provider == nil {
		provider = weights.NewStatic()
	}
	ix := lang.NewIndex()
	return &Engine{
		segmenter: spatial.NewSegmenter(),
		keywords:  ix,
		detectors: []detect.Detector{
			detect.NewTableDetector(ix),
			detect.NewTextDetector(ix),
			detect.NewSummaryCalculator(ix),
			detect.NewCurrencyDetector(),
			detect.NewPositionalDetector(),
		},
		fusion:   fusion.NewEngine(provider, ix),
		provider: provider,
	}
}

// Extract runs the pipeline over raw OCR fragments. An empty language hint
// triggers keyword-based detection. Always returns a usable result: missing
// fields are null, never an error.
func (e *Engine) Extract(fragments []models.TextFragment, languageHint string) models.ExtractedResult {
	start := time.Now()

	rows := e.segmenter.Segment(fragments)
	language := e.keywords.Resolve(languageHint, rows)

	evidence := e.runDetectors(rows, language)
	outcome := e.fusion.Fuse(evidence, language)
	result := assemble(outcome, evidence, language)

	result.FragmentCount = len(fragments)
	result.RowCount = len(rows)
	result.ProcessedAt = start
	result.Duration = time.Since(start)
	result.DurationMS = float64(result.Duration.Microseconds()) / 1000

	e.recordOutcomes(outcome, result)

	log.Printf("[Extraction] lang=%s rows=%d evidence=%d confidence=%.2f in %.1fms",
		language, len(rows), len(evidence), result.Confidence, result.DurationMS)
	return result
}

// runDetectors fans the stateless detectors out over goroutines and merges
// their evidence in a stable detector order.
func (e *Engine) runDetectors(rows []models.Row, language string) []models.Evidence {
	results := make([][]models.Evidence, len(e.detectors))

	var wg sync.WaitGroup
	for i, d := range e.detectors {
		wg.Add(1)
		go func(i int, d detect.Detector) {
			defer wg.Done()
			results[i] = d.Detect(rows, language)
		}(i, d)
	}
	wg.Wait()

	var merged []models.Evidence
	for _, evs := range results {
		merged = append(merged, evs...)
	}
	return merged
}

// recordOutcomes feeds the weight provider: a source succeeded when it
// backed a fused field value. Advisory only.
func (e *Engine) recordOutcomes(outcome fusion.Outcome, result models.ExtractedResult) {
	for _, fv := range []*fusion.FusedValue{outcome.Subtotal, outcome.TaxAmount, outcome.Total} {
		if fv != nil {
			e.provider.RecordOutcome(fv.Source, true, fv.Confidence)
		}
	}
}

// RecordFeedback replays a user verdict onto every source that contributed
// to a stored result, shifting adaptive weights.
func (e *Engine) RecordFeedback(sources []string, correct bool, quality float64) {
	for _, s := range sources {
		e.provider.RecordOutcome(models.Source(s), correct, quality)
	}
}
