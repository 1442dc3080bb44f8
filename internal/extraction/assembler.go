package extraction

import (
	"fmt"
	"math"
	"sort"

	"github.com/facturaIA/receipt-extract-service/internal/fusion"
	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// assemble turns a fusion outcome into the terminal result: currency fusion,
// overall confidence and the diagnostic evidence summary.
func assemble(outcome fusion.Outcome, evidence []models.Evidence, language string) models.ExtractedResult {
	result := models.ExtractedResult{
		TaxBreakdown: outcome.Breakdown,
		Language:     language,
	}

	if outcome.Subtotal != nil {
		result.Subtotal = models.WithAmount(outcome.Subtotal.Value)
	}
	if outcome.TaxAmount != nil {
		result.TaxAmount = models.WithAmount(outcome.TaxAmount.Value)
	}
	if outcome.Total != nil {
		result.Total = models.WithAmount(outcome.Total.Value)
	}

	if code, ok := fuseCurrency(outcome.Clusters); ok {
		result.Currency = &code
	}

	warnings := append([]string(nil), outcome.Warnings...)
	warnings = append(warnings, deviationWarning(result)...)

	result.Confidence = overallConfidence(outcome, result)
	result.EvidenceSummary = summarize(evidence, outcome, warnings)
	return result
}

// fuseCurrency picks the highest-confidence consistent currency cluster.
func fuseCurrency(clusters []*fusion.Cluster) (string, bool) {
	var best *fusion.Cluster
	for _, cl := range clusters {
		if cl.Field != models.FieldCurrency || !cl.IsConsistent || len(cl.Items) == 0 {
			continue
		}
		if best == nil || cl.ConsolidatedConfidence > best.ConsolidatedConfidence {
			best = cl
		}
	}
	if best == nil {
		return "", false
	}
	return best.Items[0].Currency, true
}

// deviationWarning surfaces a residual subtotal+tax vs total mismatch that
// fusion could not reconcile.
func deviationWarning(result models.ExtractedResult) []string {
	if result.Subtotal == nil || result.TaxAmount == nil || result.Total == nil {
		return nil
	}
	dev := math.Abs(*result.Subtotal + *result.TaxAmount - *result.Total)
	if dev <= math.Max(0.02, 0.02*(*result.Total)) {
		return nil
	}
	return []string{fmt.Sprintf("subtotal %.2f + tax %.2f does not close against total %.2f",
		*result.Subtotal, *result.TaxAmount, *result.Total)}
}

// overallConfidence blends fused field confidences with a presence bonus and
// a penalty for residual arithmetic deviation.
func overallConfidence(outcome fusion.Outcome, result models.ExtractedResult) float64 {
	sum, n := 0.0, 0
	for _, fv := range []*fusion.FusedValue{outcome.Subtotal, outcome.TaxAmount, outcome.Total} {
		if fv != nil {
			sum += fv.Confidence
			n++
		}
	}
	if n == 0 && len(result.TaxBreakdown) == 0 {
		return 0
	}
	conf := 0.0
	if n > 0 {
		conf = sum / float64(n)
	}

	for _, field := range []models.Field{
		models.FieldSubtotal, models.FieldTaxAmount, models.FieldTotal,
		models.FieldCurrency, models.FieldTaxBreakdown,
	} {
		if result.HasValue(field) {
			conf += 0.02
		}
	}

	if result.Subtotal != nil && result.TaxAmount != nil && result.Total != nil {
		dev := math.Abs(*result.Subtotal+*result.TaxAmount-*result.Total) / math.Max(*result.Total, 0.01)
		conf -= math.Min(0.3, dev)
	}
	return clampUnit(conf)
}

func summarize(evidence []models.Evidence, outcome fusion.Outcome, warnings []string) models.EvidenceSummary {
	summary := models.EvidenceSummary{
		TotalEvidencePieces: len(evidence),
		Warnings:            warnings,
	}

	seen := map[string]bool{}
	confSum := 0.0
	for _, ev := range evidence {
		seen[string(ev.Source)] = true
		confSum += ev.Confidence
	}
	for source := range seen {
		summary.SourcesUsed = append(summary.SourcesUsed, source)
	}
	sort.Strings(summary.SourcesUsed)
	if len(evidence) > 0 {
		summary.AverageConfidence = confSum / float64(len(evidence))
	}

	consistent, total := 0, 0
	for _, cl := range outcome.Clusters {
		total++
		if cl.IsConsistent {
			consistent++
		}
	}
	if total > 0 {
		summary.ConsistencyScore = float64(consistent) / float64(total)
	}
	return summary
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
