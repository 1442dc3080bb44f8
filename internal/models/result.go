package models

import "time"

// EvidenceSummary is the diagnostic companion of an ExtractedResult: how much
// evidence existed, where it came from, and what went wrong along the way.
type EvidenceSummary struct {
	TotalEvidencePieces int      `json:"totalEvidencePieces"`
	SourcesUsed         []string `json:"sourcesUsed"`
	AverageConfidence   float64  `json:"averageConfidence"`
	ConsistencyScore    float64  `json:"consistencyScore"`
	Warnings            []string `json:"warnings"`
}

// ExtractedResult is the terminal output of one extraction run. Every field
// carries a value-or-null; a missing field is degradation, not failure.
type ExtractedResult struct {
	Subtotal     *float64       `json:"subtotal"`
	TaxAmount    *float64       `json:"tax_amount"`
	Total        *float64       `json:"total"`
	Currency     *string        `json:"currency"`
	TaxBreakdown []TaxBreakdown `json:"tax_breakdown"`

	Confidence      float64         `json:"confidence"`
	EvidenceSummary EvidenceSummary `json:"evidence_summary"`

	Language    string        `json:"language"`
	FragmentCount int         `json:"fragmentCount"`
	RowCount    int           `json:"rowCount"`
	ProcessedAt time.Time     `json:"processedAt"`
	Duration    time.Duration `json:"-"`
	DurationMS  float64       `json:"durationMs"`
}

// HasValue reports whether the named scalar field was resolved.
func (r *ExtractedResult) HasValue(field Field) bool {
	switch field {
	case FieldSubtotal:
		return r.Subtotal != nil
	case FieldTaxAmount:
		return r.TaxAmount != nil
	case FieldTotal:
		return r.Total != nil
	case FieldCurrency:
		return r.Currency != nil
	case FieldTaxBreakdown:
		return len(r.TaxBreakdown) > 0
	}
	return false
}
