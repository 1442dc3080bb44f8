package models

import "time"

// Source identifies which detector produced a piece of evidence.
type Source string

const (
	SourceTable       Source = "table"
	SourceText        Source = "text"
	SourceCalculation Source = "calculation"
	SourceSummaryCalc Source = "summary_calculation"
	SourceSpatial     Source = "spatial_analysis"
	SourcePattern     Source = "pattern"
	SourceBBox        Source = "bbox"
)

// Field identifies which receipt field a piece of evidence describes.
type Field string

const (
	FieldSubtotal     Field = "subtotal"
	FieldTaxAmount    Field = "tax_amount"
	FieldTotal        Field = "total"
	FieldTaxBreakdown Field = "tax_breakdown"
	FieldCurrency     Field = "currency"
)

// Evidence is an independently-produced, typed claim about a field value.
// Created once by a detector, never mutated afterwards.
type Evidence struct {
	Source     Source       `json:"source"`
	Field      Field        `json:"field"`
	Rate       *float64     `json:"rate,omitempty"`
	Amount     *float64     `json:"amount,omitempty"`
	Currency   string       `json:"currency,omitempty"`
	Confidence float64      `json:"confidence"`
	Position   *BoundingBox `json:"position,omitempty"`
	RawText    string       `json:"rawText,omitempty"`
	Support    Support      `json:"-"`
	Timestamp  time.Time    `json:"timestamp"`
}

// Support carries detector-specific backing data for a piece of evidence.
// One concrete type per source kind, discriminated at the Evidence level.
type Support interface {
	supportKind() string
}

// TableSupport backs evidence derived from a detected tax table.
type TableSupport struct {
	Table *TaxTable
	Row   *TaxTableRow
}

func (TableSupport) supportKind() string { return "table" }

// TextSupport backs evidence matched from a free-text keyword pattern.
type TextSupport struct {
	Keyword  string
	Language string
}

func (TextSupport) supportKind() string { return "text" }

// CalculationSupport backs evidence derived arithmetically from other values.
type CalculationSupport struct {
	Inputs    map[string]float64
	Deviation float64
}

func (CalculationSupport) supportKind() string { return "calculation" }

// SpatialSupport backs evidence inferred from page position alone.
type SpatialSupport struct {
	Zone Zone
}

func (SpatialSupport) supportKind() string { return "spatial" }

// WithAmount is a convenience for building optional amounts.
func WithAmount(v float64) *float64 { return &v }

// WithRate is a convenience for building optional rates.
func WithRate(v float64) *float64 { return &v }
