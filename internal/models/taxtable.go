package models

// RowValidation records which arithmetic checks a tax-table row passed.
type RowValidation struct {
	MathConsistent bool    `json:"mathConsistent"` // gross ≈ net + tax
	RateConsistent bool    `json:"rateConsistent"` // tax ≈ net × rate/100
	WorstDeviation float64 `json:"worstDeviation"`
}

// TaxTableRow is one parsed data row of a tax-breakdown table.
// Soft invariants: gross ≈ net + tax and tax ≈ net × rate/100; rows that
// break them are kept with a confidence penalty, never discarded.
type TaxTableRow struct {
	Code       string        `json:"code,omitempty"`
	Rate       float64       `json:"rate"`
	Gross      float64       `json:"gross"`
	Net        float64       `json:"net"`
	Tax        float64       `json:"tax"`
	Confidence float64       `json:"confidence"`
	Validation RowValidation `json:"validation"`
	RawText    string        `json:"rawText,omitempty"`
	Position   *BoundingBox  `json:"position,omitempty"`
}

// TaxTable is a recognized tabular tax breakdown: header, data rows and
// aggregate totals. Every row belongs to exactly one table.
type TaxTable struct {
	HeaderText       string        `json:"headerText"`
	HeaderConfidence float64       `json:"headerConfidence"`
	Rows             []TaxTableRow `json:"rows"`
	TotalGross       float64       `json:"totalGross"`
	TotalNet         float64       `json:"totalNet"`
	TotalTax         float64       `json:"totalTax"`
	Confidence       float64       `json:"confidence"`
	Bounds           *BoundingBox  `json:"bounds,omitempty"`
	FromHeaderContext bool         `json:"fromHeaderContext"`
}

// TaxBreakdown is one output entry per distinct tax rate.
type TaxBreakdown struct {
	Rate        float64  `json:"rate"`
	Amount      float64  `json:"amount"`
	Net         *float64 `json:"net,omitempty"`
	Gross       *float64 `json:"gross,omitempty"`
	Category    string   `json:"category,omitempty"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description,omitempty"`
}
