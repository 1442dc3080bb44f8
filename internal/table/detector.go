// Package table recognizes tabular tax-breakdown structures in segmented
// receipt rows: a keyword header followed by data rows of the shape
// [code]? [rate%]? [amount][amount][amount], with a header-context fallback
// for layouts that declare rates only in the header.
package table

import (
	"math"
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/lang"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/numeric"
)

// Detector recognizes tax tables in segmented rows.
type Detector struct {
	keywords *lang.Index

	// MaxScanRows bounds the forward scan for data rows below a header.
	MaxScanRows int
	// Tolerance is the fixed ε for row arithmetic validation.
	Tolerance float64
}

// NewDetector creates a detector with default scan depth and tolerance.
func NewDetector(ix *lang.Index) *Detector {
	return &Detector{
		keywords:    ix,
		MaxScanRows: 10,
		Tolerance:   0.02,
	}
}

// structural end-markers per language: payment and sign-off lines that
// normally terminate a table region.
var endMarkers = map[string][]string{
	"en": {"thank", "payment", "cash", "card", "change due"},
	"fi": {"kiitos", "maksutapa", "kortti", "käteinen"},
	"sv": {"tack", "betalning", "kort", "kontant"},
	"de": {"danke", "vielen dank", "zahlung", "bar", "karte"},
	"es": {"gracias", "pago", "efectivo", "tarjeta"},
	"fr": {"merci", "paiement", "espèces", "carte"},
	"it": {"grazie", "pagamento", "contanti", "carta"},
}

// DetectTables finds every tax table in the document.
func (d *Detector) DetectTables(rows []models.Row, language string) []models.TaxTable {
	var tables []models.TaxTable

	for i := 0; i < len(rows); i++ {
		if !d.isHeaderCandidate(rows[i], language) {
			continue
		}

		if tbl, consumed := d.parseTable(rows, i, language); tbl != nil {
			tables = append(tables, *tbl)
			i += consumed
			continue
		}

		// direct parse failed: try recovering rates from header context
		if tbl, consumed := d.parseWithHeaderContext(rows, i, language); tbl != nil {
			tables = append(tables, *tbl)
			i += consumed
		}
	}

	return tables
}

// isHeaderCandidate: a row naming at least two field-concept categories, or
// one category plus an explicit rate term.
func (d *Detector) isHeaderCandidate(row models.Row, language string) bool {
	categories := 0
	for _, concept := range []lang.Concept{
		lang.ConceptTotal, lang.ConceptSubtotal, lang.ConceptTax,
		lang.ConceptNet, lang.ConceptGross,
	} {
		if _, ok := d.keywords.Match(row.Text, concept, language); ok {
			categories++
		}
	}
	if categories >= 2 {
		return true
	}
	if categories == 1 {
		if _, ok := d.keywords.Match(row.Text, lang.ConceptRate, language); ok {
			return true
		}
	}
	return false
}

// dataRow is the raw parse of one candidate data row.
type dataRow struct {
	code    string
	rate    *float64
	amounts []float64
	raw     string
	box     models.BoundingBox
}

// parseTable scans forward from a header for directly-parsable data rows.
// Returns nil when no row below the header carries a usable rate.
func (d *Detector) parseTable(rows []models.Row, headerIdx int, language string) (*models.TaxTable, int) {
	var parsed []dataRow
	consumed := 0

	for off := 1; off <= d.MaxScanRows && headerIdx+off < len(rows); off++ {
		row := rows[headerIdx+off]

		dr, ok := d.parseDataRow(row)
		if ok && dr.rate != nil {
			parsed = append(parsed, dr)
			consumed = off
			continue
		}

		if d.isEndMarker(row, language) {
			// a keyword hit alone is not enough to end a structurally
			// valid table: keep going when the next row is data-shaped
			if headerIdx+off+1 < len(rows) {
				if next, nok := d.parseDataRow(rows[headerIdx+off+1]); nok && next.rate != nil {
					continue
				}
			}
			break
		}
		if ok {
			// data-shaped but rate-less: the header-context fallback owns it
			continue
		}
	}

	if len(parsed) == 0 {
		return nil, 0
	}

	tbl := d.assemble(rows[headerIdx], parsed, language, false, 0)
	return tbl, consumed
}

// parseDataRow decodes [code]? [rate%]? [amount][amount][amount], tolerating
// a missing % glyph via the no-letter-code 4-number form.
func (d *Detector) parseDataRow(row models.Row) (dataRow, bool) {
	sigs := numeric.RowSignature(row)

	dr := dataRow{raw: row.Text, box: row.Box}

	// leading short alphabetic token is the tax-class code
	if len(row.Fragments) > 0 {
		first := strings.TrimSpace(row.Fragments[0].Text)
		if isClassCode(first) {
			dr.code = strings.ToUpper(first)
		}
	}

	var percents, amounts []float64
	for _, sig := range sigs {
		switch sig.Kind {
		case numeric.KindPercent:
			percents = append(percents, sig.Value)
		case numeric.KindAmount:
			amounts = append(amounts, sig.Value)
		}
	}

	switch {
	case len(percents) == 1 && len(amounts) >= 3:
		r := percents[0]
		dr.rate = &r
		dr.amounts = amounts[:3]
		return dr, true

	case len(percents) == 0 && len(amounts) == 4 && dr.code == "":
		// 4-number form: leading number is the rate with a dropped % glyph
		if amounts[0] <= 100 {
			r := amounts[0]
			dr.rate = &r
			dr.amounts = amounts[1:4]
			return dr, true
		}

	case len(percents) == 0 && len(amounts) == 3 && dr.code != "":
		// rate-less row: parseable only through a header-context rate map
		dr.amounts = amounts
		return dr, true
	}

	return dataRow{}, false
}

func (d *Detector) isEndMarker(row models.Row, language string) bool {
	lower := strings.ToLower(row.Text)
	markers := endMarkers[language]
	if markers == nil {
		markers = endMarkers["en"]
	}
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	if _, ok := d.keywords.Match(row.Text, lang.ConceptTotal, language); ok {
		return true
	}
	return false
}

// assemble classifies columns, validates rows and computes table confidence.
// ctxConfidence > 0 marks a header-context table, whose confidence is
// deliberately down-weighted against direct detection.
func (d *Detector) assemble(header models.Row, parsed []dataRow, language string, fromContext bool, ctxConfidence float64) *models.TaxTable {
	matrix := make([][]float64, len(parsed))
	for i, dr := range parsed {
		matrix[i] = dr.amounts
	}

	aligned := d.alignedHeaderCells(header, len(matrix[0]), language)
	assign := ClassifyColumns(matrix, nil, aligned, d.keywords, language)

	netCol := assign.ColumnFor(RoleNet)
	taxCol := assign.ColumnFor(RoleTax)
	grossCol := assign.ColumnFor(RoleGross)
	if netCol < 0 || taxCol < 0 || grossCol < 0 {
		return nil
	}

	tbl := &models.TaxTable{
		HeaderText:        header.Text,
		HeaderConfidence:  d.headerConfidence(header, language),
		FromHeaderContext: fromContext,
	}
	bounds := header.Box

	bothValid := 0
	confSum := 0.0
	for _, dr := range parsed {
		rate := 0.0
		if dr.rate != nil {
			rate = *dr.rate
		}
		r := d.validateRow(dr, rate, dr.amounts[netCol], dr.amounts[taxCol], dr.amounts[grossCol])
		tbl.Rows = append(tbl.Rows, r)
		tbl.TotalNet += r.Net
		tbl.TotalTax += r.Tax
		tbl.TotalGross += r.Gross
		confSum += r.Confidence
		if r.Validation.MathConsistent && r.Validation.RateConsistent {
			bothValid++
		}
		bounds = bounds.Union(dr.box)
	}
	tbl.Bounds = &bounds

	meanRow := confSum / float64(len(parsed))
	validFrac := float64(bothValid) / float64(len(parsed))
	if fromContext {
		tbl.Confidence = 0.4*ctxConfidence + 0.6*meanRow
	} else {
		tbl.Confidence = 0.3*tbl.HeaderConfidence + 0.5*meanRow + 0.2*validFrac
	}
	return tbl
}

// validateRow applies the soft row invariants with the fixed ε tolerance.
// Inconsistent rows are kept with a heavy confidence penalty, not dropped.
func (d *Detector) validateRow(dr dataRow, rate, net, tax, gross float64) models.TaxTableRow {
	mathDev := math.Abs(gross - (net + tax))
	mathOK := mathDev <= d.Tolerance

	rateDev := 0.0
	rateOK := true
	if rate > 0 {
		rateDev = math.Abs(tax - net*rate/100)
		rateOK = rateDev <= d.Tolerance
	}

	worst := math.Max(mathDev, rateDev)
	confidence := 0.9
	if !mathOK {
		confidence -= 0.3
	}
	if !rateOK {
		confidence -= 0.2
	}
	// proportional penalty on the worst discrepancy, relative to the gross
	ref := math.Max(math.Abs(gross), 1)
	confidence -= math.Min(0.4, worst/ref)
	if confidence < 0.1 {
		confidence = 0.1
	}

	return models.TaxTableRow{
		Code:       dr.code,
		Rate:       rate,
		Net:        net,
		Tax:        tax,
		Gross:      gross,
		Confidence: confidence,
		Validation: models.RowValidation{
			MathConsistent: mathOK,
			RateConsistent: rateOK,
			WorstDeviation: worst,
		},
		RawText:  dr.raw,
		Position: &dr.box,
	}
}

// headerConfidence grows with the number of distinct concept categories the
// header names.
func (d *Detector) headerConfidence(header models.Row, language string) float64 {
	categories := 0
	for _, concept := range []lang.Concept{
		lang.ConceptTotal, lang.ConceptSubtotal, lang.ConceptTax,
		lang.ConceptNet, lang.ConceptGross,
	} {
		if _, ok := d.keywords.Match(header.Text, concept, language); ok {
			categories++
		}
	}
	conf := 0.4 + 0.15*float64(categories)
	if _, ok := d.keywords.Match(header.Text, lang.ConceptRate, language); ok {
		conf += 0.1
	}
	return math.Min(conf, 0.95)
}

// alignedHeaderCells maps header tokens onto amount columns. Rate terms are
// dropped first since rates are parsed separately from the amount matrix.
func (d *Detector) alignedHeaderCells(header models.Row, ncols int, language string) []string {
	var cells []string
	for _, frag := range header.Fragments {
		token := strings.TrimSpace(frag.Text)
		if token == "" {
			continue
		}
		isRate := false
		for _, concept := range []lang.Concept{lang.ConceptRate} {
			if _, ok := d.keywords.Match(token, concept, language); ok {
				isRate = true
			}
		}
		if numeric.HasPercentGlyph(token) {
			isRate = true
		}
		if !isRate {
			cells = append(cells, token)
		}
	}
	// keep only the trailing tokens that line up with the amount columns
	if len(cells) > ncols {
		cells = cells[len(cells)-ncols:]
	}
	if len(cells) != ncols {
		return nil
	}
	return cells
}

// isClassCode reports a short alphabetic tax-class code ("A", "B1").
func isClassCode(token string) bool {
	if len(token) == 0 || len(token) > 2 {
		return false
	}
	if token[0] < 'A' || (token[0] > 'Z' && token[0] < 'a') || token[0] > 'z' {
		return false
	}
	for i := 1; i < len(token); i++ {
		c := token[i]
		alpha := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
		digit := c >= '0' && c <= '9'
		if !alpha && !digit {
			return false
		}
	}
	return true
}
