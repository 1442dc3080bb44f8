package table

import (
	"math"
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/numeric"
)

// contextWindow is how many rows around the header are searched for
// code→rate declarations like "A 24%".
const contextWindow = 3

// parseWithHeaderContext recovers tables whose data rows carry only a class
// code and amounts, with the rates declared near the header ("A 24% B 14%").
func (d *Detector) parseWithHeaderContext(rows []models.Row, headerIdx int, language string) (*models.TaxTable, int) {
	rates := d.rateDeclarations(rows, headerIdx)
	if len(rates) == 0 {
		return nil, 0
	}

	var parsed []dataRow
	consumed := 0

	for off := 1; off <= d.MaxScanRows && headerIdx+off < len(rows); off++ {
		row := rows[headerIdx+off]

		dr, ok := d.parseDataRow(row)
		if ok && dr.rate == nil && dr.code != "" {
			if rate, known := rates[dr.code]; known {
				r := rate
				dr.rate = &r
				parsed = append(parsed, dr)
				consumed = off
				continue
			}
		}
		if ok && dr.rate != nil {
			// mixed layout: rows carrying explicit rates still belong
			parsed = append(parsed, dr)
			consumed = off
			continue
		}

		if d.isEndMarker(row, language) {
			if headerIdx+off+1 < len(rows) {
				if _, nok := d.parseDataRow(rows[headerIdx+off+1]); nok {
					continue
				}
			}
			break
		}
	}

	if len(parsed) == 0 {
		return nil, 0
	}

	ctxConf := headerContextConfidence(len(rates))
	tbl := d.assemble(rows[headerIdx], parsed, language, true, ctxConf)
	return tbl, consumed
}

// rateDeclarations scans a window around the header for code→rate pairs.
// A declaration is a short alphabetic code immediately followed by a percent.
func (d *Detector) rateDeclarations(rows []models.Row, headerIdx int) map[string]float64 {
	rates := make(map[string]float64)

	lo := headerIdx - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := headerIdx + contextWindow
	if hi >= len(rows) {
		hi = len(rows) - 1
	}

	for i := lo; i <= hi; i++ {
		frags := rows[i].Fragments
		for j := 0; j < len(frags)-1; j++ {
			code := strings.TrimSpace(frags[j].Text)
			if !isClassCode(code) {
				continue
			}
			next := strings.TrimSpace(frags[j+1].Text)
			rate, ok := parsePercentToken(next, frags, j+1)
			if !ok {
				continue
			}
			rates[strings.ToUpper(code)] = rate
		}
	}

	if len(rates) == 0 {
		return nil
	}
	return rates
}

// parsePercentToken accepts "24%", "24 %" split in two fragments, or a bare
// number when the glyph was dropped by the OCR.
func parsePercentToken(token string, frags []models.TextFragment, idx int) (float64, bool) {
	if numeric.HasPercentGlyph(token) {
		return numeric.ParsePercent(token)
	}
	v, ok := numeric.ParsePercent(token)
	if !ok {
		return 0, false
	}
	// glyph in the following fragment
	if idx+1 < len(frags) && numeric.HasPercentGlyph(frags[idx+1].Text) {
		return v, true
	}
	// bare number: only plausible VAT-like rates qualify
	if v > 0 && v <= 30 && v == math.Trunc(v) {
		return v, true
	}
	return 0, false
}

// headerContextConfidence grows with the number of declared rate classes but
// stays below what direct in-row rate detection earns.
func headerContextConfidence(classes int) float64 {
	conf := 0.5 + 0.1*float64(classes)
	if conf > 0.8 {
		conf = 0.8
	}
	return conf
}
