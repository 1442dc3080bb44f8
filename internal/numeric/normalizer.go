// Package numeric resolves OCR number literals into canonical amounts.
//
// Receipt OCR produces literals with inconsistent decimal and thousands
// separators ("1.234,56", "1,234.56", "12,34") and stray currency glyphs.
// Parsing never errors: an unparsable token simply yields ok=false so the
// caller can skip it without aborting the row.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts outside this open interval are treated as OCR noise.
const (
	minAmount = 0.0
	maxAmount = 100000.0
)

// currency glyphs and junk commonly glued to OCR amounts
const stripChars = "$€£¥₹ \t "

// ParseAmount decodes a monetary literal into a float64.
//
// Separator resolution: when both ',' and '.' appear, the later-positioned
// one is the decimal marker and the other is stripped as thousands grouping.
// When only ',' appears it is the decimal marker if followed by 1-3 digits,
// otherwise grouping. A lone '.' is taken as the decimal marker.
func ParseAmount(token string) (float64, bool) {
	cleaned := cleanToken(token)
	if cleaned == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = cleaned[1:]
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	var canonical string
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// comma is decimal: "1.234,56"
			canonical = strings.ReplaceAll(cleaned, ".", "")
			canonical = strings.Replace(canonical, ",", ".", 1)
		} else {
			// dot is decimal: "1,234.56"
			canonical = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		digitsAfter := len(cleaned) - lastComma - 1
		if digitsAfter >= 1 && digitsAfter <= 3 && strings.Count(cleaned, ",") == 1 {
			// "12,34" -> decimal comma
			canonical = strings.Replace(cleaned, ",", ".", 1)
		} else {
			// "1,234,567" -> grouping
			canonical = strings.ReplaceAll(cleaned, ",", "")
		}
	default:
		canonical = cleaned
	}

	if !digitsOnlyWithOneDot(canonical) {
		return 0, false
	}

	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	v, _ := d.Float64()

	if v <= minAmount || v >= maxAmount {
		return 0, false
	}
	return v, true
}

// ParsePercent decodes a percentage literal ("24%", "24 %", "14.5%").
// Accepts rates in [0, 100]; the trailing percent glyph is optional because
// OCR frequently drops it.
func ParsePercent(token string) (float64, bool) {
	cleaned := strings.TrimSpace(token)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}

	// percent literals use either separator as decimal ("14,5")
	cleaned = strings.Replace(cleaned, ",", ".", 1)
	if !digitsOnlyWithOneDot(cleaned) {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	v, _ := d.Float64()
	if v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

// HasPercentGlyph reports whether the token carries an explicit '%'.
func HasPercentGlyph(token string) bool {
	return strings.Contains(token, "%")
}

// cleanToken strips currency glyphs, surrounding junk and OCR artifacts.
func cleanToken(token string) string {
	cleaned := strings.TrimSpace(token)
	for _, r := range stripChars {
		cleaned = strings.ReplaceAll(cleaned, string(r), "")
	}
	cleaned = strings.Trim(cleaned, ":;*")
	return cleaned
}

func digitsOnlyWithOneDot(s string) bool {
	if s == "" {
		return false
	}
	dots := 0
	hasDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return hasDigit
}
