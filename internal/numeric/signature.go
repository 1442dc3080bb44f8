package numeric

import (
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// ValueKind tags a decoded numeric value as percentage or amount.
type ValueKind string

const (
	KindPercent ValueKind = "percent"
	KindAmount  ValueKind = "amount"
)

// Signature is a fragment annotated with its decoded numeric value.
type Signature struct {
	Token    string
	Value    float64
	Kind     ValueKind
	Index    int // fragment index within the row
	Position models.BoundingBox
}

// RowSignature scans a row's fragments and decodes every numeric token.
// A fragment followed by a lone "%" fragment is merged into one percent
// signature, since OCR often splits "24 %" into two fragments.
func RowSignature(row models.Row) []Signature {
	var sigs []Signature

	for i := 0; i < len(row.Fragments); i++ {
		frag := row.Fragments[i]
		token := strings.TrimSpace(frag.Text)
		if token == "" {
			continue
		}

		// "24" followed by "%" in the next fragment
		if i+1 < len(row.Fragments) && strings.TrimSpace(row.Fragments[i+1].Text) == "%" {
			if v, ok := ParsePercent(token); ok {
				sigs = append(sigs, Signature{
					Token:    token + " %",
					Value:    v,
					Kind:     KindPercent,
					Index:    i,
					Position: frag.Box.Union(row.Fragments[i+1].Box),
				})
				i++
				continue
			}
		}

		if HasPercentGlyph(token) {
			if v, ok := ParsePercent(token); ok {
				sigs = append(sigs, Signature{Token: token, Value: v, Kind: KindPercent, Index: i, Position: frag.Box})
				continue
			}
		}

		if v, ok := ParseAmount(token); ok {
			sigs = append(sigs, Signature{Token: token, Value: v, Kind: KindAmount, Index: i, Position: frag.Box})
		}
	}

	return sigs
}

// Density returns the fraction of a row's fragments that decode as numbers.
// Used by the segmenter as a zone-classification signal.
func Density(row models.Row) float64 {
	if len(row.Fragments) == 0 {
		return 0
	}
	return float64(len(RowSignature(row))) / float64(len(row.Fragments))
}
