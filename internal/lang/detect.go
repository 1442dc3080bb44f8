package lang

import (
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// detection ignores concepts shared across most languages ("%", "eur", "€")
// since they carry no language signal.
var detectConcepts = []Concept{ConceptTotal, ConceptSubtotal, ConceptTax, ConceptNet, ConceptGross}

// Detect scores every supported language against the document's rows and
// returns the best match plus a normalized score. Longer keywords weigh more
// because short tokens like "alv" or "ht" collide across languages.
func (ix *Index) Detect(rows []models.Row) (string, float64) {
	text := strings.ToLower(joinRows(rows))
	if text == "" {
		return "en", 0
	}

	best := "en"
	bestScore := 0.0
	for _, language := range Supported {
		score := 0.0
		for _, concept := range detectConcepts {
			for _, kw := range ix.table[language][concept] {
				if len(kw) < 2 {
					continue
				}
				if strings.Contains(text, kw) {
					score += float64(len(kw))
				}
			}
		}
		if score > bestScore {
			bestScore = score
			best = language
		}
	}

	// normalize against text length so the score is comparable across docs
	norm := bestScore / float64(len(text))
	if norm > 1 {
		norm = 1
	}
	return best, norm
}

// Resolve returns the hint when it names a supported language, otherwise
// falls back to detection.
func (ix *Index) Resolve(hint string, rows []models.Row) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	for _, language := range Supported {
		if hint == language {
			return language
		}
	}
	detected, _ := ix.Detect(rows)
	return detected
}

func joinRows(rows []models.Row) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(row.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
