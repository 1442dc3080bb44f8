package detect

import (
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// CurrencyDetector resolves the document currency from symbols attached to
// amounts and from standalone ISO codes.
type CurrencyDetector struct{}

func NewCurrencyDetector() *CurrencyDetector { return &CurrencyDetector{} }

func (d *CurrencyDetector) Name() string { return "currency" }

var symbolCurrencies = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

var codeCurrencies = map[string]string{
	"usd": "USD", "eur": "EUR", "gbp": "GBP",
	"sek": "SEK", "chf": "CHF", "jpy": "JPY",
	"kr": "SEK",
}

func (d *CurrencyDetector) Detect(rows []models.Row, language string) []models.Evidence {
	type sighting struct {
		confidence float64
		count      int
		row        *models.Row
	}
	seen := map[string]*sighting{}

	note := func(code string, conf float64, row *models.Row) {
		s := seen[code]
		if s == nil {
			s = &sighting{confidence: conf, row: row}
			seen[code] = s
		}
		s.count++
		if conf > s.confidence {
			s.confidence = conf
		}
	}

	for i := range rows {
		row := &rows[i]
		for _, frag := range row.Fragments {
			token := strings.TrimSpace(frag.Text)
			lower := strings.ToLower(token)

			for sym, code := range symbolCurrencies {
				if !strings.Contains(token, sym) {
					continue
				}
				// a symbol glued to digits is the strongest signal
				if strings.TrimFunc(token, func(r rune) bool {
					return r < '0' || r > '9'
				}) != "" {
					note(code, 0.9, row)
				} else {
					note(code, 0.8, row)
				}
			}
			if code, ok := codeCurrencies[lower]; ok {
				note(code, 0.7, row)
			}
		}
	}

	var out []models.Evidence
	for code, s := range seen {
		conf := s.confidence + 0.02*float64(s.count-1)
		if conf > 0.95 {
			conf = 0.95
		}
		ev := newEvidence(models.SourceText, models.FieldCurrency, conf)
		ev.Currency = code
		ev.Position = &s.row.Box
		ev.RawText = s.row.Text
		out = append(out, ev)
	}
	return out
}
