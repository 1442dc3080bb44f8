// Package lang holds the per-language keyword index for receipt field
// concepts, plus scoring-based language detection for documents without a
// language hint.
package lang

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Concept is a field concept the keyword index can resolve per language.
type Concept string

const (
	ConceptTotal    Concept = "total"
	ConceptSubtotal Concept = "subtotal"
	ConceptTax      Concept = "tax"
	ConceptNet      Concept = "net"
	ConceptGross    Concept = "gross"
	ConceptCurrency Concept = "currency"
	ConceptRate     Concept = "rate"
)

// Supported is the closed set of languages the index covers.
var Supported = []string{"en", "fi", "sv", "de", "es", "fr", "it"}

// keyword table: language -> concept -> lowercase keywords.
// Multi-word keywords match as substrings of the lowercased row text.
var keywordTable = map[string]map[Concept][]string{
	"en": {
		ConceptTotal:    {"total", "grand total", "amount due", "balance due", "to pay"},
		ConceptSubtotal: {"subtotal", "sub-total", "sub total"},
		ConceptTax:      {"tax", "vat", "sales tax", "gst"},
		ConceptNet:      {"net", "net amount", "excl. tax", "excl tax"},
		ConceptGross:    {"gross", "gross amount", "incl. tax", "incl tax"},
		ConceptCurrency: {"usd", "eur", "gbp", "$", "€", "£"},
		ConceptRate:     {"rate", "tax rate", "%"},
	},
	"fi": {
		ConceptTotal:    {"yhteensä", "loppusumma", "maksettava", "summa"},
		ConceptSubtotal: {"välisumma", "veroton yhteensä"},
		ConceptTax:      {"alv", "arvonlisävero", "vero"},
		ConceptNet:      {"netto", "veroton"},
		ConceptGross:    {"brutto", "verollinen"},
		ConceptCurrency: {"eur", "€"},
		ConceptRate:     {"alv-kanta", "alv %", "verokanta", "%"},
	},
	"sv": {
		ConceptTotal:    {"totalt", "summa", "att betala", "totalsumma"},
		ConceptSubtotal: {"delsumma", "exkl. moms totalt"},
		ConceptTax:      {"moms", "mervärdesskatt", "skatt"},
		ConceptNet:      {"netto", "exkl. moms", "exkl moms"},
		ConceptGross:    {"brutto", "inkl. moms", "inkl moms"},
		ConceptCurrency: {"sek", "kr", "eur", "€"},
		ConceptRate:     {"momssats", "moms %", "%"},
	},
	"de": {
		ConceptTotal:    {"gesamt", "gesamtbetrag", "summe", "zu zahlen", "endbetrag"},
		ConceptSubtotal: {"zwischensumme", "nettosumme"},
		ConceptTax:      {"mwst", "mwst.", "ust", "ust.", "mehrwertsteuer", "steuer"},
		ConceptNet:      {"netto", "nettobetrag"},
		ConceptGross:    {"brutto", "bruttobetrag"},
		ConceptCurrency: {"eur", "chf", "€"},
		ConceptRate:     {"steuersatz", "mwst-satz", "%"},
	},
	"es": {
		ConceptTotal:    {"total", "total a pagar", "importe total"},
		ConceptSubtotal: {"subtotal", "sub-total", "base imponible"},
		ConceptTax:      {"iva", "i.v.a", "itbis", "impuesto"},
		ConceptNet:      {"neto", "base"},
		ConceptGross:    {"bruto", "importe"},
		ConceptCurrency: {"eur", "€", "rd$", "$"},
		ConceptRate:     {"tasa", "tipo", "%"},
	},
	"fr": {
		ConceptTotal:    {"total", "total ttc", "montant total", "à payer", "net à payer"},
		ConceptSubtotal: {"sous-total", "total ht"},
		ConceptTax:      {"tva", "t.v.a", "taxe"},
		ConceptNet:      {"ht", "montant ht"},
		ConceptGross:    {"ttc", "montant ttc"},
		ConceptCurrency: {"eur", "€"},
		ConceptRate:     {"taux", "%"},
	},
	"it": {
		ConceptTotal:    {"totale", "totale complessivo", "da pagare"},
		ConceptSubtotal: {"subtotale", "imponibile"},
		ConceptTax:      {"iva", "i.v.a", "imposta"},
		ConceptNet:      {"netto", "imponibile"},
		ConceptGross:    {"lordo", "totale"},
		ConceptCurrency: {"eur", "€"},
		ConceptRate:     {"aliquota", "%"},
	},
}

// Index resolves keywords for field concepts per language.
type Index struct {
	table map[string]map[Concept][]string
}

// NewIndex creates the built-in keyword index.
func NewIndex() *Index {
	return &Index{table: keywordTable}
}

// Keywords returns the keyword set for a concept in a language. Unknown
// languages fall back to English so detectors always have something to match.
func (ix *Index) Keywords(concept Concept, language string) []string {
	langTable, ok := ix.table[language]
	if !ok {
		langTable = ix.table["en"]
	}
	return langTable[concept]
}

// Match reports the first keyword of the concept found in the text,
// case-insensitively. Symbol keywords ("%", "€") match anywhere; word
// keywords match on word boundaries so "total" never fires inside
// "totally" or "subtotal".
func (ix *Index) Match(text string, concept Concept, language string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range ix.Keywords(concept, language) {
		if containsWord(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// containsWord reports whether kw occurs in text flanked by non-letters or
// string edges. Keywords that do not start with a letter match anywhere.
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	if first, _ := utf8.DecodeRuneInString(kw); !unicode.IsLetter(first) {
		return strings.Contains(text, kw)
	}
	for start := 0; start <= len(text)-len(kw); {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		boundedLeft := i == 0
		if !boundedLeft {
			r, _ := utf8.DecodeLastRuneInString(text[:i])
			boundedLeft = !unicode.IsLetter(r)
		}
		boundedRight := i+len(kw) == len(text)
		if !boundedRight {
			r, _ := utf8.DecodeRuneInString(text[i+len(kw):])
			boundedRight = !unicode.IsLetter(r)
		}
		if boundedLeft && boundedRight {
			return true
		}
		start = i + len(kw)
	}
	return false
}

// DescribeRate renders a human label for a tax rate. Lookup failures fall
// back to a generic "<rate>% tax" string and never block extraction.
func (ix *Index) DescribeRate(category string, rate float64, language string) string {
	name := map[string]string{
		"en": "tax", "fi": "ALV", "sv": "moms", "de": "MwSt",
		"es": "IVA", "fr": "TVA", "it": "IVA",
	}[language]
	if name == "" {
		return fmt.Sprintf("%.1f%% tax", rate)
	}
	if category != "" {
		return fmt.Sprintf("%s %.1f%% (%s)", name, rate, category)
	}
	return fmt.Sprintf("%s %.1f%%", name, rate)
}
