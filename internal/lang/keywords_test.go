package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

func textRows(texts ...string) []models.Row {
	var rows []models.Row
	for _, t := range texts {
		rows = append(rows, models.Row{Text: t})
	}
	return rows
}

func TestMatchPerLanguage(t *testing.T) {
	ix := NewIndex()

	kw, ok := ix.Match("Yhteensä 35,62", ConceptTotal, "fi")
	assert.True(t, ok)
	assert.Equal(t, "yhteensä", kw)

	_, ok = ix.Match("Kahvi 4,50", ConceptTotal, "fi")
	assert.False(t, ok)

	kw, ok = ix.Match("SUBTOTAL $208.98", ConceptSubtotal, "en")
	assert.True(t, ok)
	assert.Equal(t, "subtotal", kw)
}

func TestKeywordsFallBackToEnglish(t *testing.T) {
	ix := NewIndex()
	assert.Equal(t, ix.Keywords(ConceptTax, "en"), ix.Keywords(ConceptTax, "xx"))
}

func TestDetectFinnishReceipt(t *testing.T) {
	rows := textRows(
		"Alv Brutto Netto Vero",
		"A 24 % 1,97 1,59 0,38",
		"Yhteensä 35,62",
	)

	language, score := NewIndex().Detect(rows)
	assert.Equal(t, "fi", language)
	assert.Greater(t, score, 0.0)
}

func TestDetectEnglishReceipt(t *testing.T) {
	rows := textRows("SUBTOTAL $208.98", "TAX $13.37", "TOTAL $222.35")

	language, _ := NewIndex().Detect(rows)
	assert.Equal(t, "en", language)
}

func TestResolvePrefersValidHint(t *testing.T) {
	ix := NewIndex()
	rows := textRows("SUBTOTAL $208.98")

	assert.Equal(t, "de", ix.Resolve("de", rows))
	assert.Equal(t, "en", ix.Resolve("", rows))
	assert.Equal(t, "en", ix.Resolve("klingon", rows))
}

func TestDescribeRate(t *testing.T) {
	ix := NewIndex()

	assert.Equal(t, "ALV 24.0% (A)", ix.DescribeRate("A", 24, "fi"))
	assert.Equal(t, "moms 25.0%", ix.DescribeRate("", 25, "sv"))
	assert.Equal(t, "7.5% tax", ix.DescribeRate("", 7.5, "xx"))
}

func TestMatchRequiresWordBoundaries(t *testing.T) {
	ix := NewIndex()

	_, ok := ix.Match("TOTALLY GREAT DEALS", ConceptTotal, "en")
	assert.False(t, ok, "total must not fire inside totally")

	_, ok = ix.Match("SUBTOTAL 208.98", ConceptTotal, "en")
	assert.False(t, ok, "total must not fire inside subtotal")

	kw, ok := ix.Match("TOTAL: 222.35", ConceptTotal, "en")
	assert.True(t, ok)
	assert.Equal(t, "total", kw)

	// symbol keywords still match anywhere
	_, ok = ix.Match("24%", ConceptRate, "en")
	assert.True(t, ok)

	// multibyte boundaries: "vero" must not fire inside "verokanta"
	_, ok = ix.Match("verokanta 24", ConceptTax, "fi")
	assert.False(t, ok)
	_, ok = ix.Match("Vero 0,38", ConceptTax, "fi")
	assert.True(t, ok)
}
