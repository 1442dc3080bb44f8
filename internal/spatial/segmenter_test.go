package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

func frag(text string, x, y, w, h float64) models.TextFragment {
	return models.TextFragment{
		Text:       text,
		Box:        models.BoundingBox{X: x, Y: y, Width: w, Height: h},
		Confidence: 0.9,
	}
}

func TestRowsAdjacentSpansWithJitterStaySeparate(t *testing.T) {
	// two visually distinct lines with per-fragment jitter inside their own
	// spans ([775,790] and [793,808]); they must never merge
	fragments := []models.TextFragment{
		frag("SUBTOTAL", 10, 775, 80, 15),
		frag("$208.98", 200, 778, 60, 12),
		frag("ltem", 120, 776, 40, 13),
		frag("TAX", 10, 793, 40, 15),
		frag("$13.37", 200, 795, 60, 13),
		frag("7.25%", 120, 794, 50, 12),
	}

	rows := NewSegmenter().Rows(fragments)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0].Fragments, 3)
	assert.Len(t, rows[1].Fragments, 3)
}

func TestRowsOrdersFragmentsLeftToRight(t *testing.T) {
	fragments := []models.TextFragment{
		frag("$222.35", 200, 100, 60, 15),
		frag("TOTAL", 10, 102, 50, 14),
	}

	rows := NewSegmenter().Rows(fragments)
	require.Len(t, rows, 1)
	assert.Equal(t, "TOTAL $222.35", rows[0].Text)
	assert.InDelta(t, 10.0, rows[0].Box.X, 0.001)
}

func TestRowsSpanWidensToUnion(t *testing.T) {
	// a tall fragment widens the row span; later fragments join against the
	// widened span, not against the first fragment alone
	fragments := []models.TextFragment{
		frag("a", 10, 100, 20, 10),
		frag("b", 40, 104, 20, 18),
		frag("c", 70, 114, 20, 10),
	}

	rows := NewSegmenter().Rows(fragments)
	require.Len(t, rows, 1)
}

func TestRowsEmptyInput(t *testing.T) {
	assert.Nil(t, NewSegmenter().Rows(nil))
}

func TestClassifyZonesTagsSummary(t *testing.T) {
	fragments := []models.TextFragment{
		frag("Kahvila", 10, 20, 80, 15),
		frag("Korso", 100, 20, 50, 15),
		frag("Kahvi", 10, 100, 50, 15),
		frag("4,50", 200, 100, 40, 15),
		frag("Pulla", 10, 130, 50, 15),
		frag("3,20", 200, 130, 40, 15),
		frag("ALV", 10, 400, 40, 15),
		frag("24%", 60, 400, 40, 15),
		frag("1,49", 200, 400, 40, 15),
		frag("Kiitos", 10, 500, 50, 15),
	}

	rows := NewSegmenter().Segment(fragments)
	require.Len(t, rows, 5)

	var summary *models.Row
	for i := range rows {
		if rows[i].Zone == models.ZoneSummary {
			summary = &rows[i]
		}
	}
	require.NotNil(t, summary, "the percent+amount row must be tagged summary")
	assert.Contains(t, summary.Text, "ALV")
}
