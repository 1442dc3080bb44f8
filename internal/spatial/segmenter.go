// Package spatial groups raw OCR fragments into logical rows and coarse
// page zones. It runs once per document; every detector consumes its output.
package spatial

import (
	"sort"
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/numeric"
)

// Segmenter groups fragments into rows by vertical overlap.
type Segmenter struct {
	// OverlapThreshold is the minimum vertical-overlap ratio between a
	// fragment and the current row span for the fragment to join the row.
	OverlapThreshold float64
}

// NewSegmenter returns a segmenter with the default 0.3 overlap threshold.
func NewSegmenter() *Segmenter {
	return &Segmenter{OverlapThreshold: 0.3}
}

// Rows groups fragments into visual rows.
//
// The join test compares each fragment against the full vertical span
// [minY, maxY] of the row built so far. The span only ever widens to the
// union of its members; it must never be replaced by a running average of
// Y positions, which drifts toward whatever is appended and merges visually
// distinct rows under small per-fragment jitter.
func (s *Segmenter) Rows(fragments []models.TextFragment) []models.Row {
	if len(fragments) == 0 {
		return nil
	}

	sorted := make([]models.TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Box.Y != sorted[j].Box.Y {
			return sorted[i].Box.Y < sorted[j].Box.Y
		}
		return sorted[i].Box.X < sorted[j].Box.X
	})

	var rows []models.Row
	var current []models.TextFragment
	minY := sorted[0].Box.Y
	maxY := sorted[0].Box.Bottom()

	flush := func() {
		if len(current) == 0 {
			return
		}
		rows = append(rows, buildRow(current))
		current = nil
	}

	for _, frag := range sorted {
		if len(current) == 0 {
			current = append(current, frag)
			minY = frag.Box.Y
			maxY = frag.Box.Bottom()
			continue
		}

		if frag.Box.VerticalOverlap(minY, maxY) > s.OverlapThreshold {
			current = append(current, frag)
			if frag.Box.Y < minY {
				minY = frag.Box.Y
			}
			if frag.Box.Bottom() > maxY {
				maxY = frag.Box.Bottom()
			}
			continue
		}

		// new visual row: span resets to the fragment's own extent
		flush()
		current = append(current, frag)
		minY = frag.Box.Y
		maxY = frag.Box.Bottom()
	}
	flush()

	return rows
}

// buildRow orders fragments left to right and merges their boxes and text.
func buildRow(fragments []models.TextFragment) models.Row {
	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Box.X < fragments[j].Box.X
	})

	box := fragments[0].Box
	parts := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		box = box.Union(frag.Box)
		if t := strings.TrimSpace(frag.Text); t != "" {
			parts = append(parts, t)
		}
	}

	return models.Row{
		Fragments: fragments,
		Box:       box,
		Text:      strings.Join(parts, " "),
		Zone:      models.ZoneUnknown,
	}
}

// Segment groups fragments into rows and classifies zones in one pass.
func (s *Segmenter) Segment(fragments []models.TextFragment) []models.Row {
	rows := s.Rows(fragments)
	ClassifyZones(rows)
	return rows
}

// ClassifyZones tags each row with a coarse page zone. Zones are advisory
// priors: header/footer at the extremes with low numeric density, items in
// the long middle stretch, summary where percentages or currency markers
// co-occur with amounts near the bottom.
func ClassifyZones(rows []models.Row) {
	n := len(rows)
	if n == 0 {
		return
	}

	densities := make([]float64, n)
	for i, row := range rows {
		densities[i] = numeric.Density(row)
	}

	// segment boundary: large vertical gap between consecutive rows
	gaps := make([]bool, n)
	medianGap := medianRowGap(rows)
	for i := 1; i < n; i++ {
		gap := rows[i].Box.Y - rows[i-1].Box.Bottom()
		if medianGap > 0 && gap > 2.5*medianGap {
			gaps[i] = true
		}
	}

	for i := range rows {
		switch {
		case i < n/5 && densities[i] < 0.3:
			rows[i].Zone = models.ZoneHeader
		case i >= n-max(1, n/6) && densities[i] < 0.3:
			rows[i].Zone = models.ZoneFooter
		case looksLikeSummary(rows[i]):
			rows[i].Zone = models.ZoneSummary
		case densities[i] > 0:
			rows[i].Zone = models.ZoneItems
		default:
			rows[i].Zone = models.ZoneUnknown
		}
		// a gap right before a numeric-dense block usually opens the summary
		if gaps[i] && densities[i] > 0.4 && i > n/2 {
			rows[i].Zone = models.ZoneSummary
		}
	}
}

// looksLikeSummary: percentage and amount (or currency glyph) on one row.
func looksLikeSummary(row models.Row) bool {
	sigs := numeric.RowSignature(row)
	hasPercent := false
	hasAmount := false
	for _, sig := range sigs {
		switch sig.Kind {
		case numeric.KindPercent:
			hasPercent = true
		case numeric.KindAmount:
			hasAmount = true
		}
	}
	if hasPercent && hasAmount {
		return true
	}
	return hasAmount && strings.ContainsAny(row.Text, "€$£")
}

func medianRowGap(rows []models.Row) float64 {
	if len(rows) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		gap := rows[i].Box.Y - rows[i-1].Box.Bottom()
		if gap > 0 {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) == 0 {
		return 0
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
