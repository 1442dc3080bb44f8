package detect

import (
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/numeric"
)

// PositionalDetector proposes a weak total candidate from page geometry
// alone: the largest amount in the summary zone, or in the bottom third when
// no zone tags are available. Advisory prior only, never decisive on its own.
type PositionalDetector struct{}

func NewPositionalDetector() *PositionalDetector { return &PositionalDetector{} }

func (d *PositionalDetector) Name() string { return "positional" }

func (d *PositionalDetector) Detect(rows []models.Row, language string) []models.Evidence {
	if len(rows) == 0 {
		return nil
	}

	zoned := false
	for i := range rows {
		if rows[i].Zone == models.ZoneSummary {
			zoned = true
			break
		}
	}

	maxY := rows[0].Box.Y
	minY := maxY
	for i := range rows {
		y := rows[i].Box.Y
		if y > maxY {
			maxY = y
		}
		if y < minY {
			minY = y
		}
	}
	bottomThird := minY + 2*(maxY-minY)/3

	var best float64
	var bestRow *models.Row
	source := models.SourceBBox
	for i := range rows {
		row := &rows[i]
		if zoned {
			if row.Zone != models.ZoneSummary {
				continue
			}
			source = models.SourceSpatial
		} else if row.Box.Y < bottomThird {
			continue
		}
		for _, sig := range numeric.RowSignature(*row) {
			if sig.Kind == numeric.KindAmount && sig.Value > best {
				best = sig.Value
				bestRow = row
			}
		}
	}
	if bestRow == nil {
		return nil
	}

	conf := 0.4
	if source == models.SourceSpatial {
		conf = 0.5
	}
	ev := newEvidence(source, models.FieldTotal, conf)
	ev.Amount = models.WithAmount(best)
	ev.Position = &bestRow.Box
	ev.RawText = bestRow.Text
	ev.Support = models.SpatialSupport{Zone: bestRow.Zone}
	return []models.Evidence{ev}
}
