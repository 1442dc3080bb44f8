package models

// BoundingBox represents the location of text on the scanned page
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Right returns the right edge of the box
func (b BoundingBox) Right() float64 {
	return b.X + b.Width
}

// Bottom returns the bottom edge of the box
func (b BoundingBox) Bottom() float64 {
	return b.Y + b.Height
}

// CenterX returns the horizontal center of the box
func (b BoundingBox) CenterX() float64 {
	return b.X + b.Width/2
}

// CenterY returns the vertical center of the box
func (b BoundingBox) CenterY() float64 {
	return b.Y + b.Height/2
}

// Union returns the smallest box containing both boxes
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	x := b.X
	if other.X < x {
		x = other.X
	}
	y := b.Y
	if other.Y < y {
		y = other.Y
	}
	right := b.Right()
	if other.Right() > right {
		right = other.Right()
	}
	bottom := b.Bottom()
	if other.Bottom() > bottom {
		bottom = other.Bottom()
	}
	return BoundingBox{X: x, Y: y, Width: right - x, Height: bottom - y}
}

// VerticalOverlap returns the overlapping vertical extent shared with the
// span [minY, maxY], expressed as a ratio of the smaller of the two heights.
// Returns 0 when the spans do not intersect.
func (b BoundingBox) VerticalOverlap(minY, maxY float64) float64 {
	top := b.Y
	if minY > top {
		top = minY
	}
	bottom := b.Bottom()
	if maxY < bottom {
		bottom = maxY
	}
	overlap := bottom - top
	if overlap <= 0 {
		return 0
	}
	smaller := b.Height
	if span := maxY - minY; span < smaller {
		smaller = span
	}
	if smaller <= 0 {
		return 0
	}
	return overlap / smaller
}

// TextFragment is a single OCR-recognized token with its position.
// Fragments are immutable input; the pipeline never mutates them.
type TextFragment struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"boundingBox"`
	Confidence float64     `json:"confidence"`
}

// Row is a group of fragments that share a visual line on the receipt,
// ordered left to right. Built once by the spatial segmenter.
type Row struct {
	Fragments []TextFragment `json:"fragments"`
	Box       BoundingBox    `json:"boundingBox"`
	Text      string         `json:"text"`
	Zone      Zone           `json:"zone"`
}

// Zone is a coarse region classification for a row. Zones are advisory
// priors only; detectors remain free to match anywhere.
type Zone string

const (
	ZoneHeader  Zone = "header"
	ZoneItems   Zone = "items"
	ZoneSummary Zone = "summary"
	ZoneFooter  Zone = "footer"
	ZoneUnknown Zone = "unknown"
)
