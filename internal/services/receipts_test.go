package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/extraction"
	"github.com/facturaIA/receipt-extract-service/internal/models"
)

type stubPreprocessor struct {
	thermalCalls int
}

func (s *stubPreprocessor) PreprocessImageFromBytes(imageData []byte) ([]byte, error) {
	return imageData, nil
}

func (s *stubPreprocessor) PreprocessThermal(imageData []byte) ([]byte, error) {
	s.thermalCalls++
	return append([]byte("thermal:"), imageData...), nil
}

// stubOCR returns nothing for standard-pass bytes and real fragments for
// thermal-pass bytes.
type stubOCR struct {
	fragments []models.TextFragment
}

func (s *stubOCR) ExtractFragments(imageBytes []byte) ([]models.TextFragment, error) {
	if len(imageBytes) >= 8 && string(imageBytes[:8]) == "thermal:" {
		return s.fragments, nil
	}
	return nil, nil
}

func frag(text string, x, y float64) models.TextFragment {
	return models.TextFragment{
		Text:       text,
		Box:        models.BoundingBox{X: x, Y: y, Width: 60, Height: 16},
		Confidence: 0.9,
	}
}

func TestProcessReceiptRetriesThermalPass(t *testing.T) {
	pre := &stubPreprocessor{}
	svc := &ReceiptService{
		preprocessor: pre,
		tesseract: &stubOCR{fragments: []models.TextFragment{
			frag("SUBTOTAL", 10, 700), frag("$208.98", 210, 700),
			frag("TAX", 10, 730), frag("$13.37", 210, 730),
			frag("TOTAL", 10, 760), frag("$222.35", 210, 760),
		}},
		engine: extraction.NewEngine(nil),
	}

	outcome, err := svc.ProcessReceipt(context.Background(), []byte("faded scan"), "image/jpeg", "receipt.jpg", "u1", "en")
	require.NoError(t, err)
	assert.Equal(t, 1, pre.thermalCalls)
	require.NotNil(t, outcome.Result.Total)
	assert.Equal(t, 222.35, *outcome.Result.Total)
}

func TestProcessReceiptFailsWhenBothPassesEmpty(t *testing.T) {
	pre := &stubPreprocessor{}
	svc := &ReceiptService{
		preprocessor: pre,
		tesseract:    &stubOCR{}, // no fragments on either pass
		engine:       extraction.NewEngine(nil),
	}

	_, err := svc.ProcessReceipt(context.Background(), []byte("blank page"), "image/jpeg", "receipt.jpg", "u1", "")
	assert.Error(t, err)
	assert.Equal(t, 1, pre.thermalCalls)
}
