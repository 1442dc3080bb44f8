package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func TestExtractionMirrorsResultScalars(t *testing.T) {
	result := &models.ExtractedResult{
		Subtotal:   fptr(31.11),
		TaxAmount:  fptr(4.51),
		Total:      fptr(35.62),
		Currency:   sptr("EUR"),
		Confidence: 0.87,
		Language:   "fi",
	}

	e := &Extraction{UserID: "u1", Filename: "receipt.jpg"}
	e.fillFromResult(result)

	require.NotNil(t, e.Subtotal)
	assert.Equal(t, 31.11, *e.Subtotal)
	require.NotNil(t, e.TaxAmount)
	assert.Equal(t, 4.51, *e.TaxAmount)
	require.NotNil(t, e.Total)
	assert.Equal(t, 35.62, *e.Total)
	require.NotNil(t, e.Currency)
	assert.Equal(t, "EUR", *e.Currency)
	assert.Equal(t, 0.87, e.Confidence)
	assert.Equal(t, "fi", e.Language)
}

func TestExtractionKeepsExplicitLanguage(t *testing.T) {
	e := &Extraction{Language: "sv"}
	e.fillFromResult(&models.ExtractedResult{Language: "en"})
	assert.Equal(t, "sv", e.Language)
}

func TestSaveExtractionWithoutDatabase(t *testing.T) {
	require.Nil(t, Pool)
	err := SaveExtraction(context.Background(), &Extraction{UserID: "u1"}, &models.ExtractedResult{})
	assert.Error(t, err)
}
