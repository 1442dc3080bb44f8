package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/extraction"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/services"
)

func testHandler() *Handler {
	cfg := &models.Config{Port: 8080, Host: "127.0.0.1"}
	service := services.NewReceiptService(cfg, extraction.NewEngine(nil))
	return NewHandler(cfg, service)
}

func frag(text string, x, y float64) models.TextFragment {
	return models.TextFragment{
		Text:       text,
		Box:        models.BoundingBox{X: x, Y: y, Width: 60, Height: 16},
		Confidence: 0.9,
	}
}

func TestExtractEndpoint(t *testing.T) {
	router := testHandler().SetupRoutes()

	body, err := json.Marshal(ExtractRequest{
		Fragments: []models.TextFragment{
			frag("SUBTOTAL", 10, 700), frag("$208.98", 210, 700),
			frag("TAX", 10, 730), frag("$13.37", 210, 730),
			frag("TOTAL", 10, 760), frag("$222.35", 210, 760),
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.ExtractedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Total)
	assert.Equal(t, 222.35, *result.Total)
	require.NotNil(t, result.Currency)
	assert.Equal(t, "USD", *result.Currency)
}

func TestExtractEndpointRejectsEmptyBody(t *testing.T) {
	router := testHandler().SetupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader([]byte(`{"fragments":[]}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthReportsServiceStatus(t *testing.T) {
	router := testHandler().SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.NotEmpty(t, health.Status)
	assert.Equal(t, Version, health.Version)
	// database and storage are optional; their status must still be reported
	assert.False(t, health.Database.Available)
}
