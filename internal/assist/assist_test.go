package assist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

type stubProvider struct {
	response string
	called   bool
}

func (s *stubProvider) Complete(_ context.Context, _ string) (string, error) {
	s.called = true
	return s.response, nil
}

func (s *stubProvider) Name() string { return "stub" }

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

func TestCrossCheckSkipsConfidentResults(t *testing.T) {
	stub := &stubProvider{response: `{"total": 99.99}`}
	checker := &Checker{provider: stub, threshold: 0.5}

	result := &models.ExtractedResult{Confidence: 0.8, Total: fptr(35.62)}
	checker.CrossCheck(context.Background(), "TOTAL 35,62", result)

	assert.False(t, stub.called)
	assert.Empty(t, result.EvidenceSummary.Warnings)
}

func TestCrossCheckWarnsOnDisagreementWithoutChangingValues(t *testing.T) {
	stub := &stubProvider{response: "```json\n{\"subtotal\": 31.11, \"tax_amount\": 4.51, \"total\": 99.99, \"currency\": \"EUR\"}\n```"}
	checker := &Checker{provider: stub, threshold: 0.5}

	result := &models.ExtractedResult{
		Confidence: 0.3,
		Subtotal:   fptr(31.11),
		TaxAmount:  fptr(4.51),
		Total:      fptr(35.62),
		Currency:   sptr("EUR"),
	}
	checker.CrossCheck(context.Background(), "YHTEENSÄ 35,62", result)

	require.Len(t, result.EvidenceSummary.Warnings, 1)
	assert.Contains(t, result.EvidenceSummary.Warnings[0], "total disagreement")
	assert.Equal(t, 35.62, *result.Total)
}

func TestCrossCheckNotesAgreement(t *testing.T) {
	stub := &stubProvider{response: `{"subtotal": 31.11, "tax_amount": 4.51, "total": 35.62, "currency": "eur"}`}
	checker := &Checker{provider: stub, threshold: 0.5}

	result := &models.ExtractedResult{
		Confidence: 0.2,
		Subtotal:   fptr(31.11),
		TaxAmount:  fptr(4.51),
		Total:      fptr(35.62),
		Currency:   sptr("EUR"),
	}
	checker.CrossCheck(context.Background(), "YHTEENSÄ 35,62", result)

	require.Len(t, result.EvidenceSummary.Warnings, 1)
	assert.Contains(t, result.EvidenceSummary.Warnings[0], "agrees")
}

func TestParseOpinionHandlesNulls(t *testing.T) {
	opinion, err := parseOpinion(`{"subtotal": null, "tax_amount": null, "total": 12.50, "currency": null}`)
	require.NoError(t, err)
	assert.Nil(t, opinion.Subtotal)
	require.NotNil(t, opinion.Total)
	assert.Equal(t, 12.50, *opinion.Total)
}

func TestNewCheckerDisabled(t *testing.T) {
	assert.Nil(t, NewChecker(models.AssistConfig{Enabled: false}))
	// unknown provider degrades to disabled rather than failing startup
	assert.Nil(t, NewChecker(models.AssistConfig{Enabled: true, Provider: "carrier-pigeon"}))
}
