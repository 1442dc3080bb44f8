package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// Checker runs an optional AI second opinion over a finished extraction.
// It never replaces extracted values: disagreements surface as warnings so
// a reviewer can decide.
type Checker struct {
	provider  Provider
	threshold float64
	timeout   time.Duration
}

// NewChecker wires a checker from config. Returns nil (checker disabled)
// when assist is off or the provider cannot be built.
func NewChecker(cfg models.AssistConfig) *Checker {
	if !cfg.Enabled {
		return nil
	}
	provider, err := NewProvider(cfg)
	if err != nil {
		log.Printf("[Assist] disabled: %v", err)
		return nil
	}
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	log.Printf("[Assist] enabled with provider %s (threshold %.2f)", provider.Name(), threshold)
	return &Checker{
		provider:  provider,
		threshold: threshold,
		timeout:   60 * time.Second,
	}
}

// secondOpinion is the JSON shape we ask the model for.
type secondOpinion struct {
	Subtotal  *float64 `json:"subtotal"`
	TaxAmount *float64 `json:"tax_amount"`
	Total     *float64 `json:"total"`
	Currency  *string  `json:"currency"`
}

// CrossCheck asks the AI provider to read the receipt text independently and
// compares its numbers against the extracted result. Only runs when the
// result confidence fell below the configured threshold. All outcomes are
// advisory: warnings get appended, values never change.
func (c *Checker) CrossCheck(ctx context.Context, rawText string, result *models.ExtractedResult) {
	if c == nil || result == nil {
		return
	}
	if result.Confidence >= c.threshold {
		return
	}
	if strings.TrimSpace(rawText) == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.provider.Complete(ctx, buildPrompt(rawText))
	if err != nil {
		log.Printf("[Assist] cross-check skipped: %v", err)
		return
	}

	opinion, err := parseOpinion(response)
	if err != nil {
		log.Printf("[Assist] unparseable response: %v", err)
		return
	}

	warnings := compare(result, opinion)
	if len(warnings) == 0 {
		result.EvidenceSummary.Warnings = append(result.EvidenceSummary.Warnings,
			fmt.Sprintf("ai cross-check (%s): agrees with extracted values", c.provider.Name()))
		return
	}
	for _, w := range warnings {
		result.EvidenceSummary.Warnings = append(result.EvidenceSummary.Warnings,
			fmt.Sprintf("ai cross-check (%s): %s", c.provider.Name(), w))
	}
}

func buildPrompt(rawText string) string {
	return fmt.Sprintf(`You are reading OCR text from a retail receipt. Extract the monetary summary.

Rules:
- subtotal is the pre-tax amount, tax_amount is the total tax, total is the final amount paid
- currency is the ISO 4217 code (EUR, USD, GBP, ...) or null if not visible
- amounts use a dot as decimal separator in your output regardless of the receipt's locale
- use null for any value you cannot read; never guess or compute missing values

Return ONLY valid JSON, no markdown:
{"subtotal": number|null, "tax_amount": number|null, "total": number|null, "currency": "..."|null}

Receipt text:
%s`, rawText)
}

func parseOpinion(response string) (*secondOpinion, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var opinion secondOpinion
	if err := json.Unmarshal([]byte(cleaned), &opinion); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return &opinion, nil
}

// compare lists disagreements over 2% between extraction and the AI reading.
func compare(result *models.ExtractedResult, opinion *secondOpinion) []string {
	var warnings []string

	check := func(field string, extracted, suggested *float64) {
		if extracted == nil || suggested == nil {
			return
		}
		base := math.Max(math.Abs(*extracted), 0.01)
		if math.Abs(*extracted-*suggested)/base > 0.02 {
			warnings = append(warnings,
				fmt.Sprintf("%s disagreement: extracted %.2f, ai read %.2f", field, *extracted, *suggested))
		}
	}

	check("subtotal", result.Subtotal, opinion.Subtotal)
	check("tax_amount", result.TaxAmount, opinion.TaxAmount)
	check("total", result.Total, opinion.Total)

	if result.Currency != nil && opinion.Currency != nil &&
		!strings.EqualFold(*result.Currency, *opinion.Currency) {
		warnings = append(warnings,
			fmt.Sprintf("currency disagreement: extracted %s, ai read %s", *result.Currency, *opinion.Currency))
	}
	return warnings
}
