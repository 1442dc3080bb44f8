package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// Extraction is one persisted extraction run.
type Extraction struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Filename   string     `json:"filename"`
	ImagePath  string     `json:"image_path,omitempty"`
	Language   string     `json:"language"`
	Subtotal   *float64   `json:"subtotal"`
	TaxAmount  *float64   `json:"tax_amount"`
	Total      *float64   `json:"total"`
	Currency   *string    `json:"currency"`
	Confidence float64    `json:"confidence"`
	Status     string     `json:"status"`
	ResultJSON string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// Feedback is a user correction against a stored extraction.
type Feedback struct {
	Correct   bool     `json:"correct"`
	Subtotal  *float64 `json:"subtotal,omitempty"`
	TaxAmount *float64 `json:"tax_amount,omitempty"`
	Total     *float64 `json:"total,omitempty"`
	Comment   string   `json:"comment,omitempty"`
}

// MonthlyStats aggregates extraction volume and quality per month.
type MonthlyStats struct {
	Month         string  `json:"month"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
	TotalSum      float64 `json:"total_sum"`
	TaxSum        float64 `json:"tax_sum"`
}

// fillFromResult mirrors the result's scalar fields onto the record so list
// and stats queries read columns instead of parsing result_json.
func (e *Extraction) fillFromResult(result *models.ExtractedResult) {
	e.Subtotal = result.Subtotal
	e.TaxAmount = result.TaxAmount
	e.Total = result.Total
	e.Currency = result.Currency
	e.Confidence = result.Confidence
	if e.Language == "" {
		e.Language = result.Language
	}
}

// SaveExtraction stores a finished run and fills in the generated ID.
func SaveExtraction(ctx context.Context, e *Extraction, result *models.ExtractedResult) error {
	if Pool == nil {
		return fmt.Errorf("database not available")
	}

	e.fillFromResult(result)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now()
	if e.Status == "" {
		e.Status = "completed"
	}

	query := `INSERT INTO extractions
		(id, user_id, filename, image_path, language, subtotal, tax_amount,
		 total, currency, confidence, status, result_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

	_, err = Pool.Exec(ctx, query,
		e.ID, e.UserID, e.Filename, e.ImagePath, e.Language,
		e.Subtotal, e.TaxAmount, e.Total, e.Currency,
		e.Confidence, e.Status, string(resultJSON), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}

// GetExtraction loads one extraction by ID.
func GetExtraction(ctx context.Context, id string) (*Extraction, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not available")
	}

	query := `SELECT id, user_id, filename, image_path, language, subtotal,
		 tax_amount, total, currency, confidence, status, result_json,
		 created_at, updated_at
		FROM extractions WHERE id = $1`

	var e Extraction
	err := Pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.UserID, &e.Filename, &e.ImagePath, &e.Language,
		&e.Subtotal, &e.TaxAmount, &e.Total, &e.Currency,
		&e.Confidence, &e.Status, &e.ResultJSON,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("extraction not found: %w", err)
	}
	return &e, nil
}

// ListExtractions returns a user's extractions, newest first.
func ListExtractions(ctx context.Context, userID string, limit, offset int) ([]Extraction, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not available")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT id, user_id, filename, image_path, language, subtotal,
		 tax_amount, total, currency, confidence, status, result_json,
		 created_at, updated_at
		FROM extractions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	var out []Extraction
	for rows.Next() {
		var e Extraction
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Filename, &e.ImagePath, &e.Language,
			&e.Subtotal, &e.TaxAmount, &e.Total, &e.Currency,
			&e.Confidence, &e.Status, &e.ResultJSON,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExtraction removes a user's extraction. Returns the stored image
// path so the caller can clean up object storage.
func DeleteExtraction(ctx context.Context, userID, id string) (string, error) {
	if Pool == nil {
		return "", fmt.Errorf("database not available")
	}

	var imagePath string
	err := Pool.QueryRow(ctx,
		`DELETE FROM extractions WHERE id = $1 AND user_id = $2 RETURNING image_path`,
		id, userID,
	).Scan(&imagePath)
	if err != nil {
		return "", fmt.Errorf("extraction not found: %w", err)
	}
	return imagePath, nil
}

// SaveFeedback records a correction and marks the extraction reviewed.
func SaveFeedback(ctx context.Context, extractionID string, fb *Feedback) error {
	if Pool == nil {
		return fmt.Errorf("database not available")
	}

	fbJSON, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to serialize feedback: %w", err)
	}

	tag, err := Pool.Exec(ctx,
		`UPDATE extractions
		 SET status = 'reviewed', feedback_json = $2, updated_at = NOW()
		 WHERE id = $1`,
		extractionID, string(fbJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("extraction %s not found", extractionID)
	}
	return nil
}

// GetMonthlyStats aggregates a user's extractions over the last 12 months.
func GetMonthlyStats(ctx context.Context, userID string) ([]MonthlyStats, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not available")
	}

	query := `SELECT to_char(created_at, 'YYYY-MM') AS month,
		 COUNT(*),
		 COALESCE(AVG(confidence), 0),
		 COALESCE(SUM(total), 0),
		 COALESCE(SUM(tax_amount), 0)
		FROM extractions
		WHERE user_id = $1 AND created_at > NOW() - INTERVAL '12 months'
		GROUP BY month
		ORDER BY month DESC`

	rows, err := Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	defer rows.Close()

	var out []MonthlyStats
	for rows.Next() {
		var s MonthlyStats
		if err := rows.Scan(&s.Month, &s.Count, &s.AvgConfidence, &s.TotalSum, &s.TaxSum); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
