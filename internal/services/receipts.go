package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/assist"
	"github.com/facturaIA/receipt-extract-service/internal/db"
	"github.com/facturaIA/receipt-extract-service/internal/extraction"
	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/ocr"
	"github.com/facturaIA/receipt-extract-service/internal/storage"
)

// imagePreprocessor is the slice of ocr.Preprocessor the service needs.
type imagePreprocessor interface {
	PreprocessImageFromBytes(imageData []byte) ([]byte, error)
	PreprocessThermal(imageData []byte) ([]byte, error)
}

// fragmentExtractor is the slice of ocr.TesseractOCR the service needs.
type fragmentExtractor interface {
	ExtractFragments(imageBytes []byte) ([]models.TextFragment, error)
}

// ReceiptService runs the full image-to-result pipeline: preprocessing,
// OCR, evidence extraction, the optional AI cross-check, and persistence.
// Storage and database are best-effort: when either is unavailable the
// service still returns the extraction result.
type ReceiptService struct {
	preprocessor imagePreprocessor
	tesseract    fragmentExtractor
	engine       *extraction.Engine
	checker      *assist.Checker
}

// ProcessOutcome bundles the extraction result with persistence metadata.
type ProcessOutcome struct {
	Result       models.ExtractedResult `json:"result"`
	ExtractionID string                 `json:"extraction_id,omitempty"`
	ImagePath    string                 `json:"image_path,omitempty"`
	ImageURL     string                 `json:"image_url,omitempty"`
}

func NewReceiptService(cfg *models.Config, engine *extraction.Engine) *ReceiptService {
	return &ReceiptService{
		preprocessor: ocr.NewPreprocessor(),
		tesseract:    ocr.NewTesseractOCR(cfg.OCR.Language, cfg.OCR.PSM),
		engine:       engine,
		checker:      assist.NewChecker(cfg.Assist),
	}
}

// ProcessReceipt runs a receipt image through the pipeline for the given user.
func (s *ReceiptService) ProcessReceipt(ctx context.Context, imageBytes []byte, contentType, filename, userID, languageHint string) (*ProcessOutcome, error) {
	processed, err := s.preprocessor.PreprocessImageFromBytes(imageBytes)
	if err != nil {
		// preprocessing already falls back internally; a hard error here
		// means the bytes are unusable
		return nil, fmt.Errorf("image preprocessing failed: %w", err)
	}

	fragments, err := s.tesseract.ExtractFragments(processed)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	if len(fragments) == 0 {
		// thermal paper often defeats the standard pass; retry with the
		// adaptive-threshold pipeline before giving up
		if thermal, terr := s.preprocessor.PreprocessThermal(imageBytes); terr == nil {
			log.Printf("[Receipts] no text on standard pass, retrying with thermal preprocessing")
			fragments, err = s.tesseract.ExtractFragments(thermal)
			if err != nil {
				return nil, fmt.Errorf("OCR failed: %w", err)
			}
		}
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("OCR produced no readable text")
	}

	result := s.engine.Extract(fragments, languageHint)

	if s.checker != nil {
		s.checker.CrossCheck(ctx, fragmentsToText(fragments), &result)
	}

	outcome := &ProcessOutcome{Result: result}

	if storage.Client != nil {
		path, err := storage.UploadReceiptImage(ctx, userID,
			bytes.NewReader(imageBytes), int64(len(imageBytes)), contentType)
		if err != nil {
			log.Printf("[Receipts] image upload failed, continuing without storage: %v", err)
		} else {
			outcome.ImagePath = path
			if url, err := storage.GetPresignedURL(ctx, path); err == nil {
				outcome.ImageURL = url
			}
		}
	}

	if db.Pool != nil {
		record := &db.Extraction{
			UserID:    userID,
			Filename:  filename,
			ImagePath: outcome.ImagePath,
			Language:  result.Language,
		}
		if err := db.SaveExtraction(ctx, record, &result); err != nil {
			log.Printf("[Receipts] save failed, returning unsaved result: %v", err)
		} else {
			outcome.ExtractionID = record.ID
		}
	}

	return outcome, nil
}

// ExtractFromFragments runs the reconciliation pipeline over caller-supplied
// positioned fragments, skipping OCR.
func (s *ReceiptService) ExtractFromFragments(ctx context.Context, fragments []models.TextFragment, languageHint string) models.ExtractedResult {
	result := s.engine.Extract(fragments, languageHint)
	if s.checker != nil {
		s.checker.CrossCheck(ctx, fragmentsToText(fragments), &result)
	}
	return result
}

// RecordFeedback forwards a user verdict to the adaptive weight provider.
// Sources come from the stored result's evidence summary.
func (s *ReceiptService) RecordFeedback(sources []string, correct bool, quality float64) {
	s.engine.RecordFeedback(sources, correct, quality)
}

// fragmentsToText rebuilds a line-oriented view of the receipt for the AI
// cross-check, grouping fragments that share a vertical band.
func fragmentsToText(fragments []models.TextFragment) string {
	var sb strings.Builder
	var lastY float64 = -1e9
	for _, f := range fragments {
		if lastY > -1e8 && f.Box.Y-lastY > 6 {
			sb.WriteString("\n")
		} else if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(f.Text)
		if f.Box.Y > lastY {
			lastY = f.Box.Y
		}
	}
	return sb.String()
}
