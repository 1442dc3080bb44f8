package ocr

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/facturaIA/receipt-extract-service/internal/models"
)

// TesseractOCR drives the tesseract CLI in TSV mode so every recognized word
// arrives with its bounding box and per-word confidence.
type TesseractOCR struct {
	language string
	psm      int
}

// NewTesseractOCR creates a Tesseract runner. Receipts usually scan best
// with PSM 6 (uniform block of text).
func NewTesseractOCR(language string, psm int) *TesseractOCR {
	if language == "" {
		language = "eng"
	}
	if psm <= 0 {
		psm = 6
	}
	return &TesseractOCR{language: language, psm: psm}
}

// ExtractFragments runs OCR on preprocessed image bytes and returns
// positioned text fragments.
func (t *TesseractOCR) ExtractFragments(imageBytes []byte) ([]models.TextFragment, error) {
	tmpDir := os.TempDir()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("ocr_in_%d.png", os.Getpid()))

	if err := os.WriteFile(inputFile, imageBytes, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp image: %w", err)
	}
	defer os.Remove(inputFile)

	cmd := exec.Command("tesseract",
		inputFile, "stdout",
		"-l", t.language,
		"--psm", strconv.Itoa(t.psm),
		"tsv",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return ParseTSV(stdout.String()), nil
}

// ParseTSV decodes Tesseract's TSV output into text fragments. Word rows
// have level 5; anything unparsable or empty is skipped, never fatal.
func ParseTSV(output string) []models.TextFragment {
	var fragments []models.TextFragment

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header row
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}

		level, err := strconv.Atoi(cols[0])
		if err != nil || level != 5 {
			continue
		}

		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}

		left, err1 := strconv.Atoi(cols[6])
		top, err2 := strconv.Atoi(cols[7])
		width, err3 := strconv.Atoi(cols[8])
		height, err4 := strconv.Atoi(cols[9])
		conf, err5 := strconv.ParseFloat(cols[10], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		if conf < 0 {
			// confidence -1 marks layout rows that slipped through
			continue
		}

		fragments = append(fragments, models.TextFragment{
			Text: text,
			Box: models.BoundingBox{
				X:      float64(left),
				Y:      float64(top),
				Width:  float64(width),
				Height: float64(height),
			},
			Confidence: conf / 100,
		})
	}
	return fragments
}

// Version reports the installed tesseract version, for health checks.
func Version() (string, error) {
	out, err := exec.Command("tesseract", "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tesseract not available: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	return strings.TrimSpace(lines[0]), nil
}
