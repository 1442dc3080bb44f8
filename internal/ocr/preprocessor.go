// Package ocr turns receipt images into positioned text fragments: an
// ImageMagick cleanup pass followed by Tesseract in TSV mode.
package ocr

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// Preprocessor cleans receipt photos up before OCR.
type Preprocessor struct{}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// PreprocessImage reads and enhances an image file for better OCR reading.
func (p *Preprocessor) PreprocessImage(imagePath string) ([]byte, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	return p.PreprocessImageFromBytes(imageData)
}

// PreprocessImageFromBytes applies the standard enhancement pipeline:
// resize, grayscale, auto-contrast, denoise, sharpen. Any ImageMagick
// failure falls back to the original bytes rather than erroring.
func (p *Preprocessor) PreprocessImageFromBytes(imageData []byte) ([]byte, error) {
	tmpDir := os.TempDir()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("receipt_in_%d.jpg", os.Getpid()))
	outputFile := filepath.Join(tmpDir, fmt.Sprintf("receipt_out_%d.jpg", os.Getpid()))

	if err := os.WriteFile(inputFile, imageData, 0644); err != nil {
		return imageData, nil
	}
	defer os.Remove(inputFile)
	defer os.Remove(outputFile)

	args := []string{
		inputFile,
		"-resize", "2000x2000>",
		"-colorspace", "Gray",
		"-normalize",
		"-contrast-stretch", "2%x1%",
		"-despeckle",
		"-sharpen", "0x1",
		"-unsharp", "0x0.5+0.5+0",
		"-quality", "95",
		outputFile,
	}

	if err := runMagick(args); err != nil {
		log.Printf("[Preprocessor] ImageMagick failed: %v", err)
		return imageData, nil
	}

	processed, err := os.ReadFile(outputFile)
	if err != nil {
		return imageData, nil
	}

	log.Printf("[Preprocessor] Image enhanced: %d bytes -> %d bytes", len(imageData), len(processed))
	return processed, nil
}

// PreprocessThermal applies a harder pass for faded thermal receipts:
// adaptive threshold for uneven print density, heavier contrast and
// double denoise.
func (p *Preprocessor) PreprocessThermal(imageData []byte) ([]byte, error) {
	tmpDir := os.TempDir()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("thermal_in_%d.jpg", os.Getpid()))
	outputFile := filepath.Join(tmpDir, fmt.Sprintf("thermal_out_%d.jpg", os.Getpid()))

	if err := os.WriteFile(inputFile, imageData, 0644); err != nil {
		return imageData, nil
	}
	defer os.Remove(inputFile)
	defer os.Remove(outputFile)

	args := []string{
		inputFile,
		"-resize", "2500x2500>",
		"-colorspace", "Gray",
		"-lat", "50x50+10%",
		"-contrast-stretch", "5%x2%",
		"-despeckle",
		"-despeckle",
		"-sharpen", "0x2",
		"-quality", "95",
		outputFile,
	}

	if err := runMagick(args); err != nil {
		return p.PreprocessImageFromBytes(imageData)
	}

	processed, err := os.ReadFile(outputFile)
	if err != nil {
		return p.PreprocessImageFromBytes(imageData)
	}

	log.Printf("[Preprocessor] Thermal-enhanced: %d bytes -> %d bytes", len(imageData), len(processed))
	return processed, nil
}

// runMagick tries 'magick' (ImageMagick 7) then 'convert' (ImageMagick 6).
func runMagick(args []string) error {
	var cmd *exec.Cmd
	if _, err := exec.LookPath("magick"); err == nil {
		cmd = exec.Command("magick", args...)
	} else {
		cmd = exec.Command("convert", args...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

// MagickVersion reports the installed ImageMagick version, for health checks.
func MagickVersion() (string, error) {
	out, err := exec.Command("convert", "-version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("imagemagick not available: %w", err)
	}
	return string(bytes.Split(out, []byte("\n"))[0]), nil
}
