package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hyperjump/pdfrag/internal/provider"
)

// TesseractOCR runs the tesseract CLI on page images.
type TesseractOCR struct {
	binary string
	runner CommandRunner
}

// NewTesseractOCR returns an engine calling binary (usually "tesseract").
func NewTesseractOCR(binary string, runner CommandRunner) *TesseractOCR {
	if binary == "" {
		binary = "tesseract"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &TesseractOCR{binary: binary, runner: runner}
}

// Recognize writes img to a temporary file and returns tesseract's stdout.
func (t *TesseractOCR) Recognize(ctx context.Context, img *PageImage, languageHints []string) (string, error) {
	dir, err := os.MkdirTemp("", "pdfrag-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "page"+imageExt(img.MIMEType))
	if err := os.WriteFile(path, img.Data, 0600); err != nil {
		return "", fmt.Errorf("write page image: %w", err)
	}

	args := []string{path, "stdout"}
	if len(languageHints) > 0 {
		args = append(args, "-l", strings.Join(languageHints, "+"))
	}
	out, err := t.runner.Run(ctx, t.binary, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = provider.Permanent(err)
		}
		return "", fmt.Errorf("tesseract page %d: %w", img.Page, err)
	}
	return string(out), nil
}

func imageExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "":
		return ".jpg"
	default:
		return ".img"
	}
}
