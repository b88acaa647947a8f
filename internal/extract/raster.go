package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/hyperjump/pdfrag/internal/provider"
)

// PageImage is a rendered page ready for OCR.
type PageImage struct {
	Page     int
	Data     []byte
	MIMEType string
}

// Rasterizer renders a single 1-based page of the PDF at pdfPath to an image.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page int) (*PageImage, error)
}

// PopplerRasterizer renders pages to JPEG with poppler's pdftoppm.
type PopplerRasterizer struct {
	binary string
	dpi    int
	runner CommandRunner
}

// NewPopplerRasterizer returns a rasterizer calling binary (usually "pdftoppm") at the given DPI.
func NewPopplerRasterizer(binary string, dpi int, runner CommandRunner) *PopplerRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 140
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PopplerRasterizer{binary: binary, dpi: dpi, runner: runner}
}

// Rasterize renders page to a JPEG.
func (r *PopplerRasterizer) Rasterize(ctx context.Context, pdfPath string, page int) (*PageImage, error) {
	dir, err := os.MkdirTemp("", "pdfrag-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	n := strconv.Itoa(page)
	_, err = r.runner.Run(ctx, r.binary,
		"-f", n, "-l", n,
		"-r", strconv.Itoa(r.dpi),
		"-jpeg", "-jpegopt", "quality=60",
		"-singlefile",
		pdfPath, root)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = provider.Permanent(err)
		}
		return nil, fmt.Errorf("rasterize page %d: %w", page, err)
	}
	data, err := os.ReadFile(root + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return &PageImage{Page: page, Data: data, MIMEType: "image/jpeg"}, nil
}
