// Package extract turns PDF bytes into per-page text, reading the text layer first and
// falling back to OCR for pages that have none.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/pdfrag/internal/models"
)

// Extraction is the text of a document, one entry per page.
type Extraction struct {
	Pages []models.PageText
	Mode  models.ExtractionMode
}

// Text returns the usable page texts joined by blank lines.
func (x *Extraction) Text() string {
	parts := make([]string, 0, len(x.Pages))
	for _, p := range x.Pages {
		if p.Outcome != models.PageEmpty {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Extractor extracts per-page text from PDFs.
type Extractor struct {
	minPageChars  int
	languageHints []string
	maxOCRPages   int
	concurrency   int
	rasterizer    Rasterizer
	ocr           OCREngine
	logger        *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithOCR enables the OCR fallback for image-only pages.
func WithOCR(r Rasterizer, engine OCREngine) Option {
	return func(e *Extractor) {
		e.rasterizer = r
		e.ocr = engine
	}
}

// WithMinPageChars sets the rune count below which a page's text layer counts as missing.
func WithMinPageChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minPageChars = n
		}
	}
}

// WithLanguageHints sets the languages passed to the OCR engine.
func WithLanguageHints(hints []string) Option {
	return func(e *Extractor) {
		e.languageHints = hints
	}
}

// WithMaxOCRPages caps how many image-only pages are recognized per document.
func WithMaxOCRPages(n int) Option {
	return func(e *Extractor) {
		e.maxOCRPages = n
	}
}

// WithOCRConcurrency bounds the number of OCR calls in flight.
func WithOCRConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// NewExtractor returns a new Extractor. Without WithOCR, image-only pages stay empty.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		minPageChars:  16,
		languageHints: []string{"eng", "ara"},
		maxOCRPages:   20,
		concurrency:   2,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of every page of the PDF in content.
// It fails with models.ErrCorruptFile when content is not a readable PDF and with
// models.ErrUnreadable when no page yields usable text.
func (e *Extractor) Extract(ctx context.Context, content []byte) (*Extraction, error) {
	layers, err := readTextLayer(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptFile, err)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", models.ErrUnreadable)
	}

	pages := make([]models.PageText, len(layers))
	var imageOnly []int
	for i, text := range layers {
		pages[i] = models.PageText{Number: i + 1}
		if utf8.RuneCountInString(strings.TrimSpace(text)) >= e.minPageChars {
			pages[i].Text = text
			pages[i].Outcome = models.PageNativeText
			continue
		}
		imageOnly = append(imageOnly, i+1)
	}

	if len(imageOnly) > 0 && e.ocr != nil && e.rasterizer != nil {
		if err := e.recognize(ctx, content, imageOnly, pages); err != nil {
			return nil, err
		}
	}

	x := &Extraction{Pages: pages, Mode: extractionMode(len(imageOnly), len(pages))}
	usable := 0
	for _, p := range pages {
		if p.Outcome != models.PageEmpty {
			usable++
		}
	}
	if e.logger != nil {
		e.logger.Debug("extracted document",
			zap.Int("pages", len(pages)),
			zap.Int("image_only", len(imageOnly)),
			zap.Int("usable", usable),
			zap.String("mode", string(x.Mode)))
	}
	if usable == 0 {
		return nil, fmt.Errorf("%w: %d pages, none with text", models.ErrUnreadable, len(pages))
	}
	return x, nil
}

func extractionMode(ocrPages, total int) models.ExtractionMode {
	switch {
	case ocrPages == 0:
		return models.ModeNativeText
	case ocrPages == total:
		return models.ModeOCR
	default:
		return models.ModeMixed
	}
}

// recognize rasterizes and recognizes the given 1-based pages, filling in pages.
func (e *Extractor) recognize(ctx context.Context, content []byte, pageNums []int, pages []models.PageText) error {
	if e.maxOCRPages > 0 && len(pageNums) > e.maxOCRPages {
		if e.logger != nil {
			e.logger.Warn("ocr page cap reached",
				zap.Int("image_only", len(pageNums)),
				zap.Int("max_ocr_pages", e.maxOCRPages))
		}
		pageNums = pageNums[:e.maxOCRPages]
	}

	pdfPath, cleanup, err := writeTemp(content)
	if err != nil {
		return err
	}
	defer cleanup()

	batchSize := 1
	batcher, isBatch := e.ocr.(BatchRecognizer)
	if isBatch && batcher.BatchSize() > 1 {
		batchSize = batcher.BatchSize()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(pageNums); start += batchSize {
		end := start + batchSize
		if end > len(pageNums) {
			end = len(pageNums)
		}
		batch := pageNums[start:end]
		g.Go(func() error {
			imgs := make([]*PageImage, len(batch))
			for i, n := range batch {
				img, err := e.rasterizer.Rasterize(gctx, pdfPath, n)
				if err != nil {
					return err
				}
				imgs[i] = img
			}

			var texts map[int]string
			if batchSize > 1 {
				var err error
				texts, err = batcher.RecognizeBatch(gctx, imgs, e.languageHints)
				if err != nil {
					return fmt.Errorf("ocr pages %d-%d: %w", batch[0], batch[len(batch)-1], err)
				}
			} else {
				text, err := e.ocr.Recognize(gctx, imgs[0], e.languageHints)
				if err != nil {
					return fmt.Errorf("ocr page %d: %w", batch[0], err)
				}
				texts = map[int]string{batch[0]: text}
			}
			// Each batch owns distinct page slots.
			for _, n := range batch {
				if text := strings.TrimSpace(texts[n]); text != "" {
					pages[n-1].Text = text
					pages[n-1].Outcome = models.PageRecognized
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func writeTemp(content []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "pdfrag-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp pdf: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp pdf: %w", err)
	}
	return f.Name(), cleanup, nil
}
