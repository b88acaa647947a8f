package extract

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/config"
	"github.com/hyperjump/pdfrag/internal/provider"
)

// NewFromConfig builds an Extractor with the configured OCR engine. Vision OCR uses the
// embedding provider's OpenAI credentials.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*Extractor, error) {
	xc := cfg.Extraction
	opts := []Option{
		WithMinPageChars(xc.MinPageChars),
		WithLanguageHints(xc.LanguageHints),
		WithMaxOCRPages(xc.MaxOCRPages),
		WithOCRConcurrency(xc.OCRConcurrency),
		WithLogger(logger),
	}

	var engine OCREngine
	switch xc.OCREngine {
	case "none":
	case "tesseract":
		engine = NewTesseractOCR(xc.TesseractPath, nil)
	case "vision":
		v, err := NewVisionOCR(cfg.Embedding.APIKey(), cfg.Embedding.BaseURL, xc.OCRModel,
			WithBatchSize(xc.VisionBatchSize), WithVisionLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("%w (set %s or use extraction.ocr_engine: tesseract)", err, cfg.Embedding.APIKeyEnv)
		}
		engine = v
	default:
		return nil, fmt.Errorf("unknown ocr engine: %s", xc.OCREngine)
	}

	if engine != nil {
		resilient := NewResilientOCR(engine, provider.Policy{
			Name:       "ocr/" + xc.OCREngine,
			Timeout:    xc.OCRTimeout,
			MaxRetries: xc.OCRMaxRetries,
			Limiter:    provider.NewLimiter(xc.RequestsPerMinute),
			Logger:     logger,
		})
		opts = append(opts, WithOCR(NewPopplerRasterizer(xc.PdftoppmPath, xc.DPI, nil), resilient))
	}
	return NewExtractor(opts...), nil
}
