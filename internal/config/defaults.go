package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 30
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pdfrag/data/db/documents.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/pdfrag/data/uploads"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		if cfg.Embedding.Provider == "onnx" {
			cfg.Embedding.Dimensions = 384
		} else {
			cfg.Embedding.Dimensions = 1536
		}
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.RequestsPerMinute == 0 {
		cfg.Embedding.RequestsPerMinute = 600
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/pdfrag/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}

	if cfg.Extraction.MinPageChars == 0 {
		cfg.Extraction.MinPageChars = 16
	}
	if cfg.Extraction.LanguageHints == nil {
		cfg.Extraction.LanguageHints = []string{"eng", "ara"}
	}
	if cfg.Extraction.OCREngine == "" {
		cfg.Extraction.OCREngine = "vision"
	}
	if cfg.Extraction.OCRModel == "" {
		cfg.Extraction.OCRModel = "gpt-4o-mini"
	}
	if cfg.Extraction.OCRConcurrency == 0 {
		cfg.Extraction.OCRConcurrency = 2
	}
	if cfg.Extraction.OCRTimeout == 0 {
		cfg.Extraction.OCRTimeout = 90 * time.Second
	}
	if cfg.Extraction.OCRMaxRetries == 0 {
		cfg.Extraction.OCRMaxRetries = 2
	}
	if cfg.Extraction.RequestsPerMinute == 0 {
		cfg.Extraction.RequestsPerMinute = 60
	}
	if cfg.Extraction.MaxOCRPages == 0 {
		cfg.Extraction.MaxOCRPages = 20
	}
	if cfg.Extraction.VisionBatchSize == 0 {
		cfg.Extraction.VisionBatchSize = 3
	}
	if cfg.Extraction.DPI == 0 {
		cfg.Extraction.DPI = 140
	}
	if cfg.Extraction.PdftoppmPath == "" {
		cfg.Extraction.PdftoppmPath = "pdftoppm"
	}
	if cfg.Extraction.TesseractPath == "" {
		cfg.Extraction.TesseractPath = "tesseract"
	}

	if cfg.Chunking.MaxChars == 0 {
		cfg.Chunking.MaxChars = 900
	}
	if cfg.Chunking.MinChars == 0 {
		cfg.Chunking.MinChars = 200
	}
	if cfg.Chunking.OverlapChars == 0 {
		cfg.Chunking.OverlapChars = 120
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 50
	}
	if cfg.Retrieval.FetchMultiplier == 0 {
		cfg.Retrieval.FetchMultiplier = 4
	}
	// Zero is a legal lambda (pure diversity) but never a sensible default; treat it as unset.
	if cfg.Retrieval.Lambda == 0 {
		cfg.Retrieval.Lambda = 0.5
	}
	if cfg.Retrieval.VectorIndex == "" {
		cfg.Retrieval.VectorIndex = "memory"
	}

	if cfg.Pipeline.IngestTimeout == 0 {
		cfg.Pipeline.IngestTimeout = 10 * time.Minute
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}
}
