// Package config provides configuration loading and structs for the pdfrag server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override config keys.
// Nested keys use a double underscore: PDFRAG_RETRIEVAL__TOP_K=8.
const EnvPrefix = "PDFRAG_"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug" koanf:"debug"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Storage    StorageConfig    `yaml:"storage" koanf:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding" koanf:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction" koanf:"extraction"`
	Chunking   ChunkingConfig   `yaml:"chunking" koanf:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Pipeline   PipelineConfig   `yaml:"pipeline" koanf:"pipeline"`
	LLM        LLMConfig        `yaml:"llm" koanf:"llm"`
	Watch      WatchConfig      `yaml:"watch" koanf:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `yaml:"host" koanf:"host"`
	Port        int    `yaml:"port" koanf:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb" koanf:"max_upload_mb"`
}

// StorageConfig selects where document records and embeddings are kept.
// Type "memory" keeps them for the process lifetime only; "sqlite" persists them at DatabasePath.
type StorageConfig struct {
	Type         string `yaml:"type" koanf:"type"`
	DatabasePath string `yaml:"database_path" koanf:"database_path"`
	UploadDir    string `yaml:"upload_dir" koanf:"upload_dir"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider" koanf:"provider"` // openai, onnx, mock
	Model             string        `yaml:"model" koanf:"model"`
	BaseURL           string        `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env" koanf:"api_key_env"`
	Dimensions        int           `yaml:"dimensions" koanf:"dimensions"`
	BatchSize         int           `yaml:"batch_size" koanf:"batch_size"`
	Concurrency       int           `yaml:"concurrency" koanf:"concurrency"`
	Timeout           time.Duration `yaml:"timeout" koanf:"timeout"`
	MaxRetries        int           `yaml:"max_retries" koanf:"max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	CacheSize         int           `yaml:"cache_size" koanf:"cache_size"`
	ModelPath         string        `yaml:"model_path" koanf:"model_path"`
	MaxTokens         int           `yaml:"max_tokens" koanf:"max_tokens"`
}

// ExtractionConfig holds text-layer and OCR settings.
type ExtractionConfig struct {
	MinPageChars      int           `yaml:"min_page_chars" koanf:"min_page_chars"`
	LanguageHints     []string      `yaml:"language_hints" koanf:"language_hints"`
	OCREngine         string        `yaml:"ocr_engine" koanf:"ocr_engine"` // vision, tesseract, none
	OCRModel          string        `yaml:"ocr_model" koanf:"ocr_model"`
	OCRConcurrency    int           `yaml:"ocr_concurrency" koanf:"ocr_concurrency"`
	OCRTimeout        time.Duration `yaml:"ocr_timeout" koanf:"ocr_timeout"`
	OCRMaxRetries     int           `yaml:"ocr_max_retries" koanf:"ocr_max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	MaxOCRPages       int           `yaml:"max_ocr_pages" koanf:"max_ocr_pages"`
	VisionBatchSize   int           `yaml:"vision_batch_size" koanf:"vision_batch_size"`
	DPI               int           `yaml:"dpi" koanf:"dpi"`
	PdftoppmPath      string        `yaml:"pdftoppm_path" koanf:"pdftoppm_path"`
	TesseractPath     string        `yaml:"tesseract_path" koanf:"tesseract_path"`
}

// ChunkingConfig holds chunk sizes, in characters (runes).
type ChunkingConfig struct {
	MaxChars     int `yaml:"max_chars" koanf:"max_chars"`
	MinChars     int `yaml:"min_chars" koanf:"min_chars"`
	OverlapChars int `yaml:"overlap_chars" koanf:"overlap_chars"`
}

// RetrievalConfig holds retrieval and MMR settings.
type RetrievalConfig struct {
	TopK            int     `yaml:"top_k" koanf:"top_k"`
	MaxTopK         int     `yaml:"max_top_k" koanf:"max_top_k"`
	FetchMultiplier int     `yaml:"fetch_multiplier" koanf:"fetch_multiplier"`
	Lambda          float64 `yaml:"lambda" koanf:"lambda"`
	VectorIndex     string  `yaml:"vector_index" koanf:"vector_index"` // memory, chromem
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	IngestTimeout time.Duration `yaml:"ingest_timeout" koanf:"ingest_timeout"`
}

// LLMConfig holds answer-generation settings.
type LLMConfig struct {
	Model       string  `yaml:"model" koanf:"model"`
	Temperature float64 `yaml:"temperature" koanf:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" koanf:"max_tokens"`
}

// WatchConfig holds the inbox directory; PDFs created there are ingested.
type WatchConfig struct {
	Directory string `yaml:"directory" koanf:"directory"`
}

// Load reads the config file at path (if it exists), overlays PDFRAG_* environment
// variables, expands paths, and applies defaults. A .env file next to the config or in
// the working directory is loaded first so provider keys can live there.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	k := koanf.New(".")
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env overrides: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks value ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Chunking.OverlapChars >= c.Chunking.MaxChars {
		return fmt.Errorf("chunking.overlap_chars (%d) must be smaller than chunking.max_chars (%d)",
			c.Chunking.OverlapChars, c.Chunking.MaxChars)
	}
	if c.Chunking.MinChars > c.Chunking.MaxChars {
		return fmt.Errorf("chunking.min_chars (%d) must not exceed chunking.max_chars (%d)",
			c.Chunking.MinChars, c.Chunking.MaxChars)
	}
	if c.Retrieval.Lambda < 0 || c.Retrieval.Lambda > 1 {
		return fmt.Errorf("retrieval.lambda must be within [0, 1], got %v", c.Retrieval.Lambda)
	}
	switch c.Storage.Type {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid storage.type %q: must be memory or sqlite", c.Storage.Type)
	}
	switch c.Embedding.Provider {
	case "openai", "onnx", "mock":
	default:
		return fmt.Errorf("invalid embedding.provider %q: must be openai, onnx or mock", c.Embedding.Provider)
	}
	switch c.Extraction.OCREngine {
	case "vision", "tesseract", "none":
	default:
		return fmt.Errorf("invalid extraction.ocr_engine %q: must be vision, tesseract or none", c.Extraction.OCREngine)
	}
	return nil
}

// APIKey returns the embedding provider API key from the configured environment variable.
func (c *EmbeddingConfig) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// envKey maps PDFRAG_RETRIEVAL__TOP_K to retrieval.top_k.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			// Existing environment wins over .env values.
			_ = godotenv.Load(p)
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
