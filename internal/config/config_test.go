package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "0.0.0.0"
  port: 9000
storage:
  type: sqlite
  database_path: "test.db"
embedding:
  provider: mock
  dimensions: 8
  timeout: 5s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.DatabasePath == "" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Embedding.Timeout != 5*time.Second {
		t.Errorf("embedding timeout: got %v", cfg.Embedding.Timeout)
	}
	if cfg.Embedding.Dimensions != 8 {
		t.Errorf("embedding dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunking.MaxChars != 900 || cfg.Chunking.OverlapChars != 120 {
		t.Errorf("chunking defaults: %+v", cfg.Chunking)
	}
}

func TestLoad_envOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  top_k: 4\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PDFRAG_RETRIEVAL__TOP_K", "9")
	t.Setenv("PDFRAG_DEBUG", "true")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieval.TopK != 9 {
		t.Errorf("env override top_k: got %d, want 9", cfg.Retrieval.TopK)
	}
	if !cfg.Debug {
		t.Error("env override debug should be true")
	}
}

func TestLoad_dotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("embedding:\n  api_key_env: PDFRAG_TEST_KEY\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PDFRAG_TEST_KEY=sk-from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("PDFRAG_TEST_KEY") })
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Embedding.APIKey(); got != "sk-from-dotenv" {
		t.Errorf("APIKey() = %q", got)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/documents.db"
  upload_dir: "./data/uploads"
watch:
  directory: "./inbox"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "documents.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "uploads"); cfg.Storage.UploadDir != want {
		t.Errorf("upload_dir = %s, want %s", cfg.Storage.UploadDir, want)
	}
	if want := filepath.Join(dir, "inbox"); cfg.Watch.Directory != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directory, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"overlap not below max", "chunking:\n  max_chars: 100\n  overlap_chars: 100\n"},
		{"lambda out of range", "retrieval:\n  lambda: 1.5\n"},
		{"unknown storage", "storage:\n  type: redis\n"},
		{"unknown provider", "embedding:\n  provider: cohere\n"},
		{"unknown ocr engine", "extraction:\n  ocr_engine: abbyy\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadMB != 30 {
		t.Errorf("default max upload: got %d", cfg.Server.MaxUploadMB)
	}
	if cfg.Retrieval.TopK != 6 || cfg.Retrieval.Lambda != 0.5 || cfg.Retrieval.FetchMultiplier != 4 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if len(cfg.Extraction.LanguageHints) != 2 || cfg.Extraction.LanguageHints[1] != "ara" {
		t.Errorf("language hints: %v", cfg.Extraction.LanguageHints)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("openai dimensions: got %d", cfg.Embedding.Dimensions)
	}
	onnx := &Config{Embedding: EmbeddingConfig{Provider: "onnx"}}
	ApplyDefaults(onnx)
	if onnx.Embedding.Dimensions != 384 {
		t.Errorf("onnx dimensions: got %d", onnx.Embedding.Dimensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{Server: ServerConfig{Host: "localhost", Port: 9090}}
	ApplyDefaults(cfg)
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Embedding.Timeout != cfg.Embedding.Timeout {
		t.Errorf("loaded timeout: got %v, want %v", loaded.Embedding.Timeout, cfg.Embedding.Timeout)
	}
}
