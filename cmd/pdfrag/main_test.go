package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/pdfrag/internal/cli"
	"github.com/hyperjump/pdfrag/internal/extract/extracttest"
	"github.com/hyperjump/pdfrag/internal/models"
)

const testConfig = `
storage:
  type: memory
embedding:
  provider: mock
  dimensions: 64
extraction:
  ocr_engine: none
chunking:
  max_chars: 200
  min_chars: 20
  overlap_chars: 40
`

func writeFixture(t *testing.T) (configPath, pdfPath string) {
	t.Helper()
	dir := t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(testConfig), 0600); err != nil {
		t.Fatal(err)
	}
	pdfPath = filepath.Join(dir, "handbook.pdf")
	pdf := extracttest.BuildPDF(
		"The museum opens at nine in the morning and closes at five in the evening.",
		"Parking in the north garage costs five dollars per day for visitors.",
	)
	if err := os.WriteFile(pdfPath, pdf, 0600); err != nil {
		t.Fatal(err)
	}
	return configPath, pdfPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "pdfrag version dev\n" {
		t.Errorf("version output = %q", out)
	}
}

func TestIngestCommand(t *testing.T) {
	configPath, pdfPath := writeFixture(t)
	out, err := execute(t, "--config", configPath, "ingest", "--json", pdfPath)
	if err != nil {
		t.Fatalf("ingest: %v\n%s", err, out)
	}
	var resp models.IngestResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("ingest --json output is not JSON: %v\n%s", err, out)
	}
	if resp.PageCount != 2 || resp.ChunkCount == 0 || resp.ExtractionMode != models.ModeNativeText {
		t.Errorf("ingest response = %+v", resp)
	}
	if len(resp.Fingerprint) != 64 {
		t.Errorf("fingerprint = %q", resp.Fingerprint)
	}
}

func TestIngestCommand_errors(t *testing.T) {
	configPath, _ := writeFixture(t)
	if _, err := execute(t, "--config", configPath, "ingest", filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("missing file should fail")
	}
	junk := filepath.Join(t.TempDir(), "junk.pdf")
	if err := os.WriteFile(junk, []byte("not a pdf"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", configPath, "ingest", junk); err == nil {
		t.Error("corrupt file should fail")
	}
	if _, err := execute(t, "--config", configPath, "ingest", "--output", "xml", junk); err == nil ||
		!strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("bad output format: %v", err)
	}
}

func TestAskCommand(t *testing.T) {
	configPath, pdfPath := writeFixture(t)
	out, err := execute(t, "--config", configPath, "ask", "--json", "--top-k", "2", pdfPath, "parking", "fee")
	if err != nil {
		t.Fatalf("ask: %v\n%s", err, out)
	}
	var res cli.AskResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("ask --json output is not JSON: %v\n%s", err, out)
	}
	if res.Retrieval.Query != "parking fee" {
		t.Errorf("query = %q", res.Retrieval.Query)
	}
	if n := len(res.Retrieval.Chunks); n == 0 || n > 2 {
		t.Errorf("got %d chunks, want 1..2", n)
	}
	if res.Answer != "" {
		t.Error("no answer without --answer")
	}
}

func TestAskCommand_requiresQuestion(t *testing.T) {
	configPath, pdfPath := writeFixture(t)
	if _, err := execute(t, "--config", configPath, "ask", pdfPath); err == nil {
		t.Error("ask without a question should fail")
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name       string
		words      []string
		lambdaSet  bool
		wantQuery  string
		wantLambda bool
	}{
		{"single quoted phrase", []string{"parking fee"}, false, "parking fee", false},
		{"multiple words", []string{"parking", "fee"}, false, "parking fee", false},
		{"lambda given", []string{" fee "}, true, "fee", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := buildQuery(tt.words, 3, tt.lambdaSet, 0.8)
			if q.Query != tt.wantQuery || q.TopK != 3 {
				t.Errorf("buildQuery() = %+v", q)
			}
			if (q.Lambda != nil) != tt.wantLambda {
				t.Errorf("lambda set = %v, want %v", q.Lambda != nil, tt.wantLambda)
			}
			if q.Lambda != nil && *q.Lambda != 0.8 {
				t.Errorf("lambda = %v", *q.Lambda)
			}
		})
	}
}

func TestLoadConfig_fallsBackToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9123\n"), 0600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9123 {
		t.Errorf("port = %d, want 9123 from the working directory config", cfg.Server.Port)
	}
	if filepath.Base(path) != "config.yaml" || path == defaultConfigPath {
		t.Errorf("resolved path = %s", path)
	}
}
