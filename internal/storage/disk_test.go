package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pdfrag/internal/config"
)

func configFor(typ, path string) config.StorageConfig {
	return config.StorageConfig{Type: typ, DatabasePath: path}
}

func TestMeasureUsage(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "documents.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	uploads := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(filepath.Join(uploads, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploads, "a.pdf"), []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(uploads, "sub", "b.pdf"), []byte("d"), 0644); err != nil {
		t.Fatal(err)
	}

	u, err := MeasureUsage(db, uploads)
	if err != nil {
		t.Fatal(err)
	}
	if u.DatabaseBytes != 7 {
		t.Errorf("DatabaseBytes = %d, want 7", u.DatabaseBytes)
	}
	if u.UploadBytes != 4 || u.UploadFiles != 2 {
		t.Errorf("uploads = %d bytes in %d files, want 4 in 2", u.UploadBytes, u.UploadFiles)
	}
}

func TestMeasureUsage_missingPaths(t *testing.T) {
	dir := t.TempDir()
	u, err := MeasureUsage(filepath.Join(dir, "absent.db"), filepath.Join(dir, "absent"))
	if err != nil {
		t.Fatal(err)
	}
	if u != (Usage{}) {
		t.Errorf("expected zero usage, got %+v", u)
	}
	if u, err := MeasureUsage("", ""); err != nil || u != (Usage{}) {
		t.Errorf("empty paths: %+v, %v", u, err)
	}
}
