package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/pdfrag/internal/models"
)

// SQLiteStorage implements Storage using SQLite, so ready documents survive restarts.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		fingerprint TEXT PRIMARY KEY,
		page_count INTEGER NOT NULL,
		extraction_mode TEXT NOT NULL,
		language_hints TEXT,
		chunk_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		sequence_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		overlap INTEGER NOT NULL,
		first_page INTEGER NOT NULL,
		last_page INTEGER NOT NULL,
		embedding BLOB,
		FOREIGN KEY (fingerprint) REFERENCES documents(fingerprint) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_fingerprint_seq ON chunks(fingerprint, sequence_index);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveDocument replaces the document and its chunks in one transaction.
func (s *SQLiteStorage) SaveDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	hintsJSON, err := json.Marshal(doc.LanguageHints)
	if err != nil {
		return fmt.Errorf("failed to marshal language hints: %w", err)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE fingerprint = ?`, doc.Fingerprint); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (fingerprint, page_count, extraction_mode, language_hints, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Fingerprint, doc.PageCount, string(doc.ExtractionMode), string(hintsJSON), doc.ChunkCount, doc.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, fingerprint, sequence_index, text, overlap, first_page, last_page, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.ID, doc.Fingerprint, ch.SequenceIndex, ch.Text, ch.Overlap,
			ch.Pages.First, ch.Pages.Last, encodeVector(ch.Embedding)); err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// GetDocument returns a document by fingerprint.
func (s *SQLiteStorage) GetDocument(ctx context.Context, fingerprint string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, page_count, extraction_mode, language_hints, chunk_count, created_at
		 FROM documents WHERE fingerprint = ?`, fingerprint)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var mode string
	var hintsJSON sql.NullString
	if err := row.Scan(&doc.Fingerprint, &doc.PageCount, &mode, &hintsJSON, &doc.ChunkCount, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.ExtractionMode = models.ExtractionMode(mode)
	if hintsJSON.Valid && hintsJSON.String != "" {
		if err := json.Unmarshal([]byte(hintsJSON.String), &doc.LanguageHints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal language hints: %w", err)
		}
	}
	return &doc, nil
}

// GetChunks returns all chunks for a document ordered by sequence index.
func (s *SQLiteStorage) GetChunks(ctx context.Context, fingerprint string) ([]*models.Chunk, error) {
	if _, err := s.GetDocument(ctx, fingerprint); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sequence_index, text, overlap, first_page, last_page, embedding
		 FROM chunks WHERE fingerprint = ? ORDER BY sequence_index`,
		fingerprint,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		ch := &models.Chunk{DocumentFingerprint: fingerprint}
		var blob []byte
		if err := rows.Scan(&ch.ID, &ch.SequenceIndex, &ch.Text, &ch.Overlap, &ch.Pages.First, &ch.Pages.Last, &blob); err != nil {
			return nil, err
		}
		if ch.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", ch.ID, err)
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// DeleteDocument removes a document; its chunks go with it.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE fingerprint = ?`, fingerprint)
	return err
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, page_count, extraction_mode, language_hints, chunk_count, created_at
		 FROM documents ORDER BY created_at DESC, fingerprint LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
