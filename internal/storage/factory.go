package storage

import (
	"fmt"

	"github.com/hyperjump/pdfrag/internal/config"
)

// NewFromConfig opens the configured store.
func NewFromConfig(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryStorage(), nil
	case "sqlite":
		return NewSQLiteStorage(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
