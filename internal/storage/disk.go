package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// Usage is the on-disk footprint of the service's data.
type Usage struct {
	DatabaseBytes int64 `json:"database_bytes"`
	UploadBytes   int64 `json:"upload_bytes"`
	UploadFiles   int   `json:"upload_files"`
}

// MeasureUsage sums the database file (with its WAL and shared-memory siblings) and the
// upload directory. Missing paths count as zero.
func MeasureUsage(dbPath, uploadDir string) (Usage, error) {
	var u Usage
	if dbPath != "" {
		for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
			info, err := os.Stat(p)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return Usage{}, err
			}
			u.DatabaseBytes += info.Size()
		}
	}
	if uploadDir == "" {
		return u, nil
	}
	err := filepath.WalkDir(uploadDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		u.UploadBytes += info.Size()
		u.UploadFiles++
		return nil
	})
	return u, err
}
