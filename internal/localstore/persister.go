package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/verdure-app/verdure/internal/models"
)

// Persister reads and writes the serialized snapshot blob. The store writes
// through it after every mutation and reads it exactly once at startup.
type Persister interface {
	Save(snap *models.Snapshot) error
	Load() (*models.Snapshot, error)
}

// FileBlob persists the snapshot as a single JSON file. Saves go through a
// temp file and rename so a crash mid-write never leaves a torn blob.
type FileBlob struct {
	path string
}

func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path}
}

func (f *FileBlob) Save(snap *models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot blob: %w", err)
	}
	return nil
}

// Load reads the blob. A missing file is not an error: it yields an empty
// snapshot, which is the first-run state.
func (f *FileBlob) Load() (*models.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("failed to read snapshot blob: %w", err)
	}

	snap := models.NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot blob: %w", err)
	}
	snap.Normalize()
	return snap, nil
}
