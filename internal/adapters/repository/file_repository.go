package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tofu-suite/tofu/internal/domain/entities"
	"github.com/tofu-suite/tofu/internal/ports"
)

// FileRepository keeps the document in a single JSON file.
type FileRepository struct {
	path string
}

// NewFileRepository creates a file repository for path
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

var _ ports.DocumentRepository = (*FileRepository)(nil)

// Path returns the file location
func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) Location() string { return r.path }

// Load reads the whole file. Local file I/O does not observe cancellation.
func (r *FileRepository) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, entities.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return data, nil
}

// Save writes data to a temporary file next to the target and renames it
// into place, creating the parent directory when needed.
func (r *FileRepository) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", r.path, err)
	}
	return nil
}
