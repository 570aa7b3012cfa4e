package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotExist is returned by a Store that holds no document yet.
var ErrNotExist = errors.New("registry document does not exist")

// Store is durable storage for the registry document.
type Store interface {
	// Read returns the raw document, or ErrNotExist.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the document. A failed write must leave the previous
	// document intact.
	Write(ctx context.Context, data []byte) error
	// String describes the location for logs.
	String() string
}

// FileStore keeps the registry document in a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store for path. The parent directory is created on
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the document path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) String() string {
	return "file:" + s.path
}

// Read implements Store.Read
func (s *FileStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return data, nil
}

// Write implements Store.Write. The document is written to a temp file in the
// same directory, synced and renamed over the target.
func (s *FileStore) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	committed = true

	return nil
}
