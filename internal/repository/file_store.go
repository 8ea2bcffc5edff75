package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/noah-isme/edt-scheduler/pkg/storage"
)

// FileStore writes one JSON file per key through LocalStorage.
type FileStore struct {
	files *storage.LocalStorage
}

// NewFileStore constructs a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	files, err := storage.NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{files: files}, nil
}

// Load reads the file for key.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.files.Read(fileName(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file store load %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the file for key atomically.
func (s *FileStore) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.files.Save(fileName(key), value); err != nil {
		return fmt.Errorf("file store save %s: %w", key, err)
	}
	return nil
}

// Clear removes the file for key.
func (s *FileStore) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.files.Delete(fileName(key))
}

// ClearAll removes every key file under the store directory.
func (s *FileStore) ClearAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names, err := s.files.List("")
	if err != nil {
		return err
	}
	for _, name := range names {
		if !strings.HasSuffix(name, fileExt) || strings.Contains(name, "/") {
			continue
		}
		if err := s.files.Delete(name); err != nil {
			return fmt.Errorf("file store clear %s: %w", name, err)
		}
	}
	return nil
}

// IsAuthenticated reports whether the directory handle is usable.
func (s *FileStore) IsAuthenticated() bool {
	return s != nil && s.files != nil
}

const fileExt = ".json"

func fileName(key string) string {
	return key + fileExt
}
