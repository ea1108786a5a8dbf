package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/logging"
)

// ErrNoUpload is returned when nothing has been uploaded yet
var ErrNoUpload = errors.New("no upload stored")

// Store keeps the most recent upload
type Store interface {
	Save(ctx context.Context, r *Result) error
	Latest(ctx context.Context) (*Result, error)
	Close() error
}

// NewStore creates the store named by cfg.Store. A Redis store that cannot
// be reached falls back to the file store.
func NewStore(cfg config.UploadConfig, log *logging.Logger) Store {
	if log == nil {
		log = logging.GetDefault()
	}
	if cfg.Store == "redis" {
		rs, err := NewRedisStore(cfg.Redis, cfg.TTL)
		if err == nil {
			log.Info("upload store: redis at %s", cfg.Redis.Addr)
			return rs
		}
		log.Warn("upload store: %v, falling back to %s", err, cfg.Path)
	}
	return NewFileStore(cfg.Path)
}

// FileStore keeps the latest upload in a single JSON file. Writes go to a
// temporary file that is renamed into place, so readers see either the old
// or the new upload. Concurrent uploads are last-writer-wins.
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(_ context.Context, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode upload: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to store upload: %w", err)
	}
	return nil
}

func (s *FileStore) Latest(context.Context) (*Result, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoUpload
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("corrupt upload file %s: %w", s.path, err)
	}
	return &r, nil
}

func (s *FileStore) Close() error {
	return nil
}
