package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store is the durable key-value contract of the training corpus.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the stored record, or (nil, nil) when nothing has been
	// saved yet.
	Load(ctx context.Context) (*Record, error)

	// Save replaces the stored record.
	Save(ctx context.Context, rec *Record) error
}

// Pinger is implemented by stores that can report reachability for
// readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Compile-time interface checks.
var (
	_ Store = (*MemStore)(nil)
	_ Store = (*FileStore)(nil)
)

// MemStore keeps the record in memory as JSON, so callers never share maps
// with it. The zero value is ready to use.
type MemStore struct {
	mu   sync.Mutex
	data []byte
}

// Load implements [Store.Load].
func (s *MemStore) Load(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return DecodeRecord(s.data)
}

// Save implements [Store.Save].
func (s *MemStore) Save(_ context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("training: marshal record: %w", err)
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// FileStore persists the record as a single JSON document. Writes go to a
// temporary file in the same directory that is then renamed over the target,
// so readers never observe a partial document.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore writing to path. The file and its parent
// directory are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements [Store.Load].
func (s *FileStore) Load(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("training: read %q: %w", s.path, err)
	}
	return DecodeRecord(data)
}

// Save implements [Store.Save].
func (s *FileStore) Save(_ context.Context, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("training: marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("training: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("training: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("training: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("training: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("training: rename: %w", err)
	}
	return nil
}

// DecodeRecord unmarshals a stored record and fills in nil maps. Store
// backends outside this package share it.
func DecodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("training: decode record: %w", err)
	}
	if rec.TrainingData == nil {
		rec.TrainingData = make(map[string]IntentData)
	}
	if rec.AccuracyStats == nil {
		rec.AccuracyStats = make(map[string]AccuracyStats)
	}
	return &rec, nil
}
