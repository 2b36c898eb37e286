// Package file stores the transcript snapshot as a JSON document on local
// disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/storage"
)

// Store keeps the snapshot in a single file, replaced atomically on save.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store writing to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot.
func (s *Store) Load(ctx context.Context) (models.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.State{}, storage.ErrNotFound
	}
	if err != nil {
		return models.State{}, fmt.Errorf("read snapshot: %w", err)
	}

	var state models.State
	if err := json.Unmarshal(data, &state); err != nil {
		return models.State{}, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return state, nil
}

// Save writes the snapshot to a temporary file and renames it into place.
func (s *Store) Save(ctx context.Context, state models.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if state.Transcript == nil {
		state.Transcript = []models.TranscriptEntry{}
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sonara-snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close does nothing; the file is not held open.
func (s *Store) Close() error { return nil }
