// Package storage persists the panel's local keys in a single JSON file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Local is a string-keyed JSON document on disk. Every Set or Delete
// rewrites the whole file through a temp file and rename.
type Local struct {
	path string

	mu   sync.RWMutex
	keys map[string]json.RawMessage
}

// Open loads path, creating its directory. A missing file is an empty store.
func Open(path string) (*Local, error) {
	if path == "" {
		return nil, errors.New("local store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("local store: mkdir %s: %w", filepath.Dir(path), err)
	}

	s := &Local{path: path, keys: make(map[string]json.RawMessage)}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("local store: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.keys); err != nil {
		// A corrupt file should not keep the panel from starting.
		slog.Warn("local store unreadable, starting empty", "path", path, "error", err)
		s.keys = make(map[string]json.RawMessage)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Local) Path() string { return s.path }

// Get decodes key into out and reports whether the key exists.
func (s *Local) Get(key string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("local store: decode %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key and flushes.
func (s *Local) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("local store: encode %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = raw
	return s.flushLocked()
}

// Delete removes key and flushes. Deleting a missing key is a no-op.
func (s *Local) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		return nil
	}
	delete(s.keys, key)
	return s.flushLocked()
}

// Keys lists stored keys in sorted order.
func (s *Local) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Local) flushLocked() error {
	data, err := json.MarshalIndent(s.keys, "", "  ")
	if err != nil {
		return fmt.Errorf("local store: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("local store: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.cleanupTemp(tmpPath)
		return fmt.Errorf("local store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.cleanupTemp(tmpPath)
		return fmt.Errorf("local store: close: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		s.cleanupTemp(tmpPath)
		return fmt.Errorf("local store: rename: %w", err)
	}
	return nil
}

func (s *Local) cleanupTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("local store temp cleanup failed", "path", path, "error", err)
	}
}
