// Package filestore persists session keys in a single JSON document on local disk.
// It plays the role browser local storage plays for the web console.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/target/mmk-console/internal/ports"
)

var _ ports.KeyValueStore = (*Store)(nil)

const (
	dirPerm  = 0o700
	filePerm = 0o600
)

// Store reads and rewrites the whole document on every call so that several
// console processes sharing a file observe each other's writes.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store backed by path. The file and its directory are created lazily.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("session file path is required")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[key] = value
	return s.save(doc)
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.save(doc)
}

// load returns the current document. A missing or unparsable file reads as empty
// so the next write replaces it.
func (s *Store) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, unavailable("read session file", err)
	}
	doc := map[string]string{}
	if len(raw) == 0 {
		return doc, nil
	}
	if jsonErr := json.Unmarshal(raw, &doc); jsonErr != nil {
		return map[string]string{}, nil //nolint:nilerr // corrupt documents are overwritten on next save
	}
	return doc, nil
}

func (s *Store) save(doc map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return unavailable("create session dir", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return unavailable("create temp session file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return unavailable("write session file", err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return unavailable("chmod session file", err)
	}
	if err = tmp.Close(); err != nil {
		cleanup()
		return unavailable("close session file", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return unavailable("replace session file", err)
	}
	return nil
}

// unavailable marks a filesystem failure as ports.ErrStorageUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ports.ErrStorageUnavailable, err)
}
