// Package store implements a small persistent key-value store backed by
// a JSON file. Writes go through an atomic rename so a crash mid-write
// never leaves a truncated file behind.
package store

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/renameio/v2"
	zlog "github.com/rs/zerolog/log"
)

// Store is a mutex-guarded string map persisted to disk on every write.
type Store struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// Open loads the store file at path, creating an empty store when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zlog.Debug().Str("path", path).Msg("store: no existing file, starting empty")
			return s, nil
		}
		return nil, errors.Wrap(err, "failed to read store file")
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, errors.Wrap(err, "failed to parse store file")
	}
	return s, nil
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// GetDefault returns the value for key, or fallback when absent.
func (s *Store) GetDefault(key, fallback string) string {
	if v, ok := s.Get(key); ok {
		return v
	}
	return fallback
}

// Set stores key=value and persists the full map.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, had := s.data[key]
	s.data[key] = value
	if err := s.flushLocked(); err != nil {
		// Roll back so memory and disk stay consistent.
		if had {
			s.data[key] = old
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Delete removes key and persists the full map. Removing an absent key
// is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, had := s.data[key]
	if !had {
		return nil
	}
	delete(s.data, key)
	if err := s.flushLocked(); err != nil {
		s.data[key] = old
		return err
	}
	return nil
}

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode store")
	}
	if err := renameio.WriteFile(s.path, raw, 0644); err != nil {
		return errors.Wrap(err, "failed to write store file")
	}
	return nil
}
