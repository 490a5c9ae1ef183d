// Package tokenstore persists the app's bearer token between requests. The
// token is opaque: stores never inspect or validate it.
package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apporbit/apporbit/logging"
)

// Store holds at most one token.
type Store interface {
	// Get returns the stored token, if one exists.
	Get() (string, bool)

	// Set replaces the stored token.
	Set(token string)

	// Clear removes the stored token. Clearing an empty store is a no-op.
	Clear()
}

// Memory returns a store that lives only as long as the process.
func Memory() Store {
	return &memoryStore{}
}

type memoryStore struct {
	mu    sync.RWMutex
	token string
}

func (s *memoryStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *memoryStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *memoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// File returns a store that persists the token at path, surviving process
// restarts. Storage failures are logged and the store degrades to in-memory
// behavior for the rest of the process; callers never see an error.
func File(path string) Store {
	s := &fileStore{path: path}
	if data, err := os.ReadFile(path); err == nil {
		s.token = strings.TrimSpace(string(data))
	} else if !os.IsNotExist(err) {
		logging.Warnw(context.Background(), "tokenstore: unreadable token file, falling back to memory",
			"path", path, "error", err)
		s.degraded = true
	}
	return s
}

type fileStore struct {
	mu       sync.RWMutex
	path     string
	token    string
	degraded bool
}

func (s *fileStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *fileStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if s.degraded {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.degrade(err)
		return
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		s.degrade(err)
	}
}

func (s *fileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if s.degraded {
		return
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		s.degrade(err)
	}
}

// degrade switches to memory-only operation. Callers must hold mu.
func (s *fileStore) degrade(err error) {
	s.degraded = true
	logging.Warnw(context.Background(), "tokenstore: write failed, falling back to memory",
		"path", s.path, "error", err)
}
