package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore persists the opaque session credential between runs.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	// Get returns the stored credential and whether one is present
	Get() (string, bool)
	// Set replaces the stored credential
	Set(token string) error
	// Clear removes the stored credential; clearing an empty store is a no-op
	Clear() error
}

type tokenFile struct {
	AccessToken string `json:"access_token"`
}

// FileTokenStore keeps the credential in a JSON file so a session survives
// process restarts. Reads always go to disk so each caller sees the latest
// persisted value.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore creates a file-backed token store at path
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Get reads the credential from disk
func (s *FileTokenStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil || tf.AccessToken == "" {
		return "", false
	}
	return tf.AccessToken, true
}

// Set writes the credential to disk with owner-only permissions
func (s *FileTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	data, err := json.Marshal(tokenFile{AccessToken: token})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the token file
func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryTokenStore is an in-process store used in tests and anywhere
// persistence across restarts is not wanted.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

// NewMemoryTokenStore creates an empty in-memory token store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Get returns the stored credential
func (s *MemoryTokenStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set
}

// Set replaces the stored credential
func (s *MemoryTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Clear removes the stored credential
func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}
