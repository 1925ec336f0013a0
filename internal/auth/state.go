// internal/auth/state.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrSessionMissing is returned when no readable session state exists.
var ErrSessionMissing = errors.New("session state missing")

// SessionState is a serialized authenticated browser context.
type SessionState struct {
	URL       string          `json:"url,omitempty"`
	Cookies   []Cookie        `json:"cookies"`
	Origins   []OriginStorage `json:"origins"`
	CreatedAt time.Time       `json:"created_at"`
}

// Cookie represents a browser cookie
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// OriginStorage holds the localStorage entries of one origin.
type OriginStorage struct {
	Origin       string         `json:"origin"`
	LocalStorage []StorageEntry `json:"localStorage"`
}

// StorageEntry is one localStorage key/value pair.
type StorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Store reads and writes the session state at a fixed path.
// Bootstrap and cookie import write it; extraction runs only read.
type Store struct {
	Path string
}

// NewStore returns a store for the given file path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Exists reports whether the state file is present and readable.
func (s *Store) Exists() bool {
	f, err := os.Open(s.Path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Load reads the whole state file. Any failure to read or decode it is
// reported as ErrSessionMissing.
func (s *Store) Load() (*SessionState, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMissing, err)
	}

	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: unreadable state file %s: %v", ErrSessionMissing, s.Path, err)
	}
	return &st, nil
}

// Save writes the state file whole, creating parent directories.
func (s *Store) Save(st *SessionState) error {
	if st == nil {
		return fmt.Errorf("session state cannot be nil")
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to save session file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// Delete removes the state file. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// Info returns the file's modification time and size when present.
func (s *Store) Info() (time.Time, int64, bool) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, 0, false
	}
	return fi.ModTime(), fi.Size(), true
}
