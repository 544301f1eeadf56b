// internal/notify/mute.go
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Mute silences notifications for a project, optionally until a deadline.
// A zero Until mutes indefinitely.
type Mute struct {
	Project string    `json:"project"`
	Until   time.Time `json:"until,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

func (m *Mute) expired(now time.Time) bool {
	return !m.Until.IsZero() && now.After(m.Until)
}

// MuteStore is a JSON-file-backed store for project mutes.
type MuteStore struct {
	path string
	mu   sync.RWMutex
}

// NewMuteStore creates a file-backed MuteStore at the given file path.
func NewMuteStore(path string) *MuteStore {
	return &MuteStore{path: path}
}

// Path returns the file path used by this store.
func (s *MuteStore) Path() string {
	return s.path
}

// List returns all mutes, including expired ones. Returns an empty slice
// if the file doesn't exist.
func (s *MuteStore) List() ([]*Mute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mutes, err := s.load()
	if err != nil {
		return nil, err
	}
	if mutes == nil {
		return []*Mute{}, nil
	}
	return mutes, nil
}

// Set mutes a project, replacing any existing mute for it.
func (s *MuteStore) Set(m *Mute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutes, err := s.load()
	if err != nil {
		return err
	}

	for i, existing := range mutes {
		if existing.Project == m.Project {
			mutes[i] = m
			return s.save(mutes)
		}
	}
	mutes = append(mutes, m)
	return s.save(mutes)
}

// Remove unmutes a project. Returns an error if it was not muted.
func (s *MuteStore) Remove(project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutes, err := s.load()
	if err != nil {
		return err
	}

	for i, m := range mutes {
		if m.Project == project {
			mutes = append(mutes[:i], mutes[i+1:]...)
			return s.save(mutes)
		}
	}
	return fmt.Errorf("project not muted: %s", project)
}

// IsMuted reports whether a project is muted at the given instant. Store
// errors fail open: a broken mute file must not silence notifications.
func (s *MuteStore) IsMuted(project string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mutes, err := s.load()
	if err != nil {
		return false
	}
	for _, m := range mutes {
		if m.Project == project && !m.expired(now) {
			return true
		}
	}
	return false
}

// Prune drops expired mutes from the file. Returns how many were removed.
func (s *MuteStore) Prune(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutes, err := s.load()
	if err != nil {
		return 0, err
	}

	kept := mutes[:0]
	for _, m := range mutes {
		if !m.expired(now) {
			kept = append(kept, m)
		}
	}
	removed := len(mutes) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(kept)
}

// load reads the JSON file and returns the mute list. Returns nil if the
// file doesn't exist.
func (s *MuteStore) load() ([]*Mute, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mutes file: %w", err)
	}

	var mutes []*Mute
	if err := json.Unmarshal(data, &mutes); err != nil {
		return nil, fmt.Errorf("unmarshal mutes: %w", err)
	}
	return mutes, nil
}

// save writes the mute list to disk using atomic write (temp file + rename).
func (s *MuteStore) save(mutes []*Mute) error {
	data, err := json.MarshalIndent(mutes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mutes: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mutes dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp mutes file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp mutes file: %w", err)
	}
	return nil
}
