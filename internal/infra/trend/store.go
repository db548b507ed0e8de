// Package trend implements the file-backed snapshot store: one JSON array
// per project, bounded to the newest entries, written atomically.
package trend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/sonartrack/api/pkg/domain/trend"
	"github.com/sonartrack/api/pkg/logger"
)

// unsafeChars matches everything not allowed in a history filename.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Store persists per-project snapshot histories under a single directory.
// Writes are serialized; the history file is replaced atomically via rename
// so a crash mid-write never corrupts existing history.
type Store struct {
	dir string
	log *logger.Logger

	mu sync.Mutex
}

// NewStore creates the history directory if needed.
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("trend store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trend directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// Append adds a snapshot to the project's history, evicting the oldest
// entries beyond the bound. The stored array stays ordered oldest-first.
func (s *Store) Append(projectKey string, snap trend.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.load(projectKey)
	if err != nil {
		return err
	}

	history = append(history, snap)
	if len(history) > trend.MaxSnapshots {
		history = history[len(history)-trend.MaxSnapshots:]
	}
	return s.save(projectKey, history)
}

// History returns the project's snapshots oldest-first. A project with no
// history yields an empty slice, not an error.
func (s *Store) History(projectKey string) ([]trend.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(projectKey)
}

// Delete removes the project's history file.
func (s *Store) Delete(projectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(projectKey))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete trend history: %w", err)
	}
	return nil
}

func (s *Store) load(projectKey string) ([]trend.Snapshot, error) {
	data, err := os.ReadFile(s.path(projectKey))
	if os.IsNotExist(err) {
		return []trend.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trend history: %w", err)
	}

	var history []trend.Snapshot
	if err := json.Unmarshal(data, &history); err != nil {
		// A corrupt file loses its history rather than blocking all future
		// snapshots. Loud log, fresh start.
		s.log.Error("trend history corrupt, starting fresh",
			"project_key", projectKey, "error", err)
		return []trend.Snapshot{}, nil
	}
	return history, nil
}

func (s *Store) save(projectKey string, history []trend.Snapshot) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trend history: %w", err)
	}

	path := s.path(projectKey)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trend history: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace trend history: %w", err)
	}
	return nil
}

func (s *Store) path(projectKey string) string {
	name := unsafeChars.ReplaceAllString(projectKey, "_")
	return filepath.Join(s.dir, name+".json")
}
