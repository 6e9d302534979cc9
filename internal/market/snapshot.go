package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot persists the last successfully fetched quote so the display can
// show something meaningful across restarts and API outages.
type Snapshot struct {
	path string
}

// NewSnapshot creates a snapshot store at path, creating the parent
// directory if needed.
func NewSnapshot(path string) (*Snapshot, error) {
	if path == "" {
		return nil, errors.New("market: snapshot path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("market: failed to create snapshot dir: %w", err)
	}
	return &Snapshot{path: path}, nil
}

// Save writes the quote to disk. The write is atomic via a temp file
// rename so a crash never leaves a truncated snapshot behind.
func (s *Snapshot) Save(q *Quote) error {
	if q == nil {
		return nil
	}
	b, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the last saved quote. Returns (nil, nil) when no snapshot
// exists yet.
func (s *Snapshot) Load() (*Quote, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var q Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, fmt.Errorf("market: corrupt snapshot: %w", err)
	}
	q.Source = "cache"
	return &q, nil
}

// Clear removes the snapshot file if present.
func (s *Snapshot) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
