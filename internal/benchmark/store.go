package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Store defines the interface for storing benchmark runs.
type Store interface {
	Save(run Run) error
	LoadLatest(suite string) (*Run, error)
	LoadAll() ([]Run, error)
}

var _ Store = (*FileStore)(nil)

// FileStore keeps every run of every suite in one JSON array file.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(run Run) error {
	runs, err := s.LoadAll()
	if err != nil {
		return err
	}
	runs = append(runs, run)

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	// The history file is replaced, never partially written.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// LoadAll returns all runs ordered by timestamp. A missing or empty file is
// an empty history.
func (s *FileStore) LoadAll() ([]Run, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Run{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Run{}, nil
	}

	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// LoadLatest returns the newest run of suite, or nil when there is none.
// An empty suite matches any run.
func (s *FileStore) LoadLatest(suite string) (*Run, error) {
	runs, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	for i := len(runs) - 1; i >= 0; i-- {
		if suite == "" || runs[i].Suite == suite {
			return &runs[i], nil
		}
	}
	return nil, nil
}
