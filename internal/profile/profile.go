// Package profile persists per-notebook research profiles. Each notebook
// owns <data>/notebooks/<id>/collector.yaml plus an optional notebook.md of
// human-written guidance appended to the relevance-scoring prompt.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dossier/internal/types"
)

// Store reads and writes notebook profiles under a data directory.
type Store struct {
	dataDir string
}

// NewStore creates a profile store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Dir returns the notebook's directory, creating it if needed.
func (s *Store) Dir(notebookID string) (string, error) {
	dir := filepath.Join(s.dataDir, "notebooks", notebookID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create notebook dir: %w", err)
	}
	return dir, nil
}

// Default returns a usable profile for a notebook that has never been
// configured. Readers tolerate absence of the file by receiving this.
func Default(notebookID string) types.Profile {
	now := time.Now()
	return types.Profile{
		NotebookID:     notebookID,
		CollectionMode: types.CollectionHybrid,
		ApprovalMode:   types.ApprovalMixed,
		Schedule: types.Schedule{
			Frequency:      "daily",
			MaxItemsPerRun: 10,
		},
		Filters: types.Filters{
			MaxAgeDays:   30,
			MinRelevance: 0.3,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Load reads a notebook's profile, returning the default when no file
// exists. A corrupt file is a fatal error for the caller to surface.
func (s *Store) Load(notebookID string) (types.Profile, error) {
	path := filepath.Join(s.dataDir, "notebooks", notebookID, "collector.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(notebookID), nil
		}
		return types.Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var p types.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return types.Profile{}, fmt.Errorf("corrupt profile for notebook %s: %w", notebookID, err)
	}
	if p.NotebookID == "" {
		p.NotebookID = notebookID
	}
	applyProfileDefaults(&p)
	return p, nil
}

// Save writes the profile atomically (full overwrite via temp + rename).
func (s *Store) Save(p types.Profile) error {
	if p.NotebookID == "" {
		return fmt.Errorf("profile requires a notebook id")
	}
	dir, err := s.Dir(p.NotebookID)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	path := filepath.Join(dir, "collector.yaml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return os.Rename(tmp, path)
}

// Delete removes a notebook's directory and all of its core-owned state.
func (s *Store) Delete(notebookID string) error {
	if notebookID == "" || strings.Contains(notebookID, "..") {
		return fmt.Errorf("invalid notebook id")
	}
	return os.RemoveAll(filepath.Join(s.dataDir, "notebooks", notebookID))
}

// List enumerates notebook IDs that have a profile directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "notebooks"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Guidance returns the notebook.md content, or empty when absent. The text
// is appended verbatim to the relevance-scoring prompt.
func (s *Store) Guidance(notebookID string) string {
	data, err := os.ReadFile(filepath.Join(s.dataDir, "notebooks", notebookID, "notebook.md"))
	if err != nil {
		return ""
	}
	return string(data)
}

// QueuePath returns the notebook's approval-queue file path.
func (s *Store) QueuePath(notebookID string) string {
	return filepath.Join(s.dataDir, "notebooks", notebookID, "approval_queue.json")
}

func applyProfileDefaults(p *types.Profile) {
	if p.CollectionMode == "" {
		p.CollectionMode = types.CollectionHybrid
	}
	if p.ApprovalMode == "" {
		p.ApprovalMode = types.ApprovalMixed
	}
	if p.Schedule.Frequency == "" {
		p.Schedule.Frequency = "daily"
	}
	if p.Schedule.MaxItemsPerRun == 0 {
		p.Schedule.MaxItemsPerRun = 10
	}
	if p.Filters.MaxAgeDays == 0 {
		p.Filters.MaxAgeDays = 30
	}
}
