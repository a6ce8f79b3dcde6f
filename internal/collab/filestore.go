package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dossier/internal/logging"
	"dossier/internal/types"
)

// FileSourceStore is a JSON-per-source implementation of the external source
// store, rooted at <dir>/sources/<notebook>/<id>.json. Production deployments
// back this interface with their own database; the file store keeps the CLI
// usable standalone.
type FileSourceStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileSourceStore creates a store rooted at dir.
func NewFileSourceStore(dir string) *FileSourceStore {
	return &FileSourceStore{dir: dir}
}

func (s *FileSourceStore) path(notebookID, id string) string {
	return filepath.Join(s.dir, "sources", notebookID, id+".json")
}

func (s *FileSourceStore) write(src types.StoredSource) error {
	path := s.path(src.NotebookID, src.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Create persists a new source record.
func (s *FileSourceStore) Create(ctx context.Context, src types.StoredSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.ID == "" || src.NotebookID == "" {
		return fmt.Errorf("source requires id and notebook id")
	}
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now()
	}
	return s.write(src)
}

// Update overwrites an existing source record.
func (s *FileSourceStore) Update(ctx context.Context, src types.StoredSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.path(src.NotebookID, src.ID)); err != nil {
		return fmt.Errorf("source %s not found: %w", src.ID, err)
	}
	return s.write(src)
}

// Get loads one source by id, searching across notebooks.
func (s *FileSourceStore) Get(ctx context.Context, id string) (types.StoredSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.listAllLocked()
	if err != nil {
		return types.StoredSource{}, err
	}
	for _, src := range all {
		if src.ID == id {
			return src, nil
		}
	}
	return types.StoredSource{}, fmt.Errorf("source %s not found", id)
}

// List returns a notebook's sources, newest first.
func (s *FileSourceStore) List(ctx context.Context, notebookID string) ([]types.StoredSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listNotebookLocked(notebookID)
}

// ListAll returns every source across notebooks, newest first.
func (s *FileSourceStore) ListAll(ctx context.Context) ([]types.StoredSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAllLocked()
}

func (s *FileSourceStore) listNotebookLocked(notebookID string) ([]types.StoredSource, error) {
	dir := filepath.Join(s.dir, "sources", notebookID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []types.StoredSource
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var src types.StoredSource
		if err := json.Unmarshal(data, &src); err != nil {
			logging.Store("skipping unreadable source file %s: %v", e.Name(), err)
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *FileSourceStore) listAllLocked() ([]types.StoredSource, error) {
	root := filepath.Join(s.dir, "sources")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []types.StoredSource
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		srcs, err := s.listNotebookLocked(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, srcs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes one source.
func (s *FileSourceStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.listAllLocked()
	if err != nil {
		return err
	}
	for _, src := range all {
		if src.ID == id {
			return os.Remove(s.path(src.NotebookID, src.ID))
		}
	}
	return fmt.Errorf("source %s not found", id)
}

// SetTags replaces a source's tags.
func (s *FileSourceStore) SetTags(ctx context.Context, id string, tags []string) error {
	src, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src.Tags = tags
	return s.write(src)
}

// DirNotebookStore enumerates workspaces from the notebooks directory.
type DirNotebookStore struct {
	dataDir string
}

// NewDirNotebookStore creates a notebook store over <dataDir>/notebooks.
func NewDirNotebookStore(dataDir string) *DirNotebookStore {
	return &DirNotebookStore{dataDir: dataDir}
}

// List returns notebook IDs.
func (s *DirNotebookStore) List(ctx context.Context) ([]string, error) {
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

// LogNotifier writes source events to the API log. The real UI channel is an
// external concern; failure to notify never fails the pipeline.
type LogNotifier struct{}

// NotifySourceUpdated logs the event.
func (LogNotifier) NotifySourceUpdated(ctx context.Context, event types.SourceEvent) error {
	logging.API("source event %s: notebook=%s source=%s title=%q chunks=%d",
		event.Kind, event.NotebookID, event.SourceID, event.Title, event.Chunks)
	return nil
}

// NoopIngestor satisfies the RAG interface when no indexer is wired. It
// reports zero chunks without error so approval flows still complete.
type NoopIngestor struct{}

// Ingest does nothing.
func (NoopIngestor) Ingest(ctx context.Context, notebookID, sourceID, text, filename, sourceType string) (int, error) {
	return 0, nil
}
