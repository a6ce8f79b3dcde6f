package types

import (
	"context"
	"time"
)

// LLMClient defines the interface for chat-completion interactions.
// Implementations live in internal/llm; agents only consume best-effort
// strings and tolerate empty or error responses.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SearchResult is one web-search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher provides external web search.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int, freshness string) ([]SearchResult, error)
}

// ScrapeResult is the outcome of fetching one page.
type ScrapeResult struct {
	Success bool   `json:"success"`
	Title   string `json:"title"`
	Text    string `json:"text"`
}

// WebScraper fetches and extracts readable text from a URL.
type WebScraper interface {
	Scrape(ctx context.Context, url string) (ScrapeResult, error)
}

// StoredSource is the external source store's record of an approved item.
type StoredSource struct {
	ID         string            `json:"id"`
	NotebookID string            `json:"notebook_id"`
	Title      string            `json:"title"`
	URL        string            `json:"url,omitempty"`
	Content    string            `json:"content"`
	SourceName string            `json:"source_name"`
	SourceKind SourceKind        `json:"source_kind"`
	Status     string            `json:"status"` // "processing" -> "completed"
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// SourceStore is the external persistent store of approved sources.
// The core only calls this API; it never writes the store's internal format.
type SourceStore interface {
	Create(ctx context.Context, src StoredSource) error
	Update(ctx context.Context, src StoredSource) error
	List(ctx context.Context, notebookID string) ([]StoredSource, error)
	ListAll(ctx context.Context) ([]StoredSource, error)
	Get(ctx context.Context, id string) (StoredSource, error)
	Delete(ctx context.Context, id string) error
	SetTags(ctx context.Context, id string, tags []string) error
}

// RAGIngestor chunks and indexes approved source content.
type RAGIngestor interface {
	Ingest(ctx context.Context, notebookID, sourceID, text, filename, sourceType string) (chunks int, err error)
}

// NotebookStore enumerates workspaces.
type NotebookStore interface {
	List(ctx context.Context) ([]string, error)
}

// SourceEvent is the payload for UI fan-out on source changes.
type SourceEvent struct {
	NotebookID string `json:"notebook_id"`
	SourceID   string `json:"source_id"`
	Kind       string `json:"kind"` // "created", "completed", "expiring"
	Title      string `json:"title,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
}

// Notifier fans source events out to the UI channel. Failure is non-fatal.
type Notifier interface {
	NotifySourceUpdated(ctx context.Context, event SourceEvent) error
}

// PersonChange is a change reported by the external people module.
type PersonChange struct {
	Person string `json:"person"`
	Change string `json:"change"`
	Source string `json:"source,omitempty"`
}

// PeopleTracker surfaces person changes for briefings.
type PeopleTracker interface {
	RecentChanges(ctx context.Context, notebookID string, since time.Time) ([]PersonChange, error)
}
