package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dossier/internal/embedding"
	"dossier/internal/logging"
	"dossier/internal/types"
)

// ArchiveCompressionThreshold triggers folding of recent exchanges into the
// archive once this many sit unsummarized.
const ArchiveCompressionThreshold = 100

// Store is the facade over the three memory tiers.
type Store struct {
	Working *WorkingFacts
	Recall  *Recall
	Archive *Archive

	// Summarizer condenses exchange batches during consolidation. Optional;
	// without it consolidation stores a trimmed transcript.
	Summarizer types.LLMClient
}

// Open wires the three tiers under one data directory.
func Open(dataDir string, engine embedding.Engine) (*Store, error) {
	working, err := OpenWorkingFacts(dataDir)
	if err != nil {
		return nil, fmt.Errorf("working facts tier: %w", err)
	}
	recall, err := OpenRecall(dataDir)
	if err != nil {
		return nil, fmt.Errorf("recall tier: %w", err)
	}
	archive, err := OpenArchive(dataDir, engine, recall)
	if err != nil {
		recall.Close()
		return nil, fmt.Errorf("archive tier: %w", err)
	}
	return &Store{Working: working, Recall: recall, Archive: archive}, nil
}

// Close releases the SQLite-backed tiers.
func (s *Store) Close() error {
	var first error
	if err := s.Recall.Close(); err != nil {
		first = err
	}
	if err := s.Archive.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Consolidate runs both compression passes. Idempotent and safe to retry:
// each pass checks its trigger before doing work.
func (s *Store) Consolidate(ctx context.Context) error {
	if s.Working.OverBudget() {
		if err := s.Working.Compress(ctx, s.Archive); err != nil {
			return fmt.Errorf("working facts compression: %w", err)
		}
	}

	n, err := s.Recall.CountUnsummarized(ctx)
	if err != nil {
		return fmt.Errorf("count unsummarized: %w", err)
	}
	if n < ArchiveCompressionThreshold {
		return nil
	}
	return s.compressExchanges(ctx)
}

// compressExchanges folds the oldest unsummarized exchanges into one archive
// record per notebook, then marks them summarized. Marking happens after the
// archive write, so a crash in between re-summarizes (harmless duplication)
// rather than losing history.
func (s *Store) compressExchanges(ctx context.Context) error {
	exchanges, err := s.Recall.UnsummarizedExchanges(ctx, ArchiveCompressionThreshold)
	if err != nil {
		return err
	}
	if len(exchanges) == 0 {
		return nil
	}

	byNotebook := map[string][]types.Exchange{}
	for _, ex := range exchanges {
		byNotebook[ex.NotebookID] = append(byNotebook[ex.NotebookID], ex)
	}

	var done []int64
	for notebook, batch := range byNotebook {
		summary := s.summarize(ctx, batch)
		rec := types.ArchiveRecord{
			Content:        summary,
			ContentType:    "conversation_summary",
			SourceType:     "recall_compression",
			SourceNotebook: notebook,
			Importance:     types.ImportanceMedium,
			Namespace:      types.NamespaceSystem,
		}
		if err := s.Archive.Store(ctx, rec); err != nil {
			logging.Get(logging.CategoryMemory).Warn("exchange summary archive failed for %s: %v", notebook, err)
			continue
		}
		for _, ex := range batch {
			done = append(done, ex.ID)
		}
	}

	if err := s.Recall.MarkSummarized(ctx, done); err != nil {
		return fmt.Errorf("mark summarized: %w", err)
	}
	logging.Memory("Compressed %d exchanges into %d archive records", len(done), len(byNotebook))
	return nil
}

func (s *Store) summarize(ctx context.Context, batch []types.Exchange) string {
	var b strings.Builder
	for _, ex := range batch {
		content := ex.Content
		if len(content) > 300 {
			content = content[:300]
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", ex.Timestamp.Format(time.DateOnly), ex.Role, content)
	}
	transcript := b.String()

	if s.Summarizer == nil {
		return transcript
	}
	summary, err := s.Summarizer.CompleteWithSystem(ctx,
		"You condense conversation logs. Keep decisions, preferences, open questions, and named entities. Output plain prose under 200 words.",
		transcript)
	if err != nil || strings.TrimSpace(summary) == "" {
		return transcript
	}
	return summary
}
