package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"dossier/internal/logging"
	"dossier/internal/types"
)

// WorkingFactsTokenBudget bounds the working-facts tier. Overflow spills the
// lowest-importance, least-recent facts to the archive.
const WorkingFactsTokenBudget = 2000

// WorkingFacts is the small always-in-context tier: an ordered set of
// key/value assertions persisted as <data>/memory/core_memory.json.
// A single mutex protects the file; reads serve the cached value.
type WorkingFacts struct {
	path  string
	mu    sync.Mutex
	facts []types.Fact // insertion order preserved
}

// OpenWorkingFacts loads (or initializes) the working-facts tier.
func OpenWorkingFacts(dataDir string) (*WorkingFacts, error) {
	path := filepath.Join(dataDir, "memory", "core_memory.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	w := &WorkingFacts{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return nil, fmt.Errorf("read working facts: %w", err)
	}
	if err := json.Unmarshal(data, &w.facts); err != nil {
		return nil, fmt.Errorf("corrupt working facts file: %w", err)
	}
	logging.Memory("Working facts loaded: %d facts", len(w.facts))
	return w, nil
}

// Add appends or replaces a fact by key. The tier may exceed its budget
// until the next Compress call spills overflow to the archive.
func (w *WorkingFacts) Add(fact types.Fact) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now()
	}
	replaced := false
	for i, f := range w.facts {
		if f.Key == fact.Key {
			w.facts[i] = fact
			replaced = true
			break
		}
	}
	if !replaced {
		w.facts = append(w.facts, fact)
	}
	return w.saveLocked()
}

// List returns all facts in insertion order.
func (w *WorkingFacts) List() []types.Fact {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]types.Fact, len(w.facts))
	copy(out, w.facts)
	return out
}

// Remove deletes a fact by key. Removing a missing key is a no-op.
func (w *WorkingFacts) Remove(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, f := range w.facts {
		if f.Key == key {
			w.facts = append(w.facts[:i], w.facts[i+1:]...)
			return w.saveLocked()
		}
	}
	return nil
}

// TokenEstimate approximates the tier's token footprint (chars/4).
func (w *WorkingFacts) TokenEstimate() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tokenEstimateLocked()
}

func (w *WorkingFacts) tokenEstimateLocked() int {
	total := 0
	for _, f := range w.facts {
		total += (len(f.Key) + len(f.Value)) / 4
	}
	return total
}

// OverBudget reports whether the tier exceeds its token budget.
func (w *WorkingFacts) OverBudget() bool {
	return w.TokenEstimate() > WorkingFactsTokenBudget
}

var importanceRank = map[types.Importance]int{
	types.ImportanceCritical: 3,
	types.ImportanceHigh:     2,
	types.ImportanceMedium:   1,
	types.ImportanceLow:      0,
}

// Compress spills facts to the archive until the tier fits its budget,
// evicting lowest-importance first and least-recent within a rank.
// Idempotent: under budget it does nothing.
func (w *WorkingFacts) Compress(ctx context.Context, archive *Archive) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tokenEstimateLocked() <= WorkingFactsTokenBudget {
		return nil
	}

	// Eviction order without disturbing the kept facts' insertion order.
	order := make([]int, len(w.facts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		fa, fb := w.facts[order[a]], w.facts[order[b]]
		ra, rb := importanceRank[fa.Importance], importanceRank[fb.Importance]
		if ra != rb {
			return ra < rb
		}
		return fa.CreatedAt.Before(fb.CreatedAt)
	})

	evict := map[int]bool{}
	tokens := w.tokenEstimateLocked()
	for _, idx := range order {
		if tokens <= WorkingFactsTokenBudget {
			break
		}
		f := w.facts[idx]
		tokens -= (len(f.Key) + len(f.Value)) / 4
		evict[idx] = true
	}

	kept := w.facts[:0]
	for i, f := range w.facts {
		if !evict[i] {
			kept = append(kept, f)
			continue
		}
		rec := types.ArchiveRecord{
			Content:     fmt.Sprintf("%s: %s", f.Key, f.Value),
			ContentType: "working_fact",
			SourceType:  string(f.Category),
			Importance:  f.Importance,
			Namespace:   types.NamespaceSystem,
			CreatedAt:   f.CreatedAt,
		}
		if err := archive.Store(ctx, rec); err != nil {
			// Keep the fact rather than lose it; retry next cycle.
			logging.Get(logging.CategoryMemory).Warn("spill to archive failed for %q: %v", f.Key, err)
			kept = append(kept, f)
		}
	}
	w.facts = kept
	logging.Memory("Working facts compressed to %d facts (~%d tokens)", len(w.facts), w.tokenEstimateLocked())
	return w.saveLocked()
}

// saveLocked writes atomically (temp file + rename). Caller holds the mutex.
func (w *WorkingFacts) saveLocked() error {
	data, err := json.MarshalIndent(w.facts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal working facts: %w", err)
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write working facts: %w", err)
	}
	return os.Rename(tmp, w.path)
}
