// Package gatherer implements the per-notebook worker agent: it fetches from
// the notebook's configured sources, deduplicates, scores, contextualizes
// against the notebook's archive, and routes results through the approval
// queue. One Gatherer instance exists per notebook, held in a Registry.
package gatherer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"dossier/internal/fetcher"
	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/profile"
	"dossier/internal/signals"
	"dossier/internal/types"
)

const (
	processingConcurrency = 4
	fetchBudgetMax        = 60 * time.Second
	fetchBudgetReserve    = 60 * time.Second
	expansionSkipWindow   = 45 * time.Second
	scoringSkipWindow     = 20 * time.Second
	contextSkipWindow     = 25 * time.Second
	defaultTaskBudget     = 5 * time.Minute
	avoidSimilarOverlap   = 0.8
)

// Deps are the collaborators a Gatherer needs. All are injected; tests swap
// in fakes.
type Deps struct {
	Profiles *profile.Store
	Memory   *memory.Store
	Fetcher  *fetcher.Fetcher
	LLM      types.LLMClient
	Learner  *signals.Learner
	Sources  types.SourceStore
	RAG      types.RAGIngestor
	Notifier types.Notifier
	Scraper  types.WebScraper
}

// Gatherer is one notebook's collection worker.
type Gatherer struct {
	notebookID string
	deps       Deps
	health     *healthTable

	mu         sync.Mutex
	queue      *approvalQueue
	seenURLs   map[string]bool
	seenHashes map[string]bool
	primed     chan struct{}
}

// Registry holds one Gatherer per notebook.
type Registry struct {
	deps Deps

	mu        sync.Mutex
	gatherers map[string]*Gatherer
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, gatherers: map[string]*Gatherer{}}
}

// Create constructs (or returns) the notebook's Gatherer. Dedup sets prime
// asynchronously from the external source store and the persisted queue;
// collection entry points wait for priming before filtering.
func (r *Registry) Create(ctx context.Context, notebookID string) (*Gatherer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gatherers[notebookID]; ok {
		return g, nil
	}

	queue, err := loadQueue(r.deps.Profiles.QueuePath(notebookID))
	if err != nil {
		return nil, err
	}
	g := &Gatherer{
		notebookID: notebookID,
		deps:       r.deps,
		health:     newHealthTable(),
		queue:      queue,
		seenURLs:   map[string]bool{},
		seenHashes: map[string]bool{},
		primed:     make(chan struct{}),
	}
	go g.primeDedup(context.WithoutCancel(ctx))
	r.gatherers[notebookID] = g
	logging.Gatherer("created gatherer for notebook %s", notebookID)
	return g, nil
}

// Get returns an existing Gatherer, or nil.
func (r *Registry) Get(notebookID string) *Gatherer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gatherers[notebookID]
}

// Drop removes a notebook's Gatherer and forgets its in-memory state.
func (r *Registry) Drop(notebookID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gatherers, notebookID)
}

// Health exposes the source-health observer for fetcher wiring.
func (g *Gatherer) Health() fetcher.HealthFunc {
	return g.health.Observe
}

// NotebookID returns the owning notebook.
func (g *Gatherer) NotebookID() string {
	return g.notebookID
}

// primeDedup seeds the URL and content-hash sets from everything already
// stored or queued, so re-fetches of known items are dropped early.
func (g *Gatherer) primeDedup(ctx context.Context) {
	defer close(g.primed)

	existing, err := g.deps.Sources.List(ctx, g.notebookID)
	if err != nil {
		logging.Get(logging.CategoryGatherer).Warn("dedup priming list failed for %s: %v", g.notebookID, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, src := range existing {
		if src.URL != "" {
			g.seenURLs[src.URL] = true
		}
		if h := src.Metadata["content_hash"]; h != "" {
			g.seenHashes[h] = true
		}
	}
	for _, e := range g.queue.entries {
		if e.Item.URL != "" {
			g.seenURLs[e.Item.URL] = true
		}
		g.seenHashes[e.Item.ContentHash] = true
	}
	logging.GathererDebug("dedup primed for %s: %d urls, %d hashes",
		g.notebookID, len(g.seenURLs), len(g.seenHashes))
}

// markSeen records an item in the dedup sets, returning false when it was
// already known (URL or content hash).
func (g *Gatherer) markSeen(url, hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if (url != "" && g.seenURLs[url]) || g.seenHashes[hash] {
		return false
	}
	if url != "" {
		g.seenURLs[url] = true
	}
	g.seenHashes[hash] = true
	return true
}

// unmarkSeen forgets an item that was claimed but never emitted, so the next
// cycle's re-fetch is not dropped as a duplicate.
func (g *Gatherer) unmarkSeen(url, hash string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if url != "" {
		delete(g.seenURLs, url)
	}
	delete(g.seenHashes, hash)
}

// CollectionResult is the structured outcome of one run. Entry points are
// total: sub-step failures land in Warnings, never abort the run.
type CollectionResult struct {
	NotebookID     string                `json:"notebook_id"`
	Items          []types.CollectedItem `json:"items"`
	ItemsFound     int                   `json:"items_found"`
	ItemsQueued    int                   `json:"items_queued"`
	ItemsApproved  int                   `json:"items_approved"`
	SourcesChecked int                   `json:"sources_checked"`
	Duration       time.Duration         `json:"duration"`
	Warnings       []string              `json:"warnings,omitempty"`
}

// RunFirstSweep does an immediate fast collection right after notebook
// creation, limited to the fast sources (feeds and news keywords), and
// routes results through the approval policy.
func (g *Gatherer) RunFirstSweep(ctx context.Context) (*CollectionResult, error) {
	p, err := g.deps.Profiles.Load(g.notebookID)
	if err != nil {
		return nil, err
	}

	fast := types.SourcesConfig{
		Feeds:        append([]string(nil), p.Sources.Feeds...),
		NewsKeywords: append([]string(nil), p.Sources.NewsKeywords...),
		NewsGeo:      p.Sources.NewsGeo,
	}
	keywords := staticKeywords(p)
	if len(fast.NewsKeywords) == 0 {
		fast.NewsKeywords = keywords
	}

	task := types.CollectionTask{
		NotebookID: g.notebookID,
		Intent:     p.Intent,
		FocusAreas: p.FocusAreas,
		Sources:    fast,
		Mode:       p.CollectionMode,
		Deadline:   time.Now().Add(90 * time.Second),
	}
	result, err := g.ExecuteCollectionTask(ctx, task)
	if err != nil {
		return nil, err
	}

	for _, item := range result.Items {
		status, warns, aerr := g.QueueOrApprove(ctx, item, p.ApprovalMode)
		result.Warnings = append(result.Warnings, warns...)
		if aerr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("first-sweep routing %q: %v", item.Title, aerr))
			continue
		}
		switch status {
		case types.StatusApproved:
			result.ItemsApproved++
		case types.StatusPending:
			result.ItemsQueued++
		}
	}
	logging.Gatherer("first sweep for %s: found=%d approved=%d queued=%d",
		g.notebookID, result.ItemsFound, result.ItemsApproved, result.ItemsQueued)
	return result, nil
}

// ExecuteCollectionTask is the core worker entry: fetch, expand, dedup,
// score, contextualize, and diversity-select. The returned items are pending;
// the caller (Supervisor or first sweep) decides their fate. Deadline
// pressure degrades phases instead of failing.
func (g *Gatherer) ExecuteCollectionTask(ctx context.Context, task types.CollectionTask) (*CollectionResult, error) {
	timer := logging.StartTimer(logging.CategoryGatherer, "ExecuteCollectionTask")
	defer timer.Stop()
	start := time.Now()

	<-g.primed

	p, err := g.deps.Profiles.Load(g.notebookID)
	if err != nil {
		return nil, err
	}
	result := &CollectionResult{NotebookID: g.notebookID}

	deadline := task.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(defaultTaskBudget)
	}
	rctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	existing, err := g.deps.Sources.List(rctx, g.notebookID)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("listing existing sources: %v", err))
	}

	keywords := assembleKeywords(p, task, existing)
	sources := enrichSources(task.Sources, existing, p.DisabledSources)
	result.SourcesChecked = countSources(sources)

	// Fetch under its own budget; the reserve keeps time for processing.
	fetchBudget := time.Until(deadline) - fetchBudgetReserve
	if fetchBudget > fetchBudgetMax {
		fetchBudget = fetchBudgetMax
	}
	if fetchBudget < 10*time.Second {
		fetchBudget = 10 * time.Second
	}
	fctx, fcancel := context.WithTimeout(rctx, fetchBudget)
	fetched := g.deps.Fetcher.FetchAll(fctx, sources, keywords)
	fcancel()
	result.ItemsFound = len(fetched)

	fetched = g.expandListPages(rctx, fetched, deadline, result)

	prefs, err := g.deps.Learner.Learn(rctx, g.notebookID)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("preference learning: %v", err))
	}
	guidance := g.deps.Profiles.Guidance(g.notebookID)

	processed := g.processItems(rctx, fetched, p, prefs, guidance, task.AvoidSimilarTo, deadline)

	if time.Until(deadline) > contextSkipWindow {
		g.contextualizeAll(rctx, processed, deadline)
	} else {
		logging.GathererDebug("skipping contextualization, %s to deadline", time.Until(deadline))
	}

	maxItems := p.Schedule.MaxItemsPerRun
	result.Items = selectDiverse(processed, maxItems)
	sortByConfidence(result.Items)
	result.Duration = time.Since(start)

	// Recorded on the parent context; rctx may already be past deadline.
	if err := g.deps.Learner.Record(ctx, types.Signal{
		NotebookID: g.notebookID,
		SignalType: types.SignalCollectionRun,
		Metadata:   map[string]string{"items_found": fmt.Sprintf("%d", result.ItemsFound)},
	}); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("run signal: %v", err))
	}

	logging.Gatherer("collection for %s: fetched=%d processed=%d selected=%d in %s",
		g.notebookID, result.ItemsFound, len(processed), len(result.Items), result.Duration)
	return result, nil
}

// expandListPages replaces detected resource-list pages with their
// constituent sources. Skipped entirely close to the deadline.
func (g *Gatherer) expandListPages(ctx context.Context, items []types.FetchedItem, deadline time.Time, result *CollectionResult) []types.FetchedItem {
	if time.Until(deadline) < expansionSkipWindow {
		logging.GathererDebug("skipping list-page expansion, %s to deadline", time.Until(deadline))
		return items
	}

	var out []types.FetchedItem
	for _, item := range items {
		info := fetcher.DetectListPage(item, fetcher.ItemLinks(item))
		if !info.IsListPage {
			out = append(out, item)
			continue
		}
		// The list page itself is never kept.
		expanded := g.deps.Fetcher.ExpandListPage(ctx, info)
		out = append(out, expanded...)
		if time.Until(deadline) < expansionSkipWindow {
			break
		}
	}
	return out
}

// processItems runs dedup and scoring over the fetched set with bounded
// concurrency. Within 20s of the deadline remaining items skip LLM scoring
// and are left for the next cycle.
func (g *Gatherer) processItems(ctx context.Context, fetched []types.FetchedItem, p types.Profile, prefs types.Preferences, guidance string, avoidSimilar []string, deadline time.Time) []types.CollectedItem {
	sem := semaphore.NewWeighted(processingConcurrency)
	var mu sync.Mutex
	var out []types.CollectedItem
	var wg sync.WaitGroup

	for _, fi := range fetched {
		item := fi
		if item.ContentHash == "" {
			item.ContentHash = fetcher.ContentHash(item.Title, item.Content)
		}
		if !g.markSeen(item.URL, item.ContentHash) {
			continue
		}
		if g.isAvoidSimilar(item, avoidSimilar) {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				g.unmarkSeen(item.URL, item.ContentHash)
				return
			}
			defer sem.Release(1)

			if g.isSemanticDuplicate(ctx, item) {
				return
			}

			ci := types.CollectedItem{
				ID:          uuid.New().String(),
				Title:       item.Title,
				URL:         item.URL,
				Content:     item.Content,
				Preview:     firstChars(item.Content, 280),
				SourceName:  item.SourceName,
				SourceKind:  item.SourceKind,
				CollectedAt: collectedAt(item),
				ContentHash: item.ContentHash,
				Status:      types.StatusPending,
			}

			if time.Until(deadline) > scoringSkipWindow {
				g.score(ctx, &ci, p, prefs, guidance)
			} else {
				logging.GathererDebug("deadline pressure, deferring %q to next cycle", ci.Title)
				g.unmarkSeen(item.URL, item.ContentHash)
				return
			}

			mu.Lock()
			out = append(out, ci)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func (g *Gatherer) isAvoidSimilar(item types.FetchedItem, samples []string) bool {
	text := item.Title + " " + firstChars(item.Content, 1000)
	for _, sample := range samples {
		if tokenOverlap(text, sample) >= avoidSimilarOverlap {
			logging.GathererDebug("dropping %q, overlaps avoid-similar sample", item.Title)
			return true
		}
	}
	return false
}

// isSemanticDuplicate checks the notebook's archive for a near-identical
// record (cosine similarity at or above the semantic-dup threshold).
func (g *Gatherer) isSemanticDuplicate(ctx context.Context, item types.FetchedItem) bool {
	reader := memory.Reader{Agent: memory.AgentGatherer, NotebookID: g.notebookID}
	hits, err := g.deps.Memory.Archive.Search(ctx, reader, item.Title+" "+firstChars(item.Content, 500), memory.SearchOptions{
		Limit:         1,
		MinSimilarity: types.SemanticDupThreshold,
	})
	if err != nil {
		logging.GathererDebug("semantic dedup search failed: %v", err)
		return false
	}
	return len(hits) > 0
}

// contextualizeAll runs contextualization with the same bounded concurrency
// as processing, bailing out when the deadline window closes.
func (g *Gatherer) contextualizeAll(ctx context.Context, items []types.CollectedItem, deadline time.Time) {
	sem := semaphore.NewWeighted(processingConcurrency)
	var wg sync.WaitGroup
	for i := range items {
		if time.Until(deadline) < contextSkipWindow {
			break
		}
		idx := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			g.contextualize(ctx, &items[idx])
		}()
	}
	wg.Wait()
}

func collectedAt(item types.FetchedItem) time.Time {
	if item.PublishedDate != nil && !item.PublishedDate.IsZero() {
		return *item.PublishedDate
	}
	return time.Now()
}

func countSources(cfg types.SourcesConfig) int {
	return len(cfg.Feeds) + len(cfg.WebPages) + len(cfg.Filings) +
		len(cfg.VideoChannels) + len(cfg.VideoKeywords) +
		len(cfg.PaperCategories) + len(cfg.PaperQueries) + len(cfg.NewsKeywords)
}
