package gatherer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/types"
)

// QueueOrApprove routes one processed item per the notebook's approval mode.
// trust_me approves immediately; review queues; mixed auto-approves at the
// auto-approve threshold. The returned status tells the caller which way the
// item went (approved, pending, or rejected for items filtered at store).
func (g *Gatherer) QueueOrApprove(ctx context.Context, item types.CollectedItem, mode types.ApprovalMode) (types.ItemStatus, []string, error) {
	switch mode {
	case types.ApprovalTrustMe:
		return g.StoreDirect(ctx, item)
	case types.ApprovalMixed:
		if item.OverallConfidence >= types.AutoApproveThreshold {
			return g.StoreDirect(ctx, item)
		}
	}

	g.mu.Lock()
	err := g.queue.add(item)
	g.mu.Unlock()
	if err != nil {
		return "", nil, err
	}
	return types.StatusPending, nil, nil
}

// StoreDirect persists an approved item as an external source. Shallow
// content gets one deep-fetch attempt first; content still under the minimum
// is rejected as a headline. All post-store steps (RAG, tagging, archive,
// signal, notify) are non-fatal and attach to warnings.
func (g *Gatherer) StoreDirect(ctx context.Context, item types.CollectedItem) (types.ItemStatus, []string, error) {
	var warnings []string

	if len(item.Content) < types.MinContentForStore {
		g.deepFetch(ctx, &item, &warnings)
	}
	if len(item.Content) < types.MinContentAfterEnrich {
		logging.Gatherer("rejecting %q, %d chars after enrichment", item.Title, len(item.Content))
		return types.StatusRejected, warnings, nil
	}

	src := types.StoredSource{
		ID:         item.ID,
		NotebookID: g.notebookID,
		Title:      item.Title,
		URL:        item.URL,
		Content:    item.Content,
		SourceName: item.SourceName,
		SourceKind: item.SourceKind,
		Status:     "processing",
		Metadata: map[string]string{
			"content_hash": item.ContentHash,
			"confidence":   fmt.Sprintf("%.2f", item.OverallConfidence),
		},
		CreatedAt: time.Now(),
	}
	if err := g.deps.Sources.Create(ctx, src); err != nil {
		return "", warnings, fmt.Errorf("store source: %w", err)
	}

	chunks, err := g.deps.RAG.Ingest(ctx, g.notebookID, src.ID, src.Content, src.Title, string(src.SourceKind))
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("rag ingest for %q: %v", item.Title, err))
	}

	src.Status = "completed"
	if err := g.deps.Sources.Update(ctx, src); err != nil {
		warnings = append(warnings, fmt.Sprintf("marking %q completed: %v", item.Title, err))
	}

	if err := g.deps.Notifier.NotifySourceUpdated(ctx, types.SourceEvent{
		NotebookID: g.notebookID,
		SourceID:   src.ID,
		Kind:       "completed",
		Title:      src.Title,
		Chunks:     chunks,
	}); err != nil {
		warnings = append(warnings, fmt.Sprintf("notify for %q: %v", item.Title, err))
	}

	if tags := g.autoTags(ctx, item); len(tags) > 0 {
		if err := g.deps.Sources.SetTags(ctx, src.ID, tags); err != nil {
			warnings = append(warnings, fmt.Sprintf("tagging %q: %v", item.Title, err))
		}
	}

	if err := g.deps.Memory.Archive.Store(ctx, types.ArchiveRecord{
		Content:        item.Title + "\n" + firstChars(item.Content, 1500),
		ContentType:    "collected_source",
		SourceType:     string(item.SourceKind),
		SourceNotebook: g.notebookID,
		Namespace:      types.NamespaceGatherer,
		Importance:     importanceFor(item.OverallConfidence),
	}); err != nil {
		warnings = append(warnings, fmt.Sprintf("archive write for %q: %v", item.Title, err))
	}

	if err := g.deps.Learner.Record(ctx, types.Signal{
		NotebookID: g.notebookID,
		SignalType: types.SignalItemApproved,
		ItemID:     item.ID,
		Metadata:   map[string]string{"source_name": item.SourceName},
	}); err != nil {
		warnings = append(warnings, fmt.Sprintf("approval signal for %q: %v", item.Title, err))
	}

	logging.Gatherer("stored %q for %s (%d chunks)", item.Title, g.notebookID, chunks)
	return types.StatusApproved, warnings, nil
}

// deepFetch enriches shallow content via the scraper, or the regulatory
// document fetch for filings.
func (g *Gatherer) deepFetch(ctx context.Context, item *types.CollectedItem, warnings *[]string) {
	if item.URL == "" {
		return
	}
	if item.SourceKind == types.KindFiling {
		text, err := g.deps.Fetcher.FetchFilingDocument(ctx, item.URL)
		if err != nil {
			*warnings = append(*warnings, fmt.Sprintf("filing deep fetch for %q: %v", item.Title, err))
			return
		}
		if len(text) > len(item.Content) {
			item.Content = text
		}
		return
	}
	res, err := g.deps.Scraper.Scrape(ctx, item.URL)
	if err != nil || !res.Success {
		*warnings = append(*warnings, fmt.Sprintf("deep fetch for %q: %v", item.Title, err))
		return
	}
	if len(res.Text) > len(item.Content) {
		item.Content = res.Text
	}
}

const tagSystemPrompt = `You tag research sources. Reply with ONLY a JSON array of 2-5 short lowercase tags.`

func (g *Gatherer) autoTags(ctx context.Context, item types.CollectedItem) []string {
	reply, err := g.deps.LLM.CompleteWithSystem(ctx, tagSystemPrompt,
		fmt.Sprintf("Title: %s\n%s", item.Title, firstChars(item.Content, 600)))
	if err != nil {
		return nil
	}
	var tags []string
	if llm.ParseJSONReply(reply, &tags) != nil {
		return nil
	}
	if len(tags) > 5 {
		tags = tags[:5]
	}
	return tags
}

func importanceFor(confidence float64) types.Importance {
	switch {
	case confidence >= 0.85:
		return types.ImportanceHigh
	case confidence >= 0.5:
		return types.ImportanceMedium
	default:
		return types.ImportanceLow
	}
}

// ApproveItem moves a queued item into the store.
func (g *Gatherer) ApproveItem(ctx context.Context, itemID string) (types.ItemStatus, []string, error) {
	g.mu.Lock()
	item, ok := g.queue.take(itemID)
	g.mu.Unlock()
	if !ok {
		return "", nil, fmt.Errorf("item %s not in queue", itemID)
	}
	return g.StoreDirect(ctx, item)
}

// ApproveBatch approves several queued items; per-item failures attach to
// warnings and the batch continues.
func (g *Gatherer) ApproveBatch(ctx context.Context, itemIDs []string) (approved int, warnings []string) {
	for _, id := range itemIDs {
		status, warns, err := g.ApproveItem(ctx, id)
		warnings = append(warnings, warns...)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("approving %s: %v", id, err))
			continue
		}
		if status == types.StatusApproved {
			approved++
		}
	}
	return approved, warnings
}

// ApproveAllFromSource approves every queued item from one source and records
// a source_approved signal so the learner favors it.
func (g *Gatherer) ApproveAllFromSource(ctx context.Context, sourceName string) (int, []string) {
	g.mu.Lock()
	var ids []string
	for _, e := range g.queue.pending() {
		if e.Item.SourceName == sourceName {
			ids = append(ids, e.Item.ID)
		}
	}
	g.mu.Unlock()

	approved, warnings := g.ApproveBatch(ctx, ids)
	if err := g.deps.Learner.Record(ctx, types.Signal{
		NotebookID: g.notebookID,
		SignalType: types.SignalSourceApproved,
		Metadata:   map[string]string{"source_name": sourceName},
	}); err != nil {
		warnings = append(warnings, fmt.Sprintf("source approval signal: %v", err))
	}
	return approved, warnings
}

// RejectItem removes a queued item, records the rejection signal, and adapts
// to the feedback: bad_source degrades the source's health, too_old tightens
// the age filter by a week (floor seven days). wrong_topic is reserved for
// excluded-topic extension.
func (g *Gatherer) RejectItem(ctx context.Context, itemID, reason string, feedback types.FeedbackType) error {
	g.mu.Lock()
	item, ok := g.queue.take(itemID)
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("item %s not in queue", itemID)
	}

	meta := map[string]string{"reason": reason, "feedback_type": string(feedback)}
	if feedback == types.FeedbackBadSource {
		meta["source_name"] = item.SourceName
	}
	if err := g.deps.Learner.Record(ctx, types.Signal{
		NotebookID: g.notebookID,
		SignalType: types.SignalItemRejected,
		ItemID:     itemID,
		Metadata:   meta,
	}); err != nil {
		logging.Get(logging.CategoryGatherer).Warn("rejection signal failed: %v", err)
	}

	switch feedback {
	case types.FeedbackBadSource:
		g.health.Degrade(item.SourceName)
		logging.Gatherer("degraded source %q on bad_source feedback", item.SourceName)
	case types.FeedbackTooOld:
		p, err := g.deps.Profiles.Load(g.notebookID)
		if err != nil {
			return nil
		}
		p.Filters.MaxAgeDays -= 7
		if p.Filters.MaxAgeDays < 7 {
			p.Filters.MaxAgeDays = 7
		}
		if err := g.deps.Profiles.Save(p); err != nil {
			logging.Get(logging.CategoryGatherer).Warn("tightening max_age_days failed: %v", err)
		}
	case types.FeedbackWrongTopic:
		// Hook: excluded-topic extension would go here once rejection reasons
		// carry extracted topics.
	}
	return nil
}

// GetPendingApprovals returns the live queue in insertion order.
func (g *Gatherer) GetPendingApprovals() []types.QueueEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.pending()
}

// GetExpiringSoon returns queued items expiring within the given days.
func (g *Gatherer) GetExpiringSoon(days int) []types.QueueEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.expiringSoon(time.Duration(days) * 24 * time.Hour)
}

// ReducePriorityForPatterns records rejected patterns so the learner scores
// matching items down on future runs.
func (g *Gatherer) ReducePriorityForPatterns(ctx context.Context, patterns []string) error {
	for _, pattern := range patterns {
		if err := g.deps.Learner.Record(ctx, types.Signal{
			NotebookID: g.notebookID,
			SignalType: types.SignalItemRejected,
			Metadata:   map[string]string{"pattern": pattern},
		}); err != nil {
			return err
		}
	}
	return nil
}

// ExpandFocusAreas grows the profile's focus areas from repeated search
// misses: queries the user ran that found nothing are unmet interests.
func (g *Gatherer) ExpandFocusAreas(ctx context.Context, searchMisses []string) error {
	if len(searchMisses) == 0 {
		return nil
	}
	p, err := g.deps.Profiles.Load(g.notebookID)
	if err != nil {
		return err
	}

	have := map[string]bool{}
	for _, area := range p.FocusAreas {
		have[strings.ToLower(area)] = true
	}
	added := 0
	for _, miss := range searchMisses {
		miss = strings.TrimSpace(miss)
		if miss == "" || have[strings.ToLower(miss)] {
			continue
		}
		p.FocusAreas = append(p.FocusAreas, miss)
		have[strings.ToLower(miss)] = true
		added++
		if err := g.deps.Learner.Record(ctx, types.Signal{
			NotebookID: g.notebookID,
			SignalType: types.SignalSearchMiss,
			Query:      miss,
		}); err != nil {
			logging.Get(logging.CategoryGatherer).Warn("search-miss signal failed: %v", err)
		}
	}
	if added == 0 {
		return nil
	}
	logging.Gatherer("expanded focus areas for %s by %d from search misses", g.notebookID, added)
	return g.deps.Profiles.Save(p)
}

// ArchiveReader is the identity this gatherer reads the archive under.
func (g *Gatherer) ArchiveReader() memory.Reader {
	return memory.Reader{Agent: memory.AgentGatherer, NotebookID: g.notebookID}
}
