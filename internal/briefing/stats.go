// Package briefing assembles the morning brief: per-notebook activity stats
// gathered concurrently, narrated by a chat model with a deterministic
// fallback when the narrative comes back error-shaped.
package briefing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dossier/internal/gatherer"
	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/profile"
	"dossier/internal/types"
)

// NotebookStats is one notebook's activity snapshot for the brief window.
type NotebookStats struct {
	NotebookID        string               `json:"notebook_id"`
	Subject           string               `json:"subject"`
	NewItems          int                  `json:"new_items"`
	PendingApproval   int                  `json:"pending_approval"`
	TopFinding        string               `json:"top_finding,omitempty"`
	RecentStories     []Story              `json:"recent_stories,omitempty"`
	PersonChanges     []types.PersonChange `json:"person_changes,omitempty"`
	KeyDates          []string             `json:"key_dates,omitempty"`
	RunCount          int                  `json:"run_count"`
	LibraryThisWeek   int                  `json:"library_this_week"`
	LibraryLastWeek   int                  `json:"library_last_week"`
	ReadingProgress   string               `json:"reading_progress,omitempty"`
	Highlights        int                  `json:"highlights"`
	UnfinishedThreads []string             `json:"unfinished_threads,omitempty"`
	EmergingTopics    []string             `json:"emerging_topics,omitempty"`
	OneWeekAgo        []string             `json:"one_week_ago,omitempty"`
}

const (
	keyDateWindow = 7 * 24 * time.Hour
	maxKeyDates   = 5
)

// Story is one recent item worth narrating.
type Story struct {
	Title   string `json:"title"`
	Source  string `json:"source,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// hasActivity gates notebook inclusion: silent notebooks stay out of the
// brief.
func (s NotebookStats) hasActivity() bool {
	return s.NewItems > 0 || s.PendingApproval > 0 || s.Highlights > 0 ||
		len(s.UnfinishedThreads) > 0 || len(s.EmergingTopics) > 0 ||
		len(s.PersonChanges) > 0 || len(s.OneWeekAgo) > 0
}

// Deps are the briefing collaborators.
type Deps struct {
	Profiles  *profile.Store
	Memory    *memory.Store
	Registry  *gatherer.Registry
	Sources   types.SourceStore
	Notebooks types.NotebookStore
	LLM       types.LLMClient
	People    types.PeopleTracker // optional
}

// Generator builds briefings.
type Generator struct {
	deps Deps
}

// NewGenerator creates a Generator.
func NewGenerator(deps Deps) *Generator {
	return &Generator{deps: deps}
}

// collectStats gathers every notebook's stats concurrently. Each notebook
// reads its source list once so the window view is a consistent snapshot.
func (g *Generator) collectStats(ctx context.Context, lastSeen time.Time) []NotebookStats {
	ids, err := g.deps.Notebooks.List(ctx)
	if err != nil {
		logging.Get(logging.CategoryBriefing).Warn("listing notebooks: %v", err)
		return nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var stats []NotebookStats
	for _, id := range ids {
		nbID := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := g.notebookStats(ctx, nbID, lastSeen)
			if !s.hasActivity() {
				return
			}
			mu.Lock()
			stats = append(stats, s)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(stats, func(i, j int) bool { return stats[i].NotebookID < stats[j].NotebookID })
	return stats
}

func (g *Generator) notebookStats(ctx context.Context, notebookID string, lastSeen time.Time) NotebookStats {
	s := NotebookStats{NotebookID: notebookID}
	if p, err := g.deps.Profiles.Load(notebookID); err == nil {
		s.Subject = p.Subject
	}

	sources, err := g.deps.Sources.List(ctx, notebookID)
	if err != nil {
		logging.BriefingDebug("source list for %s failed: %v", notebookID, err)
	}

	now := time.Now()
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	var bestConfidence string
	for _, src := range sources {
		if src.CreatedAt.After(lastSeen) {
			s.NewItems++
			if len(s.RecentStories) < 5 {
				s.RecentStories = append(s.RecentStories, Story{
					Title:   src.Title,
					Source:  src.SourceName,
					Summary: firstChars(src.Content, 160),
				})
			}
			if bestConfidence == "" || src.Metadata["confidence"] > bestConfidence {
				bestConfidence = src.Metadata["confidence"]
				s.TopFinding = src.Title
			}
			for _, d := range types.UpcomingDates(src.Title, src.Content, now, keyDateWindow) {
				if len(s.KeyDates) < maxKeyDates {
					s.KeyDates = append(s.KeyDates,
						fmt.Sprintf("%s: %s", d.Format("Jan 2"), firstChars(src.Title, 80)))
				}
			}
		}
		if src.CreatedAt.After(weekAgo) {
			s.LibraryThisWeek++
		} else if src.CreatedAt.After(twoWeeksAgo) {
			s.LibraryLastWeek++
		}
		// Created six to eight days ago: the "one week ago" callback.
		age := now.Sub(src.CreatedAt)
		if age >= 6*24*time.Hour && age <= 8*24*time.Hour && len(s.OneWeekAgo) < 3 {
			s.OneWeekAgo = append(s.OneWeekAgo, src.Title)
		}
	}

	if gw := g.deps.Registry.Get(notebookID); gw != nil {
		s.PendingApproval = len(gw.GetPendingApprovals())
		for _, e := range gw.GetExpiringSoon(7) {
			if len(s.KeyDates) < maxKeyDates {
				s.KeyDates = append(s.KeyDates,
					fmt.Sprintf("%s: approval window closes for %q",
						e.ExpiresAt.Format("Jan 2"), firstChars(e.Item.Title, 60)))
			}
		}
	}

	s.EmergingTopics = emergingTopics(sources, now)
	s.UnfinishedThreads = g.unfinishedThreads(ctx, notebookID)
	s.Highlights, s.RunCount = g.signalCounts(ctx, notebookID, lastSeen)
	s.ReadingProgress = readingProgress(sources)

	if g.deps.People != nil {
		if changes, err := g.deps.People.RecentChanges(ctx, notebookID, lastSeen); err == nil {
			s.PersonChanges = changes
		}
	}
	return s
}

func (g *Generator) signalCounts(ctx context.Context, notebookID string, since time.Time) (highlights, runs int) {
	sigs, err := g.deps.Memory.Recall.ListSignals(ctx, notebookID, since)
	if err != nil {
		return 0, 0
	}
	for _, sig := range sigs {
		switch sig.SignalType {
		case types.SignalContentHighlighted:
			highlights++
		case types.SignalCollectionRun:
			runs++
		}
	}
	return highlights, runs
}

// unfinishedThreads finds conversations that trail off: the last user message
// is a question, or the thread has three or fewer entries.
func (g *Generator) unfinishedThreads(ctx context.Context, notebookID string) []string {
	exchanges, err := g.deps.Memory.Recall.ListExchanges(ctx, notebookID, time.Now().AddDate(0, 0, -7), 50)
	if err != nil || len(exchanges) == 0 {
		return nil
	}

	var lastUser string
	for i := len(exchanges) - 1; i >= 0; i-- {
		if exchanges[i].Role == "user" {
			lastUser = exchanges[i].Content
			break
		}
	}

	var out []string
	if strings.Contains(lastUser, "?") {
		out = append(out, firstChars(lastUser, 120))
	} else if len(exchanges) <= 3 && lastUser != "" {
		out = append(out, firstChars(lastUser, 120))
	}
	return out
}

func readingProgress(sources []types.StoredSource) string {
	if len(sources) == 0 {
		return ""
	}
	completed := 0
	for _, src := range sources {
		if src.Status == "completed" {
			completed++
		}
	}
	if completed == len(sources) {
		return "library fully processed"
	}
	return fmt.Sprintf("%d of %d sources processed", completed, len(sources))
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "has": true,
	"have": true, "its": true, "their": true, "will": true, "can": true,
	"how": true, "why": true, "what": true, "new": true, "says": true,
	"after": true, "about": true, "into": true, "over": true, "your": true,
}

// emergingTopics finds title words appearing at least twice this week that
// never appeared in the prior seven-to-thirty-day window. A per-word
// heuristic over titles, not a semantic claim.
func emergingTopics(sources []types.StoredSource, now time.Time) []string {
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)

	thisWeek := map[string]int{}
	prior := map[string]bool{}
	for _, src := range sources {
		for _, word := range titleWords(src.Title) {
			switch {
			case src.CreatedAt.After(weekAgo):
				thisWeek[word]++
			case src.CreatedAt.After(monthAgo):
				prior[word] = true
			}
		}
	}

	var out []string
	for word, n := range thisWeek {
		if n >= 2 && !prior[word] {
			out = append(out, word)
		}
	}
	sort.Strings(out)
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func titleWords(title string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) >= 4 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
