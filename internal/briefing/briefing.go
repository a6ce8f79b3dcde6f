package briefing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dossier/internal/logging"
)

// Briefing is one generated morning brief.
type Briefing struct {
	GeneratedAt          time.Time       `json:"generated_at"`
	LastSeen             time.Time       `json:"last_seen"`
	Narrative            string          `json:"narrative"`
	Notebooks            []NotebookStats `json:"notebooks"`
	CrossNotebookInsight string          `json:"cross_notebook_insight,omitempty"`
	Fallback             bool            `json:"fallback,omitempty"`
}

const narrativeSystemPrompt = `You write a concise morning research brief (200-400 words) in markdown.
Sections, in order: a one-sentence lead; per-notebook updates; research momentum;
coming up; unfinished threads; emerging interests; "one week ago"; a did-you-know
if material is thin; one suggested action. Warm but information-dense. Never
invent items not present in the stats.`

// Generate builds the brief for everything since lastSeen. crossInsight, when
// non-empty, is attached and offered to the narrative. The result is
// persisted as morning_brief_<date>.json.
func (g *Generator) Generate(ctx context.Context, dataDir string, lastSeen time.Time, crossInsight string) (*Briefing, error) {
	timer := logging.StartTimer(logging.CategoryBriefing, "Generate")
	defer timer.Stop()

	brief := &Briefing{
		GeneratedAt:          time.Now(),
		LastSeen:             lastSeen,
		Notebooks:            g.collectStats(ctx, lastSeen),
		CrossNotebookInsight: crossInsight,
	}

	brief.Narrative = g.narrate(ctx, brief)
	if errorShaped(brief.Narrative) {
		logging.Briefing("narrative LLM unusable, assembling fallback brief")
		brief.Narrative = fallbackNarrative(brief)
		brief.Fallback = true
	}

	if err := g.persist(dataDir, brief); err != nil {
		logging.Get(logging.CategoryBriefing).Warn("persisting brief: %v", err)
	}
	logging.Briefing("brief generated: %d notebooks, %d chars", len(brief.Notebooks), len(brief.Narrative))
	return brief, nil
}

func (g *Generator) narrate(ctx context.Context, brief *Briefing) string {
	stats, err := json.MarshalIndent(struct {
		Notebooks            []NotebookStats `json:"notebooks"`
		CrossNotebookInsight string          `json:"cross_notebook_insight,omitempty"`
	}{brief.Notebooks, brief.CrossNotebookInsight}, "", "  ")
	if err != nil {
		return ""
	}
	reply, err := g.deps.LLM.CompleteWithSystem(ctx, narrativeSystemPrompt, string(stats))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(reply)
}

// errorShaped detects narratives that are actually transport errors leaking
// through as text: empty, or carrying timeout/error sentinels.
func errorShaped(narrative string) bool {
	if narrative == "" {
		return true
	}
	lower := strings.ToLower(narrative)
	if len(narrative) < 80 && strings.Contains(lower, "error") {
		return true
	}
	return strings.Contains(lower, "request timed out") ||
		strings.Contains(lower, "context deadline exceeded")
}

// fallbackNarrative assembles a deterministic structured summary.
func fallbackNarrative(brief *Briefing) string {
	var sb strings.Builder
	sb.WriteString("# Morning Brief\n\n")
	if len(brief.Notebooks) == 0 {
		sb.WriteString("Nothing new since you last checked.\n")
		return sb.String()
	}

	for _, nb := range brief.Notebooks {
		name := nb.Subject
		if name == "" {
			name = nb.NotebookID
		}
		fmt.Fprintf(&sb, "## %s\n", name)
		if nb.NewItems > 0 {
			fmt.Fprintf(&sb, "- %d new items", nb.NewItems)
			if nb.TopFinding != "" {
				fmt.Fprintf(&sb, "; top finding: %s", nb.TopFinding)
			}
			sb.WriteString("\n")
		}
		if nb.PendingApproval > 0 {
			fmt.Fprintf(&sb, "- %d items waiting for your review\n", nb.PendingApproval)
		}
		for _, story := range nb.RecentStories {
			fmt.Fprintf(&sb, "- %s (%s)\n", story.Title, story.Source)
		}
		if len(nb.KeyDates) > 0 {
			fmt.Fprintf(&sb, "- coming up: %s\n", strings.Join(nb.KeyDates, "; "))
		}
		if len(nb.EmergingTopics) > 0 {
			fmt.Fprintf(&sb, "- emerging: %s\n", strings.Join(nb.EmergingTopics, ", "))
		}
		if len(nb.UnfinishedThreads) > 0 {
			fmt.Fprintf(&sb, "- unfinished: %s\n", nb.UnfinishedThreads[0])
		}
		if len(nb.OneWeekAgo) > 0 {
			fmt.Fprintf(&sb, "- one week ago: %s\n", strings.Join(nb.OneWeekAgo, "; "))
		}
		sb.WriteString("\n")
	}
	if brief.CrossNotebookInsight != "" {
		fmt.Fprintf(&sb, "## Across your notebooks\n%s\n", brief.CrossNotebookInsight)
	}
	return sb.String()
}

func (g *Generator) persist(dataDir string, brief *Briefing) error {
	dir := filepath.Join(dataDir, "memory")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(brief, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "morning_brief_"+brief.GeneratedAt.Format("2006-01-02")+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
