package supervisor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/types"
)

const (
	synthesisTopK         = 20
	overwatchScoreGate    = 0.5
	crossPatternMinShared = 2
)

const synthesisSystemPrompt = `You synthesize research findings drawn from several notebooks.
Identify shared themes, contradictions, and connections. Cite the originating
notebook for each point. Markdown, under 300 words.`

// SynthesizeAcrossNotebooks searches every notebook's memory for the query
// and asks the model to connect the findings. Per-notebook search failures
// are skipped, not fatal.
func (s *Supervisor) SynthesizeAcrossNotebooks(ctx context.Context, query string, notebookIDs []string) (string, error) {
	timer := logging.StartTimer(logging.CategorySupervisor, "SynthesizeAcrossNotebooks")
	defer timer.Stop()

	if notebookIDs == nil {
		ids, err := s.deps.Notebooks.List(ctx)
		if err != nil {
			return "", err
		}
		notebookIDs = ids
	}

	// One cross-notebook search covers every namespace; per-notebook
	// filtering happens on the hits.
	reader := memory.Reader{Agent: memory.AgentSupervisor, CrossNotebook: true}
	hits, err := s.deps.Memory.Archive.Search(ctx, reader, query, memory.SearchOptions{Limit: synthesisTopK * 2, MinSimilarity: 0.25})
	if err != nil {
		logging.SupervisorDebug("synthesis search failed: %v", err)
	}

	allowed := map[string]bool{}
	for _, id := range notebookIDs {
		allowed[id] = true
	}
	filtered := hits[:0]
	for _, h := range hits {
		if h.Record.SourceNotebook == "" || allowed[h.Record.SourceNotebook] {
			filtered = append(filtered, h)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Similarity > filtered[j].Similarity })
	if len(filtered) > synthesisTopK {
		filtered = filtered[:synthesisTopK]
	}
	if len(filtered) == 0 {
		return "", fmt.Errorf("no material found for %q across notebooks", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\nFindings:\n", query)
	for _, h := range filtered {
		nb := h.Record.SourceNotebook
		if nb == "" {
			nb = "shared"
		}
		fmt.Fprintf(&sb, "- [%s] (%.2f) %s\n", nb, h.Similarity, firstChars(h.Record.Content, 250))
	}

	reply, err := s.deps.LLM.CompleteWithSystem(ctx, synthesisSystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("synthesis model: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// Insight is one cross-notebook observation.
type Insight struct {
	Kind        string   `json:"kind"` // "cross_reference"
	Entity      string   `json:"entity"`
	Notebooks   []string `json:"notebooks"`
	Description string   `json:"description"`
}

// DiscoverCrossWorkspacePatterns finds entities appearing in two or more
// notebooks' archives.
func (s *Supervisor) DiscoverCrossWorkspacePatterns(ctx context.Context) ([]Insight, error) {
	reader := memory.Reader{Agent: memory.AgentSupervisor, CrossNotebook: true}
	records, err := s.deps.Memory.Archive.ListRecent(ctx, reader, 500)
	if err != nil {
		return nil, err
	}

	entityNotebooks := map[string]map[string]bool{}
	for _, rec := range records {
		if rec.SourceNotebook == "" {
			continue
		}
		for _, entity := range rec.Entities {
			key := strings.ToLower(strings.TrimSpace(entity))
			if key == "" {
				continue
			}
			if entityNotebooks[key] == nil {
				entityNotebooks[key] = map[string]bool{}
			}
			entityNotebooks[key][rec.SourceNotebook] = true
		}
	}

	var insights []Insight
	for entity, nbs := range entityNotebooks {
		if len(nbs) < crossPatternMinShared {
			continue
		}
		var ids []string
		for id := range nbs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		insights = append(insights, Insight{
			Kind:        "cross_reference",
			Entity:      entity,
			Notebooks:   ids,
			Description: fmt.Sprintf("%q appears in %d of your notebooks (%s)", entity, len(ids), strings.Join(ids, ", ")),
		})
	}
	sort.Slice(insights, func(i, j int) bool {
		if len(insights[i].Notebooks) != len(insights[j].Notebooks) {
			return len(insights[i].Notebooks) > len(insights[j].Notebooks)
		}
		return insights[i].Entity < insights[j].Entity
	})
	logging.Supervisor("found %d cross-notebook patterns", len(insights))
	return insights, nil
}

// SurfaceInsightIfRelevant returns a cross-notebook insight matching the
// query, or empty when nothing connects.
func (s *Supervisor) SurfaceInsightIfRelevant(ctx context.Context, query string) string {
	insights, err := s.DiscoverCrossWorkspacePatterns(ctx)
	if err != nil {
		logging.SupervisorDebug("insight discovery failed: %v", err)
		return ""
	}
	lower := strings.ToLower(query)
	for _, in := range insights {
		if strings.Contains(lower, in.Entity) {
			return in.Description
		}
	}
	return ""
}

const overwatchSystemPrompt = `The user asked a question inside one research notebook, and their other
notebooks hold possibly related material. Decide whether mentioning it would
genuinely help. If yes, reply with one short aside (a sentence or two). If it
would be noise, reply with exactly SKIP.`

// GenerateOverwatchAside checks the user's other notebooks for material
// relevant to a query answered in one notebook, and lets the model decide
// whether surfacing it adds value.
func (s *Supervisor) GenerateOverwatchAside(ctx context.Context, query, answer, notebookID string) string {
	reader := memory.Reader{Agent: memory.AgentSupervisor, CrossNotebook: true}
	hits, err := s.deps.Memory.Archive.Search(ctx, reader, query, memory.SearchOptions{Limit: 10, MinSimilarity: 0.25})
	if err != nil {
		logging.SupervisorDebug("overwatch search failed: %v", err)
		return ""
	}

	var candidates []types.ArchiveHit
	for _, h := range hits {
		if h.Record.SourceNotebook == "" || h.Record.SourceNotebook == notebookID {
			continue
		}
		if h.Similarity > overwatchScoreGate {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\nAnswer given: %s\n\nMaterial from other notebooks:\n", query, firstChars(answer, 400))
	for _, h := range candidates {
		fmt.Fprintf(&sb, "- [%s] %s\n", h.Record.SourceNotebook, firstChars(h.Record.Content, 200))
	}

	reply, err := s.deps.LLM.CompleteWithSystem(ctx, overwatchSystemPrompt, sb.String())
	if err != nil {
		return ""
	}
	reply = strings.TrimSpace(reply)
	if reply == "" || strings.EqualFold(reply, "SKIP") {
		return ""
	}
	return reply
}
