package supervisor

import (
	"context"
	"fmt"
	"strings"

	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/memory"
)

// Counterargument is one piece of evidence against a working thesis.
type Counterargument struct {
	Thesis   string   `json:"thesis"`
	Queries  []string `json:"queries"`
	Findings []string `json:"findings"`
	Summary  string   `json:"summary"`
}

const thesisSystemPrompt = `Read these research notes and state the single working thesis they lean
toward, in one sentence. Reply with ONLY the sentence.`

// InferThesis derives the notebook's implicit working thesis from its most
// recent archive material.
func (s *Supervisor) InferThesis(ctx context.Context, notebookID string) (string, error) {
	reader := memory.Reader{Agent: memory.AgentGatherer, NotebookID: notebookID}
	records, err := s.deps.Memory.Archive.ListRecent(ctx, reader, 15)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("notebook %s has no material to infer a thesis from", notebookID)
	}

	var sb strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&sb, "- %s\n", firstChars(rec.Content, 200))
	}
	reply, err := s.deps.LLM.CompleteWithSystem(ctx, thesisSystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("thesis model: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

const counterQuerySystemPrompt = `Generate 3 web-search queries that would surface evidence AGAINST the
given thesis. Reply with ONLY a JSON array of strings.`

// GenerateCounterQueries builds searches designed to find disconfirming
// evidence. Model failure degrades to a deterministic negation query.
func (s *Supervisor) GenerateCounterQueries(ctx context.Context, thesis string) []string {
	reply, err := s.deps.LLM.CompleteWithSystem(ctx, counterQuerySystemPrompt, thesis)
	if err == nil {
		var queries []string
		if llm.ParseJSONReply(reply, &queries) == nil && len(queries) > 0 {
			if len(queries) > 3 {
				queries = queries[:3]
			}
			return queries
		}
	}
	logging.SupervisorDebug("counter-query model unusable, using negation fallback")
	return []string{
		"evidence against " + thesis,
		"criticism of " + thesis,
	}
}

const counterSummaryPrompt = `Summarize what this material says against the thesis, honestly. If the
material does not actually contradict it, say so. Under 150 words.`

// FindCounterarguments challenges a notebook's thesis: infer it if absent,
// generate counter-queries, collect what the notebook archive and a fresh
// search turn up, and summarize the opposition.
func (s *Supervisor) FindCounterarguments(ctx context.Context, notebookID, thesis string) (*Counterargument, error) {
	timer := logging.StartTimer(logging.CategorySupervisor, "FindCounterarguments")
	defer timer.Stop()

	if thesis == "" {
		inferred, err := s.InferThesis(ctx, notebookID)
		if err != nil {
			return nil, err
		}
		thesis = inferred
	}

	result := &Counterargument{Thesis: thesis}
	result.Queries = s.GenerateCounterQueries(ctx, thesis)

	reader := memory.Reader{Agent: memory.AgentGatherer, NotebookID: notebookID}
	for _, q := range result.Queries {
		hits, err := s.deps.Memory.Archive.Search(ctx, reader, q, memory.SearchOptions{Limit: 3, MinSimilarity: 0.3})
		if err != nil {
			continue
		}
		for _, h := range hits {
			result.Findings = append(result.Findings, firstChars(h.Record.Content, 200))
		}
	}
	if len(result.Findings) == 0 {
		result.Summary = "Nothing in the notebook currently contradicts this thesis; consider collecting opposing sources."
		return result, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Thesis: %s\n\nMaterial:\n", thesis)
	for _, f := range result.Findings {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	reply, err := s.deps.LLM.CompleteWithSystem(ctx, counterSummaryPrompt, sb.String())
	if err != nil {
		result.Summary = "Found potentially opposing material; review the findings directly."
		return result, nil
	}
	result.Summary = strings.TrimSpace(reply)
	return result, nil
}
