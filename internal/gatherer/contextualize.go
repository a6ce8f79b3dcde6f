package gatherer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/types"
)

const (
	relatedSearchLimit   = 10
	relatedMinSimilarity = 0.3
	relatedTitleChars    = 80
	relatedTitleCount    = 3
)

const contextSystemPrompt = `You compare a newly collected item against what a research notebook already knows.
Reply with ONLY a JSON object:
{"delta_summary": "what is genuinely new, or 'no significant new information'",
 "temporal_context": "how this relates to earlier coverage",
 "is_new_topic": true|false}`

// contextualize situates one item against the notebook's archive: retrieves
// related records, computes knowledge overlap, and asks the model what is
// actually new.
func (g *Gatherer) contextualize(ctx context.Context, item *types.CollectedItem) {
	reader := memory.Reader{Agent: memory.AgentGatherer, NotebookID: g.notebookID}
	hits, err := g.deps.Memory.Archive.Search(ctx, reader, item.Title+" "+firstChars(item.Content, 500), memory.SearchOptions{
		Limit:         relatedSearchLimit,
		MinSimilarity: relatedMinSimilarity,
	})
	if err != nil {
		logging.GathererDebug("contextualization search failed for %q: %v", item.Title, err)
		item.IsNewTopic = true
		return
	}
	if len(hits) == 0 {
		item.IsNewTopic = true
		item.KnowledgeOverlap = 0
		return
	}

	item.KnowledgeOverlap = knowledgeOverlap(hits)
	for i := 0; i < len(hits) && i < relatedTitleCount; i++ {
		item.RelatedTitles = append(item.RelatedTitles, firstChars(hits[i].Record.Content, relatedTitleChars))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "New item:\nTitle: %s\n%s\n\nWhat the notebook already has:\n", item.Title, firstChars(item.Content, 800))
	for _, h := range hits {
		fmt.Fprintf(&sb, "- (%.2f) %s\n", h.Similarity, firstChars(h.Record.Content, 200))
	}

	var parsed struct {
		DeltaSummary    string `json:"delta_summary"`
		TemporalContext string `json:"temporal_context"`
		IsNewTopic      bool   `json:"is_new_topic"`
	}
	reply, err := g.deps.LLM.CompleteWithSystem(ctx, contextSystemPrompt, sb.String())
	if err != nil || llm.ParseJSONReply(reply, &parsed) != nil {
		// Keep the numeric overlap; derive novelty from it.
		item.IsNewTopic = item.KnowledgeOverlap < 0.3
		return
	}
	item.DeltaSummary = parsed.DeltaSummary
	item.TemporalContext = parsed.TemporalContext
	item.IsNewTopic = parsed.IsNewTopic
}

// knowledgeOverlap blends the best match with the average of the top five:
// 0.6 * max + 0.4 * avg(top5).
func knowledgeOverlap(hits []types.ArchiveHit) float64 {
	if len(hits) == 0 {
		return 0
	}
	sorted := append([]types.ArchiveHit(nil), hits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Similarity > sorted[j].Similarity })

	max := sorted[0].Similarity
	n := len(sorted)
	if n > 5 {
		n = 5
	}
	var sum float64
	for _, h := range sorted[:n] {
		sum += h.Similarity
	}
	return 0.6*max + 0.4*(sum/float64(n))
}

// tokenOverlap is the fraction of sample tokens also present in the text.
// Used to honor avoid-similar directives from the orchestrator.
func tokenOverlap(text, sample string) float64 {
	sampleTokens := tokenSet(sample)
	if len(sampleTokens) == 0 {
		return 0
	}
	textTokens := tokenSet(text)
	hits := 0
	for tok := range sampleTokens {
		if textTokens[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(sampleTokens))
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if len(tok) > 2 {
			out[tok] = true
		}
	}
	return out
}
