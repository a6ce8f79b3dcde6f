package gatherer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/signals"
	"dossier/internal/types"
)

// Scoring weights: relevance carries half the confidence, trust and
// freshness the rest.
const (
	weightRelevance = 0.5
	weightTrust     = 0.3
	weightFreshness = 0.2
)

const relevanceSystemPrompt = `You score how relevant a collected item is to a research focus.
Reply with ONLY a number between 0.0 and 1.0.`

// score computes the confidence breakdown for one item and fills the item's
// scoring fields in place.
func (g *Gatherer) score(ctx context.Context, item *types.CollectedItem, p types.Profile, prefs types.Preferences, guidance string) {
	var reasons []string

	relevance := g.relevanceScore(ctx, *item, p, guidance)
	reasons = append(reasons, fmt.Sprintf("relevance %.2f against focus areas", relevance))

	trust := g.health.Trust(item.SourceName)
	switch {
	case trust >= 0.9:
		reasons = append(reasons, "from a consistently healthy source")
	case trust <= 0.3:
		reasons = append(reasons, "source has been failing recently")
	}

	freshness := g.freshnessScore(item, p.Filters.MaxAgeDays)
	if freshness >= 1.0 {
		reasons = append(reasons, "published within the last day")
	} else if freshness == 0 {
		reasons = append(reasons, "older than the notebook's age limit")
	}

	bonus, bonusReasons := signals.ScoreAdjustment(prefs, item.Title, item.Content, item.URL, item.SourceName)
	reasons = append(reasons, bonusReasons...)

	overall := weightRelevance*relevance + weightTrust*trust + weightFreshness*freshness + bonus
	if overall < 0 {
		overall = 0
	}
	if overall > 1 {
		overall = 1
	}
	if freshness == 0 && overall > types.FreshnessZeroConfidenceCap {
		overall = types.FreshnessZeroConfidenceCap
	}

	item.RelevanceScore = relevance
	item.SourceTrust = trust
	item.FreshnessScore = freshness
	item.OverallConfidence = overall
	item.ConfidenceReasons = reasons
}

// relevanceScore asks the model for a 0-1 score; an unusable reply falls back
// to keyword matching.
func (g *Gatherer) relevanceScore(ctx context.Context, item types.CollectedItem, p types.Profile, guidance string) float64 {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research subject: %s\nIntent: %s\nFocus areas: %s\n",
		p.Subject, p.Intent, strings.Join(p.FocusAreas, ", "))
	if len(p.ExcludedTopics) > 0 {
		fmt.Fprintf(&sb, "Excluded topics: %s\n", strings.Join(p.ExcludedTopics, ", "))
	}
	if guidance != "" {
		fmt.Fprintf(&sb, "\nAdditional guidance:\n%s\n", guidance)
	}
	fmt.Fprintf(&sb, "\nItem title: %s\nItem preview: %s\n", item.Title, firstChars(item.Content, 800))

	reply, err := g.deps.LLM.CompleteWithSystem(ctx, relevanceSystemPrompt, sb.String())
	if err == nil {
		if v, perr := strconv.ParseFloat(strings.TrimSpace(llm.FirstNumber(reply)), 64); perr == nil && v >= 0 && v <= 1 {
			return v
		}
	}
	logging.GathererDebug("relevance LLM unusable for %q, falling back to keyword match", item.Title)
	return keywordRelevance(item, p)
}

// keywordRelevance is the deterministic fallback: fraction of focus areas
// (plus subject) mentioned in the item text.
func keywordRelevance(item types.CollectedItem, p types.Profile) float64 {
	text := strings.ToLower(item.Title + " " + firstChars(item.Content, 1000))
	terms := append([]string{}, p.FocusAreas...)
	if p.Subject != "" {
		terms = append(terms, p.Subject)
	}
	if len(terms) == 0 {
		return 0.5
	}
	hits := 0
	for _, t := range terms {
		if strings.Contains(text, strings.ToLower(t)) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// freshnessScore computes the piecewise freshness curve. When collected_at
// defaulted to now, a date extracted from the content prefix overrides it.
func (g *Gatherer) freshnessScore(item *types.CollectedItem, maxAgeDays int) float64 {
	collected := item.CollectedAt
	if time.Since(collected) < time.Minute {
		if extracted := types.ExtractPublishedDate(item.Title, item.Content); !extracted.IsZero() {
			collected = extracted
			item.CollectedAt = extracted
		}
	}
	return types.FreshnessScore(time.Since(collected), maxAgeDays)
}
