package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/types"
)

const perQueryTimeout = 10 * time.Second

// Discover runs the full two-stage pipeline: intent analysis, then
// purpose-dispatched searches ranked into structured sources. URL validation
// is skipped on this fast path; entries carry confidence and auto_approve
// for the caller to act on.
func (d *Discoverer) Discover(ctx context.Context, req Request) Result {
	timer := logging.StartTimer(logging.CategoryDiscovery, "Discover")
	defer timer.Stop()

	result := Result{}
	analysis, err := d.AnalyzeIntent(ctx, req)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("intent analysis: %v", err))
	}
	result.Analysis = analysis

	topic := analysis.PrimaryTopic

	if d.searcher == nil {
		result.Errors = append(result.Errors, "web search unavailable, using fallback sources")
		result.Sources = fallbackSources(analysis)
		return result
	}

	queries := purposeQueries(analysis)
	queries = append(queries, overlayQueries(analysis)...)

	hits := d.searchAll(ctx, queries)
	if len(hits) == 0 {
		result.Errors = append(result.Errors, "all discovery searches failed, using fallback sources")
		result.Sources = fallbackSources(analysis)
		return result
	}

	sources, err := d.rankHits(ctx, analysis, hits)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("source ranking: %v", err))
		sources = fallbackSources(analysis)
	}

	// Guarantee the structural sources the purpose implies even when the
	// ranking omitted them.
	sources = ensureBaseline(sources, analysis)
	sources = append(sources, SeedSources(req.ExistingURLs)...)

	for i := range sources {
		finalizeSource(&sources[i])
	}
	sortSources(sources)

	logging.Discovery("discovered %d sources for %q (purpose=%s)", len(sources), topic, analysis.NotebookPurpose)
	result.Sources = sources
	return result
}

// purposeQueries builds the search set for the classified purpose.
func purposeQueries(a types.IntentAnalysis) []string {
	topic := a.PrimaryTopic
	switch a.NotebookPurpose {
	case types.PurposeCompanyResearch:
		name := a.CompanyName
		if name == "" {
			name = topic
		}
		return []string{
			name + " investor relations site",
			name + " official blog rss feed",
			name + " news analysis",
		}
	case types.PurposeProductResearch:
		return []string{
			topic + " reviews comparison",
			topic + " changelog release notes",
			topic + " official blog",
		}
	case types.PurposeSkillDevelopment:
		return []string{
			"best " + topic + " tutorials",
			topic + " blog rss feed",
			"learn " + topic + " resources",
		}
	case types.PurposePersonTracking:
		return []string{
			topic + " interviews talks",
			topic + " blog newsletter",
		}
	case types.PurposeIndustryMonitoring:
		return []string{
			a.Industry + " " + topic + " industry news rss",
			topic + " analyst reports trends",
		}
	case types.PurposeProjectKnowledge:
		return []string{
			topic + " documentation",
			topic + " community forum discussion",
		}
	default: // topic_research, personal_interests
		return []string{
			"best " + topic + " blogs rss feeds",
			topic + " research publications",
		}
	}
}

// overlayQueries always add news, video, and community coverage; podcast and
// newsletter for topic-shaped purposes.
func overlayQueries(a types.IntentAnalysis) []string {
	topic := a.PrimaryTopic
	out := []string{
		topic + " latest news",
		topic + " youtube channel",
		topic + " reddit community",
	}
	switch a.NotebookPurpose {
	case types.PurposeTopicResearch, types.PurposeSkillDevelopment, types.PurposeIndustryMonitoring:
		out = append(out, topic+" podcast", topic+" newsletter substack")
	}
	return out
}

// searchAll runs queries in parallel with a hard per-query timeout.
func (d *Discoverer) searchAll(ctx context.Context, queries []string) []types.SearchResult {
	var mu sync.Mutex
	var hits []types.SearchResult
	var wg sync.WaitGroup

	for _, q := range queries {
		query := q
		wg.Add(1)
		go func() {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, perQueryTimeout)
			defer cancel()
			results, err := d.searcher.Search(qctx, query, 5, "")
			if err != nil {
				logging.DiscoveryDebug("discovery query %q failed: %v", query, err)
				return
			}
			mu.Lock()
			hits = append(hits, results...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	var out []types.SearchResult
	for _, h := range hits {
		if h.URL == "" || seen[h.URL] {
			continue
		}
		seen[h.URL] = true
		out = append(out, h)
	}
	return out
}

const rankSystemPrompt = `You categorize web-search results into research sources.
Reply with ONLY a JSON array. Each element:
{"kind": "feed|web_page|video_channel|video_keyword|news_keyword|paper_category|paper_query",
 "name": "...", "url": "...", "keyword": "...", "description": "...", "confidence": 0.0}
Confidence reflects how well the source serves the research intent.
Prefer feeds over plain pages when a URL looks like a feed. Omit junk results.`

// rankHits asks the model to turn raw search hits into structured sources.
func (d *Discoverer) rankHits(ctx context.Context, a types.IntentAnalysis, hits []types.SearchResult) ([]types.DiscoveredSource, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research intent: %s (%s)\n\nSearch results:\n", a.PrimaryTopic, a.NotebookPurpose)
	limit := len(hits)
	if limit > 30 {
		limit = 30
	}
	for _, h := range hits[:limit] {
		fmt.Fprintf(&sb, "- %s | %s | %s\n", h.Title, h.URL, h.Snippet)
	}

	reply, err := d.llm.CompleteWithSystem(ctx, rankSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}
	var sources []types.DiscoveredSource
	if err := llm.ParseJSONReply(reply, &sources); err != nil {
		return nil, fmt.Errorf("unparseable ranking reply: %w", err)
	}

	out := sources[:0]
	for _, s := range sources {
		if s.Kind == "" || (s.URL == "" && s.Keyword == "") {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ensureBaseline adds the structural sources each purpose implies: filings
// for a tickered company, news keywords, video keywords.
func ensureBaseline(sources []types.DiscoveredSource, a types.IntentAnalysis) []types.DiscoveredSource {
	topic := a.PrimaryTopic
	hasKind := map[types.SourceKind]bool{}
	for _, s := range sources {
		hasKind[s.Kind] = true
	}

	if a.NotebookPurpose == types.PurposeCompanyResearch && a.Ticker != "" && !hasKind[types.KindFiling] {
		sources = append(sources, types.DiscoveredSource{
			Kind: types.KindFiling,
			Name: a.CompanyName + " regulatory filings",
			Filing: &types.FilingSource{
				Ticker:      a.Ticker,
				CompanyName: a.CompanyName,
				FilingTypes: []string{"10-K", "10-Q", "8-K"},
			},
			Description: "official filings via ticker " + a.Ticker,
			Confidence:  0.95,
		})
	}
	if !hasKind[types.KindNewsKeyword] {
		sources = append(sources, types.DiscoveredSource{
			Kind:        types.KindNewsKeyword,
			Name:        "news: " + topic,
			Keyword:     topic,
			Description: "aggregated news coverage",
			Confidence:  0.9,
		})
	}
	if !hasKind[types.KindVideoKeyword] && !hasKind[types.KindVideoChannel] {
		sources = append(sources, types.DiscoveredSource{
			Kind:        types.KindVideoKeyword,
			Name:        "video: " + topic,
			Keyword:     topic,
			Description: "video coverage",
			Confidence:  0.6,
		})
	}
	return sources
}

// fallbackSources is the deterministic set used when search is unavailable:
// news and video keywords, plus a paper category for research-shaped topics.
func fallbackSources(a types.IntentAnalysis) []types.DiscoveredSource {
	topic := a.PrimaryTopic
	out := []types.DiscoveredSource{
		{
			Kind:        types.KindNewsKeyword,
			Name:        "news: " + topic,
			Keyword:     topic,
			Description: "aggregated news coverage",
			Confidence:  0.9,
		},
		{
			Kind:        types.KindVideoKeyword,
			Name:        "video: " + topic,
			Keyword:     topic,
			Description: "video coverage",
			Confidence:  0.6,
		},
	}
	if a.ResearchDepth == types.DepthDeep || researchy(topic, a.Keywords) {
		out = append(out, types.DiscoveredSource{
			Kind:        types.KindPaperQuery,
			Name:        "papers: " + topic,
			Keyword:     topic,
			Description: "academic preprints",
			Confidence:  0.55,
		})
	}
	for i := range out {
		finalizeSource(&out[i])
	}
	sortSources(out)
	return out
}

func researchy(topic string, keywords []string) bool {
	text := strings.ToLower(topic + " " + strings.Join(keywords, " "))
	for _, cue := range []string{"research", "machine learning", "ai", "science", "algorithm", "quantum", "biology", "physics"} {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

// finalizeSource clamps confidence and derives action + auto_approve.
func finalizeSource(s *types.DiscoveredSource) {
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	switch {
	case s.Confidence >= types.DiscoveryAutoApproveConfidence:
		s.AutoApprove = true
		s.Action = types.ActionAutoApprove
	case s.Confidence >= 0.35:
		s.Action = types.ActionSuggest
	default:
		s.Action = types.ActionSkip
	}
}

var actionOrder = map[types.SourceAction]int{
	types.ActionAutoApprove: 0,
	types.ActionSuggest:     1,
	types.ActionSkip:        2,
}

func sortSources(sources []types.DiscoveredSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if actionOrder[sources[i].Action] != actionOrder[sources[j].Action] {
			return actionOrder[sources[i].Action] < actionOrder[sources[j].Action]
		}
		return sources[i].Confidence > sources[j].Confidence
	})
}
