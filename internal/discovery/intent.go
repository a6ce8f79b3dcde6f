// Package discovery finds candidate sources for a research intent in two
// stages: an LLM reading of the intent, then purpose-dispatched web searches
// ranked by a second LLM pass. Search unavailability degrades to a
// deterministic fallback set, never an error.
package discovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/types"
)

// Discoverer runs source discovery.
type Discoverer struct {
	llm      types.LLMClient
	searcher types.WebSearcher
}

// New creates a Discoverer. searcher may be nil; discovery then uses the
// deterministic fallback path.
func New(llmClient types.LLMClient, searcher types.WebSearcher) *Discoverer {
	return &Discoverer{llm: llmClient, searcher: searcher}
}

// Request describes one discovery run.
type Request struct {
	Intent          string
	FocusAreas      []string
	Subject         string // overrides the LLM's primary topic when set
	ExistingURLs    []string
	PurposeOverride types.NotebookPurpose
	EntityDetails   map[string]string
}

// Result is the structured outcome. Errors collects non-fatal sub-step
// failures; the source list is always usable.
type Result struct {
	Analysis types.IntentAnalysis     `json:"analysis"`
	Sources  []types.DiscoveredSource `json:"sources"`
	Errors   []string                 `json:"errors,omitempty"`
}

const intentSystemPrompt = `You analyze research intents for an automated research assistant.
Reply with ONLY a JSON object:
{
  "notebook_purpose": "company_research|topic_research|product_research|skill_development|person_tracking|industry_monitoring|project_knowledge|personal_interests",
  "primary_topic": "...",
  "entities": ["..."],
  "industry": "...",
  "competitors": ["..."],
  "keywords": ["..."],
  "geographic_focus": "",
  "time_sensitivity": "breaking|daily|weekly|normal|archival",
  "research_depth": "surface|standard|deep",
  "company_name": "",
  "ticker": "",
  "is_private": false
}`

// AnalyzeIntent classifies the research intent. An explicit subject overrides
// the model's primary topic. For company research with no ticker, a web
// lookup enriches the analysis; an unidentifiable entity sets
// needs_clarification instead of guessing.
func (d *Discoverer) AnalyzeIntent(ctx context.Context, req Request) (types.IntentAnalysis, error) {
	prompt := fmt.Sprintf("Intent: %s\nFocus areas: %s", req.Intent, strings.Join(req.FocusAreas, ", "))
	if req.Subject != "" {
		prompt += "\nSubject: " + req.Subject
	}

	var analysis types.IntentAnalysis
	reply, err := d.llm.CompleteWithSystem(ctx, intentSystemPrompt, prompt)
	if err != nil || llm.ParseJSONReply(reply, &analysis) != nil {
		logging.Discovery("intent analysis LLM failed, using heuristic classification")
		analysis = heuristicIntent(req)
	}

	if req.Subject != "" {
		analysis.PrimaryTopic = req.Subject
	}
	if req.PurposeOverride != "" {
		analysis.NotebookPurpose = req.PurposeOverride
	}
	if analysis.NotebookPurpose == "" {
		analysis.NotebookPurpose = types.PurposeTopicResearch
	}
	if analysis.PrimaryTopic == "" {
		analysis.PrimaryTopic = req.Intent
	}
	if analysis.TimeSensitivity == "" {
		analysis.TimeSensitivity = types.SensitivityNormal
	}
	if analysis.ResearchDepth == "" {
		analysis.ResearchDepth = types.DepthStandard
	}
	for k, v := range req.EntityDetails {
		switch k {
		case "ticker":
			analysis.Ticker = v
		case "company_name":
			analysis.CompanyName = v
		case "industry":
			analysis.Industry = v
		}
	}

	if analysis.NotebookPurpose == types.PurposeCompanyResearch && analysis.Ticker == "" && !analysis.IsPrivate {
		d.enrichCompany(ctx, &analysis)
	}
	return analysis, nil
}

// heuristicIntent classifies without a model, from surface cues.
func heuristicIntent(req Request) types.IntentAnalysis {
	lower := strings.ToLower(req.Intent + " " + req.Subject)
	a := types.IntentAnalysis{
		PrimaryTopic:    req.Subject,
		Keywords:        req.FocusAreas,
		TimeSensitivity: types.SensitivityNormal,
		ResearchDepth:   types.DepthStandard,
	}
	switch {
	case strings.Contains(lower, "track") && (strings.Contains(lower, "inc") || strings.Contains(lower, "corp") || strings.Contains(lower, "company")):
		a.NotebookPurpose = types.PurposeCompanyResearch
		a.CompanyName = req.Subject
	case strings.Contains(lower, "learn") || strings.Contains(lower, "tutorial"):
		a.NotebookPurpose = types.PurposeSkillDevelopment
	case strings.Contains(lower, "industry") || strings.Contains(lower, "market"):
		a.NotebookPurpose = types.PurposeIndustryMonitoring
	default:
		a.NotebookPurpose = types.PurposeTopicResearch
	}
	return a
}

var tickerPattern = regexp.MustCompile(`(?:NASDAQ|NYSE|AMEX|OTC)[:\s]+([A-Z]{1,5})\b`)

// enrichCompany looks up the ticker and private-company status by web search.
// No identifiable entity means needs_clarification, not a guess.
func (d *Discoverer) enrichCompany(ctx context.Context, a *types.IntentAnalysis) {
	if d.searcher == nil {
		a.NeedsClarification = true
		return
	}
	name := a.CompanyName
	if name == "" {
		name = a.PrimaryTopic
	}
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	hits, err := d.searcher.Search(sctx, name+" stock ticker symbol", 5, "")
	if err != nil || len(hits) == 0 {
		logging.Discovery("ticker lookup for %q failed: %v", name, err)
		a.NeedsClarification = true
		return
	}
	for _, h := range hits {
		text := h.Title + " " + h.Snippet
		if m := tickerPattern.FindStringSubmatch(text); m != nil {
			a.Ticker = m[1]
			if a.CompanyName == "" {
				a.CompanyName = name
			}
			return
		}
		if strings.Contains(strings.ToLower(text), "private company") ||
			strings.Contains(strings.ToLower(text), "privately held") {
			a.IsPrivate = true
			if a.CompanyName == "" {
				a.CompanyName = name
			}
			return
		}
	}
	a.NeedsClarification = true
}

// SeedSources extracts recurring origins from a notebook's existing URLs.
// A second-level domain appearing twice or more has proven valuable and is
// emitted as a seed web-page source.
func SeedSources(existingURLs []string) []types.DiscoveredSource {
	counts := map[string]int{}
	sample := map[string]string{}
	for _, u := range existingURLs {
		d := secondLevelDomain(u)
		if d == "" {
			continue
		}
		counts[d]++
		if _, ok := sample[d]; !ok {
			sample[d] = u
		}
	}

	var out []types.DiscoveredSource
	for domain, n := range counts {
		if n < 2 {
			continue
		}
		kind := types.KindWebPage
		url := "https://" + domain
		if strings.Contains(sample[domain], "youtube.com") {
			kind = types.KindVideoChannel
			url = sample[domain]
		}
		out = append(out, types.DiscoveredSource{
			Kind:        kind,
			Name:        domain,
			URL:         url,
			Description: fmt.Sprintf("recurring origin (%d existing items)", n),
			Confidence:  0.7,
			Action:      types.ActionSuggest,
			SeedOrigin:  true,
		})
	}
	return out
}

func secondLevelDomain(u string) string {
	s := u
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimPrefix(s, "www.")
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
