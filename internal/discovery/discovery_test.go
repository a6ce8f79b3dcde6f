package discovery

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/types"
)

func TestHeuristicIntent(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want types.NotebookPurpose
	}{
		{"company", Request{Intent: "track Acme Corp earnings", Subject: "Acme Corp"}, types.PurposeCompanyResearch},
		{"skill", Request{Intent: "learn rust programming"}, types.PurposeSkillDevelopment},
		{"industry", Request{Intent: "monitor the semiconductor industry"}, types.PurposeIndustryMonitoring},
		{"default topic", Request{Intent: "fusion energy progress"}, types.PurposeTopicResearch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := heuristicIntent(tt.req)
			assert.Equal(t, tt.want, got.NotebookPurpose)
		})
	}
}

func TestAnalyzeIntentSubjectOverride(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			return `{"notebook_purpose": "topic_research", "primary_topic": "model-guessed topic"}`, nil
		},
	}
	d := New(llm, nil)

	a, err := d.AnalyzeIntent(context.Background(), Request{
		Intent:  "keep up with retail",
		Subject: "warehouse retail",
	})
	require.NoError(t, err)
	assert.Equal(t, "warehouse retail", a.PrimaryTopic, "explicit subject beats the model's guess")
	assert.Equal(t, types.SensitivityNormal, a.TimeSensitivity)
	assert.Equal(t, types.DepthStandard, a.ResearchDepth)
}

func TestAnalyzeIntentCompanyEnrichment(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			return `{"notebook_purpose": "company_research", "primary_topic": "Costco", "company_name": "Costco Wholesale"}`, nil
		},
	}
	searcher := &MockSearcher{
		SearchFunc: func(ctx context.Context, query string, maxResults int, freshness string) ([]types.SearchResult, error) {
			return []types.SearchResult{
				{Title: "Costco Wholesale (NASDAQ: COST) stock", URL: "https://finance.example.com/cost", Snippet: "shares rose"},
			}, nil
		},
	}
	d := New(llm, searcher)

	a, err := d.AnalyzeIntent(context.Background(), Request{Intent: "track Costco"})
	require.NoError(t, err)
	assert.Equal(t, "COST", a.Ticker)
	assert.False(t, a.NeedsClarification)
}

func TestAnalyzeIntentUnidentifiableCompany(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			return `{"notebook_purpose": "company_research", "primary_topic": "Mystery Startup"}`, nil
		},
	}
	searcher := &MockSearcher{
		SearchFunc: func(ctx context.Context, query string, maxResults int, freshness string) ([]types.SearchResult, error) {
			return []types.SearchResult{
				{Title: "Nothing conclusive", URL: "https://x.example.com", Snippet: "unrelated"},
			}, nil
		},
	}
	d := New(llm, searcher)

	a, err := d.AnalyzeIntent(context.Background(), Request{Intent: "research Mystery Startup"})
	require.NoError(t, err)
	assert.True(t, a.NeedsClarification, "an unidentifiable entity asks rather than guesses")
	assert.Empty(t, a.Ticker)
}

func TestAnalyzeIntentEntityDetailsSkipLookup(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			return `{"notebook_purpose": "company_research", "primary_topic": "Costco"}`, nil
		},
	}
	searcher := &MockSearcher{}
	d := New(llm, searcher)

	a, err := d.AnalyzeIntent(context.Background(), Request{
		Intent:        "track Costco",
		EntityDetails: map[string]string{"ticker": "COST", "company_name": "Costco Wholesale"},
	})
	require.NoError(t, err)
	assert.Equal(t, "COST", a.Ticker)
	assert.Empty(t, searcher.RecordedQueries(), "a provided ticker needs no web lookup")
}

func TestDiscoverWithoutSearcherFallsBack(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			return `{"notebook_purpose": "topic_research", "primary_topic": "quantum computing research", "research_depth": "deep"}`, nil
		},
	}
	d := New(llm, nil)

	result := d.Discover(context.Background(), Request{Intent: "quantum computing research"})
	require.NotEmpty(t, result.Sources)
	require.NotEmpty(t, result.Errors)

	kinds := map[types.SourceKind]bool{}
	for _, s := range result.Sources {
		kinds[s.Kind] = true
	}
	assert.True(t, kinds[types.KindNewsKeyword])
	assert.True(t, kinds[types.KindVideoKeyword])
	assert.True(t, kinds[types.KindPaperQuery], "deep research topics include a paper source")
}

func TestDiscoverRanksAndGuaranteesBaseline(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			if strings.Contains(system, "analyze research intents") {
				return `{"notebook_purpose": "company_research", "primary_topic": "Costco",
				         "company_name": "Costco Wholesale", "ticker": "COST"}`, nil
			}
			return `[{"kind": "feed", "name": "Retail Watch", "url": "https://retailwatch.example.com/rss", "confidence": 0.9}]`, nil
		},
	}
	searcher := &MockSearcher{
		SearchFunc: func(ctx context.Context, query string, maxResults int, freshness string) ([]types.SearchResult, error) {
			return []types.SearchResult{
				{Title: "Retail Watch", URL: "https://retailwatch.example.com", Snippet: "retail news feed"},
			}, nil
		},
	}
	d := New(llm, searcher)

	result := d.Discover(context.Background(), Request{
		Intent: "track Costco",
		ExistingURLs: []string{
			"https://seekingalpha.example.com/cost-1",
			"https://seekingalpha.example.com/cost-2",
		},
	})
	require.NotEmpty(t, result.Sources)

	var haveFiling, haveNews, haveFeed, haveSeed bool
	for _, s := range result.Sources {
		switch {
		case s.Kind == types.KindFiling:
			haveFiling = true
			require.NotNil(t, s.Filing)
			assert.Equal(t, "COST", s.Filing.Ticker)
		case s.Kind == types.KindNewsKeyword:
			haveNews = true
		case s.Kind == types.KindFeed:
			haveFeed = true
			assert.True(t, s.AutoApprove, "0.9 confidence auto-approves")
		}
		if s.SeedOrigin {
			haveSeed = true
		}
	}
	assert.True(t, haveFiling, "tickered company research guarantees a filings source")
	assert.True(t, haveNews)
	assert.True(t, haveFeed)
	assert.True(t, haveSeed, "recurring existing domains become seed sources")
}

func TestFinalizeSourceActions(t *testing.T) {
	tests := []struct {
		confidence float64
		want       types.SourceAction
		auto       bool
	}{
		{0.95, types.ActionAutoApprove, true},
		{0.85, types.ActionAutoApprove, true},
		{0.5, types.ActionSuggest, false},
		{0.35, types.ActionSuggest, false},
		{0.2, types.ActionSkip, false},
	}
	for _, tt := range tests {
		s := types.DiscoveredSource{Confidence: tt.confidence}
		finalizeSource(&s)
		assert.Equal(t, tt.want, s.Action, "confidence %.2f", tt.confidence)
		assert.Equal(t, tt.auto, s.AutoApprove, "confidence %.2f", tt.confidence)
	}

	clamped := types.DiscoveredSource{Confidence: 1.7}
	finalizeSource(&clamped)
	assert.Equal(t, 1.0, clamped.Confidence)
}

func TestSortSources(t *testing.T) {
	sources := []types.DiscoveredSource{
		{Name: "skip", Confidence: 0.1, Action: types.ActionSkip},
		{Name: "suggest-low", Confidence: 0.4, Action: types.ActionSuggest},
		{Name: "auto", Confidence: 0.9, Action: types.ActionAutoApprove},
		{Name: "suggest-high", Confidence: 0.7, Action: types.ActionSuggest},
	}
	sortSources(sources)

	got := make([]string, len(sources))
	for i, s := range sources {
		got[i] = s.Name
	}
	assert.Equal(t, []string{"auto", "suggest-high", "suggest-low", "skip"}, got)
}

func TestSeedSources(t *testing.T) {
	out := SeedSources([]string{
		"https://blog.example.com/a",
		"https://www.example.com/b",
		"https://once.com/x",
		"https://www.youtube.com/watch?v=abc",
		"https://youtube.com/watch?v=def",
	})

	byName := map[string]types.DiscoveredSource{}
	for _, s := range out {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "example.com")
	assert.Equal(t, types.KindWebPage, byName["example.com"].Kind)
	assert.True(t, byName["example.com"].SeedOrigin)
	assert.NotContains(t, byName, "once.com", "a single occurrence proves nothing")

	require.Contains(t, byName, "youtube.com")
	assert.Equal(t, types.KindVideoChannel, byName["youtube.com"].Kind)
}
