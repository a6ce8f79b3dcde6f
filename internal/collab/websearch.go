// Package collab ships working implementations of the external-collaborator
// interfaces: web search, web scraping, and file-backed stores. Deployments
// embedding the core inject their own; the CLI and tests use these.
package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dossier/internal/logging"
	"dossier/internal/types"
)

// SearxSearcher queries a SearXNG-compatible JSON endpoint.
type SearxSearcher struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewSearxSearcher creates a searcher against a SearXNG instance.
func NewSearxSearcher(baseURL, userAgent string) *SearxSearcher {
	return &SearxSearcher{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Search runs one query. freshness maps to the engine's time_range
// ("day", "week", "month"); empty means unrestricted.
func (s *SearxSearcher) Search(ctx context.Context, query string, maxResults int, freshness string) ([]types.SearchResult, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("no search endpoint configured")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	if freshness != "" {
		q.Set("time_range", freshness)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var out []types.SearchResult
	for _, r := range parsed.Results {
		if len(out) >= maxResults {
			break
		}
		out = append(out, types.SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	logging.DiscoveryDebug("search %q returned %d results", query, len(out))
	return out, nil
}
