package collab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"dossier/internal/fetcher"
	"dossier/internal/types"
)

// HTTPScraper fetches a page and extracts readable text. It shares the
// fetcher's HTML extraction so scraped enrichment content matches what the
// web-page adapter would have produced.
type HTTPScraper struct {
	userAgent string
	client    *http.Client
}

// NewHTTPScraper creates a scraper with the given user agent.
func NewHTTPScraper(userAgent string) *HTTPScraper {
	return &HTTPScraper{
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Scrape fetches url and returns extracted text. A non-2xx status or network
// failure returns Success=false with an error.
func (s *HTTPScraper) Scrape(ctx context.Context, url string) (types.ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return types.ScrapeResult{}, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.ScrapeResult{}, fmt.Errorf("scrape %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.ScrapeResult{}, fmt.Errorf("scrape %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return types.ScrapeResult{}, err
	}

	title, text, _ := fetcher.ParsePage(string(body))
	return types.ScrapeResult{Success: true, Title: title, Text: text}, nil
}
