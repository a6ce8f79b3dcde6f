// Package fetcher implements the unified fetcher: a concurrent fan-out over
// pluggable source-kind adapters (feeds, web pages, regulatory filings,
// video, papers, news) returning a hash-deduplicated flat list.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"dossier/internal/logging"
	"dossier/internal/types"
)

const (
	// AdapterTimeout bounds each adapter call; the caller's context carries
	// the overall deadline.
	AdapterTimeout = 30 * time.Second

	// PerFeedCap bounds entries taken from a single feed.
	PerFeedCap = 20

	// PerKindCap bounds items a single source kind may contribute per run.
	PerKindCap = 40

	maxBodyBytes = 2 << 20 // 2 MiB per response
)

// HealthFunc observes per-endpoint outcomes so the gatherer's source-health
// table stays current. Optional.
type HealthFunc func(sourceName string, ok bool, latency time.Duration, items int)

// Fetcher fans out over source-kind adapters.
type Fetcher struct {
	client    *http.Client
	userAgent string
	edgar     *edgarClient
	searcher  types.WebSearcher // used by the video-keyword adapter
	onHealth  HealthFunc
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHealthFunc installs the per-endpoint outcome observer.
func WithHealthFunc(fn HealthFunc) Option {
	return func(f *Fetcher) { f.onHealth = fn }
}

// WithSearcher installs the web searcher used by keyword-driven adapters.
func WithSearcher(s types.WebSearcher) Option {
	return func(f *Fetcher) { f.searcher = s }
}

// WithHTTPClient replaces the HTTP client (tests point it at a local server).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
		f.edgar.client = c
	}
}

// New creates a Fetcher. userAgent is sent on every request; edgarUserAgent
// satisfies the regulator's fair-access identification requirement and is
// used only by the filings adapter.
func New(userAgent, edgarUserAgent string, opts ...Option) *Fetcher {
	client := &http.Client{Timeout: AdapterTimeout}
	f := &Fetcher{
		client:    client,
		userAgent: userAgent,
		edgar:     newEdgarClient(client, edgarUserAgent),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll invokes every configured (kind, entry) adapter concurrently and
// returns a hash-deduplicated flat list. A single adapter's failure never
// aborts the batch; on deadline expiry the partial result is returned.
func (f *Fetcher) FetchAll(ctx context.Context, cfg types.SourcesConfig, keywords []string) []types.FetchedItem {
	timer := logging.StartTimer(logging.CategoryFetcher, "FetchAll")
	defer timer.Stop()

	type batch struct {
		kind  types.SourceKind
		items []types.FetchedItem
	}

	var wg sync.WaitGroup
	results := make(chan batch, 64)

	launch := func(kind types.SourceKind, name string, fn func(context.Context) ([]types.FetchedItem, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, AdapterTimeout)
			defer cancel()

			start := time.Now()
			items, err := fn(actx)
			latency := time.Since(start)
			if err != nil {
				logging.Get(logging.CategoryFetcher).Warn("%s adapter %q failed: %v", kind, name, err)
				f.reportHealth(name, false, latency, 0)
				return
			}
			f.reportHealth(name, true, latency, len(items))
			select {
			case results <- batch{kind: kind, items: items}:
			case <-ctx.Done():
			}
		}()
	}

	for _, url := range cfg.Feeds {
		u := url
		launch(types.KindFeed, u, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchFeed(ctx, u)
		})
	}
	for _, url := range cfg.WebPages {
		u := url
		launch(types.KindWebPage, u, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchWebPage(ctx, u)
		})
	}
	for _, filing := range cfg.Filings {
		fl := filing
		launch(types.KindFiling, fl.Ticker, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchFilings(ctx, fl)
		})
	}
	for _, ch := range cfg.VideoChannels {
		c := ch
		launch(types.KindVideoChannel, c, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchVideoChannel(ctx, c)
		})
	}
	for _, kw := range cfg.VideoKeywords {
		k := kw
		launch(types.KindVideoKeyword, k, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchVideoKeyword(ctx, k)
		})
	}
	for _, cat := range cfg.PaperCategories {
		c := cat
		launch(types.KindPaperCategory, c, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchPaperCategory(ctx, c)
		})
	}
	for _, q := range cfg.PaperQueries {
		query := q
		launch(types.KindPaperQuery, query, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchPaperQuery(ctx, query)
		})
	}
	for _, kw := range cfg.NewsKeywords {
		k := kw
		launch(types.KindNewsKeyword, k, func(ctx context.Context) ([]types.FetchedItem, error) {
			return f.fetchNews(ctx, k, cfg.NewsGeo)
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	seen := map[string]bool{}
	perKind := map[types.SourceKind]int{}
	var out []types.FetchedItem

collect:
	for {
		select {
		case b, ok := <-results:
			if !ok {
				break collect
			}
			for _, item := range b.items {
				if perKind[b.kind] >= PerKindCap {
					break
				}
				if item.ContentHash == "" {
					item.ContentHash = ContentHash(item.Title, item.Content)
				}
				if seen[item.ContentHash] {
					continue
				}
				seen[item.ContentHash] = true
				perKind[b.kind]++
				out = append(out, item)
			}
		case <-ctx.Done():
			// Deadline: return what arrived.
			logging.Fetcher("FetchAll deadline hit, returning %d items", len(out))
			break collect
		}
	}

	logging.Fetcher("FetchAll collected %d items across %d kinds", len(out), len(perKind))
	return out
}

func (f *Fetcher) reportHealth(name string, ok bool, latency time.Duration, items int) {
	if f.onHealth != nil {
		f.onHealth(name, ok, latency, items)
	}
}

// get issues a GET with the polite user agent, retrying once on transient
// network failure.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	return f.getWithAgent(ctx, url, f.userAgent)
}

func (f *Fetcher) getWithAgent(ctx context.Context, url, agent string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", agent)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %d from %s", resp.StatusCode, url)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("status %d from %s", resp.StatusCode, url))
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}
