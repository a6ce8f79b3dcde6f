package fetcher

import (
	"context"
	"regexp"
	"strings"

	"dossier/internal/logging"
	"dossier/internal/types"
)

// Resource-list expansion: a page whose body is predominantly a list of
// outbound URLs ("Top 100 AI RSS feeds") is worth more as its constituent
// sources than as an item. Detection thresholds are design parameters in
// internal/types.

var listTitleCues = []string{"top", "best", "awesome", "resources", "list", "curated", "collection", "directory"}

var feedPathHints = []string{"/rss", "/feed", "/atom", ".xml", ".rss", "feed=", "/feeds/"}

// ListPageInfo describes a detected resource-list page.
type ListPageInfo struct {
	IsListPage bool
	FeedURLs   []string // feed-like by path/filename hints
	PageURLs   []string // everything else
}

// DetectListPage classifies an item as a resource-list page. A page
// qualifies with >=5 unique-domain URLs and a list-like title, >=8 URLs
// with URL density above 1.5 per 100 words, or >=10 unique-domain URLs
// outright.
func DetectListPage(item types.FetchedItem, links []string) ListPageInfo {
	unique := uniqueDomainURLs(links, item.URL)
	words := len(strings.Fields(item.Content))
	density := 0.0
	if words > 0 {
		density = float64(len(unique)) / float64(words) * 100
	}

	titleLower := strings.ToLower(item.Title)
	listTitle := false
	for _, cue := range listTitleCues {
		if strings.Contains(titleLower, cue) {
			listTitle = true
			break
		}
	}

	isList := (listTitle && len(unique) >= types.ListPageMinURLsWithTitle) ||
		(len(unique) >= types.ListPageMinURLsWithDensity && density > types.URLDensityThreshold) ||
		len(unique) >= types.ListPageMinURLsAlways

	if !isList {
		return ListPageInfo{}
	}

	info := ListPageInfo{IsListPage: true}
	for _, u := range unique {
		if isFeedLike(u) {
			info.FeedURLs = append(info.FeedURLs, u)
		} else {
			info.PageURLs = append(info.PageURLs, u)
		}
	}
	return info
}

// uniqueDomainURLs keeps one URL per second-level domain, excluding the
// page's own domain.
func uniqueDomainURLs(links []string, selfURL string) []string {
	self := SecondLevelDomain(selfURL)
	seen := map[string]bool{}
	var out []string
	for _, l := range links {
		d := SecondLevelDomain(l)
		if d == "" || d == self || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, l)
	}
	return out
}

func isFeedLike(u string) bool {
	lower := strings.ToLower(u)
	for _, hint := range feedPathHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

const (
	// expansion limits per detected list page
	maxExpandFeeds        = 8
	maxExpandPages        = 8
	articlesPerExpandFeed = 2
)

// ExpandListPage fetches the top feeds (two articles each) and scrapes the
// top regular pages from a detected list page. The original list page is
// the caller's to drop.
func (f *Fetcher) ExpandListPage(ctx context.Context, info ListPageInfo) []types.FetchedItem {
	timer := logging.StartTimer(logging.CategoryFetcher, "ExpandListPage")
	defer timer.Stop()

	var out []types.FetchedItem

	feeds := info.FeedURLs
	if len(feeds) > maxExpandFeeds {
		feeds = feeds[:maxExpandFeeds]
	}
	for _, feedURL := range feeds {
		items, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			logging.FetcherDebug("list-page feed %s failed: %v", feedURL, err)
			continue
		}
		if len(items) > articlesPerExpandFeed {
			items = items[:articlesPerExpandFeed]
		}
		out = append(out, items...)
	}

	pages := info.PageURLs
	if len(pages) > maxExpandPages {
		pages = pages[:maxExpandPages]
	}
	for _, pageURL := range pages {
		items, err := f.fetchWebPage(ctx, pageURL)
		if err != nil {
			logging.FetcherDebug("list-page scrape %s failed: %v", pageURL, err)
			continue
		}
		out = append(out, items...)
	}

	logging.Fetcher("List page expanded into %d items (%d feeds, %d pages)", len(out), len(feeds), len(pages))
	return out
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// ItemLinks returns an item's outbound URLs: the parsed links the adapter
// recorded plus any raw URLs sitting in the text (feed bodies often carry
// them verbatim).
func ItemLinks(item types.FetchedItem) []string {
	links := append([]string(nil), item.Links...)
	links = append(links, urlPattern.FindAllString(item.Content, 200)...)
	return links
}
