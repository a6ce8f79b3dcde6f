package fetcher

import (
	"fmt"
	"strings"
	"testing"

	"dossier/internal/types"
)

func linkSet(n int) []string {
	links := make([]string, n)
	for i := range links {
		links[i] = fmt.Sprintf("https://site%d.com/post", i)
	}
	return links
}

// longProse produces enough words to keep URL density below the threshold.
func longProse(words int) string {
	return strings.TrimSpace(strings.Repeat("word ", words))
}

func TestDetectListPageTitleCueBoundary(t *testing.T) {
	item := types.FetchedItem{
		Title:   "Top resources for supply chain research",
		URL:     "https://curator.example.com/list",
		Content: longProse(900),
	}

	// Four unique-domain URLs with a list-like title: not enough.
	if info := DetectListPage(item, linkSet(4)); info.IsListPage {
		t.Error("4 unique-domain URLs should not qualify even with a list title")
	}

	// Five crosses the titled threshold.
	info := DetectListPage(item, linkSet(5))
	if !info.IsListPage {
		t.Fatal("5 unique-domain URLs with a list title should qualify")
	}
	if len(info.FeedURLs)+len(info.PageURLs) != 5 {
		t.Errorf("expected all 5 URLs classified, got %d feeds + %d pages", len(info.FeedURLs), len(info.PageURLs))
	}
}

func TestDetectListPageDensity(t *testing.T) {
	// Eight URLs in a short body: density well above 1.5 per 100 words.
	item := types.FetchedItem{
		Title:   "Reading material",
		URL:     "https://curator.example.com/list",
		Content: longProse(40),
	}
	if !DetectListPage(item, linkSet(8)).IsListPage {
		t.Error("8 URLs at high density should qualify without a list title")
	}

	// Same eight URLs drowned in prose: density too low, count below ten.
	item.Content = longProse(2000)
	if DetectListPage(item, linkSet(8)).IsListPage {
		t.Error("8 URLs at low density without a list title should not qualify")
	}
}

func TestDetectListPageAbsoluteThreshold(t *testing.T) {
	item := types.FetchedItem{
		Title:   "Morning reading",
		URL:     "https://curator.example.com/list",
		Content: longProse(3000),
	}
	if !DetectListPage(item, linkSet(10)).IsListPage {
		t.Error("10 unique-domain URLs should qualify regardless of title and density")
	}
}

func TestDetectListPageDomainDedup(t *testing.T) {
	// Ten links but only three distinct second-level domains, one of which is
	// the page's own.
	links := []string{
		"https://curator.example.com/self1",
		"https://curator.example.com/self2",
		"https://a.com/1", "https://a.com/2", "https://a.com/3",
		"https://b.com/1", "https://b.com/2", "https://b.com/3",
		"https://blog.a.com/4", "https://b.com/4",
	}
	item := types.FetchedItem{
		Title:   "Top links",
		URL:     "https://curator.example.com/list",
		Content: longProse(20),
	}
	if DetectListPage(item, links).IsListPage {
		t.Error("duplicate and self-domain links must not count toward thresholds")
	}
}

func TestDetectListPageFeedSplit(t *testing.T) {
	links := []string{
		"https://a.com/rss",
		"https://b.com/feed.xml",
		"https://c.com/atom",
		"https://d.com/article",
		"https://e.com/blog/post",
	}
	item := types.FetchedItem{
		Title:   "Best feeds and blogs",
		URL:     "https://curator.example.com",
		Content: longProse(30),
	}
	info := DetectListPage(item, links)
	if !info.IsListPage {
		t.Fatal("expected list page")
	}
	if len(info.FeedURLs) != 3 {
		t.Errorf("FeedURLs = %v, want the three feed-like URLs", info.FeedURLs)
	}
	if len(info.PageURLs) != 2 {
		t.Errorf("PageURLs = %v, want the two regular URLs", info.PageURLs)
	}
}

func TestItemLinks(t *testing.T) {
	item := types.FetchedItem{
		Links:   []string{"https://a.com/parsed"},
		Content: "See https://b.com/inline and also https://c.com/other for details.",
	}
	links := ItemLinks(item)
	if len(links) != 3 {
		t.Fatalf("ItemLinks = %v, want parsed link plus two raw URLs", links)
	}
	if links[0] != "https://a.com/parsed" {
		t.Errorf("parsed links should come first, got %v", links)
	}
}
