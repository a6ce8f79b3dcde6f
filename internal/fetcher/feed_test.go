package fetcher

import (
	"testing"
	"time"

	"dossier/internal/types"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Retail Watch</title>
    <item>
      <title>Membership fee increase announced</title>
      <link>https://retailwatch.example.com/fees</link>
      <description>&lt;p&gt;The annual fee rises by five dollars.&lt;/p&gt;</description>
      <pubDate>Mon, 17 Aug 2026 09:30:00 +0000</pubDate>
    </item>
    <item>
      <title>Warehouse expansion in Texas</title>
      <link>https://retailwatch.example.com/texas</link>
      <description>Three new locations planned.</description>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Research Updates</title>
  <entry>
    <title>New preprint on retrieval</title>
    <link rel="alternate" href="https://papers.example.org/abs/1234"/>
    <summary>We study retrieval quality under drift.</summary>
    <published>2026-08-10T12:00:00Z</published>
  </entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	items, err := parseFeed([]byte(sampleRSS), "https://retailwatch.example.com/rss", types.KindFeed)
	if err != nil {
		t.Fatalf("parseFeed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	first := items[0]
	if first.Title != "Membership fee increase announced" {
		t.Errorf("title = %q", first.Title)
	}
	if first.SourceName != "Retail Watch" {
		t.Errorf("source name = %q", first.SourceName)
	}
	if first.Content != "The annual fee rises by five dollars." {
		t.Errorf("embedded markup not stripped: %q", first.Content)
	}
	if first.PublishedDate == nil {
		t.Fatal("pubDate not parsed")
	}
	want := time.Date(2026, time.August, 17, 9, 30, 0, 0, time.UTC)
	if !first.PublishedDate.Equal(want) {
		t.Errorf("published = %v, want %v", first.PublishedDate, want)
	}
	if first.ContentHash == "" {
		t.Error("content hash not set")
	}

	if items[1].PublishedDate != nil {
		t.Error("item without pubDate should have nil published date")
	}
}

func TestParseFeedAtom(t *testing.T) {
	items, err := parseFeed([]byte(sampleAtom), "https://papers.example.org/feed", types.KindFeed)
	if err != nil {
		t.Fatalf("parseFeed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].URL != "https://papers.example.org/abs/1234" {
		t.Errorf("url = %q", items[0].URL)
	}
	if items[0].SourceName != "Research Updates" {
		t.Errorf("source name = %q", items[0].SourceName)
	}
}

func TestParseFeedUnrecognized(t *testing.T) {
	if _, err := parseFeed([]byte("<html><body>not a feed</body></html>"), "https://x.com", types.KindFeed); err == nil {
		t.Error("expected error for non-feed content")
	}
}

func TestParseFeedDateFormats(t *testing.T) {
	tests := []string{
		"Mon, 17 Aug 2026 09:30:00 +0000",
		"2026-08-17T09:30:00Z",
		"2026-08-17",
	}
	for _, s := range tests {
		if parseFeedDate(s).IsZero() {
			t.Errorf("parseFeedDate(%q) returned zero", s)
		}
	}
	if !parseFeedDate("not a date", "").IsZero() {
		t.Error("garbage date should return zero time")
	}
}
