package fetcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"dossier/internal/types"
)

// rssDoc covers RSS 2.0 and, loosely, RSS 1.0.
type rssDoc struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	DCDate      string `xml:"date"`
	Content     string `xml:"encoded"`
}

// atomDoc covers Atom 1.0 (also what YouTube and arXiv serve).
type atomDoc struct {
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

func (e atomEntry) link() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

// fetchFeed retrieves an RSS or Atom feed and converts its entries, capped
// at PerFeedCap.
func (f *Fetcher) fetchFeed(ctx context.Context, url string) ([]types.FetchedItem, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseFeed(body, url, types.KindFeed)
}

// parseFeed sniffs RSS vs Atom and converts entries to FetchedItems.
func parseFeed(body []byte, sourceURL string, kind types.SourceKind) ([]types.FetchedItem, error) {
	var rss rssDoc
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return convertRSS(rss, sourceURL, kind), nil
	}

	var atom atomDoc
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		return convertAtom(atom, sourceURL, kind), nil
	}

	return nil, fmt.Errorf("unrecognized feed format at %s", sourceURL)
}

func convertRSS(doc rssDoc, sourceURL string, kind types.SourceKind) []types.FetchedItem {
	name := strings.TrimSpace(doc.Channel.Title)
	if name == "" {
		name = sourceURL
	}
	var out []types.FetchedItem
	for i, item := range doc.Channel.Items {
		if i >= PerFeedCap {
			break
		}
		content := item.Content
		if content == "" {
			content = item.Description
		}
		content = stripHTMLTags(content)
		fi := types.FetchedItem{
			Title:      strings.TrimSpace(item.Title),
			URL:        strings.TrimSpace(item.Link),
			Content:    content,
			Summary:    firstN(content, 280),
			SourceName: name,
			SourceKind: kind,
			SourceURL:  sourceURL,
		}
		if t := parseFeedDate(item.PubDate, item.DCDate); !t.IsZero() {
			fi.PublishedDate = &t
		}
		fi.ContentHash = ContentHash(fi.Title, fi.Content)
		out = append(out, fi)
	}
	return out
}

func convertAtom(doc atomDoc, sourceURL string, kind types.SourceKind) []types.FetchedItem {
	name := strings.TrimSpace(doc.Title)
	if name == "" {
		name = sourceURL
	}
	var out []types.FetchedItem
	for i, entry := range doc.Entries {
		if i >= PerFeedCap {
			break
		}
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		content = stripHTMLTags(content)
		fi := types.FetchedItem{
			Title:      strings.TrimSpace(entry.Title),
			URL:        entry.link(),
			Content:    content,
			Summary:    firstN(content, 280),
			SourceName: name,
			SourceKind: kind,
			SourceURL:  sourceURL,
		}
		if t := parseFeedDate(entry.Published, entry.Updated); !t.IsZero() {
			fi.PublishedDate = &t
		}
		fi.ContentHash = ContentHash(fi.Title, fi.Content)
		out = append(out, fi)
	}
	return out
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02",
}

func parseFeedDate(candidates ...string) time.Time {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		for _, layout := range feedDateLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func firstN(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
