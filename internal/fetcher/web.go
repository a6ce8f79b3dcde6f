package fetcher

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"dossier/internal/types"
)

// fetchWebPage scrapes a single page into one item.
func (f *Fetcher) fetchWebPage(ctx context.Context, url string) ([]types.FetchedItem, error) {
	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	title, text, links := parsePage(string(body))
	if title == "" {
		title = url
	}

	item := types.FetchedItem{
		Title:      title,
		URL:        url,
		Content:    text,
		Summary:    firstN(text, 280),
		SourceName: domainOf(url),
		SourceKind: types.KindWebPage,
		SourceURL:  url,
		Metadata:   map[string]string{"link_count": strconv.Itoa(len(links))},
		Links:      links,
	}
	item.ContentHash = ContentHash(item.Title, item.Content)
	return []types.FetchedItem{item}, nil
}

// ParsePage extracts the title, readable text, and outbound links from
// HTML. Script, style, and nav-ish containers are skipped. Exported for the
// shipped scraper, which shares this extraction.
func ParsePage(rawHTML string) (title, text string, links []string) {
	return parsePage(rawHTML)
}

func parsePage(rawHTML string) (title, text string, links []string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", rawHTML, nil
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "nav", "footer", "header", "aside":
				return
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				for _, attr := range n.Attr {
					if attr.Key == "href" && strings.HasPrefix(attr.Val, "http") {
						links = append(links, attr.Val)
					}
				}
			}
		case html.TextNode:
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, strings.TrimSpace(sb.String()), links
}

// stripHTMLTags flattens embedded markup in feed entries to plain text.
func stripHTMLTags(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	_, text, _ := parsePage(s)
	return text
}

// domainOf extracts the host from a URL without parsing errors mattering.
func domainOf(url string) string {
	s := url
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimPrefix(s, "www.")
}

// SecondLevelDomain collapses a host to its effective second-level domain
// ("news.example.co.uk" -> "example.co.uk", "blog.example.com" ->
// "example.com"). Used by the diversity cap.
func SecondLevelDomain(url string) string {
	host := domainOf(url)
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	// Two-part public suffixes (co.uk, com.au, ...) keep three labels.
	last := parts[len(parts)-1]
	second := parts[len(parts)-2]
	if len(last) == 2 && (second == "co" || second == "com" || second == "org" || second == "net" || second == "ac" || second == "gov") {
		if len(parts) >= 3 {
			return strings.Join(parts[len(parts)-3:], ".")
		}
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
