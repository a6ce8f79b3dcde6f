package fetcher

import (
	"context"
	"net/url"

	"dossier/internal/types"
)

// fetchNews routes a keyword to the news-aggregator feed, with optional geo
// targeting ("US", "GB", ...).
func (f *Fetcher) fetchNews(ctx context.Context, keyword, geo string) ([]types.FetchedItem, error) {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("hl", "en")
	if geo != "" {
		q.Set("gl", geo)
		q.Set("ceid", geo+":en")
	}

	feedURL := "https://news.google.com/rss/search?" + q.Encode()
	body, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	items, err := parseFeed(body, feedURL, types.KindNewsKeyword)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SourceName = "news: " + keyword
		if items[i].Metadata == nil {
			items[i].Metadata = map[string]string{}
		}
		items[i].Metadata["keyword"] = keyword
	}
	return items, nil
}
