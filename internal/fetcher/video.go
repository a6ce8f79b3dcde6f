package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"dossier/internal/types"
)

// fetchVideoChannel reads a channel's Atom feed. Accepts either a full feed
// URL or a bare channel ID.
func (f *Fetcher) fetchVideoChannel(ctx context.Context, channel string) ([]types.FetchedItem, error) {
	feedURL := channel
	if !strings.HasPrefix(channel, "http") {
		feedURL = "https://www.youtube.com/feeds/videos.xml?channel_id=" + url.QueryEscape(channel)
	}

	body, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	items, err := parseFeed(body, feedURL, types.KindVideoChannel)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// fetchVideoKeyword discovers recent videos for a keyword through the web
// searcher (video platforms publish no keyword feeds). Without a configured
// searcher the adapter yields nothing rather than failing the batch.
func (f *Fetcher) fetchVideoKeyword(ctx context.Context, keyword string) ([]types.FetchedItem, error) {
	if f.searcher == nil {
		return nil, nil
	}

	results, err := f.searcher.Search(ctx, fmt.Sprintf("site:youtube.com %s", keyword), 10, "week")
	if err != nil {
		return nil, fmt.Errorf("video keyword search %q: %w", keyword, err)
	}

	var out []types.FetchedItem
	for _, r := range results {
		if !strings.Contains(r.URL, "youtube.com/watch") && !strings.Contains(r.URL, "youtu.be/") {
			continue
		}
		item := types.FetchedItem{
			Title:      r.Title,
			URL:        r.URL,
			Content:    r.Snippet,
			Summary:    firstN(r.Snippet, 280),
			SourceName: fmt.Sprintf("video search: %s", keyword),
			SourceKind: types.KindVideoKeyword,
			Metadata:   map[string]string{"keyword": keyword},
		}
		item.ContentHash = ContentHash(item.Title, item.Content)
		out = append(out, item)
	}
	return out, nil
}
