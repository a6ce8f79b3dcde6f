package fetcher

import (
	"context"
	"fmt"
	"net/url"

	"dossier/internal/types"
)

const arxivAPIURL = "http://export.arxiv.org/api/query"

// fetchPaperCategory pulls the latest submissions in an arXiv category
// (e.g. "cs.AI").
func (f *Fetcher) fetchPaperCategory(ctx context.Context, category string) ([]types.FetchedItem, error) {
	q := url.Values{}
	q.Set("search_query", "cat:"+category)
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	q.Set("max_results", fmt.Sprintf("%d", PerFeedCap))

	body, err := f.get(ctx, arxivAPIURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	items, err := parseFeed(body, arxivAPIURL, types.KindPaperCategory)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SourceName = "arXiv " + category
	}
	return items, nil
}

// fetchPaperQuery runs a free-text query against the arXiv API.
func (f *Fetcher) fetchPaperQuery(ctx context.Context, query string) ([]types.FetchedItem, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("sortBy", "relevance")
	q.Set("max_results", fmt.Sprintf("%d", PerFeedCap))

	body, err := f.get(ctx, arxivAPIURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	items, err := parseFeed(body, arxivAPIURL, types.KindPaperQuery)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].SourceName = "arXiv search"
		if items[i].Metadata == nil {
			items[i].Metadata = map[string]string{}
		}
		items[i].Metadata["query"] = query
	}
	return items, nil
}
