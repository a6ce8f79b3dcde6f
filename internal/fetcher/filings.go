package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"dossier/internal/logging"
	"dossier/internal/types"
)

// EDGAR endpoints. The regulator requires an identifying user agent. Vars so
// tests can point the adapter at a local server.
var (
	edgarTickerTableURL = "https://www.sec.gov/files/company_tickers.json"
	edgarSubmissionsURL = "https://data.sec.gov/submissions/CIK%010d.json"
	edgarFullTextURL    = "https://efts.sec.gov/LATEST/search-index"
)

// edgarClient resolves tickers to entity IDs and fetches filings. Bare
// tickers are never sent to full-text search: a ticker like "COST" matches
// the word "cost" everywhere, so resolution goes ticker -> CIK -> per-entity
// submissions API, with quoted-company-name search as the fallback.
type edgarClient struct {
	client    *http.Client
	userAgent string

	mu      sync.Mutex
	tickers map[string]tickerEntry // upper ticker -> entry
	loaded  time.Time
}

type tickerEntry struct {
	CIK   int64  `json:"cik_str"`
	Name  string `json:"title"`
	Sym   string `json:"ticker"`
}

func newEdgarClient(client *http.Client, userAgent string) *edgarClient {
	return &edgarClient{client: client, userAgent: userAgent}
}

// resolveCIK maps a ticker to its EDGAR entity ID via the cached ticker
// table. The table refreshes daily.
func (e *edgarClient) resolveCIK(ctx context.Context, ticker string) (int64, string, error) {
	e.mu.Lock()
	needLoad := e.tickers == nil || time.Since(e.loaded) > 24*time.Hour
	e.mu.Unlock()

	if needLoad {
		if err := e.loadTickerTable(ctx); err != nil {
			return 0, "", err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.tickers[strings.ToUpper(ticker)]
	if !ok {
		return 0, "", fmt.Errorf("ticker %q not found in EDGAR ticker table", ticker)
	}
	return entry.CIK, entry.Name, nil
}

func (e *edgarClient) loadTickerTable(ctx context.Context) error {
	body, err := e.get(ctx, edgarTickerTableURL)
	if err != nil {
		return fmt.Errorf("load ticker table: %w", err)
	}

	// Keyed by arbitrary index strings: {"0": {...}, "1": {...}, ...}
	var raw map[string]tickerEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("parse ticker table: %w", err)
	}

	table := make(map[string]tickerEntry, len(raw))
	for _, entry := range raw {
		table[strings.ToUpper(entry.Sym)] = entry
	}

	e.mu.Lock()
	e.tickers = table
	e.loaded = time.Now()
	e.mu.Unlock()
	logging.FetcherDebug("EDGAR ticker table loaded: %d entries", len(table))
	return nil
}

func (e *edgarClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("EDGAR returned status %d for %s", resp.StatusCode, u)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// submissionsDoc is the subset of the per-entity submissions API we consume.
type submissionsDoc struct {
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// fetchFilings is the filings-kind adapter entry.
func (f *Fetcher) fetchFilings(ctx context.Context, src types.FilingSource) ([]types.FetchedItem, error) {
	cik, officialName, err := f.edgar.resolveCIK(ctx, src.Ticker)
	if err != nil {
		// Resolution failed; fall back to full-text search quoted by the
		// configured company name. Never by bare ticker.
		if src.CompanyName == "" {
			return nil, fmt.Errorf("cannot resolve ticker %q and no company name for quoted search: %w", src.Ticker, err)
		}
		return f.edgar.fullTextSearch(ctx, src)
	}
	if src.CompanyName == "" {
		src.CompanyName = officialName
	}

	body, err := f.edgar.get(ctx, fmt.Sprintf(edgarSubmissionsURL, cik))
	if err != nil {
		return nil, fmt.Errorf("submissions for CIK %d: %w", cik, err)
	}

	var doc submissionsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse submissions: %w", err)
	}

	wanted := map[string]bool{}
	for _, ft := range src.FilingTypes {
		wanted[strings.ToUpper(ft)] = true
	}

	recent := doc.Filings.Recent
	var out []types.FetchedItem
	for i := range recent.AccessionNumber {
		if len(out) >= PerFeedCap {
			break
		}
		form := recent.Form[i]
		if len(wanted) > 0 && !wanted[strings.ToUpper(form)] {
			continue
		}
		accession := strings.ReplaceAll(recent.AccessionNumber[i], "-", "")
		filingURL := fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%d/%s/%s",
			cik, accession, recent.PrimaryDocument[i])

		item := types.FetchedItem{
			Title:      fmt.Sprintf("%s %s filing (%s)", src.CompanyName, form, recent.FilingDate[i]),
			URL:        filingURL,
			Content:    fmt.Sprintf("%s filed a %s with the SEC on %s. Accession %s.", src.CompanyName, form, recent.FilingDate[i], recent.AccessionNumber[i]),
			SourceName: "SEC EDGAR",
			SourceKind: types.KindFiling,
			SourceURL:  fmt.Sprintf(edgarSubmissionsURL, cik),
			Metadata: map[string]string{
				"form":      form,
				"cik":       fmt.Sprintf("%d", cik),
				"accession": recent.AccessionNumber[i],
			},
		}
		if t, err := time.Parse("2006-01-02", recent.FilingDate[i]); err == nil {
			item.PublishedDate = &t
		}
		item.ContentHash = ContentHash(item.Title, item.Content)
		out = append(out, item)
	}
	return out, nil
}

// fullTextSearch queries EDGAR full-text search with the company name in
// quotes. The invariant holds here: the query string is the quoted name,
// never the ticker symbol.
func (e *edgarClient) fullTextSearch(ctx context.Context, src types.FilingSource) ([]types.FetchedItem, error) {
	quoted := fmt.Sprintf("%q", src.CompanyName)
	searchURL := edgarFullTextURL + "?q=" + url.QueryEscape(quoted)

	body, err := e.get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("full-text search for %s: %w", quoted, err)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source struct {
					DisplayNames []string `json:"display_names"`
					FileDate     string   `json:"file_date"`
					FormType     string   `json:"root_form"`
					AccessionNo  string   `json:"_id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse full-text results: %w", err)
	}

	var out []types.FetchedItem
	for _, hit := range result.Hits.Hits {
		if len(out) >= PerFeedCap {
			break
		}
		item := types.FetchedItem{
			Title:      fmt.Sprintf("%s %s filing (%s)", src.CompanyName, hit.Source.FormType, hit.Source.FileDate),
			Content:    fmt.Sprintf("%s filed a %s on %s (full-text match for %s).", src.CompanyName, hit.Source.FormType, hit.Source.FileDate, quoted),
			SourceName: "SEC EDGAR",
			SourceKind: types.KindFiling,
			SourceURL:  searchURL,
			Metadata:   map[string]string{"form": hit.Source.FormType, "accession": hit.Source.AccessionNo},
		}
		if t, err := time.Parse("2006-01-02", hit.Source.FileDate); err == nil {
			item.PublishedDate = &t
		}
		item.ContentHash = ContentHash(item.Title, item.Content)
		out = append(out, item)
	}
	return out, nil
}

// FetchFilingDocument retrieves one filing's primary document for content
// enrichment during approval. Exposed for the gatherer's deep-fetch path.
func (f *Fetcher) FetchFilingDocument(ctx context.Context, filingURL string) (string, error) {
	body, err := f.edgar.get(ctx, filingURL)
	if err != nil {
		return "", err
	}
	_, text, _ := parsePage(string(body))
	return text, nil
}
