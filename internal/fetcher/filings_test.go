package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dossier/internal/types"
)

// pointEdgarAt redirects the EDGAR endpoints to a local server for the test's
// duration.
func pointEdgarAt(t *testing.T, base string) {
	t.Helper()
	origTable, origSubs, origFullText := edgarTickerTableURL, edgarSubmissionsURL, edgarFullTextURL
	edgarTickerTableURL = base + "/files/company_tickers.json"
	edgarSubmissionsURL = base + "/submissions/CIK%010d.json"
	edgarFullTextURL = base + "/search-index"
	t.Cleanup(func() {
		edgarTickerTableURL = origTable
		edgarSubmissionsURL = origSubs
		edgarFullTextURL = origFullText
	})
}

func TestFetchFilingsViaTickerResolution(t *testing.T) {
	var fullTextHit bool
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"0": {"cik_str": 909832, "ticker": "COST", "title": "COSTCO WHOLESALE CORP"}}`))
	})
	mux.HandleFunc("/submissions/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "CIK0000909832") {
			t.Errorf("submissions path should carry the zero-padded CIK, got %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"name": "COSTCO WHOLESALE CORP",
			"filings": {"recent": {
				"accessionNumber": ["0000909832-26-000001", "0000909832-26-000002"],
				"filingDate": ["2026-08-12", "2026-07-01"],
				"form": ["10-Q", "4"],
				"primaryDocument": ["cost-10q.htm", "form4.htm"]
			}}
		}`))
	})
	mux.HandleFunc("/search-index", func(w http.ResponseWriter, r *http.Request) {
		fullTextHit = true
		w.Write([]byte(`{"hits": {"hits": []}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	pointEdgarAt(t, srv.URL)

	f := New("test-agent/1.0", "dossier test admin@example.com")
	items, err := f.fetchFilings(context.Background(), types.FilingSource{
		Ticker:      "cost",
		FilingTypes: []string{"10-Q"},
	})
	if err != nil {
		t.Fatalf("fetchFilings: %v", err)
	}
	if fullTextHit {
		t.Error("full-text search must not be used when the ticker resolves")
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want only the 10-Q", len(items))
	}
	item := items[0]
	if !strings.Contains(item.Title, "10-Q") || !strings.Contains(item.Title, "COSTCO WHOLESALE CORP") {
		t.Errorf("title = %q", item.Title)
	}
	if item.PublishedDate == nil {
		t.Error("filing date not parsed")
	}
	if item.SourceKind != types.KindFiling {
		t.Errorf("source kind = %s", item.SourceKind)
	}
}

func TestFetchFilingsFallsBackToQuotedNameSearch(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		// Table loads fine but does not contain the ticker.
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/search-index", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"hits": {"hits": [
			{"_source": {"display_names": ["Costco Wholesale"], "file_date": "2026-08-01", "root_form": "8-K", "_id": "0000909832-26-000009"}}
		]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	pointEdgarAt(t, srv.URL)

	f := New("test-agent/1.0", "dossier test admin@example.com")
	items, err := f.fetchFilings(context.Background(), types.FilingSource{
		Ticker:      "COST",
		CompanyName: "Costco Wholesale",
	})
	if err != nil {
		t.Fatalf("fetchFilings: %v", err)
	}

	// The query is the quoted company name; a bare ticker would match the
	// word "cost" across every filing on record.
	if gotQuery != `"Costco Wholesale"` {
		t.Errorf("full-text query = %q, want the quoted company name", gotQuery)
	}
	if strings.EqualFold(gotQuery, "COST") {
		t.Error("full-text search must never receive the bare ticker")
	}
	if len(items) != 1 || !strings.Contains(items[0].Title, "8-K") {
		t.Errorf("items = %+v", items)
	}
}

func TestFetchFilingsUnresolvedWithoutCompanyName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	pointEdgarAt(t, srv.URL)

	f := New("test-agent/1.0", "dossier test admin@example.com")
	_, err := f.fetchFilings(context.Background(), types.FilingSource{Ticker: "ZZZZ"})
	if err == nil {
		t.Fatal("unresolvable ticker with no company name must error, not guess")
	}
}
