package gatherer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"dossier/internal/types"
)

func costcoProfile() types.Profile {
	return types.Profile{
		NotebookID: "costco",
		Subject:    "Costco",
		FocusAreas: []string{"financials", "membership"},
	}
}

func TestAssembleKeywordsStaticFallback(t *testing.T) {
	got := assembleKeywords(costcoProfile(), types.CollectionTask{}, nil)
	want := []string{"Costco financials", "Costco membership", "Costco"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("static keyword fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembleKeywordsPriorityOrder(t *testing.T) {
	task := types.CollectionTask{
		SmartQueries:  []string{"Costco earnings guidance", "Costco supply chain"},
		SpecificQuery: "Costco membership fee increase",
	}
	got := assembleKeywords(costcoProfile(), task, nil)
	if len(got) < 3 {
		t.Fatalf("keywords = %v", got)
	}
	if got[0] != "Costco membership fee increase" {
		t.Errorf("specific query must come first, got %q", got[0])
	}
	if got[1] != "Costco earnings guidance" {
		t.Errorf("smart queries follow the specific query, got %q", got[1])
	}
}

func TestAssembleKeywordsSubjectAlwaysPresent(t *testing.T) {
	task := types.CollectionTask{SmartQueries: []string{"warehouse retail trends"}}
	got := assembleKeywords(costcoProfile(), task, nil)
	if !containsSubject(got, "Costco") {
		t.Errorf("subject missing from %v", got)
	}
}

func TestAssembleKeywordsEmptyProfile(t *testing.T) {
	p := types.Profile{NotebookID: "bare", FocusAreas: []string{"fusion energy"}}
	got := assembleKeywords(p, types.CollectionTask{}, nil)
	if len(got) == 0 {
		t.Error("a profile with focus areas but no subject must still produce keywords")
	}
}

func TestCoverageGapKeywords(t *testing.T) {
	p := types.Profile{
		NotebookID: "costco",
		Subject:    "Costco",
		FocusAreas: []string{"financials", "membership", "supply chain"},
	}
	var existing []types.StoredSource
	for i := 0; i < 5; i++ {
		existing = append(existing,
			types.StoredSource{Title: "Costco financials deep dive"},
			types.StoredSource{Title: "membership renewal trends"},
		)
	}
	// "supply chain" never appears: well under 40% of the per-area mean.
	got := coverageGapKeywords(p, existing)
	if len(got) != 1 || got[0] != "Costco supply chain" {
		t.Errorf("coverage gaps = %v, want the subject-prefixed unserved area", got)
	}

	if got := coverageGapKeywords(p, nil); got != nil {
		t.Errorf("no existing sources means no gap signal, got %v", got)
	}
}

func TestDedupStrings(t *testing.T) {
	got := dedupStrings([]string{"Costco", "costco", " COSTCO ", "membership", ""})
	if len(got) != 2 {
		t.Errorf("dedup = %v", got)
	}
}

func TestEnrichSources(t *testing.T) {
	existing := []types.StoredSource{
		{URL: "https://reuters.com/business/retail-1"},
		{URL: "https://www.reuters.com/business/retail-2"},
		{URL: "https://lonely.com/once"},
		{URL: "https://blocked.com/a"},
		{URL: "https://blocked.com/b"},
		{URL: "https://already.com/x"},
		{URL: "https://already.com/y"},
	}
	cfg := types.SourcesConfig{WebPages: []string{"https://already.com"}}

	out := enrichSources(cfg, existing, []string{"blocked.com"})

	pages := map[string]bool{}
	for _, u := range out.WebPages {
		pages[u] = true
	}
	if !pages["https://reuters.com"] {
		t.Errorf("recurring domain should be added, got %v", out.WebPages)
	}
	if pages["https://lonely.com"] {
		t.Error("single-occurrence domain must not be added")
	}
	if pages["https://blocked.com"] {
		t.Error("disabled domain must not be added")
	}
	count := 0
	for _, u := range out.WebPages {
		if secondLevel(u) == "already.com" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("configured domain duplicated: %v", out.WebPages)
	}

	if len(cfg.WebPages) != 1 {
		t.Error("enrichment must never mutate the input config")
	}
}
