package gatherer

import (
	"fmt"
	"testing"

	"dossier/internal/types"
)

func TestSelectDiverseDomainCap(t *testing.T) {
	var items []types.CollectedItem
	for i := 0; i < 12; i++ {
		items = append(items, types.CollectedItem{
			ID:                fmt.Sprintf("bulk-%d", i),
			URL:               fmt.Sprintf("https://example.com/post/%d", i),
			OverallConfidence: 0.8,
		})
	}
	others := []string{"https://one.org/a", "https://two.net/b", "https://three.io/c"}
	for i, u := range others {
		items = append(items, types.CollectedItem{
			ID:                fmt.Sprintf("other-%d", i),
			URL:               u,
			OverallConfidence: 0.8,
		})
	}

	selected := selectDiverse(items, 15)

	domains := map[string]int{}
	for _, item := range selected {
		domains[secondLevel(item.URL)]++
	}
	if domains["example.com"] > types.MaxPerDomain {
		t.Errorf("example.com placed %d items, cap is %d", domains["example.com"], types.MaxPerDomain)
	}
	for _, d := range []string{"one.org", "two.net", "three.io"} {
		if domains[d] != 1 {
			t.Errorf("domain %s should survive selection, got %d", d, domains[d])
		}
	}
}

func TestSelectDiversePrefersNovelty(t *testing.T) {
	items := []types.CollectedItem{
		{ID: "stale", URL: "https://a.com/1", KnowledgeOverlap: 0.9, OverallConfidence: 0.9},
		{ID: "novel", URL: "https://b.com/1", IsNewTopic: true, KnowledgeOverlap: 0.1, OverallConfidence: 0.6},
	}
	selected := selectDiverse(items, 1)
	if len(selected) != 1 || selected[0].ID != "novel" {
		t.Errorf("selection = %+v, want the novel item first", selected)
	}
}

func TestSelectDiverseMaxItemsClamp(t *testing.T) {
	var items []types.CollectedItem
	for i := 0; i < 30; i++ {
		items = append(items, types.CollectedItem{
			ID:                fmt.Sprintf("item-%d", i),
			URL:               fmt.Sprintf("https://site%d.com/", i),
			OverallConfidence: 0.7,
		})
	}
	if got := selectDiverse(items, 0); len(got) > types.MaxItemsPerRun {
		t.Errorf("zero max should clamp to %d, got %d", types.MaxItemsPerRun, len(got))
	}
	if got := selectDiverse(items, 100); len(got) > types.MaxItemsPerRun {
		t.Errorf("oversized max should clamp to %d, got %d", types.MaxItemsPerRun, len(got))
	}
	if got := selectDiverse(items, 5); len(got) != 5 {
		t.Errorf("explicit max 5 returned %d", len(got))
	}
}

func TestSortByConfidence(t *testing.T) {
	items := []types.CollectedItem{
		{ID: "low", OverallConfidence: 0.3},
		{ID: "high", OverallConfidence: 0.9},
		{ID: "mid", OverallConfidence: 0.6},
	}
	sortByConfidence(items)
	if items[0].ID != "high" || items[2].ID != "low" {
		t.Errorf("order = %s,%s,%s", items[0].ID, items[1].ID, items[2].ID)
	}
}
