package gatherer

import (
	"sort"

	"dossier/internal/fetcher"
	"dossier/internal/logging"
	"dossier/internal/types"
)

func secondLevel(u string) string {
	return fetcher.SecondLevelDomain(u)
}

// selectDiverse greedily picks the final per-run set by diversity score,
// capping each second-level domain at three items. The score rewards novel
// topics, low knowledge overlap, under-represented domains, and confidence.
func selectDiverse(items []types.CollectedItem, maxItems int) []types.CollectedItem {
	if maxItems <= 0 || maxItems > types.MaxItemsPerRun {
		maxItems = types.MaxItemsPerRun
	}

	domainCount := map[string]int{}
	remaining := append([]types.CollectedItem(nil), items...)
	var selected []types.CollectedItem

	for len(selected) < maxItems && len(remaining) > 0 {
		bestIdx := -1
		bestScore := -2.0
		for i, item := range remaining {
			s := diversityScore(item, domainCount[secondLevel(item.URL)])
			if s > bestScore {
				bestScore = s
				bestIdx = i
			}
		}
		best := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		domain := secondLevel(best.URL)
		if domainCount[domain] >= types.MaxPerDomain {
			continue
		}
		domainCount[domain]++
		selected = append(selected, best)
	}

	logging.GathererDebug("diversity selection kept %d of %d items across %d domains",
		len(selected), len(items), len(domainCount))
	return selected
}

// diversityScore ranks one candidate given how many items its domain has
// already placed. Hitting the per-domain cap applies a hard -1.0 penalty.
func diversityScore(item types.CollectedItem, domainSelected int) float64 {
	s := 0.3*boolScore(item.IsNewTopic) +
		0.3*(1-item.KnowledgeOverlap) +
		0.2/float64(1+domainSelected) +
		0.2*item.OverallConfidence
	if domainSelected >= types.MaxPerDomain {
		s -= 1.0
	}
	return s
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// sortByConfidence orders items descending for stable reporting.
func sortByConfidence(items []types.CollectedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OverallConfidence > items[j].OverallConfidence
	})
}
