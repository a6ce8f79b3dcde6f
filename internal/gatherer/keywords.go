package gatherer

import (
	"strings"

	"dossier/internal/logging"
	"dossier/internal/types"
)

// coverageGapRatio marks a focus area under-served when its mention count in
// existing sources falls below this fraction of the per-area mean.
const coverageGapRatio = 0.4

// assembleKeywords builds the search keyword list for one run, in priority
// order: supervisor smart queries, coverage-gap keywords, a caller-specific
// query at the front, then the static subject x focus-areas fallback. The
// subject always appears at least once.
func assembleKeywords(p types.Profile, task types.CollectionTask, existing []types.StoredSource) []string {
	var keywords []string

	if len(task.SmartQueries) > 0 {
		keywords = append(keywords, task.SmartQueries...)
	}

	keywords = append(keywords, coverageGapKeywords(p, existing)...)

	if task.SpecificQuery != "" {
		keywords = append([]string{task.SpecificQuery}, keywords...)
	}

	if len(keywords) == 0 {
		keywords = staticKeywords(p)
	}

	if p.Subject != "" && !containsSubject(keywords, p.Subject) {
		keywords = append(keywords, p.Subject)
	}

	keywords = dedupStrings(keywords)
	logging.GathererDebug("assembled %d keywords for %s", len(keywords), p.NotebookID)
	return keywords
}

// coverageGapKeywords finds focus areas under-served by the existing source
// set: areas mentioned less than 40% of the per-area mean.
func coverageGapKeywords(p types.Profile, existing []types.StoredSource) []string {
	if len(p.FocusAreas) == 0 || len(existing) == 0 {
		return nil
	}

	counts := make(map[string]int, len(p.FocusAreas))
	total := 0
	for _, src := range existing {
		text := strings.ToLower(src.Title + " " + firstChars(src.Content, 1000))
		for _, area := range p.FocusAreas {
			if strings.Contains(text, strings.ToLower(area)) {
				counts[area]++
				total++
			}
		}
	}
	if total == 0 {
		return nil
	}
	mean := float64(total) / float64(len(p.FocusAreas))

	var out []string
	for _, area := range p.FocusAreas {
		if float64(counts[area]) < coverageGapRatio*mean {
			kw := area
			if p.Subject != "" && !strings.Contains(strings.ToLower(area), strings.ToLower(p.Subject)) {
				kw = p.Subject + " " + area
			}
			out = append(out, kw)
		}
	}
	if len(out) > 0 {
		logging.GathererDebug("coverage gaps for %s: %v", p.NotebookID, out)
	}
	return out
}

// staticKeywords is the subject x focus-areas fallback.
func staticKeywords(p types.Profile) []string {
	if p.Subject == "" {
		return append([]string(nil), p.FocusAreas...)
	}
	if len(p.FocusAreas) == 0 {
		return []string{p.Subject}
	}
	out := make([]string, 0, len(p.FocusAreas)+1)
	for _, area := range p.FocusAreas {
		out = append(out, p.Subject+" "+area)
	}
	return append(out, p.Subject)
}

func containsSubject(keywords []string, subject string) bool {
	lower := strings.ToLower(subject)
	for _, k := range keywords {
		if strings.Contains(strings.ToLower(k), lower) {
			return true
		}
	}
	return false
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	out := in[:0]
	for _, s := range in {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// enrichSources merges seed origins extracted from existing sources into a
// deep copy of the profile's source config. The profile itself is never
// mutated by a run.
func enrichSources(cfg types.SourcesConfig, existing []types.StoredSource, disabled []string) types.SourcesConfig {
	out := cfg.Clone()

	domainCount := map[string]int{}
	for _, src := range existing {
		if src.URL == "" {
			continue
		}
		domainCount[secondLevel(src.URL)]++
	}

	have := map[string]bool{}
	for _, u := range out.WebPages {
		have[secondLevel(u)] = true
	}
	for _, u := range out.Feeds {
		have[secondLevel(u)] = true
	}
	disabledSet := map[string]bool{}
	for _, d := range disabled {
		disabledSet[strings.ToLower(d)] = true
	}

	for domain, n := range domainCount {
		if n < 2 || domain == "" || have[domain] || disabledSet[domain] {
			continue
		}
		out.WebPages = append(out.WebPages, "https://"+domain)
	}
	return out
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
