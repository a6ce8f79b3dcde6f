package briefing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dossier/internal/types"
)

func srcAt(title string, age time.Duration) types.StoredSource {
	return types.StoredSource{Title: title, CreatedAt: time.Now().Add(-age)}
}

func TestEmergingTopics(t *testing.T) {
	now := time.Now()
	day := 24 * time.Hour
	sources := []types.StoredSource{
		// "fusion" appears twice this week and never before: emerging.
		srcAt("Fusion breakthrough announced", 2*day),
		srcAt("Private fusion milestone reached", 3*day),
		// "tariffs" appears this week but also in the prior window: not new.
		srcAt("New tariffs proposed", 1*day),
		srcAt("Retailers brace for more tariffs", 2*day),
		srcAt("Tariffs debate continues", 12*day),
		// Single mention this week: below the repeat threshold.
		srcAt("Graphene supercapacitor demo", 1*day),
	}

	got := emergingTopics(sources, now)
	assert.Contains(t, got, "fusion")
	assert.NotContains(t, got, "tariffs")
	assert.NotContains(t, got, "graphene")
}

func TestTitleWordsFiltersNoise(t *testing.T) {
	got := titleWords("The new AI says what retailers will do about pricing")
	assert.NotContains(t, got, "the")
	assert.NotContains(t, got, "new")
	assert.NotContains(t, got, "says")
	assert.NotContains(t, got, "ai", "words under four characters are dropped")
	assert.Contains(t, got, "retailers")
	assert.Contains(t, got, "pricing")
}

func TestReadingProgress(t *testing.T) {
	assert.Equal(t, "", readingProgress(nil))

	sources := []types.StoredSource{
		{Status: "completed"}, {Status: "completed"}, {Status: "processing"},
	}
	assert.Equal(t, "2 of 3 sources processed", readingProgress(sources))

	all := []types.StoredSource{{Status: "completed"}, {Status: "completed"}}
	assert.Equal(t, "library fully processed", readingProgress(all))
}

func TestErrorShaped(t *testing.T) {
	tests := []struct {
		name      string
		narrative string
		want      bool
	}{
		{"empty", "", true},
		{"short error", "Error: model unavailable", true},
		{"timeout sentinel", "Unfortunately the request timed out while generating your brief.", true},
		{"deadline sentinel", "context deadline exceeded", true},
		{"legitimate brief", strings.Repeat("Your notebooks saw steady progress this week. ", 5), false},
		{"long brief mentioning errors", strings.Repeat("x", 100) + " a source reported an error yesterday", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorShaped(tt.narrative))
		})
	}
}

func TestFallbackNarrative(t *testing.T) {
	brief := &Briefing{
		Notebooks: []NotebookStats{
			{
				NotebookID:      "costco",
				Subject:         "Costco",
				NewItems:        3,
				TopFinding:      "Membership fee increase announced",
				PendingApproval: 2,
				KeyDates:        []string{"Sep 12: Q4 earnings call"},
				EmergingTopics:  []string{"tariffs"},
				OneWeekAgo:      []string{"Q3 earnings beat"},
			},
		},
		CrossNotebookInsight: "Tariff pressure shows up in both retail notebooks.",
	}

	got := fallbackNarrative(brief)
	for _, want := range []string{
		"## Costco",
		"3 new items",
		"Membership fee increase announced",
		"2 items waiting for your review",
		"coming up: Sep 12: Q4 earnings call",
		"emerging: tariffs",
		"one week ago: Q3 earnings beat",
		"Across your notebooks",
	} {
		assert.Contains(t, got, want)
	}
}

func TestFallbackNarrativeEmpty(t *testing.T) {
	got := fallbackNarrative(&Briefing{})
	assert.Contains(t, got, "Nothing new since you last checked.")
}

func TestHasActivity(t *testing.T) {
	assert.False(t, NotebookStats{}.hasActivity())
	assert.True(t, NotebookStats{NewItems: 1}.hasActivity())
	assert.True(t, NotebookStats{PendingApproval: 1}.hasActivity())
	assert.True(t, NotebookStats{EmergingTopics: []string{"x"}}.hasActivity())
	assert.False(t, NotebookStats{RunCount: 5}.hasActivity(), "runs alone are not user-visible news")
}
