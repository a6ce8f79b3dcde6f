package types

import (
	"math"
	"testing"
	"time"
)

func TestFreshnessScorePiecewise(t *testing.T) {
	tests := []struct {
		name       string
		age        time.Duration
		maxAgeDays int
		want       float64
	}{
		{"two hours old", 2 * time.Hour, 30, 1.0},
		{"just under a day", 23 * time.Hour, 30, 1.0},
		{"two days old", 48 * time.Hour, 30, 0.8},
		{"five days old", 5 * 24 * time.Hour, 30, 0.6},
		{"exactly one week", 168 * time.Hour, 30, 0.6},
		{"at max age", 30 * 24 * time.Hour, 30, 0.3},
		{"past max age", 31 * 24 * time.Hour, 30, 0.0},
		{"future dated", -3 * time.Hour, 30, 1.0},
		{"zero max age falls back to 30 days", 48 * time.Hour, 0, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FreshnessScore(tt.age, tt.maxAgeDays)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("FreshnessScore(%v, %d) = %v, want %v", tt.age, tt.maxAgeDays, got, tt.want)
			}
		})
	}
}

func TestFreshnessScoreLinearDecay(t *testing.T) {
	// Midpoint between one week (168h) and a 30-day max (720h) is 444h;
	// decay is linear from 0.6 to 0.3, so the midpoint scores 0.45.
	got := FreshnessScore(444*time.Hour, 30)
	if math.Abs(got-0.45) > 1e-9 {
		t.Errorf("midpoint decay = %v, want 0.45", got)
	}

	// Monotonic within the decay window.
	prev := FreshnessScore(169*time.Hour, 30)
	for h := 200; h <= 720; h += 50 {
		cur := FreshnessScore(time.Duration(h)*time.Hour, 30)
		if cur > prev {
			t.Fatalf("freshness increased with age at %dh: %v > %v", h, cur, prev)
		}
		prev = cur
	}
}

func TestFreshnessScoreShortMaxAge(t *testing.T) {
	// A max age inside the one-week plateau collapses the decay window.
	if got := FreshnessScore(6*24*time.Hour, 7); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("six days with 7-day max = %v, want 0.3", got)
	}
	if got := FreshnessScore(8*24*time.Hour, 7); got != 0.0 {
		t.Errorf("eight days with 7-day max = %v, want 0.0", got)
	}
}

func TestExtractPublishedDate(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		want    time.Time
	}{
		{
			"iso date in title",
			"Quarterly results 2026-08-20",
			"",
			time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			"us long form in content",
			"Earnings call",
			"Published August 19, 2026 by the newsroom.",
			time.Date(2026, time.August, 19, 0, 0, 0, 0, time.UTC),
		},
		{
			"abbreviated month",
			"Weekly recap",
			"Posted on Aug 3, 2026.",
			time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			"day-first form",
			"Conference notes",
			"Updated 15 March 2026 after the keynote.",
			time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			"no date at all",
			"Release notes",
			"Improved performance and fixed several bugs.",
			time.Time{},
		},
		{
			"implausible year rejected",
			"Historical archive 1850-01-13",
			"",
			time.Time{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractPublishedDate(tt.title, tt.content)
			if !got.Equal(tt.want) {
				t.Errorf("ExtractPublishedDate(%q, %q) = %v, want %v", tt.title, tt.content, got, tt.want)
			}
		})
	}
}

func TestUpcomingDates(t *testing.T) {
	now := time.Now()
	soon := now.Add(3 * 24 * time.Hour)
	far := now.Add(20 * 24 * time.Hour)
	past := now.Add(-2 * 24 * time.Hour)

	content := "The call is set for " + soon.Format("2006-01-02") +
		". Results published " + past.Format("January 2, 2006") +
		". Annual meeting on " + far.Format("2006-01-02") + "."

	got := UpcomingDates("Earnings schedule", content, now, 7*24*time.Hour)
	if len(got) != 1 {
		t.Fatalf("UpcomingDates returned %d dates, want 1: %v", len(got), got)
	}
	if want := soon.Format("2006-01-02"); got[0].Format("2006-01-02") != want {
		t.Errorf("UpcomingDates = %s, want %s", got[0].Format("2006-01-02"), want)
	}

	if got := UpcomingDates("No dates here", "plain prose without a schedule", now, 7*24*time.Hour); len(got) != 0 {
		t.Errorf("expected no dates, got %v", got)
	}
}

func TestExtractPublishedDateScansPrefixOnly(t *testing.T) {
	// A date buried past the 600-char prefix is never seen.
	filler := make([]byte, 700)
	for i := range filler {
		filler[i] = 'a'
	}
	got := ExtractPublishedDate("No date here", string(filler)+" 2026-01-05")
	if !got.IsZero() {
		t.Errorf("date past scan prefix should be ignored, got %v", got)
	}
}
