package types

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// FreshnessScore maps an item's age onto [0,1] with a piecewise curve:
// under 24h scores 1.0, under 72h 0.8, under a week 0.6, then linear decay
// to 0.3 at the profile's max age, and 0.0 beyond it.
func FreshnessScore(age time.Duration, maxAgeDays int) float64 {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	hours := age.Hours()
	switch {
	case hours < 0:
		// Future-dated content is treated as fresh.
		return 1.0
	case hours < 24:
		return 1.0
	case hours < 72:
		return 0.8
	case hours < 168:
		return 0.6
	}
	maxHours := float64(maxAgeDays) * 24
	if hours <= maxHours {
		// Linear decay from 0.6 at one week to 0.3 at max age.
		if maxHours <= 168 {
			return 0.3
		}
		frac := (hours - 168) / (maxHours - 168)
		return 0.6 - frac*0.3
	}
	return 0.0
}

var datePatterns = []*regexp.Regexp{
	// ISO: 2026-08-24
	regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
	// US long form: August 24, 2026 / Aug 24, 2026
	regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2}),?\s+(\d{4})\b`),
	// Day-first: 24 August 2026
	regexp.MustCompile(`\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{4})\b`),
}

var monthNums = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June, "jul": time.July,
	"aug": time.August, "sep": time.September, "sept": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ExtractPublishedDate scans the title plus a content prefix for a
// publication date. Used when collected_at defaulted to "now", so freshness
// can be recomputed from what the content itself claims. Returns the zero
// time when nothing parseable is found or the candidate is implausible.
func ExtractPublishedDate(title, content string) time.Time {
	const prefixLen = 600
	text := title + "\n" + content
	if len(text) > prefixLen {
		text = text[:prefixLen]
	}

	for _, pat := range datePatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var t time.Time
		switch pat {
		case datePatterns[0]:
			parsed, err := time.Parse("2006-01-02", m[0])
			if err != nil {
				continue
			}
			t = parsed
		case datePatterns[1]:
			t = buildDate(m[3], m[1], m[2])
		case datePatterns[2]:
			t = buildDate(m[3], m[2], m[1])
		}
		if plausibleDate(t) {
			return t
		}
	}
	return time.Time{}
}

// UpcomingDates returns the distinct dates mentioned in the title or content
// prefix that fall after now but within the window. Same patterns and prefix
// as ExtractPublishedDate; the callers decide what an upcoming date means.
func UpcomingDates(title, content string, now time.Time, window time.Duration) []time.Time {
	const prefixLen = 600
	text := title + "\n" + content
	if len(text) > prefixLen {
		text = text[:prefixLen]
	}

	seen := map[time.Time]bool{}
	var out []time.Time
	for _, pat := range datePatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			var t time.Time
			switch pat {
			case datePatterns[0]:
				parsed, err := time.Parse("2006-01-02", m[0])
				if err != nil {
					continue
				}
				t = parsed
			case datePatterns[1]:
				t = buildDate(m[3], m[1], m[2])
			case datePatterns[2]:
				t = buildDate(m[3], m[2], m[1])
			}
			if t.IsZero() || seen[t] {
				continue
			}
			if t.After(now) && t.Sub(now) <= window {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func buildDate(year, month, day string) time.Time {
	mon, ok := monthNums[strings.ToLower(strings.TrimSuffix(month, "."))[:3]]
	if !ok {
		return time.Time{}
	}
	y := atoiSafe(year)
	d := atoiSafe(day)
	if y == 0 || d < 1 || d > 31 {
		return time.Time{}
	}
	return time.Date(y, mon, d, 0, 0, 0, 0, time.UTC)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// plausibleDate rejects years far in the past or future; extracted strings
// like version numbers can masquerade as dates.
func plausibleDate(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	year := t.Year()
	now := time.Now().Year()
	return year >= 1995 && year <= now+1
}
