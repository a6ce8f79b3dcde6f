package fetcher

import (
	"strings"
	"testing"
)

func TestContentHashStable(t *testing.T) {
	a := ContentHash("Costco Q3 Earnings", "Revenue grew 8% year over year.")
	b := ContentHash("Costco Q3 Earnings", "Revenue grew 8% year over year.")
	if a != b {
		t.Errorf("identical inputs hashed differently: %s vs %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
}

func TestContentHashCaseInsensitive(t *testing.T) {
	a := ContentHash("Costco Q3 Earnings", "Revenue grew.")
	b := ContentHash("COSTCO Q3 EARNINGS", "revenue grew.")
	if a != b {
		t.Error("hash should ignore case")
	}
}

func TestContentHashIgnoresTrailingContent(t *testing.T) {
	base := strings.Repeat("x", 500)
	a := ContentHash("title", base+"tracking-param-1")
	b := ContentHash("title", base+"completely different tail")
	if a != b {
		t.Error("content beyond 500 chars should not affect the hash")
	}

	c := ContentHash("title", strings.Repeat("y", 100))
	if a == c {
		t.Error("different content within the prefix must change the hash")
	}
}
