package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash computes the dedup hash for an item: a truncated SHA-256 of
// the lowercased title plus the first 500 characters of content. Minor
// trailing differences (pagination, tracking cruft) don't defeat dedup.
func ContentHash(title, content string) string {
	if len(content) > 500 {
		content = content[:500]
	}
	sum := sha256.Sum256([]byte(strings.ToLower(title + content)))
	return hex.EncodeToString(sum[:])[:16]
}
