package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseJSONReply extracts a JSON object from an LLM reply and unmarshals it
// into out. Models wrap JSON in markdown fences or prose more often than
// not, so this strips fences and scans for the outermost object.
func ParseJSONReply(reply string, out interface{}) error {
	cleaned := strings.TrimSpace(reply)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	// Fall back to the outermost braces.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		// Arrays too.
		start = strings.Index(cleaned, "[")
		end = strings.LastIndex(cleaned, "]")
		if start < 0 || end <= start {
			return fmt.Errorf("no JSON found in reply")
		}
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("unparseable JSON in reply: %w", err)
	}
	return nil
}

var numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// FirstNumber returns the first numeric token in a reply, or "" when there is
// none. Used for score-only prompts where models pad the number with prose.
func FirstNumber(reply string) string {
	return numberPattern.FindString(reply)
}
