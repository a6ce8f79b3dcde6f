// Package signals derives per-notebook preference profiles from the
// append-only user-signal log. Learning is replayable: preferences are a pure
// function of the log, never stored state.
package signals

import (
	"context"
	"sort"
	"strings"
	"time"

	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/types"
)

// LearningWindow bounds how far back signals influence preferences.
const LearningWindow = 90 * 24 * time.Hour

// Signal weights by type. Highlights are the strongest interest evidence.
const (
	weightHighlightTopic  = 3
	weightHighlightEntity = 2
	weightCapture         = 2
	weightTopicInterest   = 1
)

// Learner aggregates signals into preferences.
type Learner struct {
	recall *memory.Recall
}

// NewLearner creates a learner over the recall store's signal log.
func NewLearner(recall *memory.Recall) *Learner {
	return &Learner{recall: recall}
}

// Record appends one signal. Timestamps are stamped at append when absent.
func (l *Learner) Record(ctx context.Context, sig types.Signal) error {
	if err := l.recall.AppendSignal(ctx, sig); err != nil {
		return err
	}
	logging.SignalsDebug("recorded %s signal for notebook %s", sig.SignalType, sig.NotebookID)
	return nil
}

// Learn replays the last 90 days of a notebook's signals into a preference
// profile. Topics and sources keep their top ten by weighted count.
func (l *Learner) Learn(ctx context.Context, notebookID string) (types.Preferences, error) {
	timer := logging.StartTimer(logging.CategorySignals, "Learn")
	defer timer.Stop()

	sigs, err := l.recall.ListSignals(ctx, notebookID, time.Now().Add(-LearningWindow))
	if err != nil {
		return types.Preferences{}, err
	}

	topicWeight := map[string]int{}
	sourceWeight := map[string]int{}
	rejectedWeight := map[string]int{}
	var approved, rejected, captures, highlights int

	for _, sig := range sigs {
		switch sig.SignalType {
		case types.SignalContentHighlighted:
			highlights++
			addWeighted(topicWeight, splitList(sig.Metadata["topics"]), weightHighlightTopic)
			addWeighted(topicWeight, splitList(sig.Metadata["entities"]), weightHighlightEntity)
		case types.SignalUserCapture:
			captures++
			addWeighted(topicWeight, splitList(sig.Metadata["topics"]), weightCapture)
		case types.SignalTopicInterest:
			addWeighted(topicWeight, splitList(sig.Metadata["topics"]), weightTopicInterest)
			if sig.Query != "" {
				topicWeight[normalize(sig.Query)] += weightTopicInterest
			}
		case types.SignalItemApproved:
			approved++
			if src := sig.Metadata["source_name"]; src != "" {
				sourceWeight[src]++
			}
			addWeighted(topicWeight, splitList(sig.Metadata["topics"]), 1)
		case types.SignalItemRejected:
			rejected++
			if pattern := sig.Metadata["pattern"]; pattern != "" {
				rejectedWeight[normalize(pattern)]++
			} else if topic := sig.Metadata["topic"]; topic != "" {
				rejectedWeight[normalize(topic)]++
			}
		case types.SignalSourceApproved:
			if src := sig.Metadata["source_name"]; src != "" {
				sourceWeight[src] += 2
			}
		case types.SignalSourceRejected:
			if src := sig.Metadata["source_name"]; src != "" {
				rejectedWeight[normalize(src)]++
				delete(sourceWeight, src)
			}
		}
	}

	prefs := types.Preferences{
		PreferredTopics:  topN(topicWeight, 10),
		PreferredSources: topN(sourceWeight, 10),
		RejectedPatterns: topN(rejectedWeight, 10),
		CaptureCount:     captures,
		HighlightCount:   highlights,
	}
	if approved+rejected > 0 {
		prefs.ApprovalRate = float64(approved) / float64(approved+rejected)
	}

	logging.Signals("learned preferences for %s: %d topics, %d sources, %d rejected patterns, approval rate %.2f",
		notebookID, len(prefs.PreferredTopics), len(prefs.PreferredSources), len(prefs.RejectedPatterns), prefs.ApprovalRate)
	return prefs, nil
}

// ScoreAdjustment returns the learned confidence bonus for an item: +0.1 for
// a preferred-topic match, +0.1 for a preferred source, -0.2 for a rejected
// pattern matching the text, URL, or source name. The caller clamps the
// final confidence.
func ScoreAdjustment(prefs types.Preferences, title, content, url, sourceName string) (float64, []string) {
	var adj float64
	var reasons []string
	text := normalize(title + " " + firstChars(content, 500))
	// URL slugs hyphenate; fold separators so "celebrity-gossip" matches the
	// pattern "celebrity gossip".
	loweredURL := strings.NewReplacer("-", " ", "_", " ").Replace(normalize(url))

	for _, topic := range prefs.PreferredTopics {
		if topic != "" && strings.Contains(text, topic) {
			adj += 0.1
			reasons = append(reasons, "matches learned topic interest: "+topic)
			break
		}
	}
	for _, src := range prefs.PreferredSources {
		if src != "" && strings.EqualFold(src, sourceName) {
			adj += 0.1
			reasons = append(reasons, "from a source you approve often")
			break
		}
	}
	for _, pattern := range prefs.RejectedPatterns {
		if pattern != "" && (strings.Contains(text, pattern) ||
			(loweredURL != "" && strings.Contains(loweredURL, pattern)) ||
			strings.EqualFold(pattern, sourceName)) {
			adj -= 0.2
			reasons = append(reasons, "resembles previously rejected content: "+pattern)
			break
		}
	}
	return adj, reasons
}

func addWeighted(m map[string]int, keys []string, weight int) {
	for _, k := range keys {
		k = normalize(k)
		if k != "" {
			m[k] += weight
		}
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// topN returns the n highest-weighted keys, ties broken alphabetically so
// output is stable across runs.
func topN(m map[string]int, n int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
