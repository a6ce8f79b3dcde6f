// Package supervisor implements the global overseer agent: it builds
// collection tasks, judges what the gatherers bring back, synthesizes across
// notebooks, and fronts the conversational surface.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dossier/internal/briefing"
	"dossier/internal/config"
	"dossier/internal/gatherer"
	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/memory"
	"dossier/internal/profile"
	"dossier/internal/signals"
	"dossier/internal/types"
)

// Deps are the Supervisor's collaborators, injected for testability.
type Deps struct {
	Config    config.SupervisorConfig
	DataDir   string
	Profiles  *profile.Store
	Memory    *memory.Store
	Registry  *gatherer.Registry
	LLM       types.LLMClient
	Learner   *signals.Learner
	Notebooks types.NotebookStore
	Briefing  *briefing.Generator
}

// Supervisor is the global overseer.
type Supervisor struct {
	deps Deps
}

// New creates a Supervisor.
func New(deps Deps) *Supervisor {
	return &Supervisor{deps: deps}
}

// GetLearnedPreferences exposes the learner's current profile for a notebook.
func (s *Supervisor) GetLearnedPreferences(ctx context.Context, notebookID string) (types.Preferences, error) {
	return s.deps.Learner.Learn(ctx, notebookID)
}

// userSignalAmplification weights manually added content above passively
// collected items.
const userSignalAmplification = 1.5

const topicExtractPrompt = `Extract 1-5 short topic phrases from the text. Reply with ONLY a JSON array of strings.`

// ScoreUserItem handles content the user added by hand: scores it, records
// amplified capture signals, and a topic_interest signal per extracted topic.
func (s *Supervisor) ScoreUserItem(ctx context.Context, notebookID, title, content string) (float64, error) {
	p, err := s.deps.Profiles.Load(notebookID)
	if err != nil {
		return 0, err
	}

	score := 0.7 // manual adds start trusted
	text := strings.ToLower(title + " " + firstChars(content, 1000))
	for _, area := range p.FocusAreas {
		if strings.Contains(text, strings.ToLower(area)) {
			score += 0.1
			break
		}
	}
	if score > 1 {
		score = 1
	}

	topics := s.extractTopics(ctx, title, content)
	if err := s.deps.Learner.Record(ctx, types.Signal{
		NotebookID: notebookID,
		SignalType: types.SignalUserCapture,
		Metadata: map[string]string{
			"topics":        strings.Join(topics, ","),
			"amplification": fmt.Sprintf("%.1f", userSignalAmplification),
		},
	}); err != nil {
		logging.Get(logging.CategorySupervisor).Warn("capture signal failed: %v", err)
	}
	for _, topic := range topics {
		if err := s.deps.Learner.Record(ctx, types.Signal{
			NotebookID: notebookID,
			SignalType: types.SignalTopicInterest,
			Query:      topic,
		}); err != nil {
			logging.Get(logging.CategorySupervisor).Warn("topic signal failed: %v", err)
		}
	}
	return score, nil
}

func (s *Supervisor) extractTopics(ctx context.Context, title, content string) []string {
	reply, err := s.deps.LLM.CompleteWithSystem(ctx, topicExtractPrompt,
		title+"\n"+firstChars(content, 800))
	if err != nil {
		return nil
	}
	var topics []string
	if llm.ParseJSONReply(reply, &topics) != nil {
		return nil
	}
	if len(topics) > 5 {
		topics = topics[:5]
	}
	return topics
}

// ConversationalReply answers a user message with memory context. LLM failure
// degrades to a graceful apology, never an error to the user.
func (s *Supervisor) ConversationalReply(ctx context.Context, message, notebookID string, history []types.Exchange) string {
	var sb strings.Builder
	sb.WriteString("Known facts:\n")
	for _, fact := range s.deps.Memory.Working.List() {
		fmt.Fprintf(&sb, "- %s: %s\n", fact.Key, fact.Value)
	}

	reader := memory.Reader{Agent: memory.AgentSupervisor}
	if hits, err := s.deps.Memory.Archive.Search(ctx, reader, message, memory.SearchOptions{Limit: 5, MinSimilarity: 0.3}); err == nil && len(hits) > 0 {
		sb.WriteString("\nRelevant memory:\n")
		for _, h := range hits {
			fmt.Fprintf(&sb, "- %s\n", firstChars(h.Record.Content, 200))
		}
	}

	sb.WriteString("\nConversation:\n")
	for _, ex := range history {
		fmt.Fprintf(&sb, "%s: %s\n", ex.Role, firstChars(ex.Content, 300))
	}
	fmt.Fprintf(&sb, "user: %s\n", message)

	reply, err := s.deps.LLM.CompleteWithSystem(ctx, "You are "+s.deps.Config.Oversight.Personality+" helping with the user's research.", sb.String())
	if err != nil || strings.TrimSpace(reply) == "" {
		logging.Get(logging.CategorySupervisor).Warn("conversational reply failed: %v", err)
		return "Sorry, I'm having trouble thinking straight right now. Give me a moment and ask again."
	}

	for _, ex := range []types.Exchange{
		{Role: "user", Content: message, NotebookID: notebookID},
		{Role: "assistant", Content: reply, NotebookID: notebookID},
	} {
		if err := s.deps.Memory.Recall.AddExchange(ctx, ex); err != nil {
			logging.Get(logging.CategorySupervisor).Warn("recording exchange: %v", err)
		}
	}
	return reply
}

// ValidatedSource is a discovered source after supervisor review.
type ValidatedSource struct {
	Source  types.DiscoveredSource `json:"source"`
	Valid   bool                   `json:"valid"`
	Reason  string                 `json:"reason,omitempty"`
}

const validateSystemPrompt = `You review candidate research sources for a notebook.
Reply with ONLY a JSON array, one element per source in order:
{"valid": true|false, "reason": "..."}`

// ValidateDiscoveredSources asks the model to sanity-check discovered sources
// against the notebook intent. On LLM failure everything passes; discovery
// confidence already gates auto-approval.
func (s *Supervisor) ValidateDiscoveredSources(ctx context.Context, notebookID, intent string, sources []types.DiscoveredSource) []ValidatedSource {
	out := make([]ValidatedSource, len(sources))
	for i, src := range sources {
		out[i] = ValidatedSource{Source: src, Valid: true}
	}
	if len(sources) == 0 {
		return out
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Notebook intent: %s\n\nCandidate sources:\n", intent)
	for i, src := range sources {
		fmt.Fprintf(&sb, "%d. [%s] %s %s — %s\n", i+1, src.Kind, src.Name, src.URL, src.Description)
	}

	reply, err := s.deps.LLM.CompleteWithSystem(ctx, validateSystemPrompt, sb.String())
	if err != nil {
		return out
	}
	var verdicts []struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}
	if llm.ParseJSONReply(reply, &verdicts) != nil {
		return out
	}
	for i := range out {
		if i < len(verdicts) {
			out[i].Valid = verdicts[i].Valid
			out[i].Reason = verdicts[i].Reason
		}
	}
	return out
}

// GenerateBriefing assembles the morning brief, attaching a pending
// cross-notebook insight when one exists.
func (s *Supervisor) GenerateBriefing(ctx context.Context, lastSeen time.Time) (*briefing.Briefing, error) {
	insight := ""
	if insights, err := s.DiscoverCrossWorkspacePatterns(ctx); err == nil && len(insights) > 0 {
		insight = insights[0].Description
	}
	return s.deps.Briefing.Generate(ctx, s.deps.DataDir, lastSeen, insight)
}

func firstChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
