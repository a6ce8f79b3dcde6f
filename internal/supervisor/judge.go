package supervisor

import (
	"context"
	"fmt"
	"strings"

	"dossier/internal/llm"
	"dossier/internal/logging"
	"dossier/internal/types"
)

// Delta-summary phrases that, together with high knowledge overlap, mean the
// item adds nothing.
var noNewInfoPhrases = []string{"no new", "no significant", "already"}

// JudgeCollection passes judgment on each collected item. Judgment never
// fails: an unusable LLM reply defers to the user.
func (s *Supervisor) JudgeCollection(ctx context.Context, notebookID string, items []types.CollectedItem, intent string) []types.Judgment {
	timer := logging.StartTimer(logging.CategorySupervisor, "JudgeCollection")
	defer timer.Stop()

	max := s.deps.Config.Oversight.MaxJudgmentsPerRun
	judgments := make([]types.Judgment, 0, len(items))
	for i, item := range items {
		if max > 0 && i >= max {
			judgments = append(judgments, types.Judgment{
				ItemID:   item.ID,
				Decision: types.DecisionDeferToUser,
				Reason:   "judgment budget exhausted this run",
			})
			continue
		}
		judgments = append(judgments, s.judgeSingleItem(ctx, item, intent))
	}
	return judgments
}

// judgeSingleItem applies the fixed rules before spending an LLM call:
// confident items approve, weak items defer, known items reject.
func (s *Supervisor) judgeSingleItem(ctx context.Context, item types.CollectedItem, intent string) types.Judgment {
	if item.OverallConfidence >= types.AutoApproveThreshold {
		return types.Judgment{
			ItemID:     item.ID,
			Decision:   types.DecisionApprove,
			Reason:     fmt.Sprintf("high confidence (%.2f)", item.OverallConfidence),
			Confidence: item.OverallConfidence,
		}
	}
	if item.OverallConfidence < types.ConfidenceFloor {
		return types.Judgment{
			ItemID:     item.ID,
			Decision:   types.DecisionDeferToUser,
			Reason:     fmt.Sprintf("low confidence (%.2f), user should decide", item.OverallConfidence),
			Confidence: item.OverallConfidence,
		}
	}
	if item.KnowledgeOverlap > types.OverlapRejectThreshold && deltaSaysNothingNew(item.DeltaSummary) {
		return types.Judgment{
			ItemID:     item.ID,
			Decision:   types.DecisionReject,
			Reason:     fmt.Sprintf("no significant new information (overlap %.2f)", item.KnowledgeOverlap),
			Confidence: item.KnowledgeOverlap,
		}
	}
	return s.llmJudgment(ctx, item, intent)
}

func deltaSaysNothingNew(delta string) bool {
	if strings.TrimSpace(delta) == "" {
		return true
	}
	lower := strings.ToLower(delta)
	for _, phrase := range noNewInfoPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

const judgeSystemPrompt = `You are a research curator deciding whether a collected item belongs in a notebook.
Reply with ONLY a JSON object:
{"decision": "approve|reject|defer_to_user", "reason": "...", "confidence": 0.0, "modifications": ""}`

func (s *Supervisor) llmJudgment(ctx context.Context, item types.CollectedItem, intent string) types.Judgment {
	prompt := fmt.Sprintf("Notebook intent: %s\n\nItem title: %s\nSource: %s\nConfidence: %.2f\nPreview: %s",
		intent, item.Title, item.SourceName, item.OverallConfidence, item.Preview)

	var parsed struct {
		Decision      string  `json:"decision"`
		Reason        string  `json:"reason"`
		Confidence    float64 `json:"confidence"`
		Modifications string  `json:"modifications"`
	}
	reply, err := s.deps.LLM.CompleteWithSystem(ctx, judgeSystemPrompt, prompt)
	if err != nil || llm.ParseJSONReply(reply, &parsed) != nil {
		logging.SupervisorDebug("judgment LLM unusable for %q, deferring", item.Title)
		return types.Judgment{
			ItemID:   item.ID,
			Decision: types.DecisionDeferToUser,
			Reason:   "could not reach a judgment, deferring to you",
		}
	}

	decision := types.JudgmentDecision(strings.ToLower(strings.TrimSpace(parsed.Decision)))
	switch decision {
	case types.DecisionApprove, types.DecisionReject, types.DecisionDeferToUser:
	default:
		decision = types.DecisionDeferToUser
	}
	return types.Judgment{
		ItemID:        item.ID,
		Decision:      decision,
		Reason:        parsed.Reason,
		Confidence:    parsed.Confidence,
		Modifications: parsed.Modifications,
	}
}
