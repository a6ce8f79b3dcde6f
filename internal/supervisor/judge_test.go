package supervisor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/config"
	"dossier/internal/types"
)

func judgeSupervisor(llm *MockLLMClient) *Supervisor {
	return New(Deps{Config: config.Default(), LLM: llm})
}

func TestJudgeHighConfidenceAutoApproves(t *testing.T) {
	llm := &MockLLMClient{}
	s := judgeSupervisor(llm)

	j := s.judgeSingleItem(context.Background(), types.CollectedItem{
		ID:                "hi",
		OverallConfidence: 0.91,
	}, "track Costco")

	assert.Equal(t, types.DecisionApprove, j.Decision)
	assert.Empty(t, llm.UserPrompts, "fixed rules must not spend an LLM call")
}

func TestJudgeLowConfidenceDefers(t *testing.T) {
	llm := &MockLLMClient{}
	s := judgeSupervisor(llm)

	j := s.judgeSingleItem(context.Background(), types.CollectedItem{
		ID:                "lo",
		OverallConfidence: 0.42,
	}, "track Costco")

	assert.Equal(t, types.DecisionDeferToUser, j.Decision)
	assert.Empty(t, llm.UserPrompts)
}

func TestJudgeHighOverlapNothingNewRejects(t *testing.T) {
	llm := &MockLLMClient{}
	s := judgeSupervisor(llm)

	tests := []struct {
		name  string
		delta string
	}{
		{"empty delta", ""},
		{"explicit phrase", "No significant new information compared to the existing library."},
		{"already covered", "This restates facts already in the notebook."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := s.judgeSingleItem(context.Background(), types.CollectedItem{
				ID:                "dup",
				OverallConfidence: 0.7,
				KnowledgeOverlap:  0.88,
				DeltaSummary:      tt.delta,
			}, "track Costco")
			assert.Equal(t, types.DecisionReject, j.Decision)
		})
	}
}

func TestJudgeHighOverlapWithRealDeltaGoesToLLM(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			return `{"decision": "approve", "reason": "adds the Q3 guidance figure", "confidence": 0.75}`, nil
		},
	}
	s := judgeSupervisor(llm)

	j := s.judgeSingleItem(context.Background(), types.CollectedItem{
		ID:                "delta",
		OverallConfidence: 0.7,
		KnowledgeOverlap:  0.88,
		DeltaSummary:      "Adds the updated Q3 revenue guidance figure.",
	}, "track Costco")

	assert.Equal(t, types.DecisionApprove, j.Decision)
	assert.Equal(t, "adds the Q3 guidance figure", j.Reason)
	require.Len(t, llm.UserPrompts, 1)
}

func TestJudgeLLMFailureDefers(t *testing.T) {
	midConfidence := types.CollectedItem{ID: "mid", OverallConfidence: 0.7, KnowledgeOverlap: 0.2}

	t.Run("transport error", func(t *testing.T) {
		llm := &MockLLMClient{
			CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
				return "", errors.New("connection refused")
			},
		}
		j := judgeSupervisor(llm).judgeSingleItem(context.Background(), midConfidence, "intent")
		assert.Equal(t, types.DecisionDeferToUser, j.Decision)
	})

	t.Run("unparseable reply", func(t *testing.T) {
		llm := &MockLLMClient{
			CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
				return "I think this one is probably fine to keep.", nil
			},
		}
		j := judgeSupervisor(llm).judgeSingleItem(context.Background(), midConfidence, "intent")
		assert.Equal(t, types.DecisionDeferToUser, j.Decision)
	})

	t.Run("invalid decision string", func(t *testing.T) {
		llm := &MockLLMClient{
			CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
				return `{"decision": "maybe", "reason": "unsure"}`, nil
			},
		}
		j := judgeSupervisor(llm).judgeSingleItem(context.Background(), midConfidence, "intent")
		assert.Equal(t, types.DecisionDeferToUser, j.Decision)
	})
}

func TestJudgeCollectionBudget(t *testing.T) {
	cfg := config.Default()
	cfg.Oversight.MaxJudgmentsPerRun = 2
	s := New(Deps{Config: cfg, LLM: &MockLLMClient{}})

	var items []types.CollectedItem
	for i := 0; i < 4; i++ {
		items = append(items, types.CollectedItem{
			ID:                fmt.Sprintf("item-%d", i),
			OverallConfidence: 0.9,
		})
	}

	judgments := s.JudgeCollection(context.Background(), "costco", items, "intent")
	require.Len(t, judgments, 4)
	assert.Equal(t, types.DecisionApprove, judgments[0].Decision)
	assert.Equal(t, types.DecisionApprove, judgments[1].Decision)
	assert.Equal(t, types.DecisionDeferToUser, judgments[2].Decision, "overflow defers rather than dropping")
	assert.Equal(t, types.DecisionDeferToUser, judgments[3].Decision)
}

func TestValidateDiscoveredSourcesDefaultsValid(t *testing.T) {
	llm := &MockLLMClient{
		CompleteWithSystemFunc: func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("model offline")
		},
	}
	s := judgeSupervisor(llm)

	sources := []types.DiscoveredSource{
		{Kind: types.KindFeed, Name: "Retail Watch", URL: "https://retailwatch.example.com/rss"},
		{Kind: types.KindNewsKeyword, Name: "news: Costco", Keyword: "Costco"},
	}
	validated := s.ValidateDiscoveredSources(context.Background(), "costco", "track Costco", sources)
	require.Len(t, validated, 2)
	for _, v := range validated {
		assert.True(t, v.Valid, "validation failure must not discard sources")
	}
}
