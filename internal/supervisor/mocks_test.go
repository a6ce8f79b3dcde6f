package supervisor

import (
	"context"
)

// MockLLMClient is a hand mock for the chat-completion interface. Tests set
// the func fields they care about; unset funcs return empty strings.
type MockLLMClient struct {
	CompleteFunc           func(ctx context.Context, prompt string) (string, error)
	CompleteWithSystemFunc func(ctx context.Context, system, user string) (string, error)

	// Call log for verification.
	SystemPrompts []string
	UserPrompts   []string
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.UserPrompts = append(m.UserPrompts, prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "", nil
}

func (m *MockLLMClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	m.SystemPrompts = append(m.SystemPrompts, system)
	m.UserPrompts = append(m.UserPrompts, user)
	if m.CompleteWithSystemFunc != nil {
		return m.CompleteWithSystemFunc(ctx, system, user)
	}
	return "", nil
}
