package discovery

import (
	"context"
	"sync"

	"dossier/internal/types"
)

type MockLLMClient struct {
	CompleteFunc           func(ctx context.Context, prompt string) (string, error)
	CompleteWithSystemFunc func(ctx context.Context, system, user string) (string, error)
}

func (m *MockLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "", nil
}

func (m *MockLLMClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if m.CompleteWithSystemFunc != nil {
		return m.CompleteWithSystemFunc(ctx, system, user)
	}
	return "", nil
}

// MockSearcher records queries under a mutex; discovery searches run in
// parallel goroutines.
type MockSearcher struct {
	SearchFunc func(ctx context.Context, query string, maxResults int, freshness string) ([]types.SearchResult, error)

	mu      sync.Mutex
	Queries []string
}

func (m *MockSearcher) Search(ctx context.Context, query string, maxResults int, freshness string) ([]types.SearchResult, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, maxResults, freshness)
	}
	return nil, nil
}

func (m *MockSearcher) RecordedQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Queries...)
}
