package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/types"
)

// seedArchive stores one record in each namespace constellation. Opened
// without an embedding engine, so search degrades to recency listing; the
// ACL behavior under test is identical on both paths.
func seedArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(t.TempDir(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ctx := context.Background()
	records := []types.ArchiveRecord{
		{Content: "system consolidation summary", Namespace: types.NamespaceSystem},
		{Content: "supervisor synthesis note", Namespace: types.NamespaceSupervisor},
		{Content: "alpha gatherer finding", Namespace: types.NamespaceGatherer, SourceNotebook: "alpha"},
		{Content: "beta gatherer finding", Namespace: types.NamespaceGatherer, SourceNotebook: "beta"},
	}
	for _, rec := range records {
		require.NoError(t, a.Store(ctx, rec))
	}
	return a
}

func contents(records []types.ArchiveRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Content
	}
	return out
}

func TestArchiveGathererSeesOnlyOwnNotebook(t *testing.T) {
	a := seedArchive(t)
	ctx := context.Background()

	recs, err := a.ListRecent(ctx, Reader{Agent: AgentGatherer, NotebookID: "alpha"}, 10)
	require.NoError(t, err)
	got := contents(recs)
	assert.Contains(t, got, "system consolidation summary")
	assert.Contains(t, got, "alpha gatherer finding")
	assert.NotContains(t, got, "beta gatherer finding")
	assert.NotContains(t, got, "supervisor synthesis note")
}

func TestArchiveGathererWithoutNotebookFailsClosed(t *testing.T) {
	a := seedArchive(t)
	ctx := context.Background()

	recs, err := a.ListRecent(ctx, Reader{Agent: AgentGatherer}, 10)
	require.NoError(t, err)
	assert.Empty(t, recs, "gatherer identity without a notebook grants nothing")

	hits, err := a.Search(ctx, Reader{Agent: AgentGatherer}, "finding", SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestArchiveSupervisorScopes(t *testing.T) {
	a := seedArchive(t)
	ctx := context.Background()

	recs, err := a.ListRecent(ctx, Reader{Agent: AgentSupervisor}, 10)
	require.NoError(t, err)
	got := contents(recs)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "system consolidation summary")
	assert.Contains(t, got, "supervisor synthesis note")

	cross, err := a.ListRecent(ctx, Reader{Agent: AgentSupervisor, CrossNotebook: true}, 10)
	require.NoError(t, err)
	assert.Len(t, cross, 4, "cross-notebook supervisor sees every namespace")
}

func TestArchiveSystemSeesEverything(t *testing.T) {
	a := seedArchive(t)
	n, err := a.Count(context.Background(), SystemReader)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestArchiveUnknownAgentFailsClosed(t *testing.T) {
	a := seedArchive(t)
	ctx := context.Background()

	recs, err := a.ListRecent(ctx, Reader{Agent: "intruder"}, 10)
	require.NoError(t, err, "ACL violations return empty, never an error")
	assert.Empty(t, recs)

	n, err := a.Count(ctx, Reader{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveGathererRecordRequiresNotebook(t *testing.T) {
	a, err := OpenArchive(t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer a.Close()

	err = a.Store(context.Background(), types.ArchiveRecord{
		Content:   "orphan",
		Namespace: types.NamespaceGatherer,
	})
	assert.Error(t, err)
}

func TestArchiveSearchWithoutEngineDegradesToRecency(t *testing.T) {
	a := seedArchive(t)
	hits, err := a.Search(context.Background(), SystemReader, "anything", SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2, "recency fallback still honors the limit")
}

func TestArchiveStoreDefaults(t *testing.T) {
	a, err := OpenArchive(t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.Store(ctx, types.ArchiveRecord{Content: "bare record"}))
	recs, err := a.ListRecent(ctx, SystemReader, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, types.NamespaceSystem, recs[0].Namespace)
	assert.Equal(t, types.ImportanceMedium, recs[0].Importance)
	assert.NotEmpty(t, recs[0].ID)
	assert.False(t, recs[0].CreatedAt.IsZero())
}
