package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/types"
)

func TestWorkingFactsAddReplaceRemove(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWorkingFacts(dir)
	require.NoError(t, err)

	require.NoError(t, w.Add(types.Fact{Key: "user_name", Value: "Sam", Category: types.FactUserFact}))
	require.NoError(t, w.Add(types.Fact{Key: "timezone", Value: "UTC", Category: types.FactUserFact}))
	require.NoError(t, w.Add(types.Fact{Key: "user_name", Value: "Samantha", Category: types.FactUserFact}))

	facts := w.List()
	require.Len(t, facts, 2, "replacing by key must not grow the list")
	assert.Equal(t, "user_name", facts[0].Key, "replacement keeps insertion order")
	assert.Equal(t, "Samantha", facts[0].Value)

	require.NoError(t, w.Remove("timezone"))
	require.NoError(t, w.Remove("never_existed"))
	assert.Len(t, w.List(), 1)

	// Reload from disk.
	w2, err := OpenWorkingFacts(dir)
	require.NoError(t, err)
	facts = w2.List()
	require.Len(t, facts, 1)
	assert.Equal(t, "Samantha", facts[0].Value)
}

func TestWorkingFactsBudget(t *testing.T) {
	w, err := OpenWorkingFacts(t.TempDir())
	require.NoError(t, err)

	assert.False(t, w.OverBudget())

	// Each fact is ~101 tokens; 25 of them blow past the 2000-token budget.
	big := strings.Repeat("x", 400)
	for i := 0; i < 25; i++ {
		require.NoError(t, w.Add(types.Fact{
			Key:        "note_" + string(rune('a'+i)),
			Value:      big,
			Category:   types.FactProjectContext,
			Importance: types.ImportanceLow,
		}))
	}
	assert.True(t, w.OverBudget())
}

func TestWorkingFactsCompressSpillsLowImportanceFirst(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWorkingFacts(dir)
	require.NoError(t, err)
	archive, err := OpenArchive(dir, nil, nil)
	require.NoError(t, err)
	defer archive.Close()
	ctx := context.Background()

	big := strings.Repeat("x", 400)
	require.NoError(t, w.Add(types.Fact{
		Key: "deadline", Value: "ship review by Friday",
		Category: types.FactDate, Importance: types.ImportanceCritical,
	}))
	for i := 0; i < 25; i++ {
		require.NoError(t, w.Add(types.Fact{
			Key:        "note_" + string(rune('a'+i)),
			Value:      big,
			Category:   types.FactProjectContext,
			Importance: types.ImportanceLow,
		}))
	}
	require.True(t, w.OverBudget())

	require.NoError(t, w.Compress(ctx, archive))
	assert.False(t, w.OverBudget(), "compression must bring the tier back under budget")

	keys := map[string]bool{}
	for _, f := range w.List() {
		keys[f.Key] = true
	}
	assert.True(t, keys["deadline"], "critical facts are evicted last")

	n, err := archive.Count(ctx, SystemReader)
	require.NoError(t, err)
	assert.Greater(t, n, 0, "evicted facts land in the archive")

	// Under budget, compression is a no-op.
	before := len(w.List())
	require.NoError(t, w.Compress(ctx, archive))
	assert.Len(t, w.List(), before)
}
