package trend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/pkg/domain/trend"
	"github.com/sonartrack/api/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	return store
}

func snapshotWithTotal(t *testing.T, total int) trend.Snapshot {
	t.Helper()
	return trend.Snapshot{
		Timestamp:   time.Now().UnixMilli(),
		Date:        "2026-08-31",
		Summary:     trend.SeveritySummary{High: total},
		TotalIssues: total,
	}
}

func TestStore_AppendAndHistory(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("my-app", snapshotWithTotal(t, 10)))
	require.NoError(t, store.Append("my-app", snapshotWithTotal(t, 8)))

	history, err := store.History("my-app")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 10, history[0].TotalIssues, "history stays oldest-first")
	assert.Equal(t, 8, history[1].TotalIssues)
}

func TestStore_EmptyHistory(t *testing.T) {
	store := newTestStore(t)

	history, err := store.History("never-synced")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_Bound(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < trend.MaxSnapshots+7; i++ {
		require.NoError(t, store.Append("my-app", snapshotWithTotal(t, i)))
	}

	history, err := store.History("my-app")
	require.NoError(t, err)
	require.Len(t, history, trend.MaxSnapshots)
	assert.Equal(t, 7, history[0].TotalIssues, "oldest entries evicted first")
	assert.Equal(t, trend.MaxSnapshots+6, history[len(history)-1].TotalIssues)
}

func TestStore_SanitizesProjectKey(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.Append("com.example:my/app", snapshotWithTotal(t, 1)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "com.example_my_app.json", entries[0].Name())
}

func TestStore_CorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "my-app.json"), []byte("{not json"), 0o644))

	history, err := store.History("my-app")
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, store.Append("my-app", snapshotWithTotal(t, 3)))
	history, err = store.History("my-app")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("my-app", snapshotWithTotal(t, 1)))
	require.NoError(t, store.Delete("my-app"))
	require.NoError(t, store.Delete("my-app"), "deleting absent history is not an error")

	history, err := store.History("my-app")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_FileShape(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, logger.NewNop())
	require.NoError(t, err)

	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	snap := trend.NewSnapshot(at,
		trend.SeveritySummary{High: 2, Medium: 3, Low: 1},
		81.5, "OK", "main",
		trend.ComplianceSummary{OwaspCount: 4, CweCount: 2, SansCount: 1},
	)
	require.NoError(t, store.Append("my-app", snap))

	data, err := os.ReadFile(filepath.Join(dir, "my-app.json"))
	require.NoError(t, err)

	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	for _, field := range []string{"timestamp", "date", "summary", "coverage", "qualityGateStatus", "totalIssues", "branch", "compliance"} {
		assert.Contains(t, raw[0], field)
	}
}

func TestTrendDeltaMath(t *testing.T) {
	history := []trend.Snapshot{
		{TotalIssues: 10},
		{TotalIssues: 8},
		{TotalIssues: 5},
	}

	analysis, err := trend.Compute(history)
	require.NoError(t, err)

	assert.Equal(t, trend.Delta{Value: -3, Percent: -37.5, Direction: trend.DirectionDown}, analysis.TotalIssues.Recent)
	assert.Equal(t, trend.Delta{Value: -5, Percent: -50.0, Direction: trend.DirectionDown}, analysis.TotalIssues.Overall)
}

func TestTrendZeroBaseline(t *testing.T) {
	history := []trend.Snapshot{
		{TotalIssues: 0},
		{TotalIssues: 4},
	}

	analysis, err := trend.Compute(history)
	require.NoError(t, err)

	assert.Equal(t, float64(0), analysis.TotalIssues.Recent.Percent, "zero baseline forces percent to 0")
	assert.Equal(t, trend.DirectionUp, analysis.TotalIssues.Recent.Direction)
}

func TestTrendRequiresTwoSnapshots(t *testing.T) {
	_, err := trend.Compute([]trend.Snapshot{{TotalIssues: 1}})
	assert.Error(t, err)
}
