package finding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/pkg/domain/shared"
)

func newTestFinding(t *testing.T) *Finding {
	t.Helper()
	f, err := New(shared.NewID(), "AX123", TypeVulnerability, SeverityHigh)
	require.NoError(t, err)
	return f
}

func TestNew_Validation(t *testing.T) {
	t.Run("requires project id", func(t *testing.T) {
		_, err := New(shared.ID{}, "AX123", TypeVulnerability, SeverityHigh)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("requires sonar key", func(t *testing.T) {
		_, err := New(shared.NewID(), "", TypeVulnerability, SeverityHigh)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := New(shared.NewID(), "AX123", Type("worm"), SeverityHigh)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("starts open and new", func(t *testing.T) {
		f := newTestFinding(t)
		assert.Equal(t, StatusOpen, f.Status)
		assert.Equal(t, LocalStatusNew, f.LocalStatus)
		assert.Equal(t, MinPriority, f.Priority)
	})
}

func TestSetLocalStatus(t *testing.T) {
	t.Run("allows listed transitions", func(t *testing.T) {
		f := newTestFinding(t)
		require.NoError(t, f.SetLocalStatus(LocalStatusTriaged))
		require.NoError(t, f.SetLocalStatus(LocalStatusInProgress))
		require.NoError(t, f.SetLocalStatus(LocalStatusResolved))
		assert.Equal(t, LocalStatusResolved, f.LocalStatus)
	})

	t.Run("rejects illegal move", func(t *testing.T) {
		f := newTestFinding(t)
		require.NoError(t, f.SetLocalStatus(LocalStatusFalsePositive))

		err := f.SetLocalStatus(LocalStatusResolved)
		assert.ErrorIs(t, err, shared.ErrConflict)
		assert.Equal(t, LocalStatusFalsePositive, f.LocalStatus)
	})

	t.Run("false positive can be reopened via triage", func(t *testing.T) {
		f := newTestFinding(t)
		require.NoError(t, f.SetLocalStatus(LocalStatusFalsePositive))
		require.NoError(t, f.SetLocalStatus(LocalStatusTriaged))
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		f := newTestFinding(t)
		require.NoError(t, f.SetLocalStatus(LocalStatusNew))
		assert.Equal(t, LocalStatusNew, f.LocalStatus)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newTestFinding(t)
		assert.ErrorIs(t, f.SetLocalStatus(LocalStatus("wontfix")), shared.ErrValidation)
	})
}

func TestSetPriority(t *testing.T) {
	f := newTestFinding(t)

	require.NoError(t, f.SetPriority(MaxPriority))
	assert.Equal(t, MaxPriority, f.Priority)

	assert.ErrorIs(t, f.SetPriority(MaxPriority+1), shared.ErrValidation)
	assert.ErrorIs(t, f.SetPriority(-1), shared.ErrValidation)
	assert.Equal(t, MaxPriority, f.Priority)
}

func TestRefreshFromUpstream(t *testing.T) {
	t.Run("updates upstream fields only", func(t *testing.T) {
		f := newTestFinding(t)
		require.NoError(t, f.SetLocalStatus(LocalStatusTriaged))
		f.Assign("alex")

		seen := time.Now().UTC().Add(time.Hour)
		f.RefreshFromUpstream(SeverityMedium, StatusConfirmed, "still here", []string{"sql"}, seen)

		assert.Equal(t, SeverityMedium, f.Severity)
		assert.Equal(t, StatusConfirmed, f.Status)
		assert.Equal(t, seen, f.LastSeenAt)
		assert.Nil(t, f.ResolvedAt)
		// Local workflow survives the refresh.
		assert.Equal(t, LocalStatusTriaged, f.LocalStatus)
		assert.Equal(t, "alex", f.AssignedTo)
	})

	t.Run("terminal status sets resolved_at once", func(t *testing.T) {
		f := newTestFinding(t)
		first := time.Now().UTC()
		f.RefreshFromUpstream(SeverityHigh, StatusResolved, "", nil, first)
		require.NotNil(t, f.ResolvedAt)
		assert.Equal(t, first, *f.ResolvedAt)

		f.RefreshFromUpstream(SeverityHigh, StatusClosed, "", nil, first.Add(time.Hour))
		assert.Equal(t, first, *f.ResolvedAt)
	})

	t.Run("last seen never moves backwards", func(t *testing.T) {
		f := newTestFinding(t)
		was := f.LastSeenAt
		f.RefreshFromUpstream(SeverityHigh, StatusOpen, "", nil, was.Add(-time.Hour))
		assert.Equal(t, was, f.LastSeenAt)
	})
}

func TestMarkStale(t *testing.T) {
	t.Run("retires an open finding", func(t *testing.T) {
		f := newTestFinding(t)
		at := time.Now().UTC()
		f.MarkStale(at)

		assert.Equal(t, StatusClosed, f.Status)
		require.NotNil(t, f.ResolvedAt)
		assert.Equal(t, LocalStatusResolved, f.LocalStatus)
	})

	t.Run("preserves triaged local status", func(t *testing.T) {
		f := newTestFinding(t)
		require.NoError(t, f.SetLocalStatus(LocalStatusInProgress))

		f.MarkStale(time.Now().UTC())
		assert.Equal(t, StatusClosed, f.Status)
		assert.Equal(t, LocalStatusInProgress, f.LocalStatus)
	})

	t.Run("terminal findings are untouched", func(t *testing.T) {
		f := newTestFinding(t)
		resolved := time.Now().UTC()
		f.RefreshFromUpstream(SeverityHigh, StatusResolved, "", nil, resolved)

		f.MarkStale(resolved.Add(time.Hour))
		assert.Equal(t, StatusResolved, f.Status)
		assert.Equal(t, resolved, *f.ResolvedAt)
	})
}

func TestHotspotSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, HotspotSeverity("HIGH"))
	assert.Equal(t, SeverityMedium, HotspotSeverity("MEDIUM"))
	assert.Equal(t, SeverityLow, HotspotSeverity("LOW"))
	assert.Equal(t, SeverityMedium, HotspotSeverity("bogus"))
}

func TestSeverityNormalize(t *testing.T) {
	assert.Equal(t, SeverityHigh, Severity("CRITICAL").Normalize())
	assert.Equal(t, SeverityHigh, Severity("BLOCKER").Normalize())
	assert.Equal(t, SeverityMedium, Severity("MAJOR").Normalize())
	assert.Equal(t, SeverityLow, Severity("MINOR").Normalize())
	assert.Equal(t, SeverityLow, Severity("INFO").Normalize())
	assert.Equal(t, SeverityHigh, SeverityHigh.Normalize())
}
