package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/pkg/domain/shared"
)

func snapAt(day int, high, medium, low int, coverage float64) Snapshot {
	at := time.Date(2026, 8, day, 12, 0, 0, 0, time.UTC)
	return NewSnapshot(at, SeveritySummary{High: high, Medium: medium, Low: low},
		coverage, "OK", "main", ComplianceSummary{})
}

func TestCompute(t *testing.T) {
	t.Run("requires two snapshots", func(t *testing.T) {
		_, err := Compute(nil)
		assert.ErrorIs(t, err, shared.ErrValidation)

		_, err = Compute([]Snapshot{snapAt(1, 1, 1, 1, 50)})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("recent delta compares the last two snapshots", func(t *testing.T) {
		history := []Snapshot{
			snapAt(1, 10, 5, 2, 40),
			snapAt(2, 8, 5, 2, 45),
			snapAt(3, 12, 5, 2, 50),
		}
		a, err := Compute(history)
		require.NoError(t, err)

		assert.Equal(t, 3, a.Snapshots)
		assert.Equal(t, float64(12), a.High.Latest)
		assert.Equal(t, float64(4), a.High.Recent.Value)
		assert.Equal(t, DirectionUp, a.High.Recent.Direction)
		assert.InDelta(t, 50.0, a.High.Recent.Percent, 0.01)
	})

	t.Run("overall delta compares oldest and latest", func(t *testing.T) {
		history := []Snapshot{
			snapAt(1, 10, 0, 0, 40),
			snapAt(2, 6, 0, 0, 42),
			snapAt(3, 5, 0, 0, 44),
		}
		a, err := Compute(history)
		require.NoError(t, err)

		assert.Equal(t, float64(-5), a.High.Overall.Value)
		assert.Equal(t, DirectionDown, a.High.Overall.Direction)
		assert.InDelta(t, -50.0, a.High.Overall.Percent, 0.01)
		assert.Equal(t, DirectionUp, a.Coverage.Overall.Direction)
	})

	t.Run("zero baseline yields zero percent", func(t *testing.T) {
		history := []Snapshot{
			snapAt(1, 0, 0, 0, 0),
			snapAt(2, 7, 0, 0, 0),
		}
		a, err := Compute(history)
		require.NoError(t, err)

		assert.Equal(t, float64(7), a.High.Recent.Value)
		assert.Zero(t, a.High.Recent.Percent)
		assert.Equal(t, DirectionUp, a.High.Recent.Direction)
	})

	t.Run("unchanged metric is stable", func(t *testing.T) {
		history := []Snapshot{
			snapAt(1, 4, 4, 4, 80),
			snapAt(2, 4, 4, 4, 80),
		}
		a, err := Compute(history)
		require.NoError(t, err)
		assert.Equal(t, DirectionStable, a.TotalIssues.Recent.Direction)
		assert.Equal(t, DirectionStable, a.Coverage.Recent.Direction)
	})
}

func TestNewSnapshot(t *testing.T) {
	at := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	s := NewSnapshot(at, SeveritySummary{High: 2, Medium: 3, Low: 4}, 71.5, "ERROR", "main",
		ComplianceSummary{OwaspCount: 1})

	assert.Equal(t, at.UnixMilli(), s.Timestamp)
	assert.Equal(t, "2026-08-30", s.Date)
	assert.Equal(t, 9, s.TotalIssues)
	assert.Equal(t, "ERROR", s.QualityGateStatus)
	assert.Equal(t, 1, s.Compliance.OwaspCount)
}
