package trend

import (
	"fmt"
	"math"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Direction describes where a metric moved.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Delta is the movement of one metric between two snapshots. Percent is
// rounded to one decimal and forced to 0 when the earlier value is 0.
type Delta struct {
	Value     float64   `json:"value"`
	Percent   float64   `json:"percent"`
	Direction Direction `json:"direction"`
}

// MetricTrend pairs the previous-to-latest delta with the oldest-to-latest
// overall delta for one metric.
type MetricTrend struct {
	Latest  float64 `json:"latest"`
	Recent  Delta   `json:"recent"`
	Overall Delta   `json:"overall"`
}

// Analysis is the computed trend over a project's snapshot history.
type Analysis struct {
	Snapshots   int         `json:"snapshots"`
	High        MetricTrend `json:"high"`
	Medium      MetricTrend `json:"medium"`
	Low         MetricTrend `json:"low"`
	TotalIssues MetricTrend `json:"totalIssues"`
	Coverage    MetricTrend `json:"coverage"`
}

// computeDelta derives the delta from an earlier to a later value.
func computeDelta(from, to float64) Delta {
	d := Delta{Value: round1(to - from)}

	if from != 0 {
		d.Percent = round1((to - from) / from * 100)
	}

	switch {
	case to > from:
		d.Direction = DirectionUp
	case to < from:
		d.Direction = DirectionDown
	default:
		d.Direction = DirectionStable
	}
	return d
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Compute derives the trend analysis from a snapshot history ordered
// oldest-first. At least two snapshots are required.
func Compute(history []Snapshot) (*Analysis, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: trend analysis requires at least 2 snapshots, got %d",
			shared.ErrValidation, len(history))
	}

	oldest := history[0]
	previous := history[len(history)-2]
	latest := history[len(history)-1]

	metric := func(pick func(Snapshot) float64) MetricTrend {
		return MetricTrend{
			Latest:  pick(latest),
			Recent:  computeDelta(pick(previous), pick(latest)),
			Overall: computeDelta(pick(oldest), pick(latest)),
		}
	}

	return &Analysis{
		Snapshots:   len(history),
		High:        metric(func(s Snapshot) float64 { return float64(s.Summary.High) }),
		Medium:      metric(func(s Snapshot) float64 { return float64(s.Summary.Medium) }),
		Low:         metric(func(s Snapshot) float64 { return float64(s.Summary.Low) }),
		TotalIssues: metric(func(s Snapshot) float64 { return float64(s.TotalIssues) }),
		Coverage:    metric(func(s Snapshot) float64 { return s.Coverage }),
	}, nil
}
