// Package syncrun defines the audit record written for every synchronization
// attempt, successful or not. The history of runs is monotonic: records are
// appended with a terminal outcome and never rewritten.
package syncrun

import (
	"fmt"
	"time"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Run is one execution outcome.
type Run struct {
	ID        shared.ID
	ProjectID shared.ID

	Outcome  Outcome
	Message  string
	Duration time.Duration

	IssuesFound      int
	HotspotsFound    int
	FindingsUpserted int
	StaleMarked      int
	QualityGate      string

	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time
}

// New records a terminal run outcome.
func New(projectID shared.ID, outcome Outcome, startedAt, finishedAt time.Time) (*Run, error) {
	if projectID.IsZero() {
		return nil, fmt.Errorf("%w: project id is required", shared.ErrValidation)
	}
	if outcome != OutcomeSuccess && outcome != OutcomeFailure {
		return nil, fmt.Errorf("%w: invalid outcome %q", shared.ErrValidation, outcome)
	}
	if finishedAt.Before(startedAt) {
		return nil, fmt.Errorf("%w: finished_at predates started_at", shared.ErrValidation)
	}
	return &Run{
		ID:         shared.NewID(),
		ProjectID:  projectID,
		Outcome:    outcome,
		Duration:   finishedAt.Sub(startedAt),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
