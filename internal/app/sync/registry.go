// Package sync implements the synchronization engine: the per-project run
// state machine and the orchestration of collectors, reconciliation and
// audit records for one run.
package sync

import (
	"fmt"
	"sync"
	"time"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// State is the lifecycle of a project's sync.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is the observable state of one project's synchronization.
type Status struct {
	State       State      `json:"state"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// ErrAlreadyRunning rejects a second trigger while a run is in flight.
var ErrAlreadyRunning = fmt.Errorf("%w: sync already running for project", shared.ErrConflict)

// Registry tracks run state per project. At most one run per project is
// running at a time. With coalescing enabled a trigger during a run is
// absorbed instead of rejected: the caller observes the in-flight run.
type Registry struct {
	coalesce bool

	mu       sync.RWMutex
	statuses map[shared.ID]*Status
}

// NewRegistry creates a registry. coalesce selects the second-trigger
// policy: absorb when true, reject when false.
func NewRegistry(coalesce bool) *Registry {
	return &Registry{
		coalesce: coalesce,
		statuses: make(map[shared.ID]*Status),
	}
}

// Begin transitions a project to running. It returns (false, ErrAlreadyRunning)
// when a run is in flight and rejection policy applies, or (false, nil) when
// the trigger was coalesced into the in-flight run.
func (r *Registry) Begin(projectID shared.ID) (started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.statuses[projectID]; ok && s.State == StateRunning {
		if r.coalesce {
			return false, nil
		}
		return false, ErrAlreadyRunning
	}

	now := time.Now().UTC()
	r.statuses[projectID] = &Status{
		State:     StateRunning,
		StartedAt: &now,
	}
	return true, nil
}

// Step updates progress and the human-readable current step of a running
// sync. Progress is clamped to [0,100].
func (r *Registry) Step(projectID shared.ID, progress int, step string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.statuses[projectID]; ok && s.State == StateRunning {
		s.Progress = progress
		s.CurrentStep = step
	}
}

// Complete marks a running sync finished.
func (r *Registry) Complete(projectID shared.ID) {
	r.finish(projectID, StateCompleted, "")
}

// Fail marks a running sync failed with a message.
func (r *Registry) Fail(projectID shared.ID, message string) {
	r.finish(projectID, StateFailed, message)
}

func (r *Registry) finish(projectID shared.ID, state State, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.statuses[projectID]
	if !ok || s.State != StateRunning {
		return
	}
	now := time.Now().UTC()
	s.State = state
	s.Error = message
	s.FinishedAt = &now
	if state == StateCompleted {
		s.Progress = 100
		s.CurrentStep = ""
	}
}

// Status returns the project's current status. A project never synced
// reports idle.
func (r *Registry) Status(projectID shared.ID) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.statuses[projectID]; ok {
		return *s
	}
	return Status{State: StateIdle}
}
