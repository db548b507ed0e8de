package finding

import (
	"fmt"
	"time"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Finding is a unit of detected risk, uniquely identified within a project by
// (ProjectID, SonarKey). Upstream fields are refreshed on every sync; local
// workflow fields are owned here and never touched by synchronization.
type Finding struct {
	ID        shared.ID
	ProjectID shared.ID
	SonarKey  string

	// Upstream fields.
	RuleKey   string
	RuleName  string
	Severity  Severity
	Type      Type
	Status    string
	Component string
	Line      int
	Message   string
	Tags      []string
	Link      string

	FirstSeenAt time.Time
	LastSeenAt  time.Time
	ResolvedAt  *time.Time

	// Local workflow fields.
	LocalStatus LocalStatus
	AssignedTo  string
	Priority    int
	DueDate     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a Finding first seen now.
func New(projectID shared.ID, sonarKey string, typ Type, severity Severity) (*Finding, error) {
	if projectID.IsZero() {
		return nil, fmt.Errorf("%w: project id is required", shared.ErrValidation)
	}
	if sonarKey == "" {
		return nil, fmt.Errorf("%w: sonar key is required", shared.ErrValidation)
	}
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: invalid finding type %q", shared.ErrValidation, typ)
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("%w: invalid severity %q", shared.ErrValidation, severity)
	}

	now := time.Now().UTC()
	return &Finding{
		ID:          shared.NewID(),
		ProjectID:   projectID,
		SonarKey:    sonarKey,
		Type:        typ,
		Severity:    severity,
		Status:      StatusOpen,
		Tags:        []string{},
		FirstSeenAt: now,
		LastSeenAt:  now,
		LocalStatus: LocalStatusNew,
		Priority:    MinPriority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RefreshFromUpstream updates the mutable upstream fields and advances
// LastSeenAt. Local workflow fields are left untouched. A terminal upstream
// status sets ResolvedAt when it is not already set.
func (f *Finding) RefreshFromUpstream(severity Severity, status, message string, tags []string, seenAt time.Time) {
	f.Severity = severity
	f.Status = status
	f.Message = message
	if tags != nil {
		f.Tags = tags
	}
	if seenAt.After(f.LastSeenAt) {
		f.LastSeenAt = seenAt
	}
	if IsTerminalStatus(status) && f.ResolvedAt == nil {
		t := seenAt
		f.ResolvedAt = &t
	}
	f.UpdatedAt = seenAt
}

// MarkStale retires a finding that disappeared from the upstream result set.
// The upstream status becomes CLOSED and a still-new local status advances to
// resolved. Findings are retired, never deleted.
func (f *Finding) MarkStale(at time.Time) {
	if IsTerminalStatus(f.Status) {
		return
	}
	f.Status = StatusClosed
	if f.ResolvedAt == nil {
		t := at
		f.ResolvedAt = &t
	}
	if f.LocalStatus == LocalStatusNew {
		f.LocalStatus = LocalStatusResolved
	}
	f.UpdatedAt = at
}

// SetLocalStatus moves the local workflow state machine.
func (f *Finding) SetLocalStatus(next LocalStatus) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: invalid local status %q", shared.ErrValidation, next)
	}
	if next == f.LocalStatus {
		return nil
	}
	if !f.LocalStatus.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot move finding from %s to %s", shared.ErrConflict, f.LocalStatus, next)
	}
	f.LocalStatus = next
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// SetPriority sets the local priority (0..4).
func (f *Finding) SetPriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return fmt.Errorf("%w: priority must be between %d and %d", shared.ErrValidation, MinPriority, MaxPriority)
	}
	f.Priority = p
	f.UpdatedAt = time.Now().UTC()
	return nil
}

// Assign sets the local assignee. Empty clears the assignment.
func (f *Finding) Assign(user string) {
	f.AssignedTo = user
	f.UpdatedAt = time.Now().UTC()
}

// SetDueDate sets or clears the local due date.
func (f *Finding) SetDueDate(due *time.Time) {
	f.DueDate = due
	f.UpdatedAt = time.Now().UTC()
}

// Validate checks the entity invariants before persistence.
func (f *Finding) Validate() error {
	if f.LastSeenAt.Before(f.FirstSeenAt) {
		return fmt.Errorf("%w: last seen %s predates first seen %s",
			shared.ErrValidation, f.LastSeenAt.Format(time.RFC3339), f.FirstSeenAt.Format(time.RFC3339))
	}
	if IsTerminalStatus(f.Status) && f.ResolvedAt == nil {
		return fmt.Errorf("%w: terminal status %s requires resolved_at", shared.ErrValidation, f.Status)
	}
	return nil
}
