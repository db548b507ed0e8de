package app

import (
	"context"
	"strconv"
	"time"

	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/logger"
	"github.com/sonartrack/api/pkg/pagination"
)

// WorkflowUpdate carries the local triage fields a user may change. Nil
// pointers leave a field untouched.
type WorkflowUpdate struct {
	LocalStatus *finding.LocalStatus
	AssignedTo  *string
	Priority    *int
	DueDate     *time.Time
	ClearDue    bool
	PerformedBy string
}

// FindingService drives the local triage workflow. Every change writes an
// audit trail entry; upstream fields are never touched here.
type FindingService struct {
	findings finding.Repository
	history  finding.HistoryRepository
	log      *logger.Logger
}

// NewFindingService creates a finding workflow service.
func NewFindingService(findings finding.Repository, history finding.HistoryRepository, log *logger.Logger) *FindingService {
	return &FindingService{findings: findings, history: history, log: log}
}

// Get fetches one finding.
func (s *FindingService) Get(ctx context.Context, id shared.ID) (*finding.Finding, error) {
	return s.findings.GetByID(ctx, id)
}

// List returns a filtered page of a project's findings.
func (s *FindingService) List(ctx context.Context, projectID shared.ID, filter finding.Filter, page pagination.Pagination) (pagination.Result[*finding.Finding], error) {
	return s.findings.List(ctx, projectID, filter, page)
}

// SeveritySummary counts the project's active findings per normalized
// severity bucket.
func (s *FindingService) SeveritySummary(ctx context.Context, projectID shared.ID) (finding.SeverityCounts, error) {
	return s.findings.CountBySeverity(ctx, projectID)
}

// UpdateWorkflow applies local triage changes and records each one in the
// audit trail.
func (s *FindingService) UpdateWorkflow(ctx context.Context, id shared.ID, update WorkflowUpdate) (*finding.Finding, error) {
	f, err := s.findings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var entries []*finding.History
	note := func(action finding.HistoryAction, field, oldValue, newValue string) error {
		entry, err := finding.NewHistory(f.ID, action, field, oldValue, newValue, update.PerformedBy)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	}

	if update.LocalStatus != nil && *update.LocalStatus != f.LocalStatus {
		old := f.LocalStatus
		if err := f.SetLocalStatus(*update.LocalStatus); err != nil {
			return nil, err
		}
		if err := note(finding.ActionStatusChange, "local_status", string(old), string(f.LocalStatus)); err != nil {
			return nil, err
		}
	}
	if update.AssignedTo != nil && *update.AssignedTo != f.AssignedTo {
		old := f.AssignedTo
		f.Assign(*update.AssignedTo)
		if err := note(finding.ActionFieldChange, "assigned_to", old, f.AssignedTo); err != nil {
			return nil, err
		}
	}
	if update.Priority != nil && *update.Priority != f.Priority {
		old := f.Priority
		if err := f.SetPriority(*update.Priority); err != nil {
			return nil, err
		}
		if err := note(finding.ActionFieldChange, "priority", strconv.Itoa(old), strconv.Itoa(f.Priority)); err != nil {
			return nil, err
		}
	}
	if update.DueDate != nil || update.ClearDue {
		old := formatDue(f.DueDate)
		if update.ClearDue {
			f.SetDueDate(nil)
		} else {
			f.SetDueDate(update.DueDate)
		}
		if err := note(finding.ActionFieldChange, "due_date", old, formatDue(f.DueDate)); err != nil {
			return nil, err
		}
	}

	if len(entries) == 0 {
		return f, nil
	}

	if err := s.findings.Update(ctx, f); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if err := s.history.Append(ctx, entry); err != nil {
			// The finding change is already committed; a trail write failure
			// must not roll it back.
			s.log.Error("failed to append finding history", "finding_id", f.ID, "error", err)
		}
	}
	return f, nil
}

// Comment appends a comment to the finding's audit trail.
func (s *FindingService) Comment(ctx context.Context, id shared.ID, text, author string) (*finding.History, error) {
	if _, err := s.findings.GetByID(ctx, id); err != nil {
		return nil, err
	}
	entry, err := finding.NewComment(id, text, author)
	if err != nil {
		return nil, err
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// History returns the finding's audit trail oldest first.
func (s *FindingService) History(ctx context.Context, id shared.ID) ([]*finding.History, error) {
	if _, err := s.findings.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ListByFinding(ctx, id)
}

func formatDue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
