package finding

import (
	"fmt"
	"time"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// HistoryAction classifies an audit trail entry.
type HistoryAction string

const (
	ActionStatusChange HistoryAction = "status_change"
	ActionFieldChange  HistoryAction = "field_change"
	ActionComment      HistoryAction = "comment"
	ActionStaleMark    HistoryAction = "stale_mark"
)

// IsValid reports whether a is a known history action.
func (a HistoryAction) IsValid() bool {
	switch a {
	case ActionStatusChange, ActionFieldChange, ActionComment, ActionStaleMark:
		return true
	}
	return false
}

// History is an append-only audit trail entry for a finding. Entries are never
// mutated or deleted except by project cascade.
type History struct {
	ID          shared.ID
	FindingID   shared.ID
	Action      HistoryAction
	Field       string
	OldValue    string
	NewValue    string
	PerformedBy string
	CreatedAt   time.Time
}

// NewHistory creates an audit trail entry.
func NewHistory(findingID shared.ID, action HistoryAction, field, oldValue, newValue, performedBy string) (*History, error) {
	if findingID.IsZero() {
		return nil, fmt.Errorf("%w: finding id is required", shared.ErrValidation)
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: invalid history action %q", shared.ErrValidation, action)
	}
	return &History{
		ID:          shared.NewID(),
		FindingID:   findingID,
		Action:      action,
		Field:       field,
		OldValue:    oldValue,
		NewValue:    newValue,
		PerformedBy: performedBy,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewComment creates a comment entry.
func NewComment(findingID shared.ID, text, author string) (*History, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: comment text is required", shared.ErrValidation)
	}
	return NewHistory(findingID, ActionComment, "comment", "", text, author)
}
