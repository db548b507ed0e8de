package finding

import (
	"context"
	"time"

	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/pagination"
)

// Filter narrows finding listings.
type Filter struct {
	Severities    []Severity
	Types         []Type
	Statuses      []string
	LocalStatuses []LocalStatus
	AssignedTo    string
	RuleKey       string
}

// UpsertResult reports whether an upsert inserted a new row or updated an
// existing one.
type UpsertResult struct {
	Inserted bool
}

// SeverityCounts aggregates active findings per normalized severity.
type SeverityCounts struct {
	High   int
	Medium int
	Low    int
}

// Total returns the sum of all severity buckets.
func (c SeverityCounts) Total() int {
	return c.High + c.Medium + c.Low
}

// Repository persists findings.
type Repository interface {
	// Upsert inserts the finding or, when (project_id, sonar_key) already
	// exists, updates the mutable upstream fields and refreshes last_seen_at
	// while leaving local workflow fields untouched. Each upsert commits
	// independently.
	Upsert(ctx context.Context, f *Finding) (UpsertResult, error)

	// MarkStale closes every non-terminal finding of the project whose
	// last_seen_at predates cutoff, advancing a still-new local status to
	// resolved. Returns the number of findings retired.
	MarkStale(ctx context.Context, projectID shared.ID, cutoff time.Time) (int64, error)

	GetByID(ctx context.Context, id shared.ID) (*Finding, error)
	GetByKey(ctx context.Context, projectID shared.ID, sonarKey string) (*Finding, error)
	List(ctx context.Context, projectID shared.ID, filter Filter, page pagination.Pagination) (pagination.Result[*Finding], error)
	ListAll(ctx context.Context, projectID shared.ID) ([]*Finding, error)
	CountBySeverity(ctx context.Context, projectID shared.ID) (SeverityCounts, error)
	Update(ctx context.Context, f *Finding) error
}

// HistoryRepository persists the append-only audit trail.
type HistoryRepository interface {
	Append(ctx context.Context, entry *History) error
	ListByFinding(ctx context.Context, findingID shared.ID) ([]*History, error)
}
