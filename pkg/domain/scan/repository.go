package scan

import (
	"context"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Repository persists scan snapshots. Snapshots are append-only.
type Repository interface {
	Create(ctx context.Context, s *Scan) error
	ListByProject(ctx context.Context, projectID shared.ID, limit int) ([]*Scan, error)
	Latest(ctx context.Context, projectID shared.ID) (*Scan, error)
}
