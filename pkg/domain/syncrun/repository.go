package syncrun

import (
	"context"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Repository persists run outcomes.
type Repository interface {
	Create(ctx context.Context, r *Run) error
	ListByProject(ctx context.Context, projectID shared.ID, limit int) ([]*Run, error)
}
