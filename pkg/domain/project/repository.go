package project

import (
	"context"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Repository persists projects. Delete cascades to the project's findings,
// scans and sync runs.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id shared.ID) error
	GetByID(ctx context.Context, id shared.ID) (*Project, error)
	GetByComponentKey(ctx context.Context, componentKey string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	ListSyncEnabled(ctx context.Context) ([]*Project, error)
}
