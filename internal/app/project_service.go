// Package app hosts the application services that sit between the HTTP
// layer and the domain: project management and the finding triage workflow.
package app

import (
	"context"
	"time"

	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/logger"
)

// TrendHistory is the part of the trend store project deletion touches.
type TrendHistory interface {
	Delete(projectKey string) error
}

// ProjectInput carries the mutable attributes of a project.
type ProjectInput struct {
	Name         string
	BaseURL      string
	ComponentKey string
	Branch       string
	Credentials  project.Credentials
	Options      *project.Options
	SyncEnabled  *bool
	SyncSchedule *string
}

// ProjectService manages tracked projects.
type ProjectService struct {
	projects project.Repository
	trends   TrendHistory
	log      *logger.Logger
}

// NewProjectService creates a project service. trends may be nil.
func NewProjectService(projects project.Repository, trends TrendHistory, log *logger.Logger) *ProjectService {
	return &ProjectService{projects: projects, trends: trends, log: log}
}

// Create registers a new tracked project.
func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*project.Project, error) {
	p, err := project.New(in.Name, in.BaseURL, in.ComponentKey)
	if err != nil {
		return nil, err
	}
	p.Branch = in.Branch
	p.SetCredentials(in.Credentials)
	if in.Options != nil {
		p.Options = *in.Options
	}
	if in.SyncEnabled != nil {
		p.SyncEnabled = *in.SyncEnabled
	}
	if in.SyncSchedule != nil {
		if err := p.SetSchedule(*in.SyncSchedule); err != nil {
			return nil, err
		}
	}

	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("project created", "project_id", p.ID, "component_key", p.ComponentKey)
	return p, nil
}

// Update applies the non-zero fields of in to an existing project.
func (s *ProjectService) Update(ctx context.Context, id shared.ID, in ProjectInput) (*project.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != "" {
		p.Name = in.Name
	}
	if in.BaseURL != "" {
		p.BaseURL = in.BaseURL
	}
	if in.ComponentKey != "" {
		p.ComponentKey = in.ComponentKey
	}
	if in.Branch != "" {
		p.Branch = in.Branch
	}
	if !in.Credentials.IsZero() {
		p.SetCredentials(in.Credentials)
	}
	if in.Options != nil {
		p.Options = *in.Options
	}
	if in.SyncEnabled != nil {
		p.SyncEnabled = *in.SyncEnabled
	}
	if in.SyncSchedule != nil {
		if err := p.SetSchedule(*in.SyncSchedule); err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a project, its findings, scans and runs (repository
// cascade) and its trend history file.
func (s *ProjectService) Delete(ctx context.Context, id shared.ID) error {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return err
	}
	if s.trends != nil {
		if err := s.trends.Delete(p.ComponentKey); err != nil {
			s.log.Warn("failed to delete trend history", "project_id", id, "error", err)
		}
	}
	s.log.Info("project deleted", "project_id", id, "component_key", p.ComponentKey)
	return nil
}

// Get fetches one project.
func (s *ProjectService) Get(ctx context.Context, id shared.ID) (*project.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// List returns all tracked projects.
func (s *ProjectService) List(ctx context.Context) ([]*project.Project, error) {
	return s.projects.List(ctx)
}
