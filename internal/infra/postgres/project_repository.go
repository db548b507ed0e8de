package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sonartrack/api/pkg/crypto"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/shared"
)

// ProjectRepository implements project.Repository on PostgreSQL. Credential
// secrets are encrypted before they touch a row.
type ProjectRepository struct {
	db        *DB
	encryptor crypto.Encryptor
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *DB, encryptor crypto.Encryptor) *ProjectRepository {
	return &ProjectRepository{db: db, encryptor: encryptor}
}

const projectColumns = `
	id, name, base_url, component_key, branch,
	auth_token, auth_login, auth_password,
	opt_quality_gate, opt_coverage, opt_new_code_period, opt_hotspots,
	sync_enabled, sync_schedule, last_sync_at,
	created_at, updated_at`

// Create inserts a project.
func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	token, password, err := r.sealSecrets(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID.String(), p.Name, p.BaseURL, p.ComponentKey, nullString(p.Branch),
		nullString(token), nullString(p.Credentials.Login), nullString(password),
		p.Options.QualityGate, p.Options.Coverage, p.Options.NewCodePeriod, p.Options.Hotspots,
		p.SyncEnabled, nullString(p.SyncSchedule), nullTime(p.LastSyncAt),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project with component key %q already exists", shared.ErrAlreadyExists, p.ComponentKey)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// Update rewrites all mutable project fields.
func (r *ProjectRepository) Update(ctx context.Context, p *project.Project) error {
	token, password, err := r.sealSecrets(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE projects SET
			name = $2, base_url = $3, component_key = $4, branch = $5,
			auth_token = $6, auth_login = $7, auth_password = $8,
			opt_quality_gate = $9, opt_coverage = $10, opt_new_code_period = $11, opt_hotspots = $12,
			sync_enabled = $13, sync_schedule = $14, last_sync_at = $15,
			updated_at = $16
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID.String(), p.Name, p.BaseURL, p.ComponentKey, nullString(p.Branch),
		nullString(token), nullString(p.Credentials.Login), nullString(password),
		p.Options.QualityGate, p.Options.Coverage, p.Options.NewCodePeriod, p.Options.Hotspots,
		p.SyncEnabled, nullString(p.SyncSchedule), nullTime(p.LastSyncAt),
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: project with component key %q already exists", shared.ErrAlreadyExists, p.ComponentKey)
		}
		return fmt.Errorf("failed to update project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a project. Findings, scans and sync runs go with it via
// ON DELETE CASCADE.
func (r *ProjectRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = $1", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetByID fetches one project.
func (r *ProjectRepository) GetByID(ctx context.Context, id shared.ID) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return r.scanProject(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByComponentKey fetches one project by its upstream component key.
func (r *ProjectRepository) GetByComponentKey(ctx context.Context, componentKey string) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE component_key = $1`
	return r.scanProject(r.db.QueryRowContext(ctx, query, componentKey))
}

// List returns all projects ordered by name.
func (r *ProjectRepository) List(ctx context.Context) ([]*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name`
	return r.queryProjects(ctx, query)
}

// ListSyncEnabled returns projects eligible for scheduled synchronization.
func (r *ProjectRepository) ListSyncEnabled(ctx context.Context) ([]*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE sync_enabled = true ORDER BY name`
	return r.queryProjects(ctx, query)
}

func (r *ProjectRepository) queryProjects(ctx context.Context, query string, args ...any) ([]*project.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		p, err := r.scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ProjectRepository) scanProject(row rowScanner) (*project.Project, error) {
	var p project.Project
	var idStr string
	var branch, token, login, password, schedule sql.NullString
	var lastSyncAt sql.NullTime

	err := row.Scan(
		&idStr, &p.Name, &p.BaseURL, &p.ComponentKey, &branch,
		&token, &login, &password,
		&p.Options.QualityGate, &p.Options.Coverage, &p.Options.NewCodePeriod, &p.Options.Hotspots,
		&p.SyncEnabled, &schedule, &lastSyncAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.ID, err = shared.ParseID(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project id: %w", err)
	}
	p.Branch = nullStringValue(branch)
	p.SyncSchedule = nullStringValue(schedule)
	p.LastSyncAt = nullTimeValue(lastSyncAt)

	if p.Credentials.Token, err = r.encryptor.DecryptString(nullStringValue(token)); err != nil {
		return nil, fmt.Errorf("failed to decrypt auth token: %w", err)
	}
	p.Credentials.Login = nullStringValue(login)
	if p.Credentials.Password, err = r.encryptor.DecryptString(nullStringValue(password)); err != nil {
		return nil, fmt.Errorf("failed to decrypt auth password: %w", err)
	}
	return &p, nil
}

func (r *ProjectRepository) sealSecrets(p *project.Project) (token, password string, err error) {
	if token, err = r.encryptor.EncryptString(p.Credentials.Token); err != nil {
		return "", "", fmt.Errorf("failed to encrypt auth token: %w", err)
	}
	if password, err = r.encryptor.EncryptString(p.Credentials.Password); err != nil {
		return "", "", fmt.Errorf("failed to encrypt auth password: %w", err)
	}
	return token, password, nil
}
