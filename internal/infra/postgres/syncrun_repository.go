package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/domain/syncrun"
)

// SyncRunRepository implements syncrun.Repository on PostgreSQL.
type SyncRunRepository struct {
	db *DB
}

// NewSyncRunRepository creates a new sync run repository.
func NewSyncRunRepository(db *DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

const syncRunColumns = `
	id, project_id, outcome, message, duration_ms,
	issues_found, hotspots_found, findings_upserted, stale_marked, quality_gate,
	started_at, finished_at, created_at`

// Create appends a run record.
func (r *SyncRunRepository) Create(ctx context.Context, run *syncrun.Run) error {
	query := `
		INSERT INTO sync_runs (` + syncRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID.String(), run.ProjectID.String(),
		string(run.Outcome), nullString(run.Message), run.Duration.Milliseconds(),
		run.IssuesFound, run.HotspotsFound, run.FindingsUpserted, run.StaleMarked,
		nullString(run.QualityGate),
		run.StartedAt, run.FinishedAt, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// ListByProject returns the newest runs first.
func (r *SyncRunRepository) ListByProject(ctx context.Context, projectID shared.ID, limit int) ([]*syncrun.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE project_id = $1 ORDER BY started_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, projectID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*syncrun.Run
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SyncRunRepository) scanRun(row rowScanner) (*syncrun.Run, error) {
	var run syncrun.Run
	var idStr, projectIDStr, outcome string
	var message, qualityGate sql.NullString
	var durationMs int64

	err := row.Scan(
		&idStr, &projectIDStr, &outcome, &message, &durationMs,
		&run.IssuesFound, &run.HotspotsFound, &run.FindingsUpserted, &run.StaleMarked,
		&qualityGate,
		&run.StartedAt, &run.FinishedAt, &run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	if run.ID, err = shared.ParseID(idStr); err != nil {
		return nil, fmt.Errorf("failed to parse sync run id: %w", err)
	}
	if run.ProjectID, err = shared.ParseID(projectIDStr); err != nil {
		return nil, fmt.Errorf("failed to parse project id: %w", err)
	}
	run.Outcome = syncrun.Outcome(outcome)
	run.Message = nullStringValue(message)
	run.QualityGate = nullStringValue(qualityGate)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return &run, nil
}
