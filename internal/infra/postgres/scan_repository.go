package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sonartrack/api/pkg/domain/scan"
	"github.com/sonartrack/api/pkg/domain/shared"
)

// ScanRepository implements scan.Repository on PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `
	id, project_id, high_count, medium_count, low_count, hotspot_count,
	quality_gate, coverage, new_code_period, branch, server_version, taken_at, created_at`

// Create appends a snapshot.
func (r *ScanRepository) Create(ctx context.Context, s *scan.Scan) error {
	query := `
		INSERT INTO scans (` + scanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID.String(), s.ProjectID.String(),
		s.HighCount, s.MediumCount, s.LowCount, s.HotspotCount,
		nullString(s.QualityGate), nullFloat(s.Coverage),
		nullString(s.NewCodePeriod),
		nullString(s.Branch), nullString(s.ServerVersion),
		s.TakenAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

// ListByProject returns the newest snapshots first.
func (r *ScanRepository) ListByProject(ctx context.Context, projectID shared.ID, limit int) ([]*scan.Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + scanColumns + ` FROM scans WHERE project_id = $1 ORDER BY taken_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, projectID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []*scan.Scan
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

// Latest returns the most recent snapshot, or ErrNotFound when the project
// has never completed a sync.
func (r *ScanRepository) Latest(ctx context.Context, projectID shared.ID) (*scan.Scan, error) {
	query := `SELECT ` + scanColumns + ` FROM scans WHERE project_id = $1 ORDER BY taken_at DESC LIMIT 1`
	return r.scanRow(r.db.QueryRowContext(ctx, query, projectID.String()))
}

func (r *ScanRepository) scanRow(row rowScanner) (*scan.Scan, error) {
	var s scan.Scan
	var idStr, projectIDStr string
	var qualityGate, newCodePeriod, branch, serverVersion sql.NullString
	var coverage sql.NullFloat64

	err := row.Scan(
		&idStr, &projectIDStr,
		&s.HighCount, &s.MediumCount, &s.LowCount, &s.HotspotCount,
		&qualityGate, &coverage, &newCodePeriod, &branch, &serverVersion,
		&s.TakenAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	if s.ID, err = shared.ParseID(idStr); err != nil {
		return nil, fmt.Errorf("failed to parse scan id: %w", err)
	}
	if s.ProjectID, err = shared.ParseID(projectIDStr); err != nil {
		return nil, fmt.Errorf("failed to parse project id: %w", err)
	}
	s.QualityGate = nullStringValue(qualityGate)
	s.Coverage = nullFloatValue(coverage)
	s.NewCodePeriod = nullStringValue(newCodePeriod)
	s.Branch = nullStringValue(branch)
	s.ServerVersion = nullStringValue(serverVersion)
	return &s, nil
}
