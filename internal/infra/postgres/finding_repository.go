package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/pagination"
)

// FindingRepository implements finding.Repository on PostgreSQL.
type FindingRepository struct {
	db *DB
}

// NewFindingRepository creates a new finding repository.
func NewFindingRepository(db *DB) *FindingRepository {
	return &FindingRepository{db: db}
}

const findingColumns = `
	id, project_id, sonar_key, rule_key, rule_name, severity, type, status,
	component, line, message, tags, link,
	first_seen_at, last_seen_at, resolved_at,
	local_status, assigned_to, priority, due_date,
	created_at, updated_at`

// Upsert inserts or refreshes a finding keyed by (project_id, sonar_key).
// On conflict only the upstream fields are rewritten; local workflow columns
// keep their stored values. The xmax trick distinguishes insert from update.
func (r *FindingRepository) Upsert(ctx context.Context, f *finding.Finding) (finding.UpsertResult, error) {
	query := `
		INSERT INTO findings (` + findingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (project_id, sonar_key) DO UPDATE SET
			rule_key = EXCLUDED.rule_key,
			rule_name = EXCLUDED.rule_name,
			severity = EXCLUDED.severity,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			component = EXCLUDED.component,
			line = EXCLUDED.line,
			message = EXCLUDED.message,
			tags = EXCLUDED.tags,
			link = EXCLUDED.link,
			last_seen_at = EXCLUDED.last_seen_at,
			resolved_at = EXCLUDED.resolved_at,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`
	var inserted bool
	err := r.db.QueryRowContext(ctx, query,
		f.ID.String(), f.ProjectID.String(), f.SonarKey, f.RuleKey, nullString(f.RuleName),
		string(f.Severity), string(f.Type), f.Status,
		nullString(f.Component), f.Line, f.Message, pq.Array(f.Tags), nullString(f.Link),
		f.FirstSeenAt, f.LastSeenAt, nullTime(f.ResolvedAt),
		string(f.LocalStatus), nullString(f.AssignedTo), f.Priority, nullTime(f.DueDate),
		f.CreatedAt, f.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return finding.UpsertResult{}, fmt.Errorf("failed to upsert finding: %w", err)
	}
	return finding.UpsertResult{Inserted: inserted}, nil
}

// MarkStale retires every finding of the project not seen since cutoff:
// upstream status moves to CLOSED and a still-new local status advances to
// resolved. Findings already in a terminal upstream status are left alone.
func (r *FindingRepository) MarkStale(ctx context.Context, projectID shared.ID, cutoff time.Time) (int64, error) {
	query := `
		UPDATE findings SET
			status = $3,
			resolved_at = COALESCE(resolved_at, $4),
			local_status = CASE WHEN local_status = $5 THEN $6 ELSE local_status END,
			updated_at = $4
		WHERE project_id = $1
		  AND last_seen_at < $2
		  AND status NOT IN ($7, $8, $9)
	`
	result, err := r.db.ExecContext(ctx, query,
		projectID.String(), cutoff,
		finding.StatusClosed, time.Now().UTC(),
		string(finding.LocalStatusNew), string(finding.LocalStatusResolved),
		finding.StatusResolved, finding.StatusClosed, finding.StatusReviewed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale findings: %w", err)
	}
	return result.RowsAffected()
}

// GetByID fetches one finding.
func (r *FindingRepository) GetByID(ctx context.Context, id shared.ID) (*finding.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE id = $1`
	return r.scanFinding(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByKey fetches one finding by its upstream identity.
func (r *FindingRepository) GetByKey(ctx context.Context, projectID shared.ID, sonarKey string) (*finding.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE project_id = $1 AND sonar_key = $2`
	return r.scanFinding(r.db.QueryRowContext(ctx, query, projectID.String(), sonarKey))
}

// List returns a filtered page of findings, newest first.
func (r *FindingRepository) List(ctx context.Context, projectID shared.ID, filter finding.Filter, page pagination.Pagination) (pagination.Result[*finding.Finding], error) {
	where := []string{"project_id = $1"}
	args := []any{projectID.String()}

	addIn := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("%s = ANY($%d)", column, len(args)))
	}
	addIn("severity", severityStrings(filter.Severities))
	addIn("type", typeStrings(filter.Types))
	addIn("status", filter.Statuses)
	addIn("local_status", localStatusStrings(filter.LocalStatuses))
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.RuleKey != "" {
		args = append(args, filter.RuleKey)
		where = append(where, fmt.Sprintf("rule_key = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM findings WHERE " + cond
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return pagination.Result[*finding.Finding]{}, fmt.Errorf("failed to count findings: %w", err)
	}

	args = append(args, page.Limit(), page.Offset())
	query := fmt.Sprintf(
		"SELECT %s FROM findings WHERE %s ORDER BY last_seen_at DESC, sonar_key LIMIT $%d OFFSET $%d",
		findingColumns, cond, len(args)-1, len(args),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Result[*finding.Finding]{}, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var findings []*finding.Finding
	for rows.Next() {
		f, err := r.scanFinding(rows)
		if err != nil {
			return pagination.Result[*finding.Finding]{}, err
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return pagination.Result[*finding.Finding]{}, err
	}
	return pagination.NewResult(findings, total, page), nil
}

// ListAll returns every finding of a project.
func (r *FindingRepository) ListAll(ctx context.Context, projectID shared.ID) ([]*finding.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE project_id = $1 ORDER BY last_seen_at DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var findings []*finding.Finding
	for rows.Next() {
		f, err := r.scanFinding(rows)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// CountBySeverity aggregates active findings into the normalized buckets.
func (r *FindingRepository) CountBySeverity(ctx context.Context, projectID shared.ID) (finding.SeverityCounts, error) {
	query := `
		SELECT severity, COUNT(*)
		FROM findings
		WHERE project_id = $1 AND status NOT IN ($2, $3)
		GROUP BY severity
	`
	rows, err := r.db.QueryContext(ctx, query, projectID.String(), finding.StatusClosed, finding.StatusResolved)
	if err != nil {
		return finding.SeverityCounts{}, fmt.Errorf("failed to count findings: %w", err)
	}
	defer rows.Close()

	var counts finding.SeverityCounts
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return finding.SeverityCounts{}, err
		}
		switch finding.Severity(sev).Normalize() {
		case finding.SeverityHigh:
			counts.High += n
		case finding.SeverityMedium:
			counts.Medium += n
		default:
			counts.Low += n
		}
	}
	return counts, rows.Err()
}

// Update rewrites all mutable columns of a finding, local fields included.
func (r *FindingRepository) Update(ctx context.Context, f *finding.Finding) error {
	query := `
		UPDATE findings SET
			rule_key = $2, rule_name = $3, severity = $4, type = $5, status = $6,
			component = $7, line = $8, message = $9, tags = $10, link = $11,
			first_seen_at = $12, last_seen_at = $13, resolved_at = $14,
			local_status = $15, assigned_to = $16, priority = $17, due_date = $18,
			updated_at = $19
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		f.ID.String(), f.RuleKey, nullString(f.RuleName), string(f.Severity), string(f.Type), f.Status,
		nullString(f.Component), f.Line, f.Message, pq.Array(f.Tags), nullString(f.Link),
		f.FirstSeenAt, f.LastSeenAt, nullTime(f.ResolvedAt),
		string(f.LocalStatus), nullString(f.AssignedTo), f.Priority, nullTime(f.DueDate),
		f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update finding: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *FindingRepository) scanFinding(row rowScanner) (*finding.Finding, error) {
	var f finding.Finding
	var idStr, projectIDStr, severity, typ, localStatus string
	var ruleName, component, link, assignedTo sql.NullString
	var resolvedAt, dueDate sql.NullTime
	var tags pq.StringArray

	err := row.Scan(
		&idStr, &projectIDStr, &f.SonarKey, &f.RuleKey, &ruleName, &severity, &typ, &f.Status,
		&component, &f.Line, &f.Message, &tags, &link,
		&f.FirstSeenAt, &f.LastSeenAt, &resolvedAt,
		&localStatus, &assignedTo, &f.Priority, &dueDate,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan finding: %w", err)
	}

	if f.ID, err = shared.ParseID(idStr); err != nil {
		return nil, fmt.Errorf("failed to parse finding id: %w", err)
	}
	if f.ProjectID, err = shared.ParseID(projectIDStr); err != nil {
		return nil, fmt.Errorf("failed to parse project id: %w", err)
	}
	f.RuleName = nullStringValue(ruleName)
	f.Severity = finding.Severity(severity)
	f.Type = finding.Type(typ)
	f.Component = nullStringValue(component)
	f.Tags = tags
	f.Link = nullStringValue(link)
	f.ResolvedAt = nullTimeValue(resolvedAt)
	f.LocalStatus = finding.LocalStatus(localStatus)
	f.AssignedTo = nullStringValue(assignedTo)
	f.DueDate = nullTimeValue(dueDate)
	return &f, nil
}

func severityStrings(in []finding.Severity) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func typeStrings(in []finding.Type) []string {
	out := make([]string, len(in))
	for i, t := range in {
		out[i] = string(t)
	}
	return out
}

func localStatusStrings(in []finding.LocalStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
