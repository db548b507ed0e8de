package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/domain/shared"
)

// FindingHistoryRepository implements finding.HistoryRepository on
// PostgreSQL. The table is append-only.
type FindingHistoryRepository struct {
	db *DB
}

// NewFindingHistoryRepository creates a new history repository.
func NewFindingHistoryRepository(db *DB) *FindingHistoryRepository {
	return &FindingHistoryRepository{db: db}
}

// Append writes one audit trail entry.
func (r *FindingHistoryRepository) Append(ctx context.Context, entry *finding.History) error {
	query := `
		INSERT INTO finding_history (id, finding_id, action, field, old_value, new_value, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID.String(), entry.FindingID.String(), string(entry.Action),
		nullString(entry.Field), nullString(entry.OldValue), nullString(entry.NewValue),
		nullString(entry.PerformedBy), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append finding history: %w", err)
	}
	return nil
}

// ListByFinding returns the trail oldest first.
func (r *FindingHistoryRepository) ListByFinding(ctx context.Context, findingID shared.ID) ([]*finding.History, error) {
	query := `
		SELECT id, finding_id, action, field, old_value, new_value, performed_by, created_at
		FROM finding_history
		WHERE finding_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, findingID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list finding history: %w", err)
	}
	defer rows.Close()

	var entries []*finding.History
	for rows.Next() {
		var entry finding.History
		var idStr, findingIDStr, action string
		var field, oldValue, newValue, performedBy sql.NullString

		if err := rows.Scan(&idStr, &findingIDStr, &action, &field, &oldValue, &newValue, &performedBy, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding history: %w", err)
		}
		if entry.ID, err = shared.ParseID(idStr); err != nil {
			return nil, fmt.Errorf("failed to parse history id: %w", err)
		}
		if entry.FindingID, err = shared.ParseID(findingIDStr); err != nil {
			return nil, fmt.Errorf("failed to parse finding id: %w", err)
		}
		entry.Action = finding.HistoryAction(action)
		entry.Field = nullStringValue(field)
		entry.OldValue = nullStringValue(oldValue)
		entry.NewValue = nullStringValue(newValue)
		entry.PerformedBy = nullStringValue(performedBy)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
