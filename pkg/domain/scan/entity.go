// Package scan defines the Scan snapshot entity: an immutable record of
// aggregate counts taken at one synchronization instant. Scans are created
// only by the sync engine at the end of a successful run and never mutated.
package scan

import (
	"fmt"
	"time"

	"github.com/sonartrack/api/pkg/domain/shared"
)

// Scan is one point-in-time aggregate snapshot for a project.
type Scan struct {
	ID        shared.ID
	ProjectID shared.ID

	HighCount    int
	MediumCount  int
	LowCount     int
	HotspotCount int

	QualityGate   string
	Coverage      *float64
	NewCodePeriod string
	Branch        string
	ServerVersion string

	TakenAt   time.Time
	CreatedAt time.Time
}

// New creates a snapshot taken at the given instant.
func New(projectID shared.ID, takenAt time.Time) (*Scan, error) {
	if projectID.IsZero() {
		return nil, fmt.Errorf("%w: project id is required", shared.ErrValidation)
	}
	if takenAt.IsZero() {
		return nil, fmt.Errorf("%w: taken_at is required", shared.ErrValidation)
	}
	return &Scan{
		ID:        shared.NewID(),
		ProjectID: projectID,
		TakenAt:   takenAt,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TotalIssues returns the sum of the per-severity buckets.
func (s *Scan) TotalIssues() int {
	return s.HighCount + s.MediumCount + s.LowCount
}
