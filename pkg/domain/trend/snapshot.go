// Package trend defines the immutable point-in-time snapshot appended to a
// project's bounded history, and the delta analysis computed from it.
package trend

import "time"

// MaxSnapshots bounds each project's history; oldest entries are evicted
// first.
const MaxSnapshots = 100

// SeveritySummary carries the normalized severity counts of one snapshot.
type SeveritySummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Total returns the summed issue count.
func (s SeveritySummary) Total() int {
	return s.High + s.Medium + s.Low
}

// ComplianceSummary carries the taxonomy match counts of one snapshot.
type ComplianceSummary struct {
	OwaspCount int `json:"owaspCount"`
	CweCount   int `json:"cweCount"`
	SansCount  int `json:"sansCount"`
}

// Snapshot is one denormalized point-in-time record. Snapshots are appended
// newest-last and never mutated.
type Snapshot struct {
	Timestamp         int64             `json:"timestamp"`
	Date              string            `json:"date"`
	Summary           SeveritySummary   `json:"summary"`
	Coverage          float64           `json:"coverage"`
	QualityGateStatus string            `json:"qualityGateStatus"`
	TotalIssues       int               `json:"totalIssues"`
	Branch            string            `json:"branch"`
	Compliance        ComplianceSummary `json:"compliance"`
}

// NewSnapshot stamps a snapshot with the given instant.
func NewSnapshot(at time.Time, summary SeveritySummary, coverage float64, qualityGate, branch string, compliance ComplianceSummary) Snapshot {
	return Snapshot{
		Timestamp:         at.UnixMilli(),
		Date:              at.UTC().Format("2006-01-02"),
		Summary:           summary,
		Coverage:          coverage,
		QualityGateStatus: qualityGate,
		TotalIssues:       summary.Total(),
		Branch:            branch,
		Compliance:        compliance,
	}
}
