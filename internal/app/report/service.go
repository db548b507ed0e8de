// Package report assembles the aggregated security report for one project:
// current findings grouped by severity, compliance classification from tags,
// the latest snapshot and the recent run history. Reports are cached in
// Redis because they fan out over several queries and change only when a
// sync completes.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/sonartrack/api/pkg/compliance"
	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/scan"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/domain/syncrun"
	"github.com/sonartrack/api/pkg/logger"
)

// Finding is one row of the report.
type Finding struct {
	SonarKey    string              `json:"sonarKey"`
	RuleKey     string              `json:"ruleKey"`
	RuleName    string              `json:"ruleName,omitempty"`
	Severity    finding.Severity    `json:"severity"`
	Type        finding.Type        `json:"type"`
	Status      string              `json:"status"`
	LocalStatus finding.LocalStatus `json:"localStatus"`
	Component   string              `json:"component,omitempty"`
	Line        int                 `json:"line,omitempty"`
	Message     string              `json:"message"`
	Tags        []string            `json:"tags,omitempty"`
	Link        string              `json:"link,omitempty"`
	FirstSeenAt time.Time           `json:"firstSeenAt"`
	LastSeenAt  time.Time           `json:"lastSeenAt"`
}

// Summary is the aggregate header of a report.
type Summary struct {
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Low         int `json:"low"`
	Total       int `json:"total"`
	ActiveCount int `json:"activeCount"`
	ClosedCount int `json:"closedCount"`
}

// RunSummary is one recent sync run in the report footer.
type RunSummary struct {
	Outcome          syncrun.Outcome `json:"outcome"`
	Message          string          `json:"message,omitempty"`
	FindingsUpserted int             `json:"findingsUpserted"`
	StaleMarked      int             `json:"staleMarked"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
}

// Report is the full aggregated document.
type Report struct {
	ProjectID    shared.ID          `json:"projectId"`
	ProjectName  string             `json:"projectName"`
	ComponentKey string             `json:"componentKey"`
	Branch       string             `json:"branch,omitempty"`
	GeneratedAt  time.Time          `json:"generatedAt"`
	Summary      Summary            `json:"summary"`
	Compliance   compliance.Summary `json:"compliance"`
	QualityGate  string             `json:"qualityGate,omitempty"`
	Coverage     *float64           `json:"coverage,omitempty"`
	Findings     []Finding          `json:"findings"`
	RecentRuns   []RunSummary       `json:"recentRuns"`
}

// Cache is the slice of the typed Redis cache the service needs.
type Cache interface {
	GetOrSet(ctx context.Context, key string, loader func(ctx context.Context) (*Report, error)) (*Report, error)
	Delete(ctx context.Context, key string) error
}

// Service builds reports.
type Service struct {
	projects project.Repository
	findings finding.Repository
	scans    scan.Repository
	runs     syncrun.Repository
	cache    Cache
	log      *logger.Logger
}

// NewService wires the report assembler. cache may be nil.
func NewService(
	projects project.Repository,
	findings finding.Repository,
	scans scan.Repository,
	runs syncrun.Repository,
	cache Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		projects: projects,
		findings: findings,
		scans:    scans,
		runs:     runs,
		cache:    cache,
		log:      log,
	}
}

// Generate builds (or serves from cache) the report for one project.
func (s *Service) Generate(ctx context.Context, projectID shared.ID) (*Report, error) {
	if s.cache == nil {
		return s.build(ctx, projectID)
	}
	return s.cache.GetOrSet(ctx, projectID.String(), func(ctx context.Context) (*Report, error) {
		return s.build(ctx, projectID)
	})
}

// Invalidate drops the cached report, called after a sync completes.
func (s *Service) Invalidate(ctx context.Context, projectID shared.ID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, projectID.String()); err != nil {
		s.log.Warn("failed to invalidate report cache", "project_id", projectID, "error", err)
	}
}

func (s *Service) build(ctx context.Context, projectID shared.ID) (*Report, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	all, err := s.findings.ListAll(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ProjectID:    p.ID,
		ProjectName:  p.Name,
		ComponentKey: p.ComponentKey,
		Branch:       p.Branch,
		GeneratedAt:  time.Now().UTC(),
	}

	var tagSets [][]string
	for _, f := range all {
		if finding.IsTerminalStatus(f.Status) {
			report.Summary.ClosedCount++
			continue
		}
		report.Summary.ActiveCount++
		switch f.Severity.Normalize() {
		case finding.SeverityHigh:
			report.Summary.High++
		case finding.SeverityMedium:
			report.Summary.Medium++
		default:
			report.Summary.Low++
		}
		tagSets = append(tagSets, f.Tags)

		report.Findings = append(report.Findings, Finding{
			SonarKey:    f.SonarKey,
			RuleKey:     f.RuleKey,
			RuleName:    f.RuleName,
			Severity:    f.Severity.Normalize(),
			Type:        f.Type,
			Status:      f.Status,
			LocalStatus: f.LocalStatus,
			Component:   f.Component,
			Line:        f.Line,
			Message:     f.Message,
			Tags:        f.Tags,
			Link:        f.Link,
			FirstSeenAt: f.FirstSeenAt,
			LastSeenAt:  f.LastSeenAt,
		})
	}
	report.Summary.Total = report.Summary.High + report.Summary.Medium + report.Summary.Low
	report.Compliance = compliance.Summarize(tagSets)

	// Highest severity first, then stable by key.
	sort.SliceStable(report.Findings, func(i, j int) bool {
		ri, rj := severityRank(report.Findings[i].Severity), severityRank(report.Findings[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return report.Findings[i].SonarKey < report.Findings[j].SonarKey
	})

	if latest, err := s.scans.Latest(ctx, projectID); err == nil {
		report.QualityGate = latest.QualityGate
		report.Coverage = latest.Coverage
	} else if !shared.IsNotFound(err) {
		return nil, err
	}

	runs, err := s.runs.ListByProject(ctx, projectID, 10)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		report.RecentRuns = append(report.RecentRuns, RunSummary{
			Outcome:          r.Outcome,
			Message:          r.Message,
			FindingsUpserted: r.FindingsUpserted,
			StaleMarked:      r.StaleMarked,
			StartedAt:        r.StartedAt,
			FinishedAt:       r.FinishedAt,
		})
	}

	return report, nil
}

func severityRank(s finding.Severity) int {
	switch s {
	case finding.SeverityHigh:
		return 2
	case finding.SeverityMedium:
		return 1
	default:
		return 0
	}
}
