package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sonartrack/api/internal/infra/sonarqube"
	"github.com/sonartrack/api/internal/metrics"
	"github.com/sonartrack/api/pkg/compliance"
	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/scan"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/domain/syncrun"
	"github.com/sonartrack/api/pkg/domain/trend"
	"github.com/sonartrack/api/pkg/logger"
)

// Upstream is the slice of the analysis-server client the engine needs.
type Upstream interface {
	ServerVersion(ctx context.Context) (string, error)
	ComponentExists(ctx context.Context, componentKey string) (bool, error)
	CollectRules(ctx context.Context, filters sonarqube.Filters, opts sonarqube.CollectOptions) (map[string]sonarqube.Rule, bool, error)
	CollectIssues(ctx context.Context, filters sonarqube.Filters, opts sonarqube.CollectOptions) ([]sonarqube.Issue, bool, error)
	CollectHotspots(ctx context.Context, filters sonarqube.Filters, opts sonarqube.CollectOptions) ([]sonarqube.Hotspot, bool, error)
	CollectQualityGate(ctx context.Context, opts sonarqube.CollectOptions) (*sonarqube.QualityGate, error)
	CollectCoverage(ctx context.Context, opts sonarqube.CollectOptions) (*float64, error)
	CollectNewCodePeriod(ctx context.Context, opts sonarqube.CollectOptions) (*sonarqube.NewCodePeriod, error)
}

// UpstreamFactory builds a client for one project's server and credentials.
type UpstreamFactory func(p *project.Project) (Upstream, error)

// TrendStore appends snapshots to a project's bounded history.
type TrendStore interface {
	Append(projectKey string, snap trend.Snapshot) error
}

// VersionCache caches resolved server versions per base URL.
type VersionCache interface {
	GetOrSet(ctx context.Context, key string, loader func(ctx context.Context) (*string, error)) (*string, error)
}

// ProgressNotifier observes state transitions, typically to fan out over
// websockets. Implementations must not block.
type ProgressNotifier interface {
	SyncProgress(projectID shared.ID, status Status)
}

// ReportInvalidator drops derived caches for a project after a run changed
// its findings.
type ReportInvalidator interface {
	Invalidate(ctx context.Context, projectID shared.ID)
}

// Result summarizes one completed run.
type Result struct {
	IssuesFound      int
	HotspotsFound    int
	FindingsUpserted int
	StaleMarked      int
	QualityGate      string
	Truncated        bool
}

// Service runs the synchronization algorithm for one project at a time per
// project, reconciling upstream state into local storage.
type Service struct {
	projects    project.Repository
	findings    finding.Repository
	scans       scan.Repository
	runs        syncrun.Repository
	trends      TrendStore
	registry    *Registry
	factory     UpstreamFactory
	versions    VersionCache
	notifier    ProgressNotifier
	invalidator ReportInvalidator
	log         *logger.Logger
}

// NewService wires the engine. versions, notifier and invalidator may be nil.
func NewService(
	projects project.Repository,
	findings finding.Repository,
	scans scan.Repository,
	runs syncrun.Repository,
	trends TrendStore,
	registry *Registry,
	factory UpstreamFactory,
	versions VersionCache,
	notifier ProgressNotifier,
	invalidator ReportInvalidator,
	log *logger.Logger,
) *Service {
	return &Service{
		projects:    projects,
		findings:    findings,
		scans:       scans,
		runs:        runs,
		trends:      trends,
		registry:    registry,
		factory:     factory,
		versions:    versions,
		notifier:    notifier,
		invalidator: invalidator,
		log:         log,
	}
}

// Registry exposes run state for status queries.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Trigger starts a run for the project if none is in flight. It returns
// ErrAlreadyRunning under the rejection policy, or nil with no new run when
// the trigger was coalesced. The run itself executes synchronously; callers
// wanting fire-and-forget dispatch it on a worker.
func (s *Service) Trigger(ctx context.Context, projectID shared.ID) error {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	started, err := s.registry.Begin(p.ID)
	if err != nil {
		return err
	}
	if !started {
		s.log.Info("sync trigger coalesced into running sync", "project_id", p.ID)
		return nil
	}

	s.run(ctx, p)
	return nil
}

// run executes the full algorithm and always leaves the registry in a
// terminal state.
func (s *Service) run(ctx context.Context, p *project.Project) {
	startedAt := time.Now().UTC()
	metrics.SyncRunsInProgress.Inc()
	defer metrics.SyncRunsInProgress.Dec()

	result, runErr := s.execute(ctx, p, startedAt)
	finishedAt := time.Now().UTC()

	outcome := syncrun.OutcomeSuccess
	message := ""
	if runErr != nil {
		outcome = syncrun.OutcomeFailure
		message = runErr.Error()
		s.registry.Fail(p.ID, message)
		s.log.Error("sync run failed", "project_id", p.ID, "error", runErr)
	} else {
		s.registry.Complete(p.ID)
		s.log.Info("sync run completed",
			"project_id", p.ID,
			"issues", result.IssuesFound,
			"hotspots", result.HotspotsFound,
			"upserted", result.FindingsUpserted,
			"stale_marked", result.StaleMarked,
			"duration", finishedAt.Sub(startedAt))
	}
	s.notify(p.ID)

	metrics.SyncRunsTotal.WithLabelValues(p.ID.String(), string(outcome)).Inc()
	metrics.SyncRunDuration.WithLabelValues(p.ID.String()).Observe(finishedAt.Sub(startedAt).Seconds())

	run, err := syncrun.New(p.ID, outcome, startedAt, finishedAt)
	if err != nil {
		s.log.Error("failed to build sync run record", "project_id", p.ID, "error", err)
		return
	}
	run.Message = message
	run.IssuesFound = result.IssuesFound
	run.HotspotsFound = result.HotspotsFound
	run.FindingsUpserted = result.FindingsUpserted
	run.StaleMarked = result.StaleMarked
	run.QualityGate = result.QualityGate
	if err := s.runs.Create(ctx, run); err != nil {
		s.log.Error("failed to record sync run", "project_id", p.ID, "error", err)
	}

	if runErr == nil {
		p.RecordSync(finishedAt)
		if err := s.projects.Update(ctx, p); err != nil {
			s.log.Error("failed to update project after sync", "project_id", p.ID, "error", err)
		}
		if s.invalidator != nil {
			s.invalidator.Invalidate(ctx, p.ID)
		}
	}
}

// execute is the happy-path pipeline; any returned error fails the run.
func (s *Service) execute(ctx context.Context, p *project.Project, startedAt time.Time) (Result, error) {
	var result Result

	client, err := s.factory(p)
	if err != nil {
		return result, fmt.Errorf("failed to build upstream client: %w", err)
	}

	opts := sonarqube.CollectOptions{
		ComponentKey:    p.ComponentKey,
		Branch:          p.Branch,
		InNewCodePeriod: p.Options.NewCodePeriod,
	}

	s.step(p.ID, 5, "detecting server version")
	version, err := s.serverVersion(ctx, p, client)
	if err != nil {
		return result, fmt.Errorf("failed to detect server version: %w", err)
	}
	filters := sonarqube.ResolveFilters(version)

	s.step(p.ID, 10, "verifying component")
	exists, err := client.ComponentExists(ctx, p.ComponentKey)
	if err != nil {
		return result, fmt.Errorf("failed to verify component: %w", err)
	}
	if !exists {
		return result, fmt.Errorf("component %q not found on server", p.ComponentKey)
	}

	s.step(p.ID, 15, "fetching rules")
	rules, rulesTruncated, err := client.CollectRules(ctx, filters, opts)
	if err != nil {
		return result, fmt.Errorf("failed to collect rules: %w", err)
	}

	s.step(p.ID, 30, "fetching issues")
	issues, issuesTruncated, err := client.CollectIssues(ctx, filters, opts)
	if err != nil {
		return result, fmt.Errorf("failed to collect issues: %w", err)
	}
	result.IssuesFound = len(issues)

	var hotspots []sonarqube.Hotspot
	var hotspotsTruncated bool
	if p.Options.Hotspots {
		s.step(p.ID, 45, "fetching hotspots")
		hotspots, hotspotsTruncated, err = client.CollectHotspots(ctx, filters, opts)
		if err != nil {
			// Hotspot failure degrades: empty set, loud log, run continues.
			if sonarqube.IsPartial(err) {
				s.log.Warn("hotspot collection failed, continuing without hotspots",
					"project_id", p.ID, "error", err)
				hotspots = nil
			} else {
				return result, fmt.Errorf("failed to collect hotspots: %w", err)
			}
		}
	}
	result.HotspotsFound = len(hotspots)
	result.Truncated = rulesTruncated || issuesTruncated || hotspotsTruncated

	var gate *sonarqube.QualityGate
	if p.Options.QualityGate {
		s.step(p.ID, 55, "fetching quality gate")
		gate, err = client.CollectQualityGate(ctx, opts)
		if err != nil {
			return result, fmt.Errorf("failed to collect quality gate: %w", err)
		}
		result.QualityGate = gate.Status
	}

	var coverage *float64
	if p.Options.Coverage {
		coverage, err = client.CollectCoverage(ctx, opts)
		if err != nil {
			return result, fmt.Errorf("failed to collect coverage: %w", err)
		}
	}
	var newCodePeriod string
	if p.Options.NewCodePeriod {
		ncp, err := client.CollectNewCodePeriod(ctx, opts)
		if err != nil {
			// The issue search is already scoped; losing the period's
			// definition only degrades the snapshot.
			s.log.Warn("new code period fetch failed", "project_id", p.ID, "error", err)
		} else if ncp != nil {
			newCodePeriod = ncp.String()
		}
	}

	s.step(p.ID, 65, "reconciling findings")
	upserted, counts, tagSets, err := s.reconcile(ctx, p, rules, issues, hotspots, startedAt)
	if err != nil {
		return result, err
	}
	result.FindingsUpserted = upserted
	metrics.FindingsUpserted.WithLabelValues(p.ID.String()).Add(float64(upserted))

	s.step(p.ID, 85, "marking stale findings")
	stale, err := s.findings.MarkStale(ctx, p.ID, startedAt)
	if err != nil {
		return result, fmt.Errorf("failed to mark stale findings: %w", err)
	}
	result.StaleMarked = int(stale)
	metrics.FindingsStaleMarked.WithLabelValues(p.ID.String()).Add(float64(stale))

	s.step(p.ID, 95, "recording snapshot")
	if err := s.snapshot(ctx, p, counts, len(hotspots), result.QualityGate, coverage, newCodePeriod, version, tagSets, startedAt); err != nil {
		return result, err
	}

	return result, nil
}

// serverVersion resolves the server version, through the shared cache when
// one is wired.
func (s *Service) serverVersion(ctx context.Context, p *project.Project, client Upstream) (string, error) {
	if s.versions == nil {
		return client.ServerVersion(ctx)
	}
	v, err := s.versions.GetOrSet(ctx, p.BaseURL, func(ctx context.Context) (*string, error) {
		version, err := client.ServerVersion(ctx)
		if err != nil {
			return nil, err
		}
		return &version, nil
	})
	if err != nil {
		return "", err
	}
	return *v, nil
}

// reconcile upserts every collected issue and hotspot as a finding keyed by
// (project, sonar key). Each upsert commits independently so a late failure
// keeps earlier progress.
func (s *Service) reconcile(
	ctx context.Context,
	p *project.Project,
	rules map[string]sonarqube.Rule,
	issues []sonarqube.Issue,
	hotspots []sonarqube.Hotspot,
	seenAt time.Time,
) (upserted int, counts finding.SeverityCounts, tagSets [][]string, err error) {
	record := func(f *finding.Finding) error {
		if _, err := s.findings.Upsert(ctx, f); err != nil {
			return fmt.Errorf("failed to upsert finding %s: %w", f.SonarKey, err)
		}
		upserted++
		switch f.Severity.Normalize() {
		case finding.SeverityHigh:
			counts.High++
		case finding.SeverityMedium:
			counts.Medium++
		default:
			counts.Low++
		}
		return nil
	}

	for _, is := range issues {
		f, err := finding.New(p.ID, is.Key, is.Type, is.Severity)
		if err != nil {
			s.log.Warn("skipping malformed issue", "sonar_key", is.Key, "error", err)
			continue
		}
		f.RuleKey = is.RuleKey
		if rule, ok := rules[is.RuleKey]; ok {
			f.RuleName = rule.Name
		}
		f.Status = is.Status
		f.Component = is.Component
		f.Line = is.Line
		f.Message = is.Message
		f.Tags = is.Tags
		f.Link = is.Link
		f.FirstSeenAt = seenAt
		f.LastSeenAt = seenAt
		if err := record(f); err != nil {
			return upserted, counts, tagSets, err
		}
		tagSets = append(tagSets, is.Tags)
	}

	for _, h := range hotspots {
		f, err := finding.New(p.ID, h.Key, finding.TypeSecurityHotspot, h.Severity)
		if err != nil {
			s.log.Warn("skipping malformed hotspot", "sonar_key", h.Key, "error", err)
			continue
		}
		f.RuleKey = h.RuleKey
		if rule, ok := rules[h.RuleKey]; ok {
			f.RuleName = rule.Name
		}
		f.Status = h.Status
		f.Component = h.Component
		f.Line = h.Line
		f.Message = h.Message
		if h.SecurityCategory != "" {
			f.Tags = []string{h.SecurityCategory}
		}
		f.Link = h.Link
		f.FirstSeenAt = seenAt
		f.LastSeenAt = seenAt
		if err := record(f); err != nil {
			return upserted, counts, tagSets, err
		}
		tagSets = append(tagSets, f.Tags)
	}

	return upserted, counts, tagSets, nil
}

// snapshot persists the Scan row and appends the trend entry.
func (s *Service) snapshot(
	ctx context.Context,
	p *project.Project,
	counts finding.SeverityCounts,
	hotspotCount int,
	qualityGate string,
	coverage *float64,
	newCodePeriod string,
	version string,
	tagSets [][]string,
	takenAt time.Time,
) error {
	snap, err := scan.New(p.ID, takenAt)
	if err != nil {
		return err
	}
	snap.HighCount = counts.High
	snap.MediumCount = counts.Medium
	snap.LowCount = counts.Low
	snap.HotspotCount = hotspotCount
	snap.QualityGate = qualityGate
	snap.Coverage = coverage
	snap.NewCodePeriod = newCodePeriod
	snap.Branch = p.Branch
	snap.ServerVersion = version
	if err := s.scans.Create(ctx, snap); err != nil {
		return fmt.Errorf("failed to persist scan snapshot: %w", err)
	}

	summary := compliance.Summarize(tagSets)
	cov := 0.0
	if coverage != nil {
		cov = *coverage
	}
	entry := trend.NewSnapshot(takenAt,
		trend.SeveritySummary{High: counts.High, Medium: counts.Medium, Low: counts.Low},
		cov, qualityGate, p.Branch,
		trend.ComplianceSummary{
			OwaspCount: summary.OwaspTotal(),
			CweCount:   summary.CWETotal(),
			SansCount:  summary.SANSTotal(),
		},
	)
	if err := s.trends.Append(p.ComponentKey, entry); err != nil {
		// Trend history is derived data; losing one entry does not fail a
		// run that already persisted its findings.
		s.log.Error("failed to append trend snapshot", "project_id", p.ID, "error", err)
	}
	return nil
}

func (s *Service) step(projectID shared.ID, progress int, step string) {
	s.registry.Step(projectID, progress, step)
	s.notify(projectID)
}

func (s *Service) notify(projectID shared.ID) {
	if s.notifier != nil {
		s.notifier.SyncProgress(projectID, s.registry.Status(projectID))
	}
}

// IsConflict reports whether err is the already-running rejection.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyRunning)
}
