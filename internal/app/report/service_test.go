package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/pkg/domain/finding"
	"github.com/sonartrack/api/pkg/domain/project"
	"github.com/sonartrack/api/pkg/domain/scan"
	"github.com/sonartrack/api/pkg/domain/shared"
	"github.com/sonartrack/api/pkg/domain/syncrun"
	"github.com/sonartrack/api/pkg/logger"
	"github.com/sonartrack/api/pkg/pagination"
)

type stubProjects struct {
	byID map[shared.ID]*project.Project
}

func (s *stubProjects) Create(ctx context.Context, p *project.Project) error { return nil }
func (s *stubProjects) Update(ctx context.Context, p *project.Project) error { return nil }
func (s *stubProjects) Delete(ctx context.Context, id shared.ID) error       { return nil }

func (s *stubProjects) GetByID(ctx context.Context, id shared.ID) (*project.Project, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", shared.ErrNotFound, id)
	}
	return p, nil
}

func (s *stubProjects) GetByComponentKey(ctx context.Context, componentKey string) (*project.Project, error) {
	return nil, shared.ErrNotFound
}

func (s *stubProjects) List(ctx context.Context) ([]*project.Project, error) { return nil, nil }

func (s *stubProjects) ListSyncEnabled(ctx context.Context) ([]*project.Project, error) {
	return nil, nil
}

type stubFindings struct {
	rows []*finding.Finding
}

func (s *stubFindings) Upsert(ctx context.Context, f *finding.Finding) (finding.UpsertResult, error) {
	return finding.UpsertResult{}, nil
}

func (s *stubFindings) MarkStale(ctx context.Context, projectID shared.ID, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *stubFindings) GetByID(ctx context.Context, id shared.ID) (*finding.Finding, error) {
	return nil, shared.ErrNotFound
}

func (s *stubFindings) GetByKey(ctx context.Context, projectID shared.ID, sonarKey string) (*finding.Finding, error) {
	return nil, shared.ErrNotFound
}

func (s *stubFindings) List(ctx context.Context, projectID shared.ID, filter finding.Filter, page pagination.Pagination) (pagination.Result[*finding.Finding], error) {
	return pagination.NewResult(s.rows, int64(len(s.rows)), page), nil
}

func (s *stubFindings) ListAll(ctx context.Context, projectID shared.ID) ([]*finding.Finding, error) {
	return s.rows, nil
}

func (s *stubFindings) CountBySeverity(ctx context.Context, projectID shared.ID) (finding.SeverityCounts, error) {
	return finding.SeverityCounts{}, nil
}

func (s *stubFindings) Update(ctx context.Context, f *finding.Finding) error { return nil }

type stubScans struct {
	latest *scan.Scan
}

func (s *stubScans) Create(ctx context.Context, sc *scan.Scan) error { return nil }

func (s *stubScans) ListByProject(ctx context.Context, projectID shared.ID, limit int) ([]*scan.Scan, error) {
	return nil, nil
}

func (s *stubScans) Latest(ctx context.Context, projectID shared.ID) (*scan.Scan, error) {
	if s.latest == nil {
		return nil, fmt.Errorf("%w: no scans", shared.ErrNotFound)
	}
	return s.latest, nil
}

type stubRuns struct {
	rows []*syncrun.Run
}

func (s *stubRuns) Create(ctx context.Context, r *syncrun.Run) error { return nil }

func (s *stubRuns) ListByProject(ctx context.Context, projectID shared.ID, limit int) ([]*syncrun.Run, error) {
	if limit < len(s.rows) {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

type memCache struct {
	store map[string]*Report
	hits  int
}

func newMemCache() *memCache { return &memCache{store: make(map[string]*Report)} }

func (c *memCache) GetOrSet(ctx context.Context, key string, loader func(ctx context.Context) (*Report, error)) (*Report, error) {
	if r, ok := c.store[key]; ok {
		c.hits++
		return r, nil
	}
	r, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	c.store[key] = r
	return r, nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

func testProject(t *testing.T) *project.Project {
	t.Helper()
	p, err := project.New("Payments", "https://sonar.example.com", "com.example:payments")
	require.NoError(t, err)
	p.Branch = "main"
	return p
}

func testFinding(t *testing.T, projectID shared.ID, sonarKey string, severity finding.Severity, tags ...string) *finding.Finding {
	t.Helper()
	f, err := finding.New(projectID, sonarKey, finding.TypeVulnerability, severity)
	require.NoError(t, err)
	f.RuleKey = "java:S2078"
	f.Message = "fix it"
	f.Tags = tags
	return f
}

func newTestService(p *project.Project, findings []*finding.Finding, latest *scan.Scan, runs []*syncrun.Run, cache Cache) *Service {
	return NewService(
		&stubProjects{byID: map[shared.ID]*project.Project{p.ID: p}},
		&stubFindings{rows: findings},
		&stubScans{latest: latest},
		&stubRuns{rows: runs},
		cache,
		logger.NewNop(),
	)
}

func TestServiceGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates severities and compliance", func(t *testing.T) {
		p := testProject(t)
		findings := []*finding.Finding{
			testFinding(t, p.ID, "AX1", finding.SeverityHigh, "sqli", "cwe-89"),
			testFinding(t, p.ID, "AX2", finding.SeverityMedium, "xss"),
			testFinding(t, p.ID, "AX3", finding.SeverityLow),
		}
		svc := newTestService(p, findings, nil, nil, nil)

		r, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		assert.Equal(t, p.ID, r.ProjectID)
		assert.Equal(t, "Payments", r.ProjectName)
		assert.Equal(t, "com.example:payments", r.ComponentKey)
		assert.Equal(t, "main", r.Branch)
		assert.Equal(t, 1, r.Summary.High)
		assert.Equal(t, 1, r.Summary.Medium)
		assert.Equal(t, 1, r.Summary.Low)
		assert.Equal(t, 3, r.Summary.Total)
		assert.Equal(t, 3, r.Summary.ActiveCount)
		assert.Equal(t, 0, r.Summary.ClosedCount)
		assert.Equal(t, 1, r.Compliance.OwaspTotal())
		assert.Equal(t, 1, r.Compliance.CWETotal())
	})

	t.Run("terminal findings count as closed and are excluded", func(t *testing.T) {
		p := testProject(t)
		open := testFinding(t, p.ID, "AX1", finding.SeverityHigh)
		closed := testFinding(t, p.ID, "AX2", finding.SeverityHigh)
		closed.Status = finding.StatusResolved
		svc := newTestService(p, []*finding.Finding{open, closed}, nil, nil, nil)

		r, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		assert.Equal(t, 1, r.Summary.ActiveCount)
		assert.Equal(t, 1, r.Summary.ClosedCount)
		assert.Equal(t, 1, r.Summary.Total)
		require.Len(t, r.Findings, 1)
		assert.Equal(t, "AX1", r.Findings[0].SonarKey)
	})

	t.Run("findings sorted highest severity first", func(t *testing.T) {
		p := testProject(t)
		findings := []*finding.Finding{
			testFinding(t, p.ID, "AX1", finding.SeverityLow),
			testFinding(t, p.ID, "AX2", finding.SeverityHigh),
			testFinding(t, p.ID, "AX3", finding.SeverityMedium),
			testFinding(t, p.ID, "AX0", finding.SeverityHigh),
		}
		svc := newTestService(p, findings, nil, nil, nil)

		r, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		keys := make([]string, 0, len(r.Findings))
		for _, f := range r.Findings {
			keys = append(keys, f.SonarKey)
		}
		assert.Equal(t, []string{"AX0", "AX2", "AX3", "AX1"}, keys)
	})

	t.Run("raw severities are normalized", func(t *testing.T) {
		p := testProject(t)
		f := testFinding(t, p.ID, "AX1", finding.SeverityBlocker)
		svc := newTestService(p, []*finding.Finding{f}, nil, nil, nil)

		r, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		assert.Equal(t, 1, r.Summary.High)
		require.Len(t, r.Findings, 1)
		assert.Equal(t, finding.SeverityHigh, r.Findings[0].Severity)
	})

	t.Run("includes latest scan gate and coverage", func(t *testing.T) {
		p := testProject(t)
		latest, err := scan.New(p.ID, time.Now().UTC())
		require.NoError(t, err)
		latest.QualityGate = "OK"
		cov := 81.5
		latest.Coverage = &cov
		svc := newTestService(p, nil, latest, nil, nil)

		r, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		assert.Equal(t, "OK", r.QualityGate)
		require.NotNil(t, r.Coverage)
		assert.Equal(t, 81.5, *r.Coverage)
	})

	t.Run("missing scan history is not an error", func(t *testing.T) {
		p := testProject(t)
		svc := newTestService(p, nil, nil, nil, nil)

		r, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		assert.Empty(t, r.QualityGate)
		assert.Nil(t, r.Coverage)
	})

	t.Run("includes recent runs", func(t *testing.T) {
		p := testProject(t)
		started := time.Now().Add(-time.Minute).UTC()
		run, err := syncrun.New(p.ID, syncrun.OutcomeSuccess, started, started.Add(30*time.Second))
		require.NoError(t, err)
		run.FindingsUpserted = 12
		run.StaleMarked = 3
		svc := newTestService(p, nil, nil, []*syncrun.Run{run}, nil)

		r, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		require.Len(t, r.RecentRuns, 1)
		assert.Equal(t, syncrun.OutcomeSuccess, r.RecentRuns[0].Outcome)
		assert.Equal(t, 12, r.RecentRuns[0].FindingsUpserted)
		assert.Equal(t, 3, r.RecentRuns[0].StaleMarked)
	})

	t.Run("unknown project", func(t *testing.T) {
		p := testProject(t)
		svc := newTestService(p, nil, nil, nil, nil)

		_, err := svc.Generate(ctx, shared.NewID())
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("second generate is served from cache", func(t *testing.T) {
		p := testProject(t)
		cache := newMemCache()
		svc := newTestService(p, nil, nil, nil, cache)

		first, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)
		second, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		assert.Equal(t, 1, cache.hits)
		assert.Equal(t, first.GeneratedAt, second.GeneratedAt)
	})

	t.Run("invalidate drops the cached report", func(t *testing.T) {
		p := testProject(t)
		cache := newMemCache()
		svc := newTestService(p, nil, nil, nil, cache)

		_, err := svc.Generate(ctx, p.ID)
		require.NoError(t, err)

		svc.Invalidate(ctx, p.ID)

		_, err = svc.Generate(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, cache.hits)
	})
}
