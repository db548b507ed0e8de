package sonarqube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/pkg/domain/finding"
)

func TestCollectRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/rules/search", r.URL.Path)
		assert.Equal(t, "VULNERABILITY", r.URL.Query().Get("types"))
		fmt.Fprint(w, `{"rules":[
			{"key":"java:S3649","name":"SQL injection","htmlDesc":"<p>desc</p>","severity":"BLOCKER"},
			{"key":"java:S2078","name":"LDAP injection","htmlDesc":"<p>desc</p>","severity":"CRITICAL"},
			{"key":"java:S3649","name":"SQL injection (updated)","htmlDesc":"<p>v2</p>","severity":"BLOCKER"}
		]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	rules, truncated, err := client.CollectRules(context.Background(),
		ResolveFilters("10.3.0"), CollectOptions{ComponentKey: "my-app"})
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Len(t, rules, 2)
	assert.Equal(t, "SQL injection (updated)", rules["java:S3649"].Name, "last write wins on duplicate key")
}

func TestCollectIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "my-app", q.Get("componentKeys"))
		assert.Equal(t, "main", q.Get("branch"))
		assert.Equal(t, "OPEN,CONFIRMED,REOPENED,TO_REVIEW", q.Get("statuses"))
		fmt.Fprint(w, `{"issues":[
			{"key":"AX1","rule":"java:S3649","severity":"BLOCKER","type":"VULNERABILITY",
			 "status":"OPEN","component":"my-app:src/Main.java","line":42,
			 "message":"Fix this","tags":["owasp-a1-injection","cwe-89"]},
			{"key":"AX2","rule":"java:S2078","severity":"MINOR","type":"VULNERABILITY",
			 "status":"CONFIRMED","component":"my-app:src/Util.java","line":7,
			 "message":"Review this","tags":[]}
		]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	issues, _, err := client.CollectIssues(context.Background(),
		ResolveFilters("10.3.0"), CollectOptions{ComponentKey: "my-app", Branch: "main"})
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, finding.SeverityHigh, issues[0].Severity, "BLOCKER normalizes to HIGH")
	assert.Equal(t, finding.SeverityMinor, issues[1].Severity)
	assert.Contains(t, issues[0].Link, "/project/issues?")
	assert.Contains(t, issues[0].Link, "open=AX1")
	assert.Contains(t, issues[0].Link, "branch=main")
}

func TestCollectHotspots(t *testing.T) {
	t.Run("two phase collection", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/hotspots/search", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "my-app", r.URL.Query().Get("projectKey"))
			assert.Equal(t, "TO_REVIEW", r.URL.Query().Get("status"))
			fmt.Fprint(w, `{"hotspots":[{"key":"H1"},{"key":"H2"}]}`)
		})
		mux.HandleFunc("/api/hotspots/show", func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Query().Get("hotspot")
			if key == "H2" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"key":"H1","status":"TO_REVIEW","line":10,"message":"Check crypto",
				"component":{"key":"my-app:src/Crypto.java"},
				"rule":{"key":"java:S4790","securityCategory":"weak-cryptography","vulnerabilityProbability":"HIGH"}}`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		client := newTestClient(t, srv.URL, func(c *Config) { c.RetryCount = 1 })
		hotspots, _, err := client.CollectHotspots(context.Background(),
			ResolveFilters("10.3.0"), CollectOptions{ComponentKey: "my-app"})
		require.NoError(t, err, "a failing detail fetch is skipped, not fatal")
		require.Len(t, hotspots, 1)
		assert.Equal(t, finding.SeverityHigh, hotspots[0].Severity)
		assert.Equal(t, "weak-cryptography", hotspots[0].SecurityCategory)
	})

	t.Run("search failure degrades as partial error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL, nil)
		_, _, err := client.CollectHotspots(context.Background(),
			ResolveFilters("10.3.0"), CollectOptions{ComponentKey: "my-app"})
		assert.True(t, IsPartial(err))
	})

	t.Run("skipped entirely without hotspot API", func(t *testing.T) {
		client := newTestClient(t, "https://sonar.example.com", nil)
		hotspots, truncated, err := client.CollectHotspots(context.Background(),
			ResolveFilters("7.5.0"), CollectOptions{ComponentKey: "my-app"})
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Nil(t, hotspots)
	})
}

func TestHotspotSeverityDefaults(t *testing.T) {
	assert.Equal(t, finding.SeverityMedium, finding.HotspotSeverity("UNKNOWN"))
	assert.Equal(t, finding.SeverityMedium, finding.HotspotSeverity(""))
	assert.Equal(t, finding.SeverityHigh, finding.HotspotSeverity("BLOCKER"))
}

func TestCollectQualityGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/qualitygates/project_status", r.URL.Path)
		fmt.Fprint(w, `{"projectStatus":{"status":"ERROR","conditions":[
			{"metricKey":"security_rating","status":"ERROR","actualValue":"4","errorThreshold":"1"},
			{"metricKey":"duplicated_lines_density","status":"OK","actualValue":"2.5","errorThreshold":"3"},
			{"metricKey":"coverage","status":"OK","actualValue":"81.2","errorThreshold":"80"}
		]}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	gate, err := client.CollectQualityGate(context.Background(), CollectOptions{ComponentKey: "my-app"})
	require.NoError(t, err)

	assert.Equal(t, "ERROR", gate.Status)
	require.Len(t, gate.Conditions, 3)
	assert.Equal(t, "D", gate.Conditions[0].ActualValue)
	assert.Equal(t, "A", gate.Conditions[0].ErrorThreshold)
	assert.Equal(t, "2.5%", gate.Conditions[1].ActualValue)
	assert.Equal(t, "3%", gate.Conditions[1].ErrorThreshold)
	assert.Equal(t, "81.2", gate.Conditions[2].ActualValue)
}

func TestCollectCoverage(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"component":{"measures":[{"metric":"coverage","value":"73.4"}]}}`)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL, nil)
		cov, err := client.CollectCoverage(context.Background(), CollectOptions{ComponentKey: "my-app"})
		require.NoError(t, err)
		require.NotNil(t, cov)
		assert.InDelta(t, 73.4, *cov, 0.001)
	})

	t.Run("absent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"component":{"measures":[]}}`)
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL, nil)
		cov, err := client.CollectCoverage(context.Background(), CollectOptions{ComponentKey: "my-app"})
		require.NoError(t, err)
		assert.Nil(t, cov)
	})
}

func TestCollectNewCodePeriod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"newCodePeriods":[{"type":"NUMBER_OF_DAYS","value":"30"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	ncp, err := client.CollectNewCodePeriod(context.Background(), CollectOptions{ComponentKey: "my-app"})
	require.NoError(t, err)
	require.NotNil(t, ncp)
	assert.Equal(t, "NUMBER_OF_DAYS", ncp.Type)
	assert.Equal(t, "30", ncp.Value)
}
