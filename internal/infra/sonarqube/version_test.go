package sonarqube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFilters(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    Filters
	}{
		{
			name:    "pre-7.3 gets the base set",
			version: "6.7.0",
			want: Filters{
				IssueTypes:    "VULNERABILITY",
				RuleTypes:     "VULNERABILITY",
				IssueStatuses: []string{"OPEN", "CONFIRMED", "REOPENED"},
			},
		},
		{
			name:    "unparsable version gets the base set",
			version: "unknown",
			want: Filters{
				IssueTypes:    "VULNERABILITY",
				RuleTypes:     "VULNERABILITY",
				IssueStatuses: []string{"OPEN", "CONFIRMED", "REOPENED"},
			},
		},
		{
			name:    "7.5.0 enables hotspot-inclusive filters without TO_REVIEW",
			version: "7.5.0",
			want: Filters{
				IssueTypes:    "VULNERABILITY,SECURITY_HOTSPOT",
				RuleTypes:     "VULNERABILITY,SECURITY_HOTSPOT",
				IssueStatuses: []string{"OPEN", "CONFIRMED", "REOPENED"},
			},
		},
		{
			name:    "7.8.5 adds TO_REVIEW",
			version: "7.8.5",
			want: Filters{
				IssueTypes:      "VULNERABILITY,SECURITY_HOTSPOT",
				RuleTypes:       "VULNERABILITY,SECURITY_HOTSPOT",
				IssueStatuses:   []string{"OPEN", "CONFIRMED", "REOPENED", "TO_REVIEW"},
				HotspotStatuses: []string{"TO_REVIEW"},
			},
		},
		{
			name:    "10.3.0 narrows the rule filter",
			version: "10.3.0.82913",
			want: Filters{
				IssueTypes:      "VULNERABILITY,SECURITY_HOTSPOT",
				RuleTypes:       "VULNERABILITY",
				IssueStatuses:   []string{"OPEN", "CONFIRMED", "REOPENED", "TO_REVIEW"},
				HotspotStatuses: []string{"TO_REVIEW"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFilters(tt.version))
		})
	}
}

func TestFilters_UseHotspotAPI(t *testing.T) {
	assert.False(t, ResolveFilters("7.5.0").UseHotspotAPI())
	assert.True(t, ResolveFilters("9.9.0").UseHotspotAPI())
}

func TestServerVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/system/status", r.URL.Path)
		fmt.Fprint(w, `{"id":"ABC123","version":"10.3.0.82913","status":"UP"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	version, err := client.ServerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.3.0.82913", version)
}

func TestServerVersion_MissingVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"UP"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	_, err := client.ServerVersion(context.Background())
	assert.ErrorContains(t, err, "no version")
}

func TestParseVersion(t *testing.T) {
	major, minor, ok := parseVersion("7.9.1")
	require.True(t, ok)
	assert.Equal(t, 7, major)
	assert.Equal(t, 9, minor)

	_, _, ok = parseVersion("7")
	assert.False(t, ok)

	_, _, ok = parseVersion("x.y")
	assert.False(t, ok)
}
