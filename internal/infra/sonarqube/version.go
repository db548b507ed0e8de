package sonarqube

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Filters is the version-resolved query configuration: which issue and rule
// types to request and which statuses the server understands.
type Filters struct {
	IssueTypes      string
	RuleTypes       string
	IssueStatuses   []string
	HotspotStatuses []string
}

// UseHotspotAPI reports whether hotspots are collected via the dedicated
// hotspot endpoints rather than folded into the issue search.
func (f Filters) UseHotspotAPI() bool {
	return len(f.HotspotStatuses) > 0
}

// ServerVersion fetches the server's version string from the system status
// endpoint.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	body, err := c.Get(ctx, "api/system/status", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("malformed system status response: %w", err)
	}
	if resp.Version == "" {
		return "", fmt.Errorf("system status response carries no version")
	}
	return strings.TrimSpace(resp.Version), nil
}

// ResolveFilters maps a server version to its query configuration. Ranges
// are half-open and checked newest first; unparsable or pre-7.3 versions get
// the base set. Pure function, no I/O.
func ResolveFilters(version string) Filters {
	base := Filters{
		IssueTypes:    "VULNERABILITY",
		RuleTypes:     "VULNERABILITY",
		IssueStatuses: []string{"OPEN", "CONFIRMED", "REOPENED"},
	}

	major, minor, ok := parseVersion(version)
	if !ok {
		return base
	}

	switch {
	case major >= 8:
		// Hotspots live behind their own API; only the rule filter narrows
		// back relative to 7.8.
		return Filters{
			IssueTypes:      "VULNERABILITY,SECURITY_HOTSPOT",
			RuleTypes:       "VULNERABILITY",
			IssueStatuses:   []string{"OPEN", "CONFIRMED", "REOPENED", "TO_REVIEW"},
			HotspotStatuses: []string{"TO_REVIEW"},
		}
	case major == 7 && minor >= 8:
		return Filters{
			IssueTypes:      "VULNERABILITY,SECURITY_HOTSPOT",
			RuleTypes:       "VULNERABILITY,SECURITY_HOTSPOT",
			IssueStatuses:   []string{"OPEN", "CONFIRMED", "REOPENED", "TO_REVIEW"},
			HotspotStatuses: []string{"TO_REVIEW"},
		}
	case major == 7 && minor >= 3:
		return Filters{
			IssueTypes:    "VULNERABILITY,SECURITY_HOTSPOT",
			RuleTypes:     "VULNERABILITY,SECURITY_HOTSPOT",
			IssueStatuses: []string{"OPEN", "CONFIRMED", "REOPENED"},
		}
	default:
		return base
	}
}

// parseVersion extracts major and minor from strings like "10.3.0.82913".
func parseVersion(version string) (major, minor int, ok bool) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}
