package sonarqube

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/sonartrack/api/pkg/domain/finding"
)

// Issue is one issue row from the search API, severity already normalized
// onto the shared scale.
type Issue struct {
	Key       string
	RuleKey   string
	Severity  finding.Severity
	Type      finding.Type
	Status    string
	Component string
	Line      int
	Message   string
	Tags      []string
	Link      string
}

// CollectIssues paginates the issue search for one component. BLOCKER maps
// to HIGH. Each issue gets a deep link back to the server UI.
func (c *Client) CollectIssues(ctx context.Context, filters Filters, opts CollectOptions) ([]Issue, bool, error) {
	params := url.Values{}
	params.Set("componentKeys", opts.ComponentKey)
	params.Set("types", filters.IssueTypes)
	params.Set("statuses", strings.Join(filters.IssueStatuses, ","))
	params.Set("resolved", "false")
	params.Set("s", "SEVERITY")
	params.Set("asc", "false")
	if opts.Branch != "" {
		params.Set("branch", opts.Branch)
	}
	if opts.InNewCodePeriod {
		params.Set("inNewCodePeriod", "true")
	}

	var issues []Issue
	truncated, err := c.Paginate(ctx, "api/issues/search", params, func(page json.RawMessage) (int, error) {
		var resp struct {
			Issues []struct {
				Key       string   `json:"key"`
				Rule      string   `json:"rule"`
				Severity  string   `json:"severity"`
				Type      string   `json:"type"`
				Status    string   `json:"status"`
				Component string   `json:"component"`
				Line      int      `json:"line"`
				Message   string   `json:"message"`
				Tags      []string `json:"tags"`
			} `json:"issues"`
		}
		if err := json.Unmarshal(page, &resp); err != nil {
			return 0, err
		}
		for _, is := range resp.Issues {
			sev := finding.Severity(is.Severity)
			if sev == finding.SeverityBlocker {
				sev = finding.SeverityHigh
			}
			issues = append(issues, Issue{
				Key:       is.Key,
				RuleKey:   is.Rule,
				Severity:  sev,
				Type:      finding.Type(is.Type),
				Status:    is.Status,
				Component: is.Component,
				Line:      is.Line,
				Message:   is.Message,
				Tags:      is.Tags,
				Link:      c.issueLink(opts, is.Key),
			})
		}
		return len(resp.Issues), nil
	})
	if err != nil {
		return nil, false, err
	}
	return issues, truncated, nil
}

// issueLink builds the UI deep link for an issue.
func (c *Client) issueLink(opts CollectOptions, issueKey string) string {
	q := url.Values{}
	q.Set("id", opts.ComponentKey)
	if opts.Branch != "" {
		q.Set("branch", opts.Branch)
	}
	q.Set("open", issueKey)
	return c.cfg.BaseURL + "/project/issues?" + q.Encode()
}
