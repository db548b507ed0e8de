package sonarqube

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/sonartrack/api/pkg/domain/finding"
)

// Rule is a rule definition fetched from the server.
type Rule struct {
	Key             string
	Name            string
	HTMLDescription string
	Severity        finding.Severity
}

// CollectRules paginates the rule search and returns definitions keyed by
// rule key. Last write wins on a duplicate key. The boolean reports cap
// truncation.
func (c *Client) CollectRules(ctx context.Context, filters Filters, opts CollectOptions) (map[string]Rule, bool, error) {
	params := url.Values{}
	params.Set("activation", "true")
	params.Set("f", "name,htmlDesc,severity")
	params.Set("types", filters.RuleTypes)

	rules := make(map[string]Rule)
	truncated, err := c.Paginate(ctx, "api/rules/search", params, func(page json.RawMessage) (int, error) {
		var resp struct {
			Rules []struct {
				Key      string `json:"key"`
				Name     string `json:"name"`
				HTMLDesc string `json:"htmlDesc"`
				Severity string `json:"severity"`
			} `json:"rules"`
		}
		if err := json.Unmarshal(page, &resp); err != nil {
			return 0, err
		}
		for _, r := range resp.Rules {
			rules[r.Key] = Rule{
				Key:             r.Key,
				Name:            r.Name,
				HTMLDescription: r.HTMLDesc,
				Severity:        finding.Severity(r.Severity),
			}
		}
		return len(resp.Rules), nil
	})
	if err != nil {
		return nil, false, err
	}
	return rules, truncated, nil
}
