package sonarqube

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// NewCodePeriod describes how the server defines "new code" for a project.
type NewCodePeriod struct {
	Type  string
	Value string
}

// String renders the definition for storage, e.g. "PREVIOUS_VERSION" or
// "NUMBER_OF_DAYS=30".
func (n NewCodePeriod) String() string {
	if n.Value == "" {
		return n.Type
	}
	return n.Type + "=" + n.Value
}

// CollectCoverage fetches the overall coverage percentage for a component.
// Returns nil when the server reports no coverage measure.
func (c *Client) CollectCoverage(ctx context.Context, opts CollectOptions) (*float64, error) {
	params := url.Values{}
	params.Set("component", opts.ComponentKey)
	params.Set("metricKeys", "coverage")
	if opts.Branch != "" {
		params.Set("branch", opts.Branch)
	}

	body, err := c.Get(ctx, "api/measures/component", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Component struct {
			Measures []struct {
				Metric string `json:"metric"`
				Value  string `json:"value"`
			} `json:"measures"`
		} `json:"component"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	for _, m := range resp.Component.Measures {
		if m.Metric != "coverage" {
			continue
		}
		v, err := strconv.ParseFloat(m.Value, 64)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
	return nil, nil
}

// CollectNewCodePeriod fetches the project's new-code-period definition.
func (c *Client) CollectNewCodePeriod(ctx context.Context, opts CollectOptions) (*NewCodePeriod, error) {
	params := url.Values{}
	params.Set("project", opts.ComponentKey)
	if opts.Branch != "" {
		params.Set("branch", opts.Branch)
	}

	body, err := c.Get(ctx, "api/new_code_periods/list", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		NewCodePeriods []struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"newCodePeriods"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.NewCodePeriods) == 0 {
		return nil, nil
	}
	return &NewCodePeriod{
		Type:  resp.NewCodePeriods[0].Type,
		Value: resp.NewCodePeriods[0].Value,
	}, nil
}
