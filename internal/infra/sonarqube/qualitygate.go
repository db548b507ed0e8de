package sonarqube

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// QualityGateCondition is one gate condition with thresholds translated to
// their display form.
type QualityGateCondition struct {
	Metric         string
	Status         string
	ActualValue    string
	ErrorThreshold string
}

// QualityGate is the project's gate status plus its conditions.
type QualityGate struct {
	Status     string
	Conditions []QualityGateCondition
}

// ratingMetrics are metrics whose thresholds are letter ratings encoded as
// "1".."4" on the wire.
var ratingMetrics = map[string]bool{
	"reliability_rating":         true,
	"security_rating":            true,
	"sqale_rating":               true,
	"maintainability_rating":     true,
	"new_reliability_rating":     true,
	"new_security_rating":        true,
	"new_maintainability_rating": true,
	"security_review_rating":     true,
}

// CollectQualityGate fetches the gate status for one project. Rating
// thresholds 1..4 are rendered A..D; duplicated-lines-density thresholds get
// a percent suffix.
func (c *Client) CollectQualityGate(ctx context.Context, opts CollectOptions) (*QualityGate, error) {
	params := url.Values{}
	params.Set("projectKey", opts.ComponentKey)
	if opts.Branch != "" {
		params.Set("branch", opts.Branch)
	}

	body, err := c.Get(ctx, "api/qualitygates/project_status", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ProjectStatus struct {
			Status     string `json:"status"`
			Conditions []struct {
				MetricKey      string `json:"metricKey"`
				Status         string `json:"status"`
				ActualValue    string `json:"actualValue"`
				ErrorThreshold string `json:"errorThreshold"`
			} `json:"conditions"`
		} `json:"projectStatus"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	gate := &QualityGate{Status: resp.ProjectStatus.Status}
	for _, cond := range resp.ProjectStatus.Conditions {
		gate.Conditions = append(gate.Conditions, QualityGateCondition{
			Metric:         cond.MetricKey,
			Status:         cond.Status,
			ActualValue:    displayValue(cond.MetricKey, cond.ActualValue),
			ErrorThreshold: displayValue(cond.MetricKey, cond.ErrorThreshold),
		})
	}
	return gate, nil
}

// displayValue renders a raw metric value for humans.
func displayValue(metric, value string) string {
	if value == "" {
		return value
	}
	if ratingMetrics[metric] {
		if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= 4 {
			return string(rune('A' + n - 1))
		}
		return value
	}
	switch metric {
	case "duplicated_lines_density", "new_duplicated_lines_density":
		return value + "%"
	}
	return value
}
