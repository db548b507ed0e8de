package sonarqube

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/sonartrack/api/pkg/domain/finding"
)

// Hotspot is one security hotspot, collected in two phases: the search API
// yields keys, the show API fills in the detail.
type Hotspot struct {
	Key              string
	RuleKey          string
	SecurityCategory string
	Severity         finding.Severity
	Status           string
	Component        string
	Line             int
	Message          string
	Link             string
}

// CollectHotspots runs the two-phase hotspot collection. A search failure is
// returned as a PartialError so the caller can degrade to an empty set; a
// detail fetch failure skips that one hotspot with a warning.
func (c *Client) CollectHotspots(ctx context.Context, filters Filters, opts CollectOptions) ([]Hotspot, bool, error) {
	if !filters.UseHotspotAPI() {
		return nil, false, nil
	}

	params := url.Values{}
	params.Set("projectKey", opts.ComponentKey)
	params.Set("status", strings.Join(filters.HotspotStatuses, ","))
	if opts.Branch != "" {
		params.Set("branch", opts.Branch)
	}

	var keys []string
	truncated, err := c.Paginate(ctx, "api/hotspots/search", params, func(page json.RawMessage) (int, error) {
		var resp struct {
			Hotspots []struct {
				Key string `json:"key"`
			} `json:"hotspots"`
		}
		if err := json.Unmarshal(page, &resp); err != nil {
			return 0, err
		}
		for _, h := range resp.Hotspots {
			keys = append(keys, h.Key)
		}
		return len(resp.Hotspots), nil
	})
	if err != nil {
		return nil, false, &PartialError{Collector: "hotspots", Err: err}
	}

	hotspots := make([]Hotspot, 0, len(keys))
	for _, key := range keys {
		h, err := c.hotspotDetail(ctx, key, opts)
		if err != nil {
			c.log.Warn("hotspot detail fetch failed, skipping",
				"hotspot_key", key, "error", err)
			continue
		}
		hotspots = append(hotspots, h)
	}
	return hotspots, truncated, nil
}

func (c *Client) hotspotDetail(ctx context.Context, key string, opts CollectOptions) (Hotspot, error) {
	params := url.Values{}
	params.Set("hotspot", key)

	body, err := c.Get(ctx, "api/hotspots/show", params)
	if err != nil {
		return Hotspot{}, err
	}

	var resp struct {
		Key       string `json:"key"`
		Status    string `json:"status"`
		Line      int    `json:"line"`
		Message   string `json:"message"`
		Component struct {
			Key string `json:"key"`
		} `json:"component"`
		Rule struct {
			Key                      string `json:"key"`
			SecurityCategory         string `json:"securityCategory"`
			VulnerabilityProbability string `json:"vulnerabilityProbability"`
		} `json:"rule"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Hotspot{}, err
	}

	return Hotspot{
		Key:              resp.Key,
		RuleKey:          resp.Rule.Key,
		SecurityCategory: resp.Rule.SecurityCategory,
		Severity:         finding.HotspotSeverity(resp.Rule.VulnerabilityProbability),
		Status:           resp.Status,
		Component:        resp.Component.Key,
		Line:             resp.Line,
		Message:          resp.Message,
		Link:             c.hotspotLink(opts, resp.Key),
	}, nil
}

func (c *Client) hotspotLink(opts CollectOptions, key string) string {
	q := url.Values{}
	q.Set("id", opts.ComponentKey)
	if opts.Branch != "" {
		q.Set("branch", opts.Branch)
	}
	q.Set("hotspots", key)
	return c.cfg.BaseURL + "/security_hotspots?" + q.Encode()
}
