package sonarqube

import (
	"context"
	"encoding/json"
	"net/url"
)

// ComponentExists reports whether the component key is known to the server.
// The lookup is an exact-key filter on the project search endpoint, used to
// fail a sync early with a clear error instead of an empty issue search.
func (c *Client) ComponentExists(ctx context.Context, componentKey string) (bool, error) {
	params := url.Values{}
	params.Set("projects", componentKey)

	body, err := c.Get(ctx, "api/projects/search", params)
	if err != nil {
		return false, err
	}

	var resp struct {
		Components []struct {
			Key string `json:"key"`
		} `json:"components"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, err
	}
	for _, comp := range resp.Components {
		if comp.Key == componentKey {
			return true, nil
		}
	}
	return false, nil
}
