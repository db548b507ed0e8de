package sonarqube

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// PageFunc consumes one decoded page and returns how many items it held.
type PageFunc func(page json.RawMessage) (int, error)

// Paginate walks endpoint page by page until a short page signals the end or
// the page cap is reached. It returns true when results were truncated by
// the cap. params is not mutated.
func (c *Client) Paginate(ctx context.Context, endpoint string, params url.Values, fn PageFunc) (bool, error) {
	for page := 1; page <= c.cfg.MaxPages; page++ {
		p := clone(params)
		p.Set("p", strconv.Itoa(page))
		p.Set("ps", strconv.Itoa(c.cfg.PageSize))

		body, err := c.Get(ctx, endpoint, p)
		if err != nil {
			return false, err
		}
		n, err := fn(body)
		if err != nil {
			return false, err
		}
		if n < c.cfg.PageSize {
			return false, nil
		}
	}

	c.log.Warn("pagination truncated at page cap",
		"endpoint", endpoint, "max_pages", c.cfg.MaxPages, "page_size", c.cfg.PageSize)
	return true, nil
}

func clone(params url.Values) url.Values {
	out := make(url.Values, len(params)+2)
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	return out
}
