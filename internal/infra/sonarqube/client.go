package sonarqube

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sonartrack/api/internal/metrics"
	"github.com/sonartrack/api/pkg/logger"
)

// Config carries everything the client needs to talk to one analysis server.
type Config struct {
	BaseURL  string
	Token    string
	Login    string
	Password string

	RequestTimeout time.Duration
	RetryCount     int
	RetryAfterCap  time.Duration
	MaxConcurrent  int64
	MinInterval    time.Duration
	CacheSize      int
	CacheTTL       time.Duration
	PageSize       int
	MaxPages       int
}

// withDefaults fills zero-valued tuning knobs with production defaults.
func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RetryCount <= 0 {
		c.RetryCount = 3
	}
	if c.RetryAfterCap <= 0 {
		c.RetryAfterCap = 10 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 100 * time.Millisecond
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 1000
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 500
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 20
	}
	return c
}

// Client is a rate-limited, caching, retrying HTTP client for the analysis
// server. It is safe for concurrent use.
type Client struct {
	cfg      Config
	http     *http.Client
	cache    *responseCache
	throttle *throttle
	log      *logger.Logger

	mu     sync.RWMutex
	cookie string
}

// NewClient validates cfg and builds a ready-to-use client. Missing base URL
// is a ValidationError raised before any network traffic.
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, &ValidationError{Reason: "base URL is required"}
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &ValidationError{Reason: "base URL must be an absolute http(s) URL"}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		cache:    newResponseCache(cfg.CacheSize, cfg.CacheTTL),
		throttle: newThrottle(cfg.MaxConcurrent, cfg.MinInterval),
		log:      log,
	}, nil
}

// BaseURL returns the normalized server URL, used for deep links.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// PageSize returns the configured pagination page size.
func (c *Client) PageSize() int {
	return c.cfg.PageSize
}

// Login performs session authentication for servers used without an API
// token. It posts the credentials, captures the session cookies, then proves
// them against the validation endpoint.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.Login == "" || c.cfg.Password == "" {
		return &ValidationError{Reason: "login and password are required for session authentication"}
	}

	form := url.Values{}
	form.Set("login", c.cfg.Login)
	form.Set("password", c.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/api/authentication/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return &AuthError{APIError{Method: http.MethodPost, Endpoint: "api/authentication/login"}}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &AuthError{APIError{
			Status:   resp.StatusCode,
			Method:   http.MethodPost,
			Endpoint: "api/authentication/login",
		}}
	}

	// Session state can span several cookies. Keep only name=value pairs.
	var pairs []string
	for _, raw := range resp.Header.Values("Set-Cookie") {
		if pair, _, _ := strings.Cut(raw, ";"); strings.Contains(pair, "=") {
			pairs = append(pairs, strings.TrimSpace(pair))
		}
	}
	if len(pairs) == 0 {
		return &AuthError{APIError{
			Status:   resp.StatusCode,
			Method:   http.MethodPost,
			Endpoint: "api/authentication/login",
			Body:     "no session cookie returned",
		}}
	}
	c.mu.Lock()
	c.cookie = strings.Join(pairs, "; ")
	c.mu.Unlock()

	var validate struct {
		Valid bool `json:"valid"`
	}
	body, err := c.Get(ctx, "api/authentication/validate", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, &validate); err != nil || !validate.Valid {
		return &AuthError{APIError{
			Status:   http.StatusUnauthorized,
			Method:   http.MethodGet,
			Endpoint: "api/authentication/validate",
		}}
	}
	return nil
}

// Get issues a GET against endpoint with params, consulting the response
// cache first. Cache hits are returned without touching the network or the
// rate limiter.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	key := cacheKey(endpoint, params)
	if body, ok := c.cache.Get(key); ok {
		metrics.UpstreamCacheHits.Inc()
		return body, nil
	}
	metrics.UpstreamCacheMisses.Inc()

	body, err := c.do(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, body)
	return body, nil
}

// Post issues a form POST against endpoint. POSTs are never cached.
func (c *Client) Post(ctx context.Context, endpoint string, form url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, endpoint, form)
}

// do runs one request with throttling and the retry policy: up to RetryCount
// retries on retryable statuses, honoring Retry-After up to the configured
// cap. Timeouts and exhausted retries surface as TransientError.
func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values) (json.RawMessage, error) {
	var lastStatus int
	var lastBody string
	var lastErr error

	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			metrics.UpstreamRetriesTotal.WithLabelValues(endpoint).Inc()
		}
		status, body, retryAfter, err := c.send(ctx, method, endpoint, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// A per-request timeout is fatal, not retried.
			if isTimeout(err) {
				return nil, &TransientError{
					APIError: APIError{Method: method, Endpoint: endpoint},
					Attempts: attempt + 1,
					Cause:    err,
				}
			}
			lastStatus, lastBody, lastErr = 0, "", err
			if attempt < c.cfg.RetryCount {
				c.sleep(ctx, c.backoff(attempt, ""))
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return nil, &AuthError{APIError{Status: status, Method: method, Endpoint: endpoint, Body: string(body)}}
		case retryableStatus(status):
			lastStatus, lastBody, lastErr = status, string(body), nil
			if attempt < c.cfg.RetryCount {
				c.log.Warn("upstream request retrying",
					"method", method, "endpoint", endpoint, "status", status, "attempt", attempt+1)
				c.sleep(ctx, c.backoff(attempt, retryAfter))
			}
		default:
			return nil, &APIError{Status: status, Method: method, Endpoint: endpoint, Body: string(body)}
		}
	}

	return nil, &TransientError{
		APIError: APIError{Status: lastStatus, Method: method, Endpoint: endpoint, Body: lastBody},
		Attempts: c.cfg.RetryCount + 1,
		Cause:    lastErr,
	}
}

// send performs a single throttled HTTP round trip. It returns the response
// status, body and Retry-After header.
func (c *Client) send(ctx context.Context, method, endpoint string, params url.Values) (int, []byte, string, error) {
	if err := c.throttle.acquire(ctx); err != nil {
		return 0, nil, "", err
	}
	defer c.throttle.release()

	u := c.cfg.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, u, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return 0, nil, "", err
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return 0, nil, "", err
	}
	defer resp.Body.Close()

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", err
	}
	return resp.StatusCode, body, resp.Header.Get("Retry-After"), nil
}

// authorize sets the authentication header for req: bearer token when
// configured, otherwise the captured session cookie.
func (c *Client) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return
	}
	c.mu.RLock()
	cookie := c.cookie
	c.mu.RUnlock()
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
}

// backoff picks the wait before the next attempt. A server-provided
// Retry-After wins when parsable, capped at RetryAfterCap; otherwise the
// delay grows linearly with the attempt number.
func (c *Client) backoff(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			d := time.Duration(secs) * time.Second
			if d > c.cfg.RetryAfterCap {
				d = c.cfg.RetryAfterCap
			}
			return d
		}
	}
	return time.Duration(attempt+1) * 500 * time.Millisecond
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// isTimeout reports whether err is a client-side request timeout.
func isTimeout(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ErrorResponse is the upstream's standard error envelope.
type ErrorResponse struct {
	Errors []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

// UpstreamMessage extracts a human-readable message from an upstream error
// body, falling back to the raw body.
func UpstreamMessage(body string) string {
	var er ErrorResponse
	if err := json.Unmarshal([]byte(body), &er); err == nil && len(er.Errors) > 0 {
		msgs := make([]string, 0, len(er.Errors))
		for _, e := range er.Errors {
			msgs = append(msgs, e.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return body
}
