package sonarqube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonartrack/api/pkg/logger"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Token:          "test-token",
		RequestTimeout: 5 * time.Second,
		RetryCount:     3,
		RetryAfterCap:  10 * time.Second,
		MaxConcurrent:  5,
		MinInterval:    time.Millisecond,
		CacheSize:      1000,
		CacheTTL:       5 * time.Minute,
		PageSize:       500,
		MaxPages:       20,
	}
}

func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := testConfig(baseURL)
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := NewClient(cfg, logger.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{}, logger.NewNop())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = NewClient(Config{BaseURL: "not a url"}, logger.NewNop())
	require.ErrorAs(t, err, &ve)

	client, err := NewClient(Config{BaseURL: "https://sonar.example.com/"}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "https://sonar.example.com", client.BaseURL())
}

func TestGet_CacheIdempotence(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	// Same logical request, different parameter construction order.
	p1 := url.Values{}
	p1.Set("a", "1")
	p1.Set("b", "2")
	p2 := url.Values{}
	p2.Set("b", "2")
	p2.Set("a", "1")

	_, err := client.Get(ctx, "api/rules/search", p1)
	require.NoError(t, err)
	_, err = client.Get(ctx, "api/rules/search", p2)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call must be served from cache")
}

func TestGet_CacheExpiry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	now := time.Now()
	client.cache.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := client.Get(ctx, "api/system/health", nil)
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = client.Get(ctx, "api/system/health", nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResponseCache_LRUEviction(t *testing.T) {
	cache := newResponseCache(2, time.Minute)
	cache.Set("a", json.RawMessage(`1`))
	cache.Set("b", json.RawMessage(`2`))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Set("c", json.RawMessage(`3`))
	assert.Equal(t, 2, cache.Len())

	_, ok = cache.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestGet_ConcurrencyBound(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params := url.Values{}
			params.Set("n", fmt.Sprint(i))
			_, err := client.Get(ctx, "api/issues/search", params)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(5))
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	body, err := client.Get(context.Background(), "api/system/status", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_RetryExhaustion(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(c *Config) { c.RetryCount = 2 })
	_, err := client.Get(context.Background(), "api/issues/search", nil)

	var te *TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_NonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors":[{"msg":"component not found"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	_, err := client.Get(context.Background(), "api/measures/component", nil)

	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "component not found", UpstreamMessage(ae.Body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 must not be retried")
}

func TestDo_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)
	_, err := client.Get(context.Background(), "api/issues/search", nil)
	assert.True(t, IsAuth(err))
}

func TestBackoff_RetryAfterCap(t *testing.T) {
	client := newTestClient(t, "https://sonar.example.com", nil)

	assert.Equal(t, 3*time.Second, client.backoff(0, "3"))
	assert.Equal(t, 10*time.Second, client.backoff(0, "600"), "Retry-After is capped")
	assert.Equal(t, 500*time.Millisecond, client.backoff(0, ""))
	assert.Equal(t, time.Second, client.backoff(1, "not-a-number"))
}

func TestLogin_CapturesSessionCookies(t *testing.T) {
	var sawCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/authentication/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "admin", r.Form.Get("login"))
		w.Header().Add("Set-Cookie", "JWT-SESSION=abc123; Path=/; HttpOnly")
		w.Header().Add("Set-Cookie", "XSRF-TOKEN=tok456; Path=/")
	})
	mux.HandleFunc("/api/authentication/validate", func(w http.ResponseWriter, r *http.Request) {
		sawCookie = r.Header.Get("Cookie")
		fmt.Fprint(w, `{"valid":true}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(c *Config) {
		c.Token = ""
		c.Login = "admin"
		c.Password = "secret"
	})
	require.NoError(t, client.Login(context.Background()))
	assert.Equal(t, "JWT-SESSION=abc123; XSRF-TOKEN=tok456", sawCookie)
}

func TestLogin_InvalidSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/authentication/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "JWT-SESSION=abc; Path=/")
	})
	mux.HandleFunc("/api/authentication/validate", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"valid":false}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL, func(c *Config) {
		c.Token = ""
		c.Login = "admin"
		c.Password = "wrong"
	})
	assert.True(t, IsAuth(client.Login(context.Background())))
}

func TestPaginate(t *testing.T) {
	t.Run("stops on short page", func(t *testing.T) {
		var pages int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&pages, 1)
			page := r.URL.Query().Get("p")
			n := 3
			if page == "3" {
				n = 1
			}
			items := make([]struct{}, n)
			json.NewEncoder(w).Encode(map[string]any{"items": items})
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL, func(c *Config) { c.PageSize = 3 })
		var total int
		truncated, err := client.Paginate(context.Background(), "api/rules/search", nil,
			func(page json.RawMessage) (int, error) {
				var resp struct {
					Items []struct{} `json:"items"`
				}
				if err := json.Unmarshal(page, &resp); err != nil {
					return 0, err
				}
				total += len(resp.Items)
				return len(resp.Items), nil
			})
		require.NoError(t, err)
		assert.False(t, truncated)
		assert.Equal(t, 7, total)
		assert.Equal(t, int32(3), atomic.LoadInt32(&pages))
	})

	t.Run("honors page cap", func(t *testing.T) {
		var pages int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&pages, 1)
			items := make([]struct{}, 2)
			json.NewEncoder(w).Encode(map[string]any{"items": items})
		}))
		defer srv.Close()

		client := newTestClient(t, srv.URL, func(c *Config) {
			c.PageSize = 2
			c.MaxPages = 4
		})
		truncated, err := client.Paginate(context.Background(), "api/issues/search", nil,
			func(page json.RawMessage) (int, error) { return 2, nil })
		require.NoError(t, err)
		assert.True(t, truncated, "full page at the cap must surface truncation")
		assert.Equal(t, int32(4), atomic.LoadInt32(&pages))
	})
}
