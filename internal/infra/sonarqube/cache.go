package sonarqube

import (
	"container/list"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// responseCache is an in-process LRU for GET responses. Entries expire after
// ttl; stale entries are evicted lazily on lookup. A hit bypasses the
// throttle entirely, so repeated reads of the same endpoint cost nothing.
type responseCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List
	items    map[string]*list.Element
	now      func() time.Time
}

type cacheEntry struct {
	key       string
	value     json.RawMessage
	expiresAt time.Time
}

func newResponseCache(capacity int, ttl time.Duration) *responseCache {
	return &responseCache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached body for key, or false on miss or expiry.
func (c *responseCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return entry.value, true
}

// Set stores body under key, evicting the least recently used entry when
// the cache is full.
func (c *responseCache) Set(key string, body json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = body
		entry.expiresAt = c.now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, value: body, expiresAt: c.now().Add(c.ttl)})
	c.items[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of live entries, expired or not.
func (c *responseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// cacheKey builds a canonical key from the endpoint and its query
// parameters. Parameters are serialized in sorted key order so logically
// identical requests share one entry regardless of construction order.
func cacheKey(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}
