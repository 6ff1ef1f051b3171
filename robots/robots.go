// Package robots fetches and caches robots.txt rules on a per-host,
// fetch-once basis.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// cachedRobots stores parsed robots.txt data with fetch timestamp. A nil
// data field means "allow all" — either robots.txt does not exist, or it
// could not be fetched/parsed; either way the result is memoized so the
// host is never re-fetched within the session.
type cachedRobots struct {
	data *robotstxt.RobotsData
}

// Cache fetches and caches robots.txt rules per host for the lifetime of
// a crawl session.
type Cache struct {
	client *http.Client
	cache  sync.Map // host string -> *cachedRobots
}

// NewCache creates a Cache using the given HTTP client for robots.txt
// fetches.
func NewCache(client *http.Client) *Cache {
	return &Cache{client: client}
}

// Allowed reports whether rawURL may be fetched by userAgent, along with
// the crawl-delay robots.txt declares for that agent (zero if absent).
// Network or parse failures default to allow, and are memoized so the
// host is not retried for the rest of the session.
func (c *Cache) Allowed(ctx context.Context, rawURL, userAgent string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true, 0, fmt.Errorf("parse URL: %w", err)
	}
	host := parsed.Host
	if host == "" {
		return true, 0, nil
	}

	if cached, ok := c.cache.Load(host); ok {
		entry := cached.(*cachedRobots)
		return c.evaluate(entry, parsed, userAgent), delayFor(entry, userAgent), nil
	}

	entry, fetchErr := c.fetch(ctx, parsed.Scheme, host)
	c.cache.Store(host, entry)
	return c.evaluate(entry, parsed, userAgent), delayFor(entry, userAgent), fetchErr
}

func (c *Cache) evaluate(entry *cachedRobots, parsed *url.URL, userAgent string) bool {
	if entry.data == nil {
		return true
	}
	return entry.data.TestAgent(parsed.Path, userAgent)
}

func delayFor(entry *cachedRobots, userAgent string) time.Duration {
	if entry.data == nil {
		return 0
	}
	group := entry.data.FindGroup(userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// fetch retrieves and parses robots.txt for host. Any failure yields a
// nil-data (allow-all) cache entry rather than propagating the error to
// callers as a terminal condition.
func (c *Cache) fetch(ctx context.Context, scheme, host string) (*cachedRobots, error) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return &cachedRobots{}, fmt.Errorf("create robots.txt request for host %s: %w", host, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &cachedRobots{}, fmt.Errorf("fetch robots.txt for host %s: %w", host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &cachedRobots{}, fmt.Errorf("read robots.txt body for host %s: %w", host, err)
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return &cachedRobots{}, nil
	}

	parsed, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return &cachedRobots{}, fmt.Errorf("parse robots.txt for host %s: %w", host, err)
	}
	if parsed == nil {
		return &cachedRobots{}, nil
	}

	return &cachedRobots{data: parsed}, nil
}

// ClearCache removes all cached robots.txt entries. Useful for testing.
func (c *Cache) ClearCache() {
	c.cache = sync.Map{}
}
