// Package config holds the plain, JSON-serializable configuration value
// assembled by cmd from parsed flags and threaded through the rest of
// the module's constructors. There is no global configuration state;
// every consumer takes its Config (or a sub-struct derived from it)
// explicitly, per the spec's Design Note against hidden globals.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lukemcguire/zombiecrawl/dedup"
	"github.com/lukemcguire/zombiecrawl/fetcher"
)

// Scraper selects a Fetcher backend for --scraper.
type Scraper string

const (
	ScraperHTTP    Scraper = "http"
	ScraperMirror  Scraper = "mirror"
	ScraperBrowser Scraper = "browser"
)

// Config is the complete, resolved set of options for one crawl
// invocation. It is built once by cmd and never mutated afterward.
type Config struct {
	StartURL      string   `json:"start_url"`
	OutputDir     string   `json:"output_dir"`
	AllowedPaths  []string `json:"allowed_paths,omitempty"`
	MaxDepth      int      `json:"max_depth"`
	MaxPages      int      `json:"max_pages"`
	Concurrency   int      `json:"concurrency"`
	RequestDelay  time.Duration `json:"request_delay"`
	Timeout       time.Duration `json:"timeout"`
	UserAgent     string        `json:"user_agent"`
	RetryCount    int           `json:"retry_count"`
	MaxBodyBytes  int64         `json:"max_body_bytes"`
	MemoryLimitMB int64         `json:"memory_limit_mb,omitempty"`

	Scraper       Scraper `json:"scraper"`
	ScraperConfig string  `json:"scraper_config,omitempty"`

	Dedup dedup.Config `json:"dedup"`

	DisableSSRFCheck bool `json:"disable_ssrf_check"`

	ListFiles bool `json:"list_files"`
	SaveURLs  bool `json:"save_urls"`
	SaveFiles bool `json:"save_files"`
	Verbose   bool `json:"verbose"`
	Quiet     bool `json:"quiet"`
}

// Default returns a Config matching the scheduler's own defaults, for
// callers (tests, maintenance subcommands) that don't need every flag.
func Default() Config {
	return Config{
		MaxDepth:     -1,
		MaxPages:     -1,
		Concurrency:  10,
		RequestDelay: time.Second,
		Timeout:      10 * time.Second,
		UserAgent:    "zombiecrawl/1.0 (+https://github.com/lukemcguire/zombiecrawl)",
		RetryCount:   2,
		MaxBodyBytes: 10 << 20,
		Scraper:      ScraperHTTP,
	}
}

// RetryPolicy derives a fetcher.RetryPolicy from --retry-count and
// --request-delay. MaxDelay is capped at RequestDelay per spec.md
// §4.8 ("exponential backoff capped at the request delay"), not left
// at fetcher.DefaultRetryPolicy's fixed 30s.
func (c Config) RetryPolicy() fetcher.RetryPolicy {
	policy := fetcher.DefaultRetryPolicy()
	policy.MaxRetries = c.RetryCount
	if c.RequestDelay > 0 {
		policy.MaxDelay = c.RequestDelay
	}
	return policy
}

// JSON serializes Config for Session.ConfigJSON, the snapshot stored
// alongside each session row.
func (c Config) JSON() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(b), nil
}
