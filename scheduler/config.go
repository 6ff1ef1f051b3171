package scheduler

import (
	"time"

	"github.com/lukemcguire/zombiecrawl/dedup"
	"github.com/lukemcguire/zombiecrawl/fetcher"
)

// Config parameterizes one crawl run. It is assembled by the cmd package
// from CLI flags and a resumed session's stored snapshot.
type Config struct {
	StartURL string

	// AllowedPaths restricts traversal to URLs whose path has one of
	// these prefixes. The start URL is always admitted regardless. Empty
	// restricts traversal to the start URL's directory ("/api/" for a
	// start path of "/api/index.html").
	AllowedPaths []string

	MaxDepth int // URLs with Depth > MaxDepth are rejected at admission; -1 means unbounded.
	MaxPages int // -1 means unbounded.

	Concurrency    int
	RequestDelay   time.Duration // politeness floor per host, from request 4 onward
	RequestTimeout time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	RetryPolicy    fetcher.RetryPolicy

	DedupConfig dedup.Config

	MemoryLimitMB int64 // 0 disables the memory watcher

	// ResumeLinkScanLimit bounds how many of the most recently scraped
	// pages are re-extracted for outbound links when reconstructing the
	// frontier on resume. See DESIGN.md for the Open Question this
	// resolves.
	ResumeLinkScanLimit int
}

// DefaultConfig mirrors the teacher's DefaultConfig-style defaults,
// widened to the full scheduler surface.
func DefaultConfig() Config {
	return Config{
		MaxDepth:            -1,
		MaxPages:            -1,
		Concurrency:         10,
		RequestDelay:        time.Second,
		RequestTimeout:      10 * time.Second,
		UserAgent:           "zombiecrawl/1.0 (+https://github.com/lukemcguire/zombiecrawl)",
		MaxBodyBytes:        10 << 20,
		RetryPolicy:         fetcher.DefaultRetryPolicy(),
		ResumeLinkScanLimit: 20,
	}
}
