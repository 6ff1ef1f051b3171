// Package fetcher defines the crawler's fetch contract and its adapters.
// Adapters are pure with respect to the store: all disk/DB side effects
// happen elsewhere (writer, store), never inside a Fetcher.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
)

// Kind classifies why a fetch failed, mirroring the teacher's
// result.ErrorCategory taxonomy generalized to the full spec kind set.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
	KindTLS             Kind = "tls"
	KindHTTP4xx         Kind = "http4xx"
	KindHTTP5xx         Kind = "http5xx"
	KindBlockedByRobots Kind = "blockedByRobots"
	KindSSRF            Kind = "ssrf"
	KindOversize        Kind = "oversize"
	KindUnsupportedType Kind = "unsupportedType"
)

// Error is a classified fetch failure. Retryable is true for transient
// network/timeout/5xx conditions; everything else is terminal.
type Error struct {
	Kind       Kind
	Retryable  bool
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// FetchResult is the successful outcome of a fetch.
type FetchResult struct {
	StatusCode  int
	Headers     http.Header
	BodyBytes   []byte
	FinalURL    string
	ContentType string
	Encoding    string
}

// Options configures a single fetch.
type Options struct {
	UserAgent    string
	MaxBodyBytes int64
}

// Fetcher retrieves a URL's content. Implementations must respect
// ctx cancellation and never write to disk or the store themselves.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts Options) (*FetchResult, *Error)
}
