// Package dedup implements the crawler's three-layer deduplication
// pipeline: URL identity (D1), canonical URL (D2), and content checksum
// (D3), applied strictly in that order and each independently
// disableable.
package dedup

import (
	"errors"
	"fmt"

	"github.com/lukemcguire/zombiecrawl/store"
	"github.com/lukemcguire/zombiecrawl/urlutil"
)

// Config toggles individual dedup stages, mapped 1:1 onto the CLI's
// dedup flags.
type Config struct {
	IgnoreGetParams  bool // threaded into urlutil.Normalize for D2's comparison
	IgnoreCanonical  bool // disables D2
	IgnoreDuplicates bool // disables D3
	ForceRescrape    bool // bypasses D1
}

// Engine runs the dedup pipeline against a Store.
type Engine struct {
	store *store.Store
	cfg   Config
}

// New builds a dedup Engine backed by s.
func New(s *store.Store, cfg Config) *Engine {
	return &Engine{store: s, cfg: cfg}
}

// CheckURLIdentity is D1: pre-fetch, cheap. It reports whether url
// should be skipped because it was already scraped in a prior attempt
// and --force-rescrape was not requested.
func (e *Engine) CheckURLIdentity(url string) (skip bool, err error) {
	if e.cfg.ForceRescrape {
		return false, nil
	}
	_, err = e.store.GetScraped(url)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check URL identity for %s: %w", url, err)
	}
	return true, nil
}

// CanonicalDecision is the result of D2.
type CanonicalDecision struct {
	Materialize      bool
	EnqueueCanonical string // non-empty when canonicalURL differs from finalURL
}

// CheckCanonical is D2: post-fetch, semantic. If the page declares a
// canonical URL that differs from where it was actually fetched, the
// page is not materialized and the canonical URL is returned for
// re-enqueueing instead (subject to the scheduler's path restriction).
func (e *Engine) CheckCanonical(finalURL, rawCanonical string) (CanonicalDecision, error) {
	if e.cfg.IgnoreCanonical || rawCanonical == "" {
		return CanonicalDecision{Materialize: true}, nil
	}

	normalizedCanonical, err := urlutil.Normalize(rawCanonical, urlutil.Options{IgnoreGetParams: e.cfg.IgnoreGetParams})
	if err != nil {
		// An unparsable declared canonical is not a reason to withhold
		// the page the crawler actually has in hand.
		return CanonicalDecision{Materialize: true}, nil
	}

	normalizedFinal, err := urlutil.Normalize(finalURL, urlutil.Options{IgnoreGetParams: e.cfg.IgnoreGetParams})
	if err != nil {
		return CanonicalDecision{}, fmt.Errorf("normalize final URL %s: %w", finalURL, err)
	}

	if normalizedCanonical == normalizedFinal {
		return CanonicalDecision{Materialize: true}, nil
	}
	return CanonicalDecision{Materialize: false, EnqueueCanonical: normalizedCanonical}, nil
}

// ContentDecision is the result of D3.
type ContentDecision struct {
	SkipWrite bool
}

// CheckContent is D3: post-fetch, expensive but final. If checksum is
// already recorded in the Store, the write is skipped; the caller still
// records a ScrapedURL row pointing at the existing checksum.
func (e *Engine) CheckContent(checksum string) (ContentDecision, error) {
	if e.cfg.IgnoreDuplicates || checksum == "" {
		return ContentDecision{}, nil
	}
	exists, err := e.store.HasChecksum(checksum)
	if err != nil {
		return ContentDecision{}, fmt.Errorf("check content checksum %s: %w", checksum, err)
	}
	return ContentDecision{SkipWrite: exists}, nil
}

// AlreadyCanonicalTarget reports whether url is already known as some
// page's declared canonical target, used by the scheduler to avoid
// re-enqueuing a canonical URL that a different page already pointed at.
func (e *Engine) AlreadyCanonicalTarget(url string) (bool, error) {
	canonicals, err := e.store.AllCanonicals()
	if err != nil {
		return false, fmt.Errorf("list known canonicals: %w", err)
	}
	_, ok := canonicals[url]
	return ok, nil
}
