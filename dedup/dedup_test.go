package dedup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/lukemcguire/zombiecrawl/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "scrape_tracker.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestCheckURLIdentity(t *testing.T) {
	s := newTestStore(t)
	session, err := s.OpenSession("/out", "https://example.com/", "{}")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	engine := New(s, Config{})

	skip, err := engine.CheckURLIdentity("https://example.com/")
	if err != nil {
		t.Fatalf("CheckURLIdentity() error = %v", err)
	}
	if skip {
		t.Error("expected not to skip an unseen URL")
	}

	if err := s.RecordScrape(store.ScrapedURL{
		URL: "https://example.com/", SessionID: session.ID, StatusCode: 200, ScrapedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordScrape() error = %v", err)
	}

	skip, err = engine.CheckURLIdentity("https://example.com/")
	if err != nil {
		t.Fatalf("CheckURLIdentity() error = %v", err)
	}
	if !skip {
		t.Error("expected to skip an already-scraped URL")
	}
}

func TestCheckURLIdentity_ForceRescrapeBypasses(t *testing.T) {
	s := newTestStore(t)
	session, err := s.OpenSession("/out", "https://example.com/", "{}")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if err := s.RecordScrape(store.ScrapedURL{
		URL: "https://example.com/", SessionID: session.ID, StatusCode: 200, ScrapedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordScrape() error = %v", err)
	}

	engine := New(s, Config{ForceRescrape: true})
	skip, err := engine.CheckURLIdentity("https://example.com/")
	if err != nil {
		t.Fatalf("CheckURLIdentity() error = %v", err)
	}
	if skip {
		t.Error("expected --force-rescrape to bypass D1")
	}
}

func TestCheckCanonical(t *testing.T) {
	s := newTestStore(t)
	engine := New(s, Config{})

	decision, err := engine.CheckCanonical("https://example.com/p?utm=1", "https://example.com/p")
	if err != nil {
		t.Fatalf("CheckCanonical() error = %v", err)
	}
	if decision.Materialize {
		t.Error("expected Materialize=false when canonical differs")
	}
	if decision.EnqueueCanonical != "https://example.com/p" {
		t.Errorf("EnqueueCanonical = %q, want https://example.com/p", decision.EnqueueCanonical)
	}

	decision, err = engine.CheckCanonical("https://example.com/p", "https://example.com/p")
	if err != nil {
		t.Fatalf("CheckCanonical() error = %v", err)
	}
	if !decision.Materialize {
		t.Error("expected Materialize=true when canonical matches final URL")
	}
}

func TestCheckCanonical_Disabled(t *testing.T) {
	s := newTestStore(t)
	engine := New(s, Config{IgnoreCanonical: true})

	decision, err := engine.CheckCanonical("https://example.com/p?utm=1", "https://example.com/p")
	if err != nil {
		t.Fatalf("CheckCanonical() error = %v", err)
	}
	if !decision.Materialize {
		t.Error("expected --ignore-canonical to always materialize")
	}
}

func TestAlreadyCanonicalTarget(t *testing.T) {
	s := newTestStore(t)
	engine := New(s, Config{})

	session, err := s.OpenSession("/out", "https://example.com/", "{}")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if err := s.RecordScrape(store.ScrapedURL{
		URL: "https://example.com/p?utm=1", SessionID: session.ID, StatusCode: 200,
		CanonicalURL: "https://example.com/p", ScrapedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordScrape() error = %v", err)
	}

	already, err := engine.AlreadyCanonicalTarget("https://example.com/p")
	if err != nil {
		t.Fatalf("AlreadyCanonicalTarget() error = %v", err)
	}
	if !already {
		t.Error("expected https://example.com/p to already be a known canonical target")
	}

	already, err = engine.AlreadyCanonicalTarget("https://example.com/q")
	if err != nil {
		t.Fatalf("AlreadyCanonicalTarget() error = %v", err)
	}
	if already {
		t.Error("https://example.com/q was never declared as a canonical target")
	}
}

func TestCheckContent(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordChecksum("deadbeef", "https://example.com/first"); err != nil {
		t.Fatalf("RecordChecksum() error = %v", err)
	}

	engine := New(s, Config{})
	decision, err := engine.CheckContent("deadbeef")
	if err != nil {
		t.Fatalf("CheckContent() error = %v", err)
	}
	if !decision.SkipWrite {
		t.Error("expected SkipWrite=true for an already-known checksum")
	}

	decision, err = engine.CheckContent("newchecksum")
	if err != nil {
		t.Fatalf("CheckContent() error = %v", err)
	}
	if decision.SkipWrite {
		t.Error("expected SkipWrite=false for a new checksum")
	}
}

func TestCheckContent_Disabled(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordChecksum("deadbeef", "https://example.com/first"); err != nil {
		t.Fatalf("RecordChecksum() error = %v", err)
	}

	engine := New(s, Config{IgnoreDuplicates: true})
	decision, err := engine.CheckContent("deadbeef")
	if err != nil {
		t.Fatalf("CheckContent() error = %v", err)
	}
	if decision.SkipWrite {
		t.Error("expected --ignore-duplicates to never skip a write")
	}
}
