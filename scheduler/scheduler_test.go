package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lukemcguire/zombiecrawl/dedup"
	"github.com/lukemcguire/zombiecrawl/fetcher"
	"github.com/lukemcguire/zombiecrawl/robots"
	"github.com/lukemcguire/zombiecrawl/safety"
	"github.com/lukemcguire/zombiecrawl/store"
	"github.com/lukemcguire/zombiecrawl/writer"
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

func TestScheduler_BasicCrawlTwoPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><a href="/a">a</a><a href="https://other.invalid/">other</a></body></html>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body>leaf page</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outputDir := t.TempDir()
	s := newTestStore(t)
	session, err := s.OpenSession(outputDir, srv.URL+"/", "{}")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	dedupEngine := dedup.New(s, dedup.Config{})
	robotsCache := robots.NewCache(&http.Client{Timeout: 5 * time.Second})
	ssrfGate := safety.NewGate(true) // httptest listens on loopback
	httpFetcher := fetcher.NewHTTPAdapter(&http.Client{}, 5*time.Second)
	w := writer.New(outputDir)

	cfg := DefaultConfig()
	cfg.StartURL = srv.URL + "/"
	cfg.MaxDepth = 1
	cfg.MaxPages = 10
	cfg.RequestDelay = 0
	cfg.Concurrency = 2

	sched, err := New(cfg, session, s, dedupEngine, robotsCache, ssrfGate, httpFetcher, w, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows, err := s.ListScraped(session.ID)
	if err != nil {
		t.Fatalf("ListScraped() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListScraped() = %d rows, want 2: %+v", len(rows), rows)
	}
	for _, row := range rows {
		if row.TargetFilename == "" {
			t.Errorf("row %q has no TargetFilename", row.URL)
		}
		if _, err := os.Stat(filepath.Join(outputDir, row.TargetFilename)); err != nil {
			t.Errorf("materialized file missing for %q: %v", row.URL, err)
		}
	}
}

func TestScheduler_SkipsOrdinaryLinkToKnownCanonicalTarget(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><a href="/canon">canon</a></body></html>`))
	})
	mux.HandleFunc("/canon", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>should not be re-fetched</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outputDir := t.TempDir()
	s := newTestStore(t)
	session, err := s.OpenSession(outputDir, srv.URL+"/", "{}")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	// A prior page (already recorded under a different session in this
	// output directory) declared srv.URL+"/canon" as its canonical target.
	other, err := s.OpenSession(outputDir+"-other", srv.URL+"/elsewhere", "{}")
	if err != nil {
		t.Fatalf("OpenSession(other) error = %v", err)
	}
	if err := s.RecordScrape(store.ScrapedURL{
		URL: srv.URL + "/elsewhere", SessionID: other.ID, StatusCode: 200,
		CanonicalURL: srv.URL + "/canon", ScrapedAt: time.Now(),
	}); err != nil {
		t.Fatalf("RecordScrape() error = %v", err)
	}

	dedupEngine := dedup.New(s, dedup.Config{})
	robotsCache := robots.NewCache(&http.Client{Timeout: 5 * time.Second})
	ssrfGate := safety.NewGate(true)
	httpFetcher := fetcher.NewHTTPAdapter(&http.Client{}, 5*time.Second)
	w := writer.New(outputDir)

	cfg := DefaultConfig()
	cfg.StartURL = srv.URL + "/"
	cfg.MaxDepth = 1
	cfg.MaxPages = 10
	cfg.RequestDelay = 0
	cfg.Concurrency = 2

	sched, err := New(cfg, session, s, dedupEngine, robotsCache, ssrfGate, httpFetcher, w, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows, err := s.ListScraped(session.ID)
	if err != nil {
		t.Fatalf("ListScraped() error = %v", err)
	}
	for _, row := range rows {
		if row.URL == srv.URL+"/canon" {
			t.Errorf("expected /canon not to be re-admitted as an ordinary link, got row %+v", row)
		}
	}
}

func TestScheduler_PathRestriction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/index.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><a href="/blog/post">blog</a><a href="/api/v2/foo">v2</a></body></html>`))
	})
	mux.HandleFunc("/api/v2/foo", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>v2 leaf</body></html>`))
	})
	mux.HandleFunc("/blog/post", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>should not be fetched</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outputDir := t.TempDir()
	s := newTestStore(t)
	session, err := s.OpenSession(outputDir, srv.URL+"/api/index.html", "{}")
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	dedupEngine := dedup.New(s, dedup.Config{})
	robotsCache := robots.NewCache(&http.Client{Timeout: 5 * time.Second})
	ssrfGate := safety.NewGate(true)
	httpFetcher := fetcher.NewHTTPAdapter(&http.Client{}, 5*time.Second)
	w := writer.New(outputDir)

	cfg := DefaultConfig()
	cfg.StartURL = srv.URL + "/api/index.html"
	cfg.MaxDepth = 2
	cfg.MaxPages = 10
	cfg.RequestDelay = 0
	cfg.Concurrency = 2

	sched, err := New(cfg, session, s, dedupEngine, robotsCache, ssrfGate, httpFetcher, w, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows, err := s.ListScraped(session.ID)
	if err != nil {
		t.Fatalf("ListScraped() error = %v", err)
	}
	for _, row := range rows {
		if row.URL == srv.URL+"/blog/post" {
			t.Errorf("blog/post should have been rejected by path restriction, got row %+v", row)
		}
	}
	foundV2 := false
	for _, row := range rows {
		if row.URL == srv.URL+"/api/v2/foo" {
			foundV2 = true
		}
	}
	if !foundV2 {
		t.Errorf("expected /api/v2/foo to be admitted, rows = %+v", rows)
	}
}

