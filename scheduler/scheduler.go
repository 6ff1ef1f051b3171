// Package scheduler implements the crawler's coordinator: a single
// goroutine owning the frontier and per-host state, dispatching to a
// bounded worker pool, generalized from the teacher's crawler.Crawler
// coordinator/worker-pool pattern (golang.org/x/sync/errgroup, buffered
// jobs/results channels, a pendingJobs WaitGroup).
package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/zombiecrawl/dedup"
	"github.com/lukemcguire/zombiecrawl/fetcher"
	"github.com/lukemcguire/zombiecrawl/robots"
	"github.com/lukemcguire/zombiecrawl/safety"
	"github.com/lukemcguire/zombiecrawl/store"
	"github.com/lukemcguire/zombiecrawl/urlutil"
	"github.com/lukemcguire/zombiecrawl/writer"
)

type frontierEntry struct {
	url   string
	depth int
}

type job struct {
	url       string
	depth     int
	notBefore time.Time
}

type jobResult struct {
	job          job
	err          *fetcher.Error
	internalErr  error
	statusCode   int
	written      bool
	skipped      bool
	links        []string
	enqueueExtra []string
}

// Scheduler coordinates one crawl run end to end: admission, per-host
// pacing, fetch dispatch, extraction, dedup, write, and store recording.
type Scheduler struct {
	cfg     Config
	session *store.Session
	store   *store.Store
	dedup   *dedup.Engine
	robots  *robots.Cache
	ssrf    *safety.Gate
	fetch   fetcher.Fetcher
	write   *writer.Writer

	visitedBloom *VisitedTracker
	limiter      *AdaptiveLimiter
	memWatcher   *MemoryWatcher

	events chan<- Event

	admitted     map[string]bool // exact admitted-set for this process run
	hostStates   map[string]*HostState
	pagesSuccess atomic.Int64
	pagesDone    atomic.Int64
	paused       atomic.Bool

	startHost    string
	allowedPaths []string
}

// New builds a Scheduler for one crawl run. events is optional; pass nil
// to disable progress reporting. fetch is typically a *fetcher.HTTPAdapter
// but any Fetcher implementation (mirror, browser) is accepted.
func New(cfg Config, session *store.Session, s *store.Store, dedupEngine *dedup.Engine, robotsCache *robots.Cache, ssrfGate *safety.Gate, fetch fetcher.Fetcher, w *writer.Writer, events chan<- Event) (*Scheduler, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	visited, err := NewVisitedTracker()
	if err != nil {
		return nil, fmt.Errorf("create visited tracker: %w", err)
	}

	sched := &Scheduler{
		cfg:          cfg,
		session:      session,
		store:        s,
		dedup:        dedupEngine,
		robots:       robotsCache,
		ssrf:         ssrfGate,
		fetch:        fetch,
		write:        w,
		visitedBloom: visited,
		limiter:      NewAdaptiveLimiter(cfg.Concurrency*2, cfg.RequestTimeout/2),
		events:       events,
		admitted:     make(map[string]bool),
		hostStates:   make(map[string]*HostState),
	}
	sched.pagesSuccess.Store(int64(session.PagesSuccess))
	sched.pagesDone.Store(int64(session.PagesSuccess + session.PagesFailed))

	if cfg.MemoryLimitMB > 0 {
		sched.memWatcher = NewMemoryWatcher(cfg.MemoryLimitMB)
		sched.memWatcher.SetThrottleCallback(func(level ThrottleLevel) {
			sched.paused.Store(level == ThrottleCritical)
		})
	}

	return sched, nil
}

// Close releases the scheduler's background resources (the bloom
// filter's mmap'd temp file). Safe to call after Run returns.
func (s *Scheduler) Close() error {
	if s.visitedBloom != nil {
		return s.visitedBloom.Close()
	}
	return nil
}

// Run executes the crawl. It returns nil on normal completion (frontier
// drained or max-pages reached) and ctx.Err() if cancellation cut it
// short — the caller (session controller) is responsible for mapping
// that to the interrupted status and exit code 130.
func (s *Scheduler) Run(ctx context.Context) error {
	startURL, err := urlutil.Normalize(s.cfg.StartURL, urlutil.Options{IgnoreGetParams: s.cfg.DedupConfig.IgnoreGetParams})
	if err != nil {
		return fmt.Errorf("normalize start URL: %w", err)
	}

	parsedStart, err := url.Parse(startURL)
	if err != nil {
		return fmt.Errorf("parse start URL: %w", err)
	}
	s.startHost = parsedStart.Hostname()

	// The start URL bypasses every admission gate except this one: a
	// start URL that resolves to a blocked address must fail the
	// session outright rather than silently produce zero pages.
	if allowed, reason, err := s.ssrf.CheckSSRF(ctx, startURL); err != nil {
		return fmt.Errorf("ssrf check start url: %w", err)
	} else if !allowed {
		return fmt.Errorf("safety: start url blocked (%s)", reason)
	}

	s.allowedPaths = s.cfg.AllowedPaths
	if len(s.allowedPaths) == 0 {
		dir := path.Dir(parsedStart.Path)
		if !strings.HasSuffix(dir, "/") {
			dir += "/"
		}
		s.allowedPaths = []string{dir}
	}

	frontier := []frontierEntry{{url: startURL, depth: 0}}
	s.admitted[startURL] = true
	s.visitedBloom.Visit(startURL)

	if resumed, resumeErr := s.reconstructFrontier(ctx); resumeErr != nil {
		return fmt.Errorf("reconstruct frontier from resumed session: %w", resumeErr)
	} else {
		for _, entry := range resumed {
			if !s.admitted[entry.url] {
				s.admitted[entry.url] = true
				s.visitedBloom.Visit(entry.url)
				frontier = append(frontier, entry)
			}
		}
	}

	jobs := make(chan job, s.cfg.Concurrency*3)
	results := make(chan jobResult, s.cfg.Concurrency*3)
	var pending sync.WaitGroup

	group, groupCtx := errgroup.WithContext(ctx)
	for range s.cfg.Concurrency {
		group.Go(func() error {
			for {
				select {
				case j, ok := <-jobs:
					if !ok {
						return nil
					}
					results <- s.processJob(groupCtx, j)
				case <-groupCtx.Done():
					for {
						select {
						case j, ok := <-jobs:
							if !ok {
								return nil
							}
							results <- jobResult{job: j}
						default:
							return nil
						}
					}
				}
			}
		})
	}

	group.Go(func() error {
		pending.Wait()
		close(results)
		return nil
	})

	// Seed dispatch: admission for the frontier already gathered above
	// (start URL unconditionally, resumed links subject to gates).
	dispatchNext := func() bool {
		for len(frontier) > 0 {
			entry := frontier[0]
			frontier = frontier[1:]

			if entry.url != startURL && !s.gateForDispatch(ctx, entry.url, entry.depth) {
				continue
			}
			host := hostOf(entry.url)
			state, ok := s.hostStates[host]
			if !ok {
				state = &HostState{}
				s.hostStates[host] = state
			}
			if _, delay, robotsErr := s.robots.Allowed(ctx, entry.url, s.cfg.UserAgent); robotsErr == nil {
				state.CrawlDelayHint = delay
			}
			notBefore := reserveDispatch(state, s.cfg.RequestDelay, time.Now())

			pending.Add(1)
			jobs <- job{url: entry.url, depth: entry.depth, notBefore: notBefore}
			return true
		}
		return false
	}

	for dispatchNext() {
	}

	for res := range results {
		s.pagesDone.Add(1)
		s.emit(res, len(frontier))

		if ctx.Err() == nil {
			for _, link := range res.links {
				// An ordinary outbound link that some other page already
				// declared as its canonical target is already on its way
				// into the frontier via that page's enqueueExtra; admitting
				// it again here would race a second, redundant fetch of it
				// under the same URL.
				if already, err := s.dedup.AlreadyCanonicalTarget(link); err == nil && already {
					continue
				}
				s.admitLink(ctx, link, res.job.depth+1, &frontier)
			}
			for _, link := range res.enqueueExtra {
				s.admitLink(ctx, link, res.job.depth, &frontier)
			}
		}

		for dispatchNext() {
		}

		pending.Done()
	}

	close(jobs)
	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("wait for workers: %w", err)
	}
	return ctx.Err()
}

// admitLink runs the discovery-time admission gate and, if the link
// passes, appends it to the frontier.
func (s *Scheduler) admitLink(ctx context.Context, link string, depth int, frontier *[]frontierEntry) {
	normalized, err := urlutil.Normalize(link, urlutil.Options{IgnoreGetParams: s.cfg.DedupConfig.IgnoreGetParams})
	if err != nil {
		return
	}
	if s.admitted[normalized] {
		return
	}
	if !s.visitedBloom.VisitIfNew(normalized) {
		return
	}
	s.admitted[normalized] = true
	if !s.gateForDispatch(ctx, normalized, depth) {
		return
	}
	*frontier = append(*frontier, frontierEntry{url: normalized, depth: depth})
}

// gateForDispatch applies every admission check the spec assigns to the
// coordinator, pre-fetch: path restriction, depth/max-pages gates, the
// SSRF gate, a cheap extension check, robots.txt, and D1 URL identity.
func (s *Scheduler) gateForDispatch(ctx context.Context, rawURL string, depth int) bool {
	if s.cfg.MaxDepth >= 0 && depth > s.cfg.MaxDepth {
		return false
	}
	if s.cfg.MaxPages >= 0 && s.pagesSuccess.Load() >= int64(s.cfg.MaxPages) {
		return false
	}
	if !urlutil.IsSameDomain(rawURL, s.startHost) {
		return false
	}
	if !urlutil.PathAllowed(rawURL, s.allowedPaths) {
		return false
	}
	if allow, _ := safety.ExtensionGate(rawURL, ""); !allow {
		return false
	}
	if allowed, _, err := s.ssrf.CheckSSRF(ctx, rawURL); err != nil || !allowed {
		return false
	}
	if allowed, _, _ := s.robots.Allowed(ctx, rawURL, s.cfg.UserAgent); !allowed {
		return false
	}
	if skip, err := s.dedup.CheckURLIdentity(rawURL); err != nil || skip {
		return false
	}
	return true
}

func (s *Scheduler) emit(res jobResult, frontierSz int) {
	if s.events == nil {
		return
	}
	evt := Event{
		URL:        res.job.url,
		Depth:      res.job.depth,
		StatusCode: res.statusCode,
		Written:    res.written,
		Skipped:    res.skipped,
		PagesDone:  int(s.pagesDone.Load()),
		FrontierSz: frontierSz,
	}
	if res.err != nil {
		evt.Error = res.err.Error()
	} else if res.internalErr != nil {
		evt.Error = res.internalErr.Error()
	}
	select {
	case s.events <- evt:
	default:
	}
}

// waitForSlot blocks while the memory watcher reports critical pressure,
// giving the GC room to catch up before admitting more work.
func (s *Scheduler) waitForSlot(ctx context.Context) error {
	if s.memWatcher == nil {
		return nil
	}
	for {
		s.memWatcher.Check()
		if !s.paused.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
