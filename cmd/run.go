package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/lukemcguire/zombiecrawl/config"
	"github.com/lukemcguire/zombiecrawl/dedup"
	"github.com/lukemcguire/zombiecrawl/fetcher"
	"github.com/lukemcguire/zombiecrawl/result"
	"github.com/lukemcguire/zombiecrawl/robots"
	"github.com/lukemcguire/zombiecrawl/safety"
	"github.com/lukemcguire/zombiecrawl/scheduler"
	"github.com/lukemcguire/zombiecrawl/session"
	"github.com/lukemcguire/zombiecrawl/store"
	"github.com/lukemcguire/zombiecrawl/tui"
	"github.com/lukemcguire/zombiecrawl/writer"
)

// runCrawl opens the store, starts a session, builds the scheduler, and
// drives it through the Bubble Tea TUI, mirroring the teacher's
// main.runTUI wiring generalized to the full component set.
func runCrawl(ctx context.Context, cfg config.Config, logger zerolog.Logger, clearURLsFirst bool) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("create output dir: %w", err)}
	}

	s, err := store.Open(filepath.Join(cfg.OutputDir, "scrape_tracker.db"))
	if err != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("open store: %w", err)}
	}
	defer s.Close()

	if clearURLsFirst {
		if err := s.ClearURLs(cfg.OutputDir); err != nil {
			return &ExitError{Code: 3, Err: fmt.Errorf("clear urls: %w", err)}
		}
		if cfg.Dedup.ForceRescrape {
			if err := s.ClearChecksums(); err != nil {
				return &ExitError{Code: 3, Err: fmt.Errorf("clear checksums: %w", err)}
			}
		}
	}

	fetch, err := buildFetcher(cfg)
	if err != nil {
		return configErr("%v", err)
	}

	configJSON, err := cfg.JSON()
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	sessionCtl := session.New(s, logger)
	sess, err := sessionCtl.Start(cfg.OutputDir, cfg.StartURL, configJSON)
	if err != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("start session: %w", err)}
	}

	events := make(chan scheduler.Event, 64)

	sched, err := scheduler.New(
		schedulerConfig(cfg),
		sess,
		s,
		dedupEngine(s, cfg),
		robots.NewCache(&http.Client{Timeout: cfg.Timeout}),
		safety.NewGate(cfg.DisableSSRFCheck),
		fetch,
		writer.New(cfg.OutputDir),
		events,
	)
	if err != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("build scheduler: %w", err)}
	}
	defer sched.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner := func(ctx context.Context) (*result.Report, error) {
		runErr := sched.Run(ctx)
		close(events)
		summary, stopErr := sessionCtl.Stop(ctx, runErr)
		if stopErr != nil {
			return nil, stopErr
		}

		rows, err := s.ListScraped(sess.ID)
		if err != nil {
			return nil, fmt.Errorf("list scraped urls: %w", err)
		}
		report := &result.Report{Summary: summary, URLs: result.FromScraped(rows)}

		if runErr != nil && summary.Status != store.StatusInterrupted {
			return report, runErr
		}
		return report, nil
	}

	model := tui.NewModel(runCtx, cancel, runner, events)
	program := tea.NewProgram(model)

	finalModel, err := program.Run()
	if err != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("run tui: %w", err)}
	}
	final := finalModel.(tui.Model)
	report := final.GetReport()

	if err := writeSideOutputs(cfg, report); err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	if report != nil && report.Summary.Status == store.StatusInterrupted {
		return &ExitError{Code: 130, Err: fmt.Errorf("crawl interrupted")}
	}
	if report != nil && report.Summary.Status == store.StatusFailed {
		return &ExitError{Code: 1, Err: fmt.Errorf("session failed")}
	}
	return nil
}

func dedupEngine(s *store.Store, cfg config.Config) *dedup.Engine {
	return dedup.New(s, cfg.Dedup)
}

func buildFetcher(cfg config.Config) (fetcher.Fetcher, error) {
	switch cfg.Scraper {
	case config.ScraperHTTP, "":
		return fetcher.NewHTTPAdapter(&http.Client{}, cfg.Timeout), nil
	case config.ScraperMirror:
		if cfg.ScraperConfig == "" {
			return nil, fmt.Errorf("--scraper=mirror requires --scraper-config <path to mirror binary>")
		}
		return fetcher.NewMirrorAdapter(cfg.ScraperConfig, filepath.Join(cfg.OutputDir, ".mirror-scratch")), nil
	case config.ScraperBrowser:
		return fetcher.NewBrowserAdapter(nil), nil
	default:
		return nil, fmt.Errorf("unknown --scraper %q", cfg.Scraper)
	}
}

func schedulerConfig(cfg config.Config) scheduler.Config {
	sc := scheduler.DefaultConfig()
	sc.StartURL = cfg.StartURL
	sc.AllowedPaths = cfg.AllowedPaths
	sc.MaxDepth = cfg.MaxDepth
	sc.MaxPages = cfg.MaxPages
	sc.Concurrency = cfg.Concurrency
	sc.RequestDelay = cfg.RequestDelay
	sc.RequestTimeout = cfg.Timeout
	sc.UserAgent = cfg.UserAgent
	sc.MaxBodyBytes = cfg.MaxBodyBytes
	sc.RetryPolicy = cfg.RetryPolicy()
	sc.DedupConfig = cfg.Dedup
	sc.MemoryLimitMB = cfg.MemoryLimitMB
	return sc
}

func writeSideOutputs(cfg config.Config, report *result.Report) error {
	if report == nil {
		return nil
	}
	if cfg.SaveURLs {
		f, err := os.Create(filepath.Join(cfg.OutputDir, "urls.csv"))
		if err != nil {
			return fmt.Errorf("create urls.csv: %w", err)
		}
		defer f.Close()
		if err := result.WriteCSV(f, report.URLs); err != nil {
			return err
		}
	}
	if cfg.SaveFiles {
		f, err := os.Create(filepath.Join(cfg.OutputDir, "report.json"))
		if err != nil {
			return fmt.Errorf("create report.json: %w", err)
		}
		defer f.Close()
		if err := result.WriteJSON(f, report); err != nil {
			return err
		}
	}
	if cfg.ListFiles {
		result.PrintResults(os.Stdout, report, true)
	} else {
		result.PrintResults(os.Stdout, report, false)
	}
	return nil
}
