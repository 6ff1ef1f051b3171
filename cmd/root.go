// Package cmd wires the root CLI command: flag parsing, config
// assembly, and dispatch into either a crawl session or one of the
// database maintenance operations. Generalized from the teacher's bare
// flag-based main.go into a github.com/spf13/cobra command, following
// docs-crawler's internal/cli.rootCmd for structure — cobra is the only
// framework in the retrieved corpus that comfortably expresses the
// spec's full flag surface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/zombiecrawl/config"
	"github.com/lukemcguire/zombiecrawl/dedup"
)

// ExitError carries the process exit code a failure should produce,
// per spec §6: 1 configuration error, 2 invalid arguments, >=3 internal.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

func configErr(format string, a ...any) error {
	return &ExitError{Code: 1, Err: fmt.Errorf(format, a...)}
}

func argErr(format string, a ...any) error {
	return &ExitError{Code: 2, Err: fmt.Errorf(format, a...)}
}

var (
	outputDir   string
	maxDepth    int
	maxPages    int
	allowedPath string
	allowedPaths []string
	requestDelay int
	concurrency int
	userAgent   string
	timeout     time.Duration
	retryCount  int

	scraper       string
	scraperConfig string

	ignoreGetParams bool
	ignoreCanonical bool
	ignoreDuplicates bool
	forceRescrape bool
	clearURLs     bool

	disableSSRFCheck bool

	listFiles bool
	saveURLs  bool
	saveFiles bool
	verbose   bool
	quiet     bool

	showDBStats         bool
	showErrors          bool
	showScrapedURLs     bool
	showSessions        bool
	showSessionsDetailed bool
	clearSessionID      uint
	clearLastSession    bool
	cleanupSessions     bool
	deleteFiles         bool
)

// RootCmd is the zombiecrawl CLI entrypoint.
var RootCmd = &cobra.Command{
	Use:   "zombiecrawl <start-url> --output-dir <dir>",
	Short: "Resumable website crawler with SSRF defense and content dedup.",
	Long: `zombiecrawl crawls a website starting from a single URL, respecting
robots.txt, rejecting requests to private/link-local addresses, and
materializing each page plus its metadata under an output directory
backed by a durable session store.`,
	RunE: runRoot,
}

// Execute runs the root command under ctx (cancellation propagates into
// the scheduler as a user interrupt) and returns the process exit code.
func Execute(ctx context.Context) int {
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
	if err := RootCmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.Err)
			return exitErr.Code
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			return 130
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 3
	}
	return 0
}

func init() {
	flags := RootCmd.Flags()
	flags.StringVar(&outputDir, "output-dir", "", "output directory (required)")
	flags.IntVar(&maxDepth, "max-depth", -1, "maximum crawl depth (-1 = unbounded)")
	flags.IntVar(&maxPages, "max-pages", -1, "maximum pages to fetch (-1 = unbounded)")
	flags.StringVar(&allowedPath, "allowed-path", "", "single allowed path prefix (legacy; mutually exclusive with --allowed-paths)")
	flags.StringSliceVar(&allowedPaths, "allowed-paths", nil, "allowed path prefixes (repeatable)")
	flags.IntVar(&requestDelay, "request-delay", 1, "seconds to wait between requests to the same host")
	flags.IntVar(&concurrency, "concurrent-requests", 10, "maximum concurrent fetches")
	flags.StringVar(&userAgent, "user-agent", "zombiecrawl/1.0 (+https://github.com/lukemcguire/zombiecrawl)", "user agent string")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	flags.IntVar(&retryCount, "retry-count", 2, "retries for transient fetch errors")

	flags.StringVar(&scraper, "scraper", "http", "fetch backend: http, mirror, or browser")
	flags.StringVar(&scraperConfig, "scraper-config", "", "path to backend-specific configuration")

	flags.BoolVar(&ignoreGetParams, "ignore-get-params", false, "drop query strings during normalization")
	flags.BoolVar(&ignoreCanonical, "ignore-canonical", false, "disable canonical-URL dedup (D2)")
	flags.BoolVar(&ignoreDuplicates, "ignore-duplicates", false, "disable content-checksum dedup (D3)")
	flags.BoolVar(&forceRescrape, "force-rescrape", false, "bypass URL-identity dedup (D1)")
	flags.BoolVar(&clearURLs, "clear-urls", false, "clear scraped_urls rows for this output directory before crawling")

	flags.BoolVar(&disableSSRFCheck, "disable-ssrf-check", false, "disable the SSRF safety gate (testing only)")

	flags.BoolVar(&listFiles, "list-files", false, "print one line per URL after the crawl")
	flags.BoolVar(&saveURLs, "save-urls", false, "write the URL listing as CSV to <output-dir>/urls.csv")
	flags.BoolVar(&saveFiles, "save-files", false, "write the full report as JSON to <output-dir>/report.json")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "warn-level logging only")

	flags.BoolVar(&showDBStats, "show-db-stats", false, "print row counts and exit")
	flags.BoolVar(&showErrors, "show-errors", false, "print failed URLs for the most recent session and exit")
	flags.BoolVar(&showScrapedURLs, "show-scraped-urls", false, "print scraped URLs for the most recent session and exit")
	flags.BoolVar(&showSessions, "show-sessions", false, "list sessions and exit")
	flags.BoolVar(&showSessionsDetailed, "show-sessions-detailed", false, "list sessions with full detail and exit")
	flags.UintVar(&clearSessionID, "clear-session", 0, "delete the session with this ID and exit")
	flags.BoolVar(&clearLastSession, "clear-last-session", false, "delete the most recent session for --output-dir and exit")
	flags.BoolVar(&cleanupSessions, "cleanup-sessions", false, "reclassify idle running sessions as interrupted and exit")
	flags.BoolVar(&deleteFiles, "delete-files", false, "also delete materialized files when clearing a session")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	switch {
	case verbose:
		level = zerolog.DebugLevel
	case quiet:
		level = zerolog.WarnLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func runRoot(c *cobra.Command, args []string) error {
	logger := newLogger()

	if outputDir == "" {
		return configErr("--output-dir is required")
	}
	if allowedPath != "" && len(allowedPaths) > 0 {
		return argErr("--allowed-path and --allowed-paths are mutually exclusive")
	}

	if isMaintenanceInvocation() {
		return runMaintenance(logger)
	}

	if len(args) != 1 {
		return argErr("expected exactly one start URL argument, got %d", len(args))
	}

	cfg, err := buildConfig(args[0])
	if err != nil {
		return err
	}

	return runCrawl(c.Context(), cfg, logger, clearURLs)
}

// buildConfig assembles a config.Config from the package-level flag
// variables and the positional start URL. Split out from runRoot so it
// can be exercised directly in tests without driving cobra.
func buildConfig(rawURL string) (config.Config, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return config.Config{}, configErr("invalid start URL %q: must be http:// or https://", rawURL)
	}

	paths := allowedPaths
	if allowedPath != "" {
		paths = []string{allowedPath}
	}

	cfg := config.Default()
	cfg.StartURL = rawURL
	cfg.OutputDir = outputDir
	cfg.AllowedPaths = paths
	cfg.MaxDepth = maxDepth
	cfg.MaxPages = maxPages
	cfg.RequestDelay = time.Duration(requestDelay) * time.Second
	cfg.Concurrency = concurrency
	cfg.UserAgent = userAgent
	cfg.Timeout = timeout
	cfg.RetryCount = retryCount
	cfg.Scraper = config.Scraper(scraper)
	cfg.ScraperConfig = scraperConfig
	cfg.Dedup = dedup.Config{
		IgnoreGetParams:  ignoreGetParams,
		IgnoreCanonical:  ignoreCanonical,
		IgnoreDuplicates: ignoreDuplicates,
		ForceRescrape:    forceRescrape,
	}
	cfg.DisableSSRFCheck = disableSSRFCheck
	cfg.ListFiles = listFiles
	cfg.SaveURLs = saveURLs
	cfg.SaveFiles = saveFiles
	cfg.Verbose = verbose
	cfg.Quiet = quiet

	return cfg, nil
}

func isMaintenanceInvocation() bool {
	return showDBStats || showErrors || showScrapedURLs || showSessions ||
		showSessionsDetailed || clearSessionID != 0 || clearLastSession || cleanupSessions
}

// ResetFlags restores every package-level flag variable to its registered
// default, for test isolation between cases that set flags directly.
func ResetFlags() {
	outputDir = ""
	maxDepth = -1
	maxPages = -1
	allowedPath = ""
	allowedPaths = nil
	requestDelay = 1
	concurrency = 10
	userAgent = "zombiecrawl/1.0 (+https://github.com/lukemcguire/zombiecrawl)"
	timeout = 10 * time.Second
	retryCount = 2
	scraper = "http"
	scraperConfig = ""
	ignoreGetParams = false
	ignoreCanonical = false
	ignoreDuplicates = false
	forceRescrape = false
	clearURLs = false
	disableSSRFCheck = false
	listFiles = false
	saveURLs = false
	saveFiles = false
	verbose = false
	quiet = false
	showDBStats = false
	showErrors = false
	showScrapedURLs = false
	showSessions = false
	showSessionsDetailed = false
	clearSessionID = 0
	clearLastSession = false
	cleanupSessions = false
	deleteFiles = false
}
