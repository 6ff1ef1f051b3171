package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/lukemcguire/zombiecrawl/session"
	"github.com/lukemcguire/zombiecrawl/store"
)

// runMaintenance opens the store for --output-dir and performs exactly
// one of the requested database operations, printing human-readable
// output to stdout. It never touches the scheduler.
func runMaintenance(logger zerolog.Logger) error {
	s, err := store.Open(filepath.Join(outputDir, "scrape_tracker.db"))
	if err != nil {
		return &ExitError{Code: 3, Err: fmt.Errorf("open store: %w", err)}
	}
	defer s.Close()

	ctl := session.New(s, logger)

	switch {
	case showDBStats:
		return printDBStats(s)
	case showSessions, showSessionsDetailed:
		return printSessions(ctl, showSessionsDetailed)
	case showScrapedURLs:
		return printScrapedURLs(ctl)
	case showErrors:
		return printErrors(ctl, s)
	case clearSessionID != 0:
		if err := ctl.ClearSession(clearSessionID, deleteFiles); err != nil {
			return &ExitError{Code: 3, Err: err}
		}
		fmt.Printf("cleared session %d\n", clearSessionID)
		return nil
	case clearLastSession:
		if err := ctl.ClearLastSession(outputDir, deleteFiles); err != nil {
			return &ExitError{Code: 3, Err: err}
		}
		fmt.Println("cleared most recent session")
		return nil
	case cleanupSessions:
		n, err := ctl.CleanupOrphans()
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}
		fmt.Printf("reclassified %d orphaned session(s) as interrupted\n", n)
		return nil
	}
	return nil
}

// latestSessionForOutputDir finds the most recent session scoped to
// --output-dir, since --show-errors/--show-scraped-urls operate on one
// output directory's history, not the whole database.
func latestSessionForOutputDir(ctl *session.Controller) (*store.Session, error) {
	sessions, err := ctl.ListSessions()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		if sess.OutputDir == outputDir {
			s := sess
			return &s, nil
		}
	}
	return nil, fmt.Errorf("no sessions recorded for %s", outputDir)
}

func printDBStats(s *store.Store) error {
	stats, err := s.StatsSummary()
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	fmt.Printf("sessions:          %d\n", stats.Sessions)
	fmt.Printf("scraped urls:      %d\n", stats.URLs)
	fmt.Printf("content checksums: %d\n", stats.Checksums)
	return nil
}

func printSessions(ctl *session.Controller, detailed bool) error {
	sessions, err := ctl.ListSessions()
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()

	if !detailed {
		fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tSUCCESS\tFAILED")
		for _, sess := range sessions {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n",
				sess.ID, sess.Status, sess.StartedAt.Format("2006-01-02 15:04:05"),
				sess.PagesSuccess, sess.PagesFailed)
		}
		return nil
	}

	fmt.Fprintln(w, "ID\tSTATUS\tSTART URL\tOUTPUT DIR\tSTARTED\tENDED\tSUCCESS\tFAILED")
	for _, sess := range sessions {
		ended := "-"
		if sess.EndedAt != nil {
			ended = sess.EndedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			sess.ID, sess.Status, sess.StartURL, sess.OutputDir,
			sess.StartedAt.Format("2006-01-02 15:04:05"), ended,
			sess.PagesSuccess, sess.PagesFailed)
	}
	return nil
}

func printScrapedURLs(ctl *session.Controller) error {
	latest, err := latestSessionForOutputDir(ctl)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	_, rows, err := ctl.ShowSession(latest.ID)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "URL\tSTATUS\tFILE\tDEPTH")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\n", row.URL, row.StatusCode, row.TargetFilename, row.Depth)
	}
	return nil
}

func printErrors(ctl *session.Controller, s *store.Store) error {
	latest, err := latestSessionForOutputDir(ctl)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	rows, err := s.ListErrors(latest.ID)
	if err != nil {
		return &ExitError{Code: 3, Err: err}
	}
	if len(rows) == 0 {
		fmt.Printf("session %d: no errors\n", latest.ID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "URL\tERROR")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\n", row.URL, row.Error)
	}
	return nil
}
