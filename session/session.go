// Package session binds one crawl run to a store.Session row: opening
// it (with orphan recovery), running it to a terminal status, and
// computing the summary the CLI and TUI report on completion. It also
// exposes the maintenance operations (list/show/clear/cleanup) that sit
// outside any single run.
//
// Controller is deliberately emit-only with respect to the scheduler:
// it starts the run, waits for it, and records what happened — it never
// makes admission or retry decisions itself, mirroring the role
// separation of docs-crawler's metadata.CrawlFinalizer.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukemcguire/zombiecrawl/store"
)

// Summary reports what a finished (or interrupted) run accomplished.
type Summary struct {
	SessionID    uint
	Status       store.SessionStatus
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
	PagesSuccess int
	PagesFailed  int
	PagesPerSec  float64
}

// Controller owns the lifecycle of one crawl run's Session row.
type Controller struct {
	store   *store.Store
	logger  zerolog.Logger
	session *store.Session
}

// New wraps s for session lifecycle management. logger is annotated
// with the session module name, following the corpus's
// logger.With().Str("module", ...).Logger() convention.
func New(s *store.Store, logger zerolog.Logger) *Controller {
	return &Controller{
		store:  s,
		logger: logger.With().Str("module", "session").Logger(),
	}
}

// Start opens (or reclaims) a running session for outputDir and returns
// it. ErrSessionRunning from the store is returned unwrapped so callers
// can map it to the "already running" CLI error.
func (c *Controller) Start(outputDir, startURL, configJSON string) (*store.Session, error) {
	sess, err := c.store.OpenSession(outputDir, startURL, configJSON)
	if err != nil {
		if errors.Is(err, store.ErrSessionRunning) {
			return nil, err
		}
		return nil, fmt.Errorf("start session: %w", err)
	}
	c.session = sess
	c.logger.Info().Uint("session_id", sess.ID).Str("start_url", startURL).Msg("session started")
	return sess, nil
}

// Stop finalizes the session's status based on runErr (the error
// returned by scheduler.Run) and the calling context's cancellation
// state, then returns the computed Summary. A context cancellation
// (user interrupt) finalizes as interrupted rather than failed, so the
// CLI can map it to exit code 130.
func (c *Controller) Stop(ctx context.Context, runErr error) (Summary, error) {
	if c.session == nil {
		return Summary{}, fmt.Errorf("stop: no session started")
	}

	status := store.StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		status = store.StatusInterrupted
	case runErr != nil:
		status = store.StatusFailed
	}

	if err := c.store.FinalizeSession(c.session.ID, status); err != nil {
		return Summary{}, fmt.Errorf("finalize session: %w", err)
	}

	final, err := c.store.GetSession(c.session.ID)
	if err != nil {
		return Summary{}, fmt.Errorf("reload finalized session: %w", err)
	}

	summary := summarize(final)
	c.logger.Info().
		Uint("session_id", summary.SessionID).
		Str("status", string(summary.Status)).
		Int("pages_success", summary.PagesSuccess).
		Int("pages_failed", summary.PagesFailed).
		Dur("duration", summary.Duration).
		Msg("session finished")
	return summary, nil
}

func summarize(sess *store.Session) Summary {
	ended := time.Now()
	if sess.EndedAt != nil {
		ended = *sess.EndedAt
	}
	dur := ended.Sub(sess.StartedAt)

	s := Summary{
		SessionID:    sess.ID,
		Status:       sess.Status,
		StartedAt:    sess.StartedAt,
		EndedAt:      ended,
		Duration:     dur,
		PagesSuccess: sess.PagesSuccess,
		PagesFailed:  sess.PagesFailed,
	}
	if dur > 0 {
		s.PagesPerSec = float64(sess.PagesSuccess+sess.PagesFailed) / dur.Seconds()
	}
	return s
}
