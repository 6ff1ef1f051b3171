package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lukemcguire/zombiecrawl/store"
)

// ListSessions returns every session, most recent first.
func (c *Controller) ListSessions() ([]store.Session, error) {
	return c.store.ListSessions()
}

// ShowSession returns detail for one session plus its scraped-URL rows,
// for the --show-scraped-urls maintenance flag.
func (c *Controller) ShowSession(id uint) (*store.Session, []store.ScrapedURL, error) {
	sess, err := c.store.GetSession(id)
	if err != nil {
		return nil, nil, err
	}
	rows, err := c.store.ListScraped(id)
	if err != nil {
		return nil, nil, fmt.Errorf("list scraped urls for session %d: %w", id, err)
	}
	return sess, rows, nil
}

// ClearSession deletes a session's database rows. When deleteFiles is
// true, it additionally removes every file the session materialized
// under its OutputDir — this is destructive; the CLI passes true only
// when the --delete-files flag is given, and asks no further question.
func (c *Controller) ClearSession(id uint, deleteFiles bool) error {
	sess, err := c.store.GetSession(id)
	if err != nil {
		return err
	}

	if deleteFiles {
		rows, err := c.store.ListScraped(id)
		if err != nil {
			return fmt.Errorf("list scraped urls for session %d: %w", id, err)
		}
		if err := deleteMaterializedFiles(sess.OutputDir, rows); err != nil {
			return err
		}
	}

	if err := c.store.DeleteSession(id); err != nil {
		return fmt.Errorf("clear session %d: %w", id, err)
	}
	c.logger.Info().Uint("session_id", id).Bool("deleted_files", deleteFiles).Msg("session cleared")
	return nil
}

// ClearLastSession clears the most recently started session for
// outputDir, for the --clear-last-session flag (no ID required).
func (c *Controller) ClearLastSession(outputDir string, deleteFiles bool) error {
	sess, err := c.store.LatestSession(outputDir)
	if err != nil {
		return fmt.Errorf("find last session for %s: %w", outputDir, err)
	}
	return c.ClearSession(sess.ID, deleteFiles)
}

// CleanupOrphans reclassifies idle running sessions across every output
// directory and reports how many were reclaimed.
func (c *Controller) CleanupOrphans() (int, error) {
	n, err := c.store.CleanupOrphans()
	if err != nil {
		return 0, fmt.Errorf("cleanup orphans: %w", err)
	}
	c.logger.Info().Int("reclaimed", n).Msg("orphan sessions reclaimed")
	return n, nil
}

// deleteMaterializedFiles removes each row's page and sidecar metadata
// file, tolerating files that are already gone.
func deleteMaterializedFiles(outputDir string, rows []store.ScrapedURL) error {
	for _, row := range rows {
		if row.TargetFilename == "" {
			continue
		}
		pagePath := filepath.Join(outputDir, row.TargetFilename)
		if err := os.Remove(pagePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", pagePath, err)
		}

		ext := filepath.Ext(pagePath)
		metaPath := pagePath[:len(pagePath)-len(ext)] + ".meta.json"
		if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", metaPath, err)
		}
	}
	return nil
}
