// Package store persists crawl sessions, scraped URLs, and content
// checksums to a SQLite database via GORM. All mutations are serialized
// through a single writer goroutine so the store is safe for concurrent
// use without depending on SQLite's own locking — the same
// single-coordinator-owns-shared-state idiom the scheduler uses for the
// frontier, applied here to database writes.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrSessionRunning is returned by OpenSession when a non-orphaned
// session is already running for the given output directory.
var ErrSessionRunning = errors.New("store: a session is already running for this output directory")

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("store: not found")

// Stats summarizes row counts across the store, used by --show-db-stats.
type Stats struct {
	Sessions   int64
	URLs       int64
	Checksums  int64
}

type writeRequest struct {
	fn     func(*gorm.DB) error
	result chan error
}

// Store is the durable relational store backing a crawl: sessions,
// scraped URLs, and content checksums.
type Store struct {
	db     *gorm.DB
	writes chan writeRequest
	done   chan struct{}
}

// Open opens (creating if absent) the SQLite database at path and
// migrates it to the current schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	if err := db.AutoMigrate(&Session{}, &ScrapedURL{}, &ContentChecksum{}, &schemaVersion{}); err != nil {
		return nil, fmt.Errorf("migrate store %s: %w", path, err)
	}

	var version schemaVersion
	if err := db.First(&version).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("read schema version: %w", err)
		}
		if err := db.Create(&schemaVersion{Version: currentSchemaVersion}).Error; err != nil {
			return nil, fmt.Errorf("write schema version: %w", err)
		}
	}

	s := &Store{
		db:     db,
		writes: make(chan writeRequest),
		done:   make(chan struct{}),
	}
	go s.writerLoop()
	return s, nil
}

func (s *Store) writerLoop() {
	defer close(s.done)
	for req := range s.writes {
		req.result <- req.fn(s.db)
	}
}

// write submits fn to the single writer goroutine and blocks for its
// result. All mutating Store methods go through this path.
func (s *Store) write(fn func(*gorm.DB) error) error {
	req := writeRequest{fn: fn, result: make(chan error, 1)}
	s.writes <- req
	return <-req.result
}

// Close stops the writer goroutine and closes the underlying database
// connection.
func (s *Store) Close() error {
	close(s.writes)
	<-s.done
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return sqlDB.Close()
}

// OpenSession reclaims any orphaned running session for outputDir, then
// creates and returns a fresh running session. It returns
// ErrSessionRunning if a genuinely active (non-orphaned) session already
// owns outputDir.
func (s *Store) OpenSession(outputDir, startURL, configJSON string) (*Session, error) {
	var session Session
	err := s.write(func(db *gorm.DB) error {
		if err := reclaimOrphans(db, outputDir); err != nil {
			return err
		}

		var runningCount int64
		if err := db.Model(&Session{}).
			Where("output_dir = ? AND status = ?", outputDir, StatusRunning).
			Count(&runningCount).Error; err != nil {
			return fmt.Errorf("check running sessions: %w", err)
		}
		if runningCount > 0 {
			return ErrSessionRunning
		}

		session = Session{
			OutputDir:  outputDir,
			StartURL:   startURL,
			Status:     StatusRunning,
			StartedAt:  time.Now(),
			ConfigJSON: configJSON,
		}
		if err := db.Create(&session).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// reclaimOrphans reclassifies any running session for outputDir that has
// had no URL activity for at least orphanTimeout as interrupted. Must be
// called with the writer already holding db.
func reclaimOrphans(db *gorm.DB, outputDir string) error {
	var sessions []Session
	q := db.Where("status = ?", StatusRunning)
	if outputDir != "" {
		q = q.Where("output_dir = ?", outputDir)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return fmt.Errorf("list running sessions: %w", err)
	}

	now := time.Now()
	for _, sess := range sessions {
		lastActivity := sess.StartedAt
		var latest ScrapedURL
		err := db.Where("session_id = ?", sess.ID).Order("scraped_at DESC").First(&latest).Error
		switch {
		case err == nil:
			lastActivity = latest.ScrapedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no URL activity yet; fall back to StartedAt.
		default:
			return fmt.Errorf("find latest activity for session %d: %w", sess.ID, err)
		}

		if now.Sub(lastActivity) >= orphanTimeout {
			ended := now
			if err := db.Model(&Session{}).Where("id = ?", sess.ID).Updates(map[string]any{
				"status":   StatusInterrupted,
				"ended_at": &ended,
			}).Error; err != nil {
				return fmt.Errorf("reclaim orphan session %d: %w", sess.ID, err)
			}
		}
	}
	return nil
}

// RecordScrape inserts or updates row (keyed by URL) and keeps the
// owning session's counters consistent with its status_code.
func (s *Store) RecordScrape(row ScrapedURL) error {
	return s.write(func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var previous ScrapedURL
			err := tx.Where("url = ?", row.URL).First(&previous).Error
			hadPrevious := err == nil
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("look up previous scrape of %s: %w", row.URL, err)
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "url"}},
				UpdateAll: true,
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("record scrape of %s: %w", row.URL, err)
			}

			// previous and row can belong to different sessions (a
			// re-scrape under --force-rescrape, or any re-run over the
			// same --output-dir without --clear-urls): the old session's
			// counters must lose the old status and the new session's
			// counters must gain the new one, as two independent updates,
			// not netted into a single delta applied to row.SessionID.
			if hadPrevious && previous.SessionID != row.SessionID {
				prevDelta := map[string]int{"pages_success": 0, "pages_failed": 0}
				adjustCounterDelta(prevDelta, previous.StatusCode, -1)
				if prevDelta["pages_success"] != 0 || prevDelta["pages_failed"] != 0 {
					if err := tx.Model(&Session{}).Where("id = ?", previous.SessionID).Updates(map[string]any{
						"pages_success": gorm.Expr("pages_success + ?", prevDelta["pages_success"]),
						"pages_failed":  gorm.Expr("pages_failed + ?", prevDelta["pages_failed"]),
					}).Error; err != nil {
						return fmt.Errorf("adjust counters for prior session %d: %w", previous.SessionID, err)
					}
				}

				delta := map[string]int{"pages_success": 0, "pages_failed": 0}
				adjustCounterDelta(delta, row.StatusCode, 1)
				if delta["pages_success"] == 0 && delta["pages_failed"] == 0 {
					return nil
				}
				return tx.Model(&Session{}).Where("id = ?", row.SessionID).Updates(map[string]any{
					"pages_success": gorm.Expr("pages_success + ?", delta["pages_success"]),
					"pages_failed":  gorm.Expr("pages_failed + ?", delta["pages_failed"]),
				}).Error
			}

			delta := map[string]int{"pages_success": 0, "pages_failed": 0}
			if hadPrevious {
				adjustCounterDelta(delta, previous.StatusCode, -1)
			}
			adjustCounterDelta(delta, row.StatusCode, 1)
			if delta["pages_success"] == 0 && delta["pages_failed"] == 0 {
				return nil
			}

			return tx.Model(&Session{}).Where("id = ?", row.SessionID).Updates(map[string]any{
				"pages_success": gorm.Expr("pages_success + ?", delta["pages_success"]),
				"pages_failed":  gorm.Expr("pages_failed + ?", delta["pages_failed"]),
			}).Error
		})
	})
}

func adjustCounterDelta(delta map[string]int, statusCode, sign int) {
	if statusCode >= 200 && statusCode < 400 {
		delta["pages_success"] += sign
	} else if statusCode != 0 {
		delta["pages_failed"] += sign
	}
}

// GetScraped returns the stored row for url, or ErrNotFound.
func (s *Store) GetScraped(url string) (*ScrapedURL, error) {
	var row ScrapedURL
	err := s.db.Where("url = ?", url).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scraped %s: %w", url, err)
	}
	return &row, nil
}

// ListScraped returns every URL row recorded for sessionID, ordered by
// scrape time.
func (s *Store) ListScraped(sessionID uint) ([]ScrapedURL, error) {
	var rows []ScrapedURL
	if err := s.db.Where("session_id = ?", sessionID).Order("scraped_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list scraped for session %d: %w", sessionID, err)
	}
	return rows, nil
}

// AllCanonicals returns the set of distinct, non-empty canonical URLs
// recorded across all sessions, used by the dedup engine's D2 stage to
// avoid re-enqueuing a canonical target already discovered.
func (s *Store) AllCanonicals() (map[string]struct{}, error) {
	var urls []string
	if err := s.db.Model(&ScrapedURL{}).
		Where("canonical_url <> ''").
		Distinct().
		Pluck("canonical_url", &urls).Error; err != nil {
		return nil, fmt.Errorf("list canonicals: %w", err)
	}
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}

// HasChecksum reports whether sum is already recorded.
func (s *Store) HasChecksum(sum string) (bool, error) {
	var count int64
	if err := s.db.Model(&ContentChecksum{}).Where("checksum = ?", sum).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check checksum %s: %w", sum, err)
	}
	return count > 0, nil
}

// RecordChecksum inserts a new ContentChecksum row the first time text
// with that checksum is written to disk. Re-recording an existing
// checksum is a no-op.
func (s *Store) RecordChecksum(sum, firstURL string) error {
	return s.write(func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&ContentChecksum{
			Checksum:       sum,
			FirstURL:       firstURL,
			FirstScrapedAt: time.Now(),
		}).Error
	})
}

// ClearURLs deletes every ScrapedURL row belonging to sessions scoped to
// outputDir, keeping content checksums intact.
func (s *Store) ClearURLs(outputDir string) error {
	return s.write(func(db *gorm.DB) error {
		return db.Exec(
			"DELETE FROM scraped_urls WHERE session_id IN (SELECT id FROM sessions WHERE output_dir = ?)",
			outputDir,
		).Error
	})
}

// ClearChecksums deletes every ContentChecksum row. Intended to be
// combined with ClearURLs only when --force-rescrape and --clear-urls
// are both requested.
func (s *Store) ClearChecksums() error {
	return s.write(func(db *gorm.DB) error {
		return db.Exec("DELETE FROM content_checksums").Error
	})
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(id uint) (*Session, error) {
	var session Session
	err := s.db.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return &session, nil
}

// ListSessions returns every session, most recent first.
func (s *Store) ListSessions() ([]Session, error) {
	var sessions []Session
	if err := s.db.Order("started_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently started session for
// outputDir.
func (s *Store) LatestSession(outputDir string) (*Session, error) {
	var session Session
	err := s.db.Where("output_dir = ?", outputDir).Order("started_at DESC").First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest session for %s: %w", outputDir, err)
	}
	return &session, nil
}

// FinalizeSession transitions session id to a terminal status and
// stamps EndedAt.
func (s *Store) FinalizeSession(id uint, status SessionStatus) error {
	return s.write(func(db *gorm.DB) error {
		now := time.Now()
		return db.Model(&Session{}).Where("id = ?", id).Updates(map[string]any{
			"status":   status,
			"ended_at": &now,
		}).Error
	})
}

// DeleteSession removes a session and its ScrapedURL rows (content
// checksums are untouched). Used by --clear-session/--clear-last-session.
func (s *Store) DeleteSession(id uint) error {
	return s.write(func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("session_id = ?", id).Delete(&ScrapedURL{}).Error; err != nil {
				return fmt.Errorf("delete urls for session %d: %w", id, err)
			}
			if err := tx.Delete(&Session{}, id).Error; err != nil {
				return fmt.Errorf("delete session %d: %w", id, err)
			}
			return nil
		})
	})
}

// CleanupOrphans reclaims every idle running session, across all output
// directories, and reports how many were reclassified.
func (s *Store) CleanupOrphans() (int, error) {
	var reclaimed int
	err := s.write(func(db *gorm.DB) error {
		var before []Session
		if err := db.Where("status = ?", StatusRunning).Find(&before).Error; err != nil {
			return fmt.Errorf("list running sessions: %w", err)
		}
		if err := reclaimOrphans(db, ""); err != nil {
			return err
		}
		var after int64
		if err := db.Model(&Session{}).Where("status = ?", StatusRunning).Count(&after).Error; err != nil {
			return fmt.Errorf("count running sessions: %w", err)
		}
		reclaimed = len(before) - int(after)
		return nil
	})
	return reclaimed, err
}

// StatsSummary reports row counts across the store.
func (s *Store) StatsSummary() (Stats, error) {
	var stats Stats
	if err := s.db.Model(&Session{}).Count(&stats.Sessions).Error; err != nil {
		return Stats{}, fmt.Errorf("count sessions: %w", err)
	}
	if err := s.db.Model(&ScrapedURL{}).Count(&stats.URLs).Error; err != nil {
		return Stats{}, fmt.Errorf("count urls: %w", err)
	}
	if err := s.db.Model(&ContentChecksum{}).Count(&stats.Checksums).Error; err != nil {
		return Stats{}, fmt.Errorf("count checksums: %w", err)
	}
	return stats, nil
}

// ListErrors returns every ScrapedURL row with a non-empty error field
// for sessionID, used by --show-errors.
func (s *Store) ListErrors(sessionID uint) ([]ScrapedURL, error) {
	var rows []ScrapedURL
	if err := s.db.Where("session_id = ? AND error <> ''", sessionID).
		Order("scraped_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list errors for session %d: %w", sessionID, err)
	}
	return rows, nil
}
