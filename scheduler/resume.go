package scheduler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/lukemcguire/zombiecrawl/extractor"
	"github.com/lukemcguire/zombiecrawl/store"
)

// reconstructFrontier rebuilds the frontier after an interrupted run by
// re-extracting outbound links from the most recently written pages of
// a prior session against this output directory. It is a bounded
// breadth-first reconstruction (ResumeLinkScanLimit pages) rather than a
// full outbound-link index, since the Store does not persist discovered
// links — only materialized pages and their checksums — per the spec's
// Open Question on resume strategy.
func (s *Scheduler) reconstructFrontier(ctx context.Context) ([]frontierEntry, error) {
	limit := s.cfg.ResumeLinkScanLimit
	if limit <= 0 {
		return nil, nil
	}

	prior, err := s.priorSession()
	if err != nil || prior == nil {
		return nil, err
	}

	// ListScraped orders scraped_at ASC; walk it from the end so the most
	// recently written pages (the ones least likely to have had their
	// links already re-admitted) are scanned first, up to limit.
	rows, err := s.store.ListScraped(prior.ID)
	if err != nil {
		return nil, err
	}

	var entries []frontierEntry
	scanned := 0
	for i := len(rows) - 1; i >= 0 && scanned < limit; i-- {
		if ctx.Err() != nil {
			break
		}
		row := rows[i]
		if row.TargetFilename == "" {
			continue
		}
		scanned++

		links, extractErr := s.reExtractLinks(row)
		if extractErr != nil {
			continue // a single unreadable page must not abort resume
		}
		for _, link := range links {
			entries = append(entries, frontierEntry{url: link, depth: row.Depth + 1})
		}
	}
	return entries, nil
}

// priorSession finds the most recent session for this output directory
// other than the one the scheduler is currently running.
func (s *Scheduler) priorSession() (*store.Session, error) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		return nil, err
	}
	var best *store.Session
	for i := range sessions {
		sess := sessions[i]
		if sess.ID == s.session.ID || sess.OutputDir != s.session.OutputDir {
			continue
		}
		if best == nil || sess.StartedAt.After(best.StartedAt) {
			best = &sess
		}
	}
	return best, nil
}

func (s *Scheduler) reExtractLinks(row store.ScrapedURL) ([]string, error) {
	pagePath := filepath.Join(s.session.OutputDir, row.TargetFilename)
	body, err := os.ReadFile(pagePath)
	if err != nil {
		return nil, err
	}

	encoding := ""
	contentType := "text/html"
	page, err := extractor.Extract(row.URL, body, contentType, encoding, extractor.Options{
		IgnoreGetParams: s.cfg.DedupConfig.IgnoreGetParams,
	})
	if err != nil {
		return nil, err
	}
	return page.OutboundLinks, nil
}
