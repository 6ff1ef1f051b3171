// Package result provides types and output writers for crawl session
// results: the session summary plus the per-URL rows a run produced.
package result

import (
	"github.com/lukemcguire/zombiecrawl/session"
	"github.com/lukemcguire/zombiecrawl/store"
)

// URLRecord is one scraped_urls row projected for reporting. Fields
// mirror store.ScrapedURL but carry their own json tags so output
// format is independent of the store's GORM tagging.
type URLRecord struct {
	URL             string `json:"url"`
	StatusCode      int    `json:"status_code,omitempty"`
	TargetFilename  string `json:"target_filename,omitempty"`
	Error           string `json:"error,omitempty"`
	CanonicalURL    string `json:"canonical_url,omitempty"`
	ContentChecksum string `json:"content_checksum,omitempty"`
	Depth           int    `json:"depth"`
}

// FromScraped projects Store rows into report records.
func FromScraped(rows []store.ScrapedURL) []URLRecord {
	records := make([]URLRecord, len(rows))
	for i, row := range rows {
		records[i] = URLRecord{
			URL:             row.URL,
			StatusCode:      row.StatusCode,
			TargetFilename:  row.TargetFilename,
			Error:           row.Error,
			CanonicalURL:    row.CanonicalURL,
			ContentChecksum: row.ContentChecksum,
			Depth:           row.Depth,
		}
	}
	return records
}

// Report is the complete output of one crawl session: its summary plus
// (optionally) the URLs it touched, for --list-files/--save-urls.
type Report struct {
	Summary session.Summary `json:"summary"`
	URLs    []URLRecord     `json:"urls,omitempty"`
}
