package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON writes report as formatted JSON to w.
func WriteJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes report's URL records as CSV to w. Always includes a
// header row, even if there are no records.
// Column order: url, status_code, target_filename, canonical_url, content_checksum, depth, error
func WriteCSV(w io.Writer, urls []URLRecord) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "status_code", "target_filename", "canonical_url", "content_checksum", "depth", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range urls {
		record := []string{
			rec.URL,
			statusCodeStr(rec.StatusCode),
			rec.TargetFilename,
			rec.CanonicalURL,
			rec.ContentChecksum,
			strconv.Itoa(rec.Depth),
			rec.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", rec.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// statusCodeStr converts an HTTP status code to a string.
// Returns empty string for 0 (no HTTP status).
func statusCodeStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
