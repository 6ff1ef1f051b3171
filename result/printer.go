package result

import (
	"fmt"
	"io"
)

// PrintResults writes a human-readable session summary to w. listFiles
// additionally prints one line per URL the session touched, for
// --list-files.
func PrintResults(w io.Writer, report *Report, listFiles bool) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if listFiles {
		for _, rec := range report.URLs {
			if rec.Error != "" {
				writef("  %s  status=%d  error=%s\n", rec.URL, rec.StatusCode, rec.Error)
				continue
			}
			writef("  %s  status=%d  %s\n", rec.URL, rec.StatusCode, rec.TargetFilename)
		}
	}

	writef("Session %d: %s\n", report.Summary.SessionID, report.Summary.Status)
	writef("Pages: %d succeeded, %d failed in %s (%.2f pages/sec)\n",
		report.Summary.PagesSuccess, report.Summary.PagesFailed,
		report.Summary.Duration.Round(1_000_000), report.Summary.PagesPerSec)
}
