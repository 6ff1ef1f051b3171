package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/zombiecrawl/result"
	"github.com/lukemcguire/zombiecrawl/scheduler"
)

// CrawlProgressMsg reports progress for a single processed URL.
type CrawlProgressMsg struct {
	PagesDone  int
	FrontierSz int
	URL        string
	Skipped    bool
	Failed     bool
}

// CrawlDoneMsg signals the crawl has completed.
type CrawlDoneMsg struct {
	Report *result.Report
	Err    error
}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel. When the channel closes, it returns a CrawlDoneMsg with a nil
// Report (the actual report comes from startCrawl).
func waitForProgress(ch <-chan scheduler.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return CrawlDoneMsg{}
		}
		return CrawlProgressMsg{
			PagesDone:  evt.PagesDone,
			FrontierSz: evt.FrontierSz,
			URL:        evt.URL,
			Skipped:    evt.Skipped,
			Failed:     evt.Error != "" && !evt.Skipped,
		}
	}
}
