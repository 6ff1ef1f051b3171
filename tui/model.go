// Package tui provides the Bubble Tea terminal UI for zombiecrawl,
// displaying live crawl progress and a styled summary of session
// results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/zombiecrawl/result"
	"github.com/lukemcguire/zombiecrawl/scheduler"
)

// Runner executes one crawl session and returns its final report. It is
// supplied by cmd, which owns constructing the store/session/scheduler.
type Runner func(ctx context.Context) (*result.Report, error)

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	run        Runner
	spinner    spinner.Model
	progressCh <-chan scheduler.Event

	pagesDone  int
	frontierSz int
	current    string
	failed     int
	quitting   bool
	done       bool
	report     *result.Report
	err        error
	width      int
}

// NewModel creates a TUI model wired to the given session runner and
// progress channel.
func NewModel(ctx context.Context, cancel context.CancelFunc, run Runner, progressCh <-chan scheduler.Event) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		run:        run,
		spinner:    spin,
		progressCh: progressCh,
	}
}

// Init starts the spinner, the crawl, and the progress listener concurrently.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForProgress(m.progressCh))
}

// startCrawl returns a tea.Cmd that runs the session and sends CrawlDoneMsg.
func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		report, err := m.run(m.ctx)
		if err != nil {
			err = fmt.Errorf("crawl: %w", err)
		}
		return CrawlDoneMsg{Report: report, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CrawlProgressMsg:
		m.pagesDone = msg.PagesDone
		m.frontierSz = msg.FrontierSz
		m.current = msg.URL
		if msg.Failed {
			m.failed++
		}
		return m, waitForProgress(m.progressCh)

	case CrawlDoneMsg:
		if msg.Report == nil && msg.Err == nil {
			// The progress channel closed; the runner's own CrawlDoneMsg
			// carries the report.
			return m, nil
		}
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.report != nil {
		return RenderSummary(m.report)
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}
	return fmt.Sprintf("%s Crawling... %d done, %d failed, %d queued\n%s\n",
		m.spinner.View(), m.pagesDone, m.failed, m.frontierSz,
		dimStyle.Render("  "+m.current))
}

// Failed reports whether the session ended with any failed URLs.
func (m Model) Failed() bool {
	return m.report != nil && m.report.Summary.PagesFailed > 0
}

// GetReport returns the crawl report for output formatting.
func (m Model) GetReport() *result.Report {
	return m.report
}
