package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/zombiecrawl/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// RenderSummary produces a Lip Gloss styled summary of a session report.
func RenderSummary(report *result.Report) string {
	if report == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder
	summary := report.Summary

	if summary.PagesFailed == 0 {
		builder.WriteString(successStyle.Render(fmt.Sprintf("Session %d completed", summary.SessionID)))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(fmt.Sprintf(
			"%d pages in %s (%.2f pages/sec)",
			summary.PagesSuccess,
			summary.Duration.Round(1_000_000),
			summary.PagesPerSec,
		)))
		builder.WriteString("\n")
		return builder.String()
	}

	var failedRows [][]string
	for _, rec := range report.URLs {
		if rec.Error == "" {
			continue
		}
		failedRows = append(failedRows, []string{rec.URL, rec.Error})
	}

	if len(failedRows) > 0 {
		builder.WriteString(headerStyle.Render(fmt.Sprintf("## Failed URLs (%d)", len(failedRows))))
		builder.WriteString("\n")

		failTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Error").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 {
					return statusErrorStyle
				}
				return urlStyle
			}).
			Rows(failedRows...)

		builder.WriteString(failTable.Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"%d succeeded, %d failed out of %d pages (%s)",
		summary.PagesSuccess,
		summary.PagesFailed,
		summary.PagesSuccess+summary.PagesFailed,
		summary.Duration.Round(1_000_000),
	)))
	builder.WriteString("\n")

	return builder.String()
}
