// Package ui renders the styled console output for a batch run.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"fusionbatch/internal/facefusion"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)
)

// Header renders the run banner.
func Header(source, targets, output string, total int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("🚀 FaceFusion Batch") + "\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Source:"), source))
	b.WriteString(fmt.Sprintf("%s %d images from %s\n", LabelStyle.Render("Targets:"), total, targets))
	b.WriteString(fmt.Sprintf("%s %s", LabelStyle.Render("Output:"), output))
	return b.String()
}

// ResultLine renders the per-image progress line with a success or failure
// marker and, on failure, the truncated error excerpt.
func ResultLine(index, total int, r facefusion.Result) string {
	prefix := fmt.Sprintf("[%d/%d]", index, total)
	switch {
	case r.Skipped:
		return fmt.Sprintf("%s %s %s (output exists)", prefix, WarnStyle.Render("⏭  skipped"), r.Target)
	case r.Success:
		return fmt.Sprintf("%s %s %s -> %s", prefix, SuccessStyle.Render("✅"), r.Target, r.Output)
	default:
		return fmt.Sprintf("%s %s %s: %s", prefix, ErrorStyle.Render("❌"), r.Target, r.Error)
	}
}

// SummaryTable renders the final counts block.
func SummaryTable(successful, failed int, elapsed time.Duration, resultsFile string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "Count"})
	tw.AppendRows([]table.Row{
		{"Successful", successful},
		{"Failed", failed},
		{"Total", successful + failed},
	})
	tw.AppendFooter(table.Row{"Elapsed", FormatDuration(elapsed)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	var b strings.Builder
	b.WriteString(TitleStyle.Render("📊 Batch complete") + "\n")
	b.WriteString(tw.Render())
	if resultsFile != "" {
		b.WriteString(fmt.Sprintf("\n%s %s", LabelStyle.Render("Results:"), resultsFile))
	}
	return b.String()
}

// FormatDuration renders an elapsed wall-clock time as MM:SS, growing to
// HH:MM:SS past an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
