// file: internal/pipeline/console.go
// version: 1.1.0
// guid: 565062b1-9761-4d4c-a50d-beaadd1a79ff

package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/schollz/progressbar/v3"
)

// ConsoleOptions controls ConsoleReporter output.
type ConsoleOptions struct {
	// Progress draws a progress bar on the progress writer.
	Progress bool
	// Verbose prints a line for every file, not only failures.
	Verbose bool
	// Quiet suppresses everything except failures.
	Quiet bool
}

// ConsoleReporter prints per-file lines, a progress bar and the final
// summary table.
type ConsoleReporter struct {
	out      io.Writer
	progress io.Writer
	opts     ConsoleOptions
	bar      *progressbar.ProgressBar

	failed  *color.Color
	matched *color.Color
	noMatch *color.Color
	policy  *color.Color
	dim     *color.Color
}

// NewConsoleReporter writes lines and the summary to out and the progress
// bar to progress.
func NewConsoleReporter(out, progress io.Writer, opts ConsoleOptions) *ConsoleReporter {
	return &ConsoleReporter{
		out:      out,
		progress: progress,
		opts:     opts,
		failed:   color.New(color.FgRed),
		matched:  color.New(color.FgGreen),
		noMatch:  color.New(color.FgYellow),
		policy:   color.New(color.FgCyan),
		dim:      color.New(color.Faint),
	}
}

// Start sets up the progress bar.
func (c *ConsoleReporter) Start(total int) {
	if !c.opts.Progress || c.opts.Quiet || total == 0 || c.progress == nil {
		return
	}
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.progress),
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// FileDone prints the result line for res and advances the bar.
func (c *ConsoleReporter) FileDone(res FileResult) {
	if c.bar != nil {
		_ = c.bar.Clear()
	}
	if line := c.line(res); line != "" {
		fmt.Fprintln(c.out, line)
	}
	if c.bar != nil {
		_ = c.bar.Add(1)
	}
}

func (c *ConsoleReporter) line(res FileResult) string {
	if res.Status == StatusFailed {
		return c.failed.Sprintf("✗ %s: %v", res.Path, res.Err)
	}
	if c.opts.Quiet || !c.opts.Verbose {
		return ""
	}
	switch res.Status {
	case StatusMatched:
		cand := res.Match.Candidate
		return c.matched.Sprintf("✓ %s → %s - %s (%.2f)", res.Path, cand.Artist, cand.Title, res.Match.Score)
	case StatusNoMatch:
		return c.noMatch.Sprintf("• %s: no match (%s), kept original tags", res.Path, res.Match.Reason)
	case StatusPolicy:
		return c.policy.Sprintf("• %s: tags rewritten by policy", res.Path)
	case StatusSkipped:
		return c.dim.Sprintf("- %s: already processed", res.Path)
	case StatusCanceled:
		return c.dim.Sprintf("- %s: canceled", res.Path)
	}
	return ""
}

// Finish closes the bar and prints the summary table.
func (c *ConsoleReporter) Finish(sum Summary) {
	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}
	if c.opts.Quiet {
		return
	}
	fmt.Fprintln(c.out, RenderSummary(sum))
}

// RenderSummary formats the run counts as a table.
func RenderSummary(sum Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(table.Row{"Outcome", "Files"})
	rows := []struct {
		label string
		n     int
	}{
		{"Matched", sum.Matched},
		{"No match (kept original)", sum.NoMatch},
		{"Rewritten by policy", sum.Policy},
		{"Already processed", sum.Skipped},
		{"Failed", sum.Failed},
		{"Canceled", sum.Canceled},
	}
	for _, r := range rows {
		tw.AppendRow(table.Row{r.label, strconv.Itoa(r.n)})
	}
	tw.AppendFooter(table.Row{"Total", strconv.Itoa(sum.Total)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
