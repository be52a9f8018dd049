// Package output provides console output for load runs.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/loadshape/loadshape/internal/load"
	"github.com/loadshape/loadshape/internal/metrics"
)

// ColorScheme defines the colors used for different elements in the output.
type ColorScheme struct {
	Title     *color.Color
	Label     *color.Color
	Value     *color.Color
	Success   *color.Color
	Error     *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.FgCyan, color.Bold),
		Label:     color.New(color.FgYellow),
		Value:     color.New(color.FgWhite),
		Success:   color.New(color.FgGreen),
		Error:     color.New(color.FgRed),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	scheme.Title.DisableColor()
	scheme.Label.DisableColor()
	scheme.Value.DisableColor()
	scheme.Success.DisableColor()
	scheme.Error.DisableColor()
	scheme.Highlight.DisableColor()
	return scheme
}

// Console writes run progress and the final summary. Warnings go to a
// separate error writer so piped output stays parseable.
type Console struct {
	runName   string
	writer    io.Writer
	errWriter io.Writer
	scheme    *ColorScheme
	isTTY     bool
	quiet     bool

	mu sync.Mutex
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	RunName   string
	Writer    io.Writer
	ErrWriter io.Writer
	NoColor   bool
	Quiet     bool
	ForceTTY  bool
}

// NewConsole creates a console output handler.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = os.Stderr
	}

	scheme := DefaultColorScheme()
	if cfg.NoColor {
		scheme = NoColorScheme()
	}

	isTTY := cfg.ForceTTY
	if !isTTY {
		if f, ok := cfg.Writer.(*os.File); ok {
			isTTY = checkIsTerminal(f)
		}
	}

	return &Console{
		runName:   cfg.RunName,
		writer:    cfg.Writer,
		errWriter: cfg.ErrWriter,
		scheme:    scheme,
		isTTY:     isTTY,
		quiet:     cfg.Quiet,
	}
}

// IsTTY reports whether live single-line updates are usable.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run header.
func (c *Console) PrintHeader(runID string) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	line := strings.Repeat("━", 56)
	fmt.Fprintln(c.writer, c.scheme.Title.Sprint(line))
	fmt.Fprintln(c.writer, c.scheme.Title.Sprintf("%s  [run %s]", c.runName, runID))
	fmt.Fprintln(c.writer, c.scheme.Title.Sprint(line))
}

// PrintProgress prints one status line: operation totals plus the
// controller's phase description when dynamic control is active. On a TTY
// the line overwrites itself; otherwise each update is its own line.
func (c *Console) PrintProgress(stats load.RunStats, snap *metrics.Snapshot) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("%s ops=%d achieved=%.1f/s errors=%d",
		formatElapsed(stats.Elapsed), snap.TotalOps, snap.Throughput, snap.FailedOps)
	if stats.PhaseInfo != "" {
		line += "  " + stats.PhaseInfo
	}

	if c.isTTY {
		fmt.Fprintf(c.writer, "\r\033[2K%s", c.scheme.Value.Sprint(line))
	} else {
		fmt.Fprintln(c.writer, line)
	}
}

// PrintSummary prints the final run summary.
func (c *Console) PrintSummary(snap *metrics.Snapshot, runErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY && !c.quiet {
		fmt.Fprint(c.writer, "\r\033[2K")
	}

	fmt.Fprintln(c.writer)
	fmt.Fprintln(c.writer, c.scheme.Title.Sprint("Summary"))
	c.printStat("operations", fmt.Sprintf("%d (%d failed)", snap.TotalOps, snap.FailedOps))
	c.printStat("elapsed", formatElapsed(snap.Elapsed))
	c.printStat("throughput", fmt.Sprintf("%.1f ops/sec", snap.Throughput))
	c.printStat("error rate", fmt.Sprintf("%.2f%%", snap.ErrorRate*100))

	fmt.Fprintln(c.writer, c.scheme.Label.Sprint("  latency"))
	c.printPercentiles(snap.Latency)
	fmt.Fprintln(c.writer, c.scheme.Label.Sprint("  scheduling delay"))
	c.printPercentiles(snap.SchedulingDelay)

	if runErr != nil {
		fmt.Fprintln(c.writer, c.scheme.Error.Sprintf("  run error: %v", runErr))
	} else {
		fmt.Fprintln(c.writer, c.scheme.Success.Sprint("  completed"))
	}
}

func (c *Console) printStat(label, value string) {
	fmt.Fprintf(c.writer, "  %s %s\n",
		c.scheme.Label.Sprintf("%-12s", label),
		c.scheme.Value.Sprint(value))
}

func (c *Console) printPercentiles(stats metrics.LatencyStats) {
	fmt.Fprintf(c.writer, "    p50=%s p90=%s p95=%s p99=%s max=%s\n",
		stats.P50, stats.P90, stats.P95, stats.P99, stats.Max)
}

// Warnf prints a warning to the console's error writer.
func (c *Console) Warnf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.errWriter, c.scheme.Error.Sprintf("warning: "+format, args...))
}

func formatElapsed(d time.Duration) string {
	return d.Truncate(100 * time.Millisecond).String()
}
