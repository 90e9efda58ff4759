package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case PlanInvoked:
		return fmt.Sprintf("%s Plan: %s", latency, truncate(fmt.Sprint(event.Data["pattern"])))

	case PlanCacheHit:
		return fmt.Sprintf("%s %s plan served from cache", latency, f.colorize("↺", color.FgCyan))

	case FuzzyResolved:
		vw, _ := event.Data["vertices.weight"].(float64)
		ew, _ := event.Data["edges.weight"].(float64)
		if fuzzy, _ := event.Data["fuzzy"].(bool); !fuzzy {
			return fmt.Sprintf("%s Pattern is single-typed", latency)
		}
		return fmt.Sprintf("%s Resolved fuzzy pattern (vertex weight %.3g, edge weight %.3g)", latency, vw, ew)

	case CatalogNodeCreated:
		card, _ := event.Data["cardinality"].(float64)
		return fmt.Sprintf("%s %s catalog node with %v vertices, %s",
			latency,
			f.colorize("+", color.FgGreen),
			event.Data["vertices"],
			f.colorizeCardinality(card))

	case CatalogHit:
		return fmt.Sprintf("%s catalog hit for %v-vertex pattern", latency, event.Data["vertices"])

	case SearchCompleted:
		card, _ := event.Data["cardinality"].(float64)
		return fmt.Sprintf("%s %s search explored %v subsets, %v steps, %s",
			latency,
			f.colorize("===", color.FgYellow),
			event.Data["subsets"],
			event.Data["steps"],
			f.colorizeCardinality(card))

	case PlanCompleted:
		card, _ := event.Data["cardinality"].(float64)
		return fmt.Sprintf("%s %s Plan done, estimated %s",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCardinality(card))

	case ErrorPlanning:
		return fmt.Sprintf("%s %s Planning failed: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["error"])

	default:
		return fmt.Sprintf("%s %s", latency, event.Name)
	}
}

// formatLatency formats a duration with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 5:
		return color.GreenString(s)
	case ms < 50:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCardinality renders an estimate, red once it gets large.
func (f *OutputFormatter) colorizeCardinality(card float64) string {
	text := "~" + FormatCardinality(card) + " rows"
	if !f.useColor {
		return text
	}
	switch {
	case card < 1e4:
		return color.GreenString(text)
	case card < 1e7:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// FormatCardinality renders an estimated row count for display
func FormatCardinality(card float64) string {
	if card < 1000 {
		return humanize.FtoaWithDigits(card, 2)
	}
	value, prefix := humanize.ComputeSI(card)
	return humanize.FtoaWithDigits(value, 2) + prefix
}

// truncate shortens long pattern strings for display.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	const maxLen = 100
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}
