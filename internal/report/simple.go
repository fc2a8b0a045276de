package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the per-category breakdown.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeCounts(&sb, report)
	if w.verbose {
		w.writeCategories(&sb, report)
	}
	w.writeOutputs(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         LORECRAWL RUN\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Mode:       %s\n", report.Mode)
	fmt.Fprintf(sb, "Cache:      %s\n", report.CacheDir)
	fmt.Fprintf(sb, "Started:    %s\n", report.StartedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Duration:   %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(errorMessage(report)))
	sb.WriteString("\n")
}

// writeCounts writes the collected and exported counts.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("COUNTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Categories: %d collected, %d exported\n", report.CategoryCount, report.ExportedCategories)
	fmt.Fprintf(sb, "  Articles:   %d collected, %d exported\n", report.ArticleCount, report.ExportedArticles)
	fmt.Fprintf(sb, "  Fetches:    %d\n", report.Fetches)
	sb.WriteString("\n")
}

// writeCategories writes the number of articles per category.
func (w *SimpleWriter) writeCategories(sb *strings.Builder, report *model.RunReport) {
	order, counts := report.ArticlesByCategory()
	if len(order) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ARTICLES BY CATEGORY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, name := range order {
		fmt.Fprintf(sb, "  %5d  %s\n", counts[name], name)
	}
	sb.WriteString("\n")
}

// writeOutputs writes the exported file paths.
func (w *SimpleWriter) writeOutputs(sb *strings.Builder, report *model.RunReport) {
	if len(report.Outputs) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("OUTPUTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, path := range report.Outputs {
		fmt.Fprintf(sb, "  [+] %s\n", path)
	}
	sb.WriteString("\n")
}

// WriteHistory outputs one line per run.
func (w *SimpleWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-5s %-23s %-7s %10s %9s %9s  %s\n",
		"ID", "STARTED", "MODE", "CATEGORIES", "ARTICLES", "FETCHES", "STATUS")
	for _, run := range runs {
		fmt.Fprintf(&sb, "%-5d %-23s %-7s %10d %9d %9d  %s\n",
			run.ID,
			run.StartedAt.Format(timeLayout),
			run.Mode,
			run.ExportedCategories,
			run.ExportedArticles,
			run.Fetches,
			truncateString(statusText(run.Error), 60),
		)
	}
	return w.output.Write([]byte(sb.String()))
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
