package report

import (
	"io"

	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the summary of one run.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)

	// WriteHistory outputs a list of recorded runs, newest first.
	WriteHistory(runs []database.RunRecord) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// timeLayout is how timestamps are displayed.
const timeLayout = "2006-01-02 15:04:05 MST"

// statusText returns a one-word status and the error message, if any.
func statusText(errMsg string) string {
	if errMsg != "" {
		return "FAILED - " + errMsg
	}
	return "Complete"
}

// errorMessage returns the run error as text.
func errorMessage(report *model.RunReport) string {
	if report.ErrorMessage != "" {
		return report.ErrorMessage
	}
	if report.Error != nil {
		return report.Error.Error()
	}
	return ""
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
