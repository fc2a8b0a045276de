package report

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunSummary is the JSON shape of a run report.
type RunSummary struct {
	*model.RunReport

	// Language is the BCP 47 tag of the exported language.
	Language string `json:"language"`

	// DurationMS is the elapsed run time in milliseconds.
	DurationMS int64 `json:"duration_ms"`

	// ArticlesByCategory maps category titles to article counts.
	ArticlesByCategory map[string]int `json:"articles_by_category,omitempty"`
}

// Write outputs the run summary in JSON format.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	if report.ErrorMessage == "" && report.Error != nil {
		report.ErrorMessage = report.Error.Error()
	}
	_, counts := report.ArticlesByCategory()

	return w.writeJSON(&RunSummary{
		RunReport:          report,
		Language:           model.PrimaryLang.Tag().String(),
		DurationMS:         report.Duration().Milliseconds(),
		ArticlesByCategory: counts,
	})
}

// WriteHistory outputs the runs as a JSON array.
func (w *JSONWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	if runs == nil {
		runs = []database.RunRecord{}
	}
	return w.writeJSON(runs)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')
	return w.output.Write(data)
}
