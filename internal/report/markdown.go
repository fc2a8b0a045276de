package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/lorecrawl/internal/database"
	"github.com/nao1215/lorecrawl/internal/model"
)

// maxChartSlices caps the pie chart; smaller categories are folded into
// one "others" slice.
const maxChartSlices = 12

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run summary in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCounts(md, report)
	w.writeCategories(md, report)
	w.writeOutputs(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H1("lorecrawl Run Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Mode", report.Mode.String()},
			{"Cache", "`" + report.CacheDir + "`"},
			{"Language", model.PrimaryLang.Tag().String()},
			{"Started", report.StartedAt.Format(timeLayout)},
			{"Duration", report.Duration().Round(time.Millisecond).String()},
			{"Status", w.getStatusText(errorMessage(report))},
		},
	})
	md.PlainText("")

	if msg := errorMessage(report); msg != "" {
		md.Cautionf("The run stopped before exporting: %s", msg)
		md.PlainText("")
	}
}

// getStatusText returns the status cell.
func (w *MarkdownWriter) getStatusText(errMsg string) string {
	if errMsg != "" {
		return "❌ Failed"
	}
	return "✅ Complete"
}

// writeCounts writes the count table.
func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Counts")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Item", "Collected", "Exported"},
		Rows: [][]string{
			{"Categories", strconv.Itoa(report.CategoryCount), strconv.Itoa(report.ExportedCategories)},
			{"Articles", strconv.Itoa(report.ArticleCount), strconv.Itoa(report.ExportedArticles)},
		},
	})
	md.PlainText("")
	md.PlainTextf("Network fetches: **%d**", report.Fetches)
	md.PlainText("")
}

// writeCategories writes the per-category table and chart.
func (w *MarkdownWriter) writeCategories(md *markdown.Markdown, report *model.RunReport) {
	order, counts := report.ArticlesByCategory()

	md.H2("Articles by Category")
	md.PlainText("")

	if len(order) == 0 {
		md.PlainText("No articles collected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(order))
	for i, name := range order {
		rows[i] = []string{truncateString(name, 40), strconv.Itoa(counts[name])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Articles"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, order, counts)
}

// writePieChart writes a mermaid pie chart of articles per category.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, order []string, counts map[string]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Articles by Category"),
		piechart.WithShowData(true),
	)

	var others int
	for i, name := range order {
		if i >= maxChartSlices-1 && len(order) > maxChartSlices {
			others += counts[name]
			continue
		}
		chart.LabelAndIntValue(name, uint64(counts[name])) //nolint:gosec // counts are positive
	}
	if others > 0 {
		chart.LabelAndIntValue("others", uint64(others)) //nolint:gosec // counts are positive
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeOutputs lists the exported files.
func (w *MarkdownWriter) writeOutputs(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Outputs")
	md.PlainText("")

	if len(report.Outputs) == 0 {
		md.PlainText("Nothing was exported.")
		md.PlainText("")
		return
	}

	items := make([]string, len(report.Outputs))
	for i, path := range report.Outputs {
		items[i] = "`" + path + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

// WriteHistory outputs the run history as a table.
func (w *MarkdownWriter) WriteHistory(runs []database.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("lorecrawl Run History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		status := "✅"
		if !run.Succeeded() {
			status = "❌ " + truncateString(run.Error, 60)
		}
		rows[i] = []string{
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Format(timeLayout),
			run.Mode,
			strconv.Itoa(run.ExportedCategories),
			strconv.Itoa(run.ExportedArticles),
			strconv.Itoa(run.Fetches),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Started", "Mode", "Categories", "Articles", "Fetches", "Status"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [lorecrawl](https://github.com/nao1215/lorecrawl)*")
}
