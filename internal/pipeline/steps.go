package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/lorecrawl/internal/export"
	"github.com/nao1215/lorecrawl/internal/model"
	"github.com/nao1215/lorecrawl/internal/report"
	"github.com/nao1215/lorecrawl/internal/source"
)

// Collector gathers category names and articles for a run.
// *source.Selector satisfies it.
type Collector interface {
	Run(ctx context.Context, mode model.Mode, walkTree bool) (*source.Outcome, error)
}

// RunSaver persists a finished run.
// *database.Ledger satisfies it.
type RunSaver interface {
	SaveRun(ctx context.Context, report *model.RunReport) (int64, error)
}

// CollectStep traverses the catalog from the source selected by the
// report's mode.
type CollectStep struct {
	collector Collector
	walkTree  bool
}

// CollectStepOption configures a CollectStep.
type CollectStepOption func(*CollectStep)

// WithWalkTree makes replay runs walk the cached catalog tree instead of
// enumerating every cached article file.
func WithWalkTree(walkTree bool) CollectStepOption {
	return func(s *CollectStep) {
		s.walkTree = walkTree
	}
}

// NewCollectStep creates a collect step.
func NewCollectStep(collector Collector, opts ...CollectStepOption) *CollectStep {
	s := &CollectStep{collector: collector}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do runs the traversal. Whatever was collected before a failure is still
// copied into the report so the summary can show how far the run got.
func (s *CollectStep) Do(ctx context.Context, report *model.RunReport) error {
	out, err := s.collector.Run(ctx, report.Mode, s.walkTree)
	if out != nil {
		report.CategoryNames = out.CategoryNames
		report.Articles = out.Articles
		report.CategoryCount = len(out.CategoryNames)
		report.ArticleCount = len(out.Articles)
		report.Fetches = out.Fetches
	}
	return err
}

// ExportStep filters the collected lists and writes the final artifacts.
type ExportStep struct {
	format    export.Format
	formatter *export.Formatter
	writer    *export.Writer
}

// NewExportStep creates an export step writing format through writer and
// dropping the excluded category names.
func NewExportStep(writer *export.Writer, format export.Format, excluded []string) *ExportStep {
	return &ExportStep{
		format:    format,
		formatter: export.NewFormatter(format, excluded),
		writer:    writer,
	}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do formats and writes the artifacts.
func (s *ExportStep) Do(_ context.Context, report *model.RunReport) error {
	categoryText, articleText := s.formatter.Format(report.Articles, report.CategoryNames)

	paths, err := s.writer.Write(s.format, categoryText, articleText)
	report.Outputs = paths
	if err != nil {
		return err
	}

	report.ExportedCategories = len(s.formatter.Categories(report.CategoryNames))
	report.ExportedArticles = len(s.formatter.Articles(report.Articles))
	return nil
}

// LedgerStep records the run in the ledger.
type LedgerStep struct {
	saver  RunSaver
	logger *slog.Logger
}

// NewLedgerStep creates a ledger step.
func NewLedgerStep(saver RunSaver, logger *slog.Logger) *LedgerStep {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LedgerStep{saver: saver, logger: logger}
}

// Name returns the step name.
func (s *LedgerStep) Name() string {
	return "ledger"
}

// Do saves the run.
func (s *LedgerStep) Do(ctx context.Context, report *model.RunReport) error {
	id, err := s.saver.SaveRun(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	s.logger.Debug("run recorded", "id", id)
	return nil
}

// SummaryStep prints the run summary.
type SummaryStep struct {
	writer report.Writer
}

// NewSummaryStep creates a summary step.
func NewSummaryStep(writer report.Writer) *SummaryStep {
	return &SummaryStep{writer: writer}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summary"
}

// Do writes the summary.
func (s *SummaryStep) Do(_ context.Context, report *model.RunReport) error {
	if _, err := s.writer.Write(report); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// DefaultPipelineConfig holds the parts of a standard crawl run.
type DefaultPipelineConfig struct {
	// Collector is required.
	Collector Collector

	// WalkTree selects the tree-walking replay.
	WalkTree bool

	// Exporter and Format are required.
	Exporter *export.Writer
	Format   export.Format

	// Excluded lists category names left out of the export.
	Excluded []string

	// Ledger records the run when set.
	Ledger RunSaver

	// Summary prints the run summary when set.
	Summary report.Writer
}

// DefaultPipeline creates the standard crawl pipeline: collect and export,
// then record and summarize the run.
func DefaultPipeline(cfg DefaultPipelineConfig, opts ...Option) *Pipeline {
	p := New(opts...)

	p.AddSteps(
		NewCollectStep(cfg.Collector, WithWalkTree(cfg.WalkTree)),
		NewExportStep(cfg.Exporter, cfg.Format, cfg.Excluded),
	)
	if cfg.Ledger != nil {
		p.AddFinalizer(NewLedgerStep(cfg.Ledger, p.logger))
	}
	if cfg.Summary != nil {
		p.AddFinalizer(NewSummaryStep(cfg.Summary))
	}
	return p
}
