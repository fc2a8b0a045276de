package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/lorecrawl/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the report
// filled in by the previous steps.
type Step interface {
	// Do executes the pipeline step.
	// Returning an error aborts the remaining regular steps.
	Do(ctx context.Context, report *model.RunReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalizers run after the steps even when one of them failed.
	finalizers []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// now returns the current time. Replaced in tests.
	now func() time.Time
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:      make([]Step, 0),
		finalizers: make([]Step, 0),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	for _, step := range steps {
		p.AddStep(step)
	}
}

// AddFinalizer appends a step that runs after all regular steps, whether
// they succeeded or not.
func (p *Pipeline) AddFinalizer(step Step) {
	p.finalizers = append(p.finalizers, step)
}

// Execute runs the regular steps in sequence, stamps the finish time and
// then runs every finalizer.
//
// The returned error is the first regular step failure. A finalizer failure
// is returned only when the regular steps succeeded.
func (p *Pipeline) Execute(ctx context.Context, report *model.RunReport) error {
	p.logger.Debug("executing pipeline", "steps", p.StepNames(), "regular", p.StepCount())

	runErr := p.runSteps(ctx, report)

	if report.FinishedAt.IsZero() {
		report.FinishedAt = p.now()
	}

	// Finalizers record the run, so a cancelled run must still reach them.
	finalCtx := context.WithoutCancel(ctx)

	var finalErrs []error
	for _, step := range p.finalizers {
		p.logger.Debug("executing finalizer", "step", step.Name())
		if err := step.Do(finalCtx, report); err != nil {
			p.logger.Error("finalizer failed", "step", step.Name(), "error", err)
			finalErrs = append(finalErrs, err)
			continue
		}
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	if runErr != nil {
		return runErr
	}
	return errors.Join(finalErrs...)
}

// runSteps executes the regular steps and stops at the first failure.
func (p *Pipeline) runSteps(ctx context.Context, report *model.RunReport) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			p.record(report, err)
			return err
		}

		p.logger.Info("executing step", "step", step.Name(), "mode", report.Mode)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed", "step", step.Name(), "error", err)
			p.record(report, err)
			return err
		}

		p.logger.Debug("step completed", "step", step.Name())
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}
	return nil
}

// record stores err in the report.
func (p *Pipeline) record(report *model.RunReport, err error) {
	report.Error = err
	report.ErrorMessage = err.Error()
}

// StepCount returns the number of regular steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order, finalizers
// last.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps)+len(p.finalizers))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalizers {
		names = append(names, step.Name())
	}
	return names
}
