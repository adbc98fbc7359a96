package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/uiprobe/internal/browser"
	"github.com/nao1215/uiprobe/internal/model"
)

// Run is the state shared by the steps of one verification.
type Run struct {
	// Report accumulates step results and artifacts.
	Report *model.RunReport

	// Browser is the launched browser. It is owned by the Verifier.
	Browser browser.Browser

	// Page is the page opened by OpenPageStep. Nil before that step.
	Page browser.Page
}

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Do executes the step. A non-nil error aborts the pipeline.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logs and reports.
	Name() string
}

// Pipeline executes steps strictly in order and stops at the first failure.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
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
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and records a StepResult for each one
// that started. The first error is returned wrapped with the step name;
// the original error stays reachable through errors.Is and errors.As.
// Cancellation is checked before every step.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", err,
			)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"target", run.Report.TargetURL,
		)

		result := model.StepResult{Name: step.Name(), StartedAt: time.Now()}
		err := step.Do(ctx, run)
		result.Duration = time.Since(result.StartedAt)
		if err != nil {
			result.Error = err.Error()
		}
		run.Report.AddStep(result)

		if err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", run.Report.TargetURL,
				"error", err,
			)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"duration", result.Duration,
		)
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
