package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/uiprobe/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of verifications run at once when
// WithConcurrency is not given.
const DefaultConcurrency = 2

// VerifierFactory returns the Verifier a target should be run with.
type VerifierFactory func(target Target) (*Verifier, error)

// BatchProcessor verifies several targets concurrently. Every target gets
// its own browser; steps within a target still run strictly in order.
type BatchProcessor struct {
	factory     VerifierFactory
	concurrency int
	logger      *slog.Logger

	results []*model.RunReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent verifications.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory VerifierFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch verifies every target and returns one report per target, in
// input order. A failing target does not stop the others; its error is in
// its report. The returned error is non-nil only when ctx is cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	bp.results = make([]*model.RunReport, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			report := bp.verify(gctx, target, i, len(targets))

			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Goroutines never return errors

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return bp.results, ctx.Err()
}

// verify runs a single target and always returns a finished report.
func (bp *BatchProcessor) verify(ctx context.Context, target Target, index, total int) *model.RunReport {
	if err := ctx.Err(); err != nil {
		report := newTargetReport(target)
		report.Finish(model.StatusCancelled, err)
		return report
	}

	bp.logger.Info("verifying target",
		"scenario", target.Scenario,
		"target", target.URL,
		"index", index+1,
		"total", total,
	)

	v, err := bp.factory(target)
	if err != nil {
		report := newTargetReport(target)
		report.Finish(model.StatusFailed, fmt.Errorf("failed to prepare verifier: %w", err))
		return report
	}

	report, err := v.Verify(ctx, target)
	if err != nil {
		bp.logger.Warn("verification failed",
			"scenario", target.Scenario,
			"target", target.URL,
			"error", err,
		)
	}
	return report
}

// newTargetReport creates a report for a target that never reached a browser.
func newTargetReport(target Target) *model.RunReport {
	report := model.NewRunReport(target.URL)
	report.Scenario = target.Scenario
	report.AudioFile = target.AudioFile
	report.Driver = target.Driver
	return report
}
