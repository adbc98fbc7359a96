package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/uiprobe/internal/artifact"
	"github.com/nao1215/uiprobe/internal/browser"
	"github.com/nao1215/uiprobe/internal/config"
	"github.com/nao1215/uiprobe/internal/model"
	"github.com/nao1215/uiprobe/internal/preflight"
)

// Target describes one verification: where to go, what to upload and where
// to put the screenshots.
type Target struct {
	// Scenario is the scenario name, empty for the default run.
	Scenario string

	URL               string
	AudioFile         string
	FileInputSelector string
	StartButtonName   string
	CompletionText    string
	RawTabName        string
	CompletionTimeout time.Duration
	ResultsPath       string
	RawResultsPath    string

	// Driver is the browser driver the target should be verified with.
	Driver string
}

// TargetFromConfig builds a Target from cfg.
func TargetFromConfig(cfg *config.Config) Target {
	return Target{
		Scenario:          cfg.ScenarioName,
		URL:               cfg.TargetURL,
		AudioFile:         cfg.AudioFile,
		FileInputSelector: cfg.FileInputSelector,
		StartButtonName:   cfg.StartButtonName,
		CompletionText:    cfg.CompletionText,
		RawTabName:        cfg.RawTabName,
		CompletionTimeout: cfg.CompletionTimeout,
		ResultsPath:       cfg.ResultsPath(),
		RawResultsPath:    cfg.RawResultsPath(),
		Driver:            cfg.Driver,
	}
}

// Verifier runs the verification sequence in a browser it owns.
type Verifier struct {
	launcher browser.Launcher
	prober   *preflight.Prober
	clean    bool
	logger   *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets a custom logger.
func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithPreflight checks the target over plain HTTP before launching the
// browser. An unreachable target then fails without starting a browser.
func WithPreflight(prober *preflight.Prober) VerifierOption {
	return func(v *Verifier) {
		v.prober = prober
	}
}

// WithCleanArtifacts removes screenshots left by an earlier run before
// starting, so a failed run leaves no screenshots behind.
func WithCleanArtifacts(clean bool) VerifierOption {
	return func(v *Verifier) {
		v.clean = clean
	}
}

// NewVerifier creates a Verifier that launches browsers with launcher.
func NewVerifier(launcher browser.Launcher, opts ...VerifierOption) *Verifier {
	v := &Verifier{launcher: launcher}

	for _, opt := range opts {
		opt(v)
	}

	if v.logger == nil {
		v.logger = slog.Default()
	}

	return v
}

// Verify runs the full sequence against target. The returned report is
// never nil and is always finished. The browser, once launched, is closed
// exactly once before Verify returns, whatever the outcome. A close failure
// is returned only if the run itself succeeded.
func (v *Verifier) Verify(ctx context.Context, target Target) (report *model.RunReport, err error) {
	report = model.NewRunReport(target.URL)
	report.Scenario = target.Scenario
	report.AudioFile = target.AudioFile
	report.Driver = v.launcher.Name()

	defer func() {
		report.Finish(classify(err), err)
		v.logger.Info("verification finished",
			"target", target.URL,
			"status", report.Status.String(),
			"duration", report.Duration(),
		)
	}()

	if v.clean {
		for _, p := range []string{target.ResultsPath, target.RawResultsPath} {
			if rmErr := artifact.Remove(p); rmErr != nil {
				return report, fmt.Errorf("failed to remove stale screenshot: %w", rmErr)
			}
		}
	}

	if v.prober != nil {
		if err := v.preflight(ctx, target, report); err != nil {
			return report, err
		}
	}

	launchStep := model.StepResult{Name: StepLaunchBrowser, StartedAt: time.Now()}
	b, err := v.launcher.Launch(ctx)
	launchStep.Duration = time.Since(launchStep.StartedAt)
	if err != nil {
		launchStep.Error = err.Error()
		report.AddStep(launchStep)
		return report, fmt.Errorf("%s: %w", StepLaunchBrowser, err)
	}
	report.AddStep(launchStep)

	defer func() {
		closeErr := b.Close()
		if closeErr == nil {
			return
		}
		v.logger.Warn("failed to close browser", "error", closeErr)
		if err == nil {
			err = fmt.Errorf("failed to close browser: %w", closeErr)
		}
	}()

	p := New(WithLogger(v.logger))
	p.AddSteps(DefaultSteps(target, v.logger)...)

	run := &Run{Report: report, Browser: b}
	if err := p.Execute(ctx, run); err != nil {
		return report, err
	}
	return report, nil
}

// preflight probes the target and records what it saw.
func (v *Verifier) preflight(ctx context.Context, target Target, report *model.RunReport) error {
	res, err := v.prober.Probe(ctx, target.URL, target.FileInputSelector)
	if err != nil {
		return fmt.Errorf("preflight: %w: %s: %w", browser.ErrNavigation, target.URL, err)
	}

	report.PageTitle = res.Title
	if res.ElementChecked && !res.ElementFound {
		report.AddWarning(fmt.Sprintf("%s not found in served HTML; it may be rendered client-side", target.FileInputSelector))
	}
	return nil
}

// classify maps a run error to a terminal status.
func classify(err error) model.Status {
	switch {
	case err == nil:
		return model.StatusPassed
	case errors.Is(err, context.Canceled):
		return model.StatusCancelled
	case errors.Is(err, browser.ErrVisibilityTimeout), errors.Is(err, context.DeadlineExceeded):
		return model.StatusTimedOut
	default:
		return model.StatusFailed
	}
}
