package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/uiprobe/internal/artifact"
	"github.com/nao1215/uiprobe/internal/browser"
)

// Step names as they appear in reports.
const (
	StepLaunchBrowser     = "launch_browser"
	StepOpenPage          = "open_page"
	StepNavigate          = "navigate"
	StepAttachAudio       = "attach_audio"
	StepDispatchChange    = "dispatch_change"
	StepStartProcessing   = "start_processing"
	StepWaitForCompletion = "wait_for_completion"
	StepCaptureResults    = "capture_results"
	StepOpenRawTab        = "open_raw_tab"
	StepCaptureRawResults = "capture_raw_results"
)

// Artifact names as they appear in reports and history.
const (
	ArtifactResults    = "results"
	ArtifactRawResults = "raw_results"
)

const changeEvent = "change"

// errNoPage is returned by page steps that run before OpenPageStep.
var errNoPage = errors.New("no page is open")

// OpenPageStep opens a new page in the launched browser.
type OpenPageStep struct{}

// Name returns the step name.
func (s *OpenPageStep) Name() string {
	return StepOpenPage
}

// Do opens the page and stores it in the run.
func (s *OpenPageStep) Do(ctx context.Context, run *Run) error {
	page, err := run.Browser.NewPage(ctx)
	if err != nil {
		return err
	}
	run.Page = page
	return nil
}

// NavigateStep loads the target URL.
type NavigateStep struct {
	URL string
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return StepNavigate
}

// Do navigates and waits for the load event.
func (s *NavigateStep) Do(ctx context.Context, run *Run) error {
	if run.Page == nil {
		return errNoPage
	}
	return run.Page.Navigate(ctx, s.URL)
}

// AttachFileStep sets a local file on a file input.
type AttachFileStep struct {
	Selector string
	Path     string
}

// Name returns the step name.
func (s *AttachFileStep) Name() string {
	return StepAttachAudio
}

// Do resolves the file to an absolute path and attaches it.
// A missing file fails here instead of inside the browser.
func (s *AttachFileStep) Do(ctx context.Context, run *Run) error {
	if run.Page == nil {
		return errNoPage
	}

	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", s.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("audio file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("audio file %s is a directory", abs)
	}

	return run.Page.SetInputFiles(ctx, s.Selector, abs)
}

// DispatchEventStep fires a DOM event on an element.
type DispatchEventStep struct {
	Selector string
	Event    string
}

// Name returns the step name.
func (s *DispatchEventStep) Name() string {
	if s.Event == changeEvent {
		return StepDispatchChange
	}
	return "dispatch_" + s.Event
}

// Do dispatches the event.
func (s *DispatchEventStep) Do(ctx context.Context, run *Run) error {
	if run.Page == nil {
		return errNoPage
	}
	return run.Page.DispatchEvent(ctx, s.Selector, s.Event)
}

// ClickStep clicks a button found by its accessible name.
type ClickStep struct {
	// StepName is reported as the step name.
	StepName string

	// ButtonName is the accessible name of the button.
	ButtonName string
}

// Name returns the step name.
func (s *ClickStep) Name() string {
	return s.StepName
}

// Do clicks the button.
func (s *ClickStep) Do(ctx context.Context, run *Run) error {
	if run.Page == nil {
		return errNoPage
	}
	return run.Page.ClickByRole(ctx, browser.RoleButton, s.ButtonName)
}

// WaitForTextStep waits until text is visible on the page.
type WaitForTextStep struct {
	Text    string
	Timeout time.Duration
}

// Name returns the step name.
func (s *WaitForTextStep) Name() string {
	return StepWaitForCompletion
}

// Do blocks until the text is visible or Timeout elapses.
func (s *WaitForTextStep) Do(ctx context.Context, run *Run) error {
	if run.Page == nil {
		return errNoPage
	}
	return run.Page.WaitForText(ctx, s.Text, s.Timeout)
}

// ScreenshotStep captures the full page and writes it to Path.
type ScreenshotStep struct {
	// StepName is reported as the step name.
	StepName string

	// ArtifactName identifies the screenshot in the report.
	ArtifactName string

	// Path is the destination file. An existing file is overwritten.
	Path string

	logger *slog.Logger
}

// Name returns the step name.
func (s *ScreenshotStep) Name() string {
	return s.StepName
}

// Do captures, writes and records the screenshot.
func (s *ScreenshotStep) Do(ctx context.Context, run *Run) error {
	if run.Page == nil {
		return errNoPage
	}

	data, err := run.Page.Screenshot(ctx, true)
	if err != nil {
		return err
	}

	a, err := artifact.Write(s.ArtifactName, s.Path, data)
	if err != nil {
		return fmt.Errorf("%w: %w", browser.ErrScreenshot, err)
	}
	run.Report.AddArtifact(a)

	if s.logger != nil {
		s.logger.Debug("screenshot written",
			"path", a.Path,
			"bytes", a.Size,
			"width", a.Width,
			"height", a.Height,
		)
	}
	return nil
}

// DefaultSteps returns the verification sequence for target, excluding the
// browser launch, which the Verifier performs itself.
func DefaultSteps(target Target, logger *slog.Logger) []Step {
	return []Step{
		&OpenPageStep{},
		&NavigateStep{URL: target.URL},
		&AttachFileStep{Selector: target.FileInputSelector, Path: target.AudioFile},
		&DispatchEventStep{Selector: target.FileInputSelector, Event: changeEvent},
		&ClickStep{StepName: StepStartProcessing, ButtonName: target.StartButtonName},
		&WaitForTextStep{Text: target.CompletionText, Timeout: target.CompletionTimeout},
		&ScreenshotStep{
			StepName:     StepCaptureResults,
			ArtifactName: ArtifactResults,
			Path:         target.ResultsPath,
			logger:       logger,
		},
		&ClickStep{StepName: StepOpenRawTab, ButtonName: target.RawTabName},
		&ScreenshotStep{
			StepName:     StepCaptureRawResults,
			ArtifactName: ArtifactRawResults,
			Path:         target.RawResultsPath,
			logger:       logger,
		},
	}
}
