package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/uiprobe/internal/artifact"
	"github.com/nao1215/uiprobe/internal/browser"
	"github.com/nao1215/uiprobe/internal/browser/browsertest"
	"github.com/nao1215/uiprobe/internal/config"
	"github.com/nao1215/uiprobe/internal/model"
	"github.com/nao1215/uiprobe/internal/preflight"
)

// newTarget returns a target with a real audio file and output paths in a
// temporary directory.
func newTarget(t *testing.T) Target {
	t.Helper()

	dir := t.TempDir()
	audio := filepath.Join(dir, "silent.mp3")
	if err := os.WriteFile(audio, []byte("ID3"), 0600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "verification")

	return Target{
		URL:               config.DefaultTargetURL,
		AudioFile:         audio,
		FileInputSelector: config.DefaultFileInputSelector,
		StartButtonName:   config.DefaultStartButtonName,
		CompletionText:    config.DefaultCompletionText,
		RawTabName:        config.DefaultRawTabName,
		CompletionTimeout: config.DefaultCompletionTimeout,
		ResultsPath:       filepath.Join(out, config.DefaultResultsFile),
		RawResultsPath:    filepath.Join(out, config.DefaultRawResultsFile),
		Driver:            "fake",
	}
}

func newTestVerifier(l browser.Launcher, opts ...VerifierOption) *Verifier {
	return NewVerifier(l, append([]VerifierOption{WithVerifierLogger(discardLogger())}, opts...)...)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TestTargetFromConfig tests building a target from configuration.
func TestTargetFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.ScenarioName = "staging"
	target := TargetFromConfig(cfg)

	if target.URL != "http://localhost:5173" {
		t.Errorf("unexpected URL %q", target.URL)
	}
	if target.ResultsPath != filepath.Join("jules-scratch", "verification", "results.png") {
		t.Errorf("unexpected results path %q", target.ResultsPath)
	}
	if target.RawResultsPath != filepath.Join("jules-scratch", "verification", "raw_results.png") {
		t.Errorf("unexpected raw results path %q", target.RawResultsPath)
	}
	if target.CompletionTimeout != 60*time.Second {
		t.Errorf("expected 60s, got %s", target.CompletionTimeout)
	}
	if target.Scenario != "staging" || target.Driver != config.DriverPlaywright {
		t.Errorf("unexpected target %+v", target)
	}
}

// TestVerifierVerify tests the full verification sequence against the fake browser.
func TestVerifierVerify(t *testing.T) {
	t.Parallel()

	t.Run("successful run", func(t *testing.T) {
		t.Parallel()

		l := browsertest.NewLauncher()
		target := newTarget(t)

		report, err := newTestVerifier(l).Verify(context.Background(), target)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expectedOps := []string{
			browsertest.OpLaunch,
			browsertest.OpNewPage,
			browsertest.OpNavigate,
			browsertest.OpSetInputFiles,
			browsertest.OpDispatchEvent,
			browsertest.OpClickByRole,
			browsertest.OpWaitForText,
			browsertest.OpScreenshot,
			browsertest.OpClickByRole,
			browsertest.OpScreenshot,
			browsertest.OpClose,
		}
		if ops := l.Ops(); !slices.Equal(ops, expectedOps) {
			t.Errorf("unexpected operation order:\n got  %v\n want %v", ops, expectedOps)
		}
		if l.CloseCalls() != 1 {
			t.Errorf("expected browser to be closed once, got %d", l.CloseCalls())
		}

		calls := l.Calls()
		if calls[2].Args[0] != "http://localhost:5173" {
			t.Errorf("unexpected navigation %v", calls[2].Args)
		}
		if calls[5].Args[1] != "Start Processing" || calls[8].Args[1] != "raw" {
			t.Errorf("unexpected clicks %v / %v", calls[5].Args, calls[8].Args)
		}
		if calls[6].Timeout != 60*time.Second {
			t.Errorf("expected 60s completion timeout, got %s", calls[6].Timeout)
		}

		if !report.Passed() {
			t.Errorf("expected passed, got %s (%s)", report.Status, report.ErrorMessage)
		}
		if report.Driver != "fake" {
			t.Errorf("expected driver fake, got %q", report.Driver)
		}
		if len(report.Steps) != 10 {
			t.Errorf("expected 10 step results, got %d", len(report.Steps))
		}
		if report.Steps[0].Name != StepLaunchBrowser {
			t.Errorf("expected first step %q, got %q", StepLaunchBrowser, report.Steps[0].Name)
		}

		results := report.GetArtifact(ArtifactResults)
		raw := report.GetArtifact(ArtifactRawResults)
		if results == nil || raw == nil {
			t.Fatalf("expected both artifacts, got %+v", report.Artifacts)
		}
		if results.SameContent(*raw) {
			t.Error("expected screenshots to differ")
		}
		for _, path := range []string{target.ResultsPath, target.RawResultsPath} {
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("expected %s to exist: %v", path, err)
			}
			if info.Size() == 0 {
				t.Errorf("expected %s to be non-empty", path)
			}
		}
	})

	t.Run("unreachable target writes no screenshots", func(t *testing.T) {
		t.Parallel()

		navErr := fmt.Errorf("%w: http://localhost:5173: net::ERR_CONNECTION_REFUSED", browser.ErrNavigation)
		l := browsertest.NewLauncher().Fail(browsertest.OpNavigate, navErr)
		target := newTarget(t)

		report, err := newTestVerifier(l).Verify(context.Background(), target)

		if !errors.Is(err, browser.ErrNavigation) {
			t.Errorf("expected ErrNavigation, got %v", err)
		}
		if report.Status != model.StatusFailed {
			t.Errorf("expected failed, got %s", report.Status)
		}
		if failed := report.FailedStep(); failed == nil || failed.Name != StepNavigate {
			t.Errorf("expected %s to fail, got %+v", StepNavigate, failed)
		}
		if l.CloseCalls() != 1 {
			t.Errorf("expected browser to be closed once, got %d", l.CloseCalls())
		}
		if fileExists(target.ResultsPath) || fileExists(target.RawResultsPath) {
			t.Error("expected no screenshots")
		}
	})

	t.Run("completion timeout writes no screenshots", func(t *testing.T) {
		t.Parallel()

		waitErr := fmt.Errorf("%w: text %q after 1m0s", browser.ErrVisibilityTimeout, "Transcription Complete")
		l := browsertest.NewLauncher().Fail(browsertest.OpWaitForText, waitErr)
		target := newTarget(t)

		report, err := newTestVerifier(l).Verify(context.Background(), target)

		if !errors.Is(err, browser.ErrVisibilityTimeout) {
			t.Errorf("expected ErrVisibilityTimeout, got %v", err)
		}
		if report.Status != model.StatusTimedOut {
			t.Errorf("expected timed_out, got %s", report.Status)
		}
		if slices.Contains(l.Ops(), browsertest.OpScreenshot) {
			t.Error("no screenshot should be attempted after a timeout")
		}
		if fileExists(target.ResultsPath) || fileExists(target.RawResultsPath) {
			t.Error("expected no screenshots")
		}
		if l.CloseCalls() != 1 {
			t.Errorf("expected browser to be closed once, got %d", l.CloseCalls())
		}
	})

	t.Run("missing raw tab keeps the first screenshot", func(t *testing.T) {
		t.Parallel()

		l := browsertest.NewLauncher()
		l.ClickErrors["raw"] = fmt.Errorf("%w: button %q", browser.ErrElementNotFound, "raw")
		target := newTarget(t)

		report, err := newTestVerifier(l).Verify(context.Background(), target)

		if !errors.Is(err, browser.ErrElementNotFound) {
			t.Errorf("expected ErrElementNotFound, got %v", err)
		}
		if failed := report.FailedStep(); failed == nil || failed.Name != StepOpenRawTab {
			t.Errorf("expected %s to fail, got %+v", StepOpenRawTab, failed)
		}
		if !fileExists(target.ResultsPath) {
			t.Error("expected results.png to exist")
		}
		if fileExists(target.RawResultsPath) {
			t.Error("expected raw_results.png to be absent")
		}
		if l.CloseCalls() != 1 {
			t.Errorf("expected browser to be closed once, got %d", l.CloseCalls())
		}
	})

	t.Run("missing audio file", func(t *testing.T) {
		t.Parallel()

		l := browsertest.NewLauncher()
		target := newTarget(t)
		target.AudioFile = filepath.Join(t.TempDir(), "missing.mp3")

		report, err := newTestVerifier(l).Verify(context.Background(), target)

		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("expected fs.ErrNotExist, got %v", err)
		}
		if failed := report.FailedStep(); failed == nil || failed.Name != StepAttachAudio {
			t.Errorf("expected %s to fail, got %+v", StepAttachAudio, failed)
		}
		if l.CloseCalls() != 1 {
			t.Errorf("expected browser to be closed once, got %d", l.CloseCalls())
		}
	})

	t.Run("launch failure does not close", func(t *testing.T) {
		t.Parallel()

		l := browsertest.NewLauncher().Fail(browsertest.OpLaunch, browser.ErrLaunch)

		report, err := newTestVerifier(l).Verify(context.Background(), newTarget(t))

		if !errors.Is(err, browser.ErrLaunch) {
			t.Errorf("expected ErrLaunch, got %v", err)
		}
		if l.CloseCalls() != 0 {
			t.Errorf("expected no close for a browser that never started, got %d", l.CloseCalls())
		}
		if failed := report.FailedStep(); failed == nil || failed.Name != StepLaunchBrowser {
			t.Errorf("expected %s to fail, got %+v", StepLaunchBrowser, failed)
		}
	})

	t.Run("close failure fails an otherwise passing run", func(t *testing.T) {
		t.Parallel()

		closeErr := errors.New("browser has been closed")
		l := browsertest.NewLauncher().Fail(browsertest.OpClose, closeErr)
		target := newTarget(t)

		report, err := newTestVerifier(l).Verify(context.Background(), target)

		if !errors.Is(err, closeErr) {
			t.Errorf("expected close error, got %v", err)
		}
		if report.Status != model.StatusFailed {
			t.Errorf("expected failed, got %s", report.Status)
		}
		if !fileExists(target.ResultsPath) || !fileExists(target.RawResultsPath) {
			t.Error("expected both screenshots")
		}
	})

	t.Run("step error wins over close error", func(t *testing.T) {
		t.Parallel()

		l := browsertest.NewLauncher().
			Fail(browsertest.OpNavigate, browser.ErrNavigation).
			Fail(browsertest.OpClose, errors.New("close failed"))

		_, err := newTestVerifier(l).Verify(context.Background(), newTarget(t))

		if !errors.Is(err, browser.ErrNavigation) {
			t.Errorf("expected ErrNavigation, got %v", err)
		}
		if l.CloseCalls() != 1 {
			t.Errorf("expected browser to be closed once, got %d", l.CloseCalls())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l := browsertest.NewLauncher()

		report, err := newTestVerifier(l).Verify(ctx, newTarget(t))

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if report.Status != model.StatusCancelled {
			t.Errorf("expected cancelled, got %s", report.Status)
		}
	})

	t.Run("re-running overwrites the same paths", func(t *testing.T) {
		t.Parallel()

		target := newTarget(t)
		if err := os.MkdirAll(filepath.Dir(target.ResultsPath), 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(target.ResultsPath, []byte("stale"), 0600); err != nil {
			t.Fatal(err)
		}

		first, err := newTestVerifier(browsertest.NewLauncher()).Verify(context.Background(), target)
		if err != nil {
			t.Fatalf("first run: %v", err)
		}
		second, err := newTestVerifier(browsertest.NewLauncher()).Verify(context.Background(), target)
		if err != nil {
			t.Fatalf("second run: %v", err)
		}

		if first.ID == second.ID {
			t.Error("expected distinct run IDs")
		}
		a, err := artifact.Inspect(ArtifactResults, target.ResultsPath)
		if err != nil {
			t.Fatalf("results.png is not a valid screenshot: %v", err)
		}
		if a.Digest != second.GetArtifact(ArtifactResults).Digest {
			t.Error("file on disk should be the latest screenshot")
		}
		entries, err := os.ReadDir(filepath.Dir(target.ResultsPath))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Errorf("expected exactly 2 files, got %d", len(entries))
		}
	})

	t.Run("clean removes stale screenshots before a failing run", func(t *testing.T) {
		t.Parallel()

		target := newTarget(t)
		if _, err := newTestVerifier(browsertest.NewLauncher()).Verify(context.Background(), target); err != nil {
			t.Fatalf("seed run: %v", err)
		}

		l := browsertest.NewLauncher().Fail(browsertest.OpNavigate, browser.ErrNavigation)
		_, err := newTestVerifier(l, WithCleanArtifacts(true)).Verify(context.Background(), target)

		if !errors.Is(err, browser.ErrNavigation) {
			t.Errorf("expected ErrNavigation, got %v", err)
		}
		if fileExists(target.ResultsPath) || fileExists(target.RawResultsPath) {
			t.Error("expected stale screenshots to be removed")
		}
	})
}

// TestVerifierPreflight tests the optional HTTP probe before launch.
func TestVerifierPreflight(t *testing.T) {
	t.Parallel()

	t.Run("unreachable target never launches a browser", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		l := browsertest.NewLauncher()
		target := newTarget(t)
		target.URL = url

		report, err := newTestVerifier(l, WithPreflight(preflight.NewProber())).Verify(context.Background(), target)

		if !errors.Is(err, browser.ErrNavigation) {
			t.Errorf("expected ErrNavigation, got %v", err)
		}
		if !errors.Is(err, preflight.ErrUnreachable) {
			t.Errorf("expected ErrUnreachable in chain, got %v", err)
		}
		if len(l.Ops()) != 0 {
			t.Errorf("expected no browser operations, got %v", l.Ops())
		}
		if report.Status != model.StatusFailed {
			t.Errorf("expected failed, got %s", report.Status)
		}
	})

	t.Run("records title and warns about client-rendered input", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `<html><head><title>Transcriber</title></head><body><div id="root"></div></body></html>`)
		}))
		t.Cleanup(srv.Close)

		l := browsertest.NewLauncher()
		target := newTarget(t)
		target.URL = srv.URL

		prober := preflight.NewProber(preflight.WithHTTPClient(srv.Client()), preflight.WithLogger(discardLogger()))
		report, err := newTestVerifier(l, WithPreflight(prober)).Verify(context.Background(), target)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.PageTitle != "Transcriber" {
			t.Errorf("expected title Transcriber, got %q", report.PageTitle)
		}
		if len(report.Warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", report.Warnings)
		}
		if l.Launches() != 1 {
			t.Errorf("expected 1 launch, got %d", l.Launches())
		}
	})
}

// TestClassify tests mapping errors to run statuses.
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want model.Status
	}{
		{"nil", nil, model.StatusPassed},
		{"cancelled", fmt.Errorf("navigate: %w", context.Canceled), model.StatusCancelled},
		{"visibility timeout", fmt.Errorf("wait: %w", browser.ErrVisibilityTimeout), model.StatusTimedOut},
		{"deadline", context.DeadlineExceeded, model.StatusTimedOut},
		{"navigation", browser.ErrNavigation, model.StatusFailed},
		{"other", errors.New("boom"), model.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
