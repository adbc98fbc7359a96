package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/uiprobe/internal/model"
)

const testDigest = "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"

// createTestReport creates a passed run with two screenshots.
func createTestReport() *model.RunReport {
	report := model.NewRunReport("http://localhost:5173")
	report.AudioFile = "jules-scratch/verification/silent.mp3"
	report.Driver = "playwright"
	report.PageTitle = "Transcriber"
	report.StartedAt = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	report.AddStep(model.StepResult{Name: "launch_browser", Duration: 800 * time.Millisecond})
	report.AddStep(model.StepResult{Name: "navigate", Duration: 250 * time.Millisecond})
	report.AddStep(model.StepResult{Name: "wait_for_completion", Duration: 12 * time.Second})

	report.AddArtifact(model.Artifact{
		Name: "results", Path: "jules-scratch/verification/results.png",
		Size: 48213, Width: 1280, Height: 2210, Digest: testDigest,
	})
	report.AddArtifact(model.Artifact{
		Name: "raw_results", Path: "jules-scratch/verification/raw_results.png",
		Size: 51007, Width: 1280, Height: 2480, Digest: strings.Repeat("b", 64),
	})

	report.Finish(model.StatusPassed, nil)
	report.FinishedAt = report.StartedAt.Add(14 * time.Second)
	return report
}

// createFailedReport creates a run that timed out waiting for completion.
func createFailedReport() *model.RunReport {
	report := model.NewRunReport("http://localhost:5173")
	report.Scenario = "slow"
	report.Driver = "rod"
	report.AddStep(model.StepResult{Name: "navigate", Duration: 200 * time.Millisecond})
	report.AddStep(model.StepResult{
		Name:     "wait_for_completion",
		Duration: 60 * time.Second,
		Error:    "timed out waiting for element to become visible",
	})
	report.AddWarning("#file-input not found in served HTML")
	report.Finish(model.StatusTimedOut, errors.New("wait_for_completion: timed out waiting for element to become visible"))
	return report
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes run header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		report := createTestReport()
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"UIPROBE VERIFICATION",
			report.ID,
			"http://localhost:5173",
			"Page Title: Transcriber",
			"Driver:     playwright",
			"Status:     PASSED",
			"Duration:   14s",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes step labels", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Wait For Completion") {
			t.Error("expected title-cased step label")
		}
		if !strings.Contains(output, "Launch Browser") {
			t.Error("expected launch step")
		}
	})

	t.Run("writes screenshots with short digest", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "jules-scratch/verification/raw_results.png") {
			t.Error("expected screenshot path")
		}
		if !strings.Contains(output, "1280x2210") {
			t.Error("expected dimensions")
		}
		if !strings.Contains(output, testDigest[:12]) || strings.Contains(output, testDigest) {
			t.Error("expected shortened digest")
		}
	})

	t.Run("verbose shows full digest", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), testDigest) {
			t.Error("expected full digest in verbose mode")
		}
	})

	t.Run("writes failure details", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createFailedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"Scenario:   slow",
			"Status:     TIMED OUT - wait_for_completion",
			"[x]",
			"No screenshots written",
			"[!] #file-input not found",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes batch summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		reports := []*model.RunReport{createTestReport(), createFailedReport()}
		if _, err := NewSimpleWriter(&buf).WriteBatch(reports); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if strings.Count(output, "UIPROBE VERIFICATION") != 2 {
			t.Error("expected one block per run")
		}
		if !strings.Contains(output, "PASSED:    1") || !strings.Contains(output, "TIMED OUT: 1") {
			t.Error("expected status counts")
		}
		if !strings.Contains(output, "TOTAL:     2 runs") {
			t.Error("expected total")
		}
	})

	t.Run("returns bytes written", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("expected %d bytes, got %d", buf.Len(), n)
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes compact JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := strings.TrimSuffix(buf.String(), "\n")
		if strings.Contains(output, "\n") {
			t.Error("compact output should be a single line")
		}

		var decoded model.RunReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Status != model.StatusPassed || len(decoded.Artifacts) != 2 {
			t.Errorf("unexpected decoded report %+v", decoded)
		}
	})

	t.Run("writes status by name", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createFailedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), `"status":"timed_out"`) {
			t.Errorf("expected status name in %s", buf.String())
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(buf.String(), "\n  \"id\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("empty batch is an empty array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteBatch(nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("expected [], got %q", buf.String())
		}
	})
}

// TestFullJSONWriter tests the envelope writer.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	reports := []*model.RunReport{createTestReport(), createFailedReport()}
	if _, err := NewFullJSONWriter(&buf, "v1.2.3", WithPrettyPrint()).WriteBatch(reports); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded struct {
		Version string            `json:"version"`
		Summary Summary           `json:"summary"`
		Runs    []json.RawMessage `json:"runs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Version != "v1.2.3" {
		t.Errorf("expected version v1.2.3, got %q", decoded.Version)
	}
	if decoded.Summary.Total != 2 || decoded.Summary.Passed != 1 || decoded.Summary.TimedOut != 1 {
		t.Errorf("unexpected summary %+v", decoded.Summary)
	}
	if len(decoded.Runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(decoded.Runs))
	}
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes passed run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# uiprobe Verification Report",
			"✅ Passed",
			"## Steps",
			"Wait For Completion",
			"## Screenshots",
			"`jules-scratch/verification/results.png`",
			"pie",
			"[!TIP]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes failure alert and warnings", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createFailedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "[!WARNING]") {
			t.Error("expected warning alert for a timeout")
		}
		if !strings.Contains(output, "No screenshots written.") {
			t.Error("expected empty screenshots note")
		}
		if !strings.Contains(output, "## Warnings") {
			t.Error("expected warnings section")
		}
	})

	t.Run("writes batch summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		reports := []*model.RunReport{createTestReport(), createFailedReport()}
		if _, err := NewMarkdownWriter(&buf).WriteBatch(reports); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "## Summary") {
			t.Error("expected summary section")
		}
		if !strings.Contains(output, "## Run: slow") {
			t.Error("expected scenario heading")
		}
		if !strings.Contains(output, "### Steps") {
			t.Error("expected nested step headings")
		}
		if !strings.Contains(output, "[!CAUTION]") {
			t.Error("expected caution for a failing batch")
		}
	})
}

// TestHelpers tests the formatting helpers.
func TestHelpers(t *testing.T) {
	t.Parallel()

	t.Run("stepLabel", func(t *testing.T) {
		t.Parallel()

		if got := stepLabel("capture_raw_results"); got != "Capture Raw Results" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("statusLabel", func(t *testing.T) {
		t.Parallel()

		if got := statusLabel(model.StatusTimedOut); got != "TIMED OUT" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("shortDigest", func(t *testing.T) {
		t.Parallel()

		if got := shortDigest("abc"); got != "abc" {
			t.Errorf("got %q", got)
		}
		if got := shortDigest(testDigest); got != testDigest[:12] {
			t.Errorf("got %q", got)
		}
	})

	t.Run("formatDuration", func(t *testing.T) {
		t.Parallel()

		tests := map[time.Duration]string{
			1234567 * time.Microsecond: "1.23s",
			250 * time.Millisecond:     "250ms",
			500 * time.Microsecond:     "500µs",
		}
		for in, want := range tests {
			if got := formatDuration(in); got != want {
				t.Errorf("formatDuration(%s) = %q, want %q", in, got, want)
			}
		}
	})

	t.Run("truncateString", func(t *testing.T) {
		t.Parallel()

		if got := truncateString("hello world", 8); got != "hello..." {
			t.Errorf("got %q", got)
		}
		if got := truncateString("hi", 8); got != "hi" {
			t.Errorf("got %q", got)
		}
	})
}
