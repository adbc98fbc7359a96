package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/uiprobe/internal/model"
)

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// verbose adds step start times and full digests.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one run in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder
	w.writeRun(&sb, report)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

// WriteBatch outputs every run followed by a summary.
func (w *SimpleWriter) WriteBatch(reports []*model.RunReport) (int, error) {
	var sb strings.Builder
	for _, r := range reports {
		w.writeRun(&sb, r)
	}
	w.writeBatchSummary(&sb, reports)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeRun(sb *strings.Builder, report *model.RunReport) {
	w.writeHeader(sb, report)
	w.writeSteps(sb, report)
	w.writeArtifacts(sb, report)
	w.writeWarnings(sb, report)
}

// writeHeader writes the run information block.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        UIPROBE VERIFICATION\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Run ID:     %s\n", report.ID))
	if report.Scenario != "" {
		sb.WriteString(fmt.Sprintf("Scenario:   %s\n", report.Scenario))
	}
	sb.WriteString(fmt.Sprintf("Target:     %s\n", report.TargetURL))
	if report.PageTitle != "" {
		sb.WriteString(fmt.Sprintf("Page Title: %s\n", report.PageTitle))
	}
	sb.WriteString(fmt.Sprintf("Audio File: %s\n", report.AudioFile))
	sb.WriteString(fmt.Sprintf("Driver:     %s\n", report.Driver))
	sb.WriteString(fmt.Sprintf("Started:    %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", formatDuration(report.Duration())))

	if report.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Status:     %s - %s\n", statusLabel(report.Status), report.ErrorMessage))
	} else {
		sb.WriteString(fmt.Sprintf("Status:     %s\n", statusLabel(report.Status)))
	}
	sb.WriteString("\n")
}

// writeSteps writes one line per executed step.
func (w *SimpleWriter) writeSteps(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("STEPS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Steps) == 0 {
		sb.WriteString("  No steps executed\n\n")
		return
	}

	for i, step := range report.Steps {
		indicator := "+"
		if step.Failed() {
			indicator = "x"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %2d. %-24s %10s\n", indicator, i+1, stepLabel(step.Name), formatDuration(step.Duration)))
		if w.verbose {
			sb.WriteString(fmt.Sprintf("         Started: %s\n", step.StartedAt.Format("15:04:05.000")))
		}
		if step.Failed() {
			sb.WriteString(fmt.Sprintf("         Error: %s\n", step.Error))
		}
	}
	sb.WriteString("\n")
}

// writeArtifacts writes the screenshots section.
func (w *SimpleWriter) writeArtifacts(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SCREENSHOTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Artifacts) == 0 {
		sb.WriteString("  No screenshots written\n\n")
		return
	}

	for _, a := range report.Artifacts {
		digest := shortDigest(a.Digest)
		if w.verbose {
			digest = a.Digest
		}
		sb.WriteString(fmt.Sprintf("  * %s\n", a.Path))
		sb.WriteString(fmt.Sprintf("    Size: %d bytes, %dx%d\n", a.Size, a.Width, a.Height))
		sb.WriteString(fmt.Sprintf("    SHA3-256: %s\n", digest))
	}
	sb.WriteString("\n")
}

// writeWarnings writes non-fatal observations, if any.
func (w *SimpleWriter) writeWarnings(sb *strings.Builder, report *model.RunReport) {
	if len(report.Warnings) == 0 {
		return
	}

	sb.WriteString("Warnings:\n")
	for _, warning := range report.Warnings {
		sb.WriteString(fmt.Sprintf("  [!] %s\n", warning))
	}
	sb.WriteString("\n")
}

// writeBatchSummary writes per-status counts for a batch.
func (w *SimpleWriter) writeBatchSummary(sb *strings.Builder, reports []*model.RunReport) {
	counts := countByStatus(reports)

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("BATCH SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  PASSED:    %d\n", counts[model.StatusPassed]))
	sb.WriteString(fmt.Sprintf("  FAILED:    %d\n", counts[model.StatusFailed]))
	sb.WriteString(fmt.Sprintf("  TIMED OUT: %d\n", counts[model.StatusTimedOut]))
	sb.WriteString(fmt.Sprintf("  CANCELLED: %d\n", counts[model.StatusCancelled]))
	sb.WriteString(fmt.Sprintf("\n  TOTAL:     %d runs\n\n", len(reports)))
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by uiprobe\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
