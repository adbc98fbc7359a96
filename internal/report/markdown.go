package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/uiprobe/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one run in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("uiprobe Verification Report")
	md.PlainText("")
	w.writeRun(md, report, "##")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs a summary table followed by every run.
func (w *MarkdownWriter) WriteBatch(reports []*model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("uiprobe Verification Report")
	md.PlainText("")
	w.writeBatchSummary(md, reports)

	for _, r := range reports {
		name := r.Scenario
		if name == "" {
			name = r.TargetURL
		}
		md.H2("Run: " + name)
		md.PlainText("")
		w.writeRun(md, r, "###")
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeRun writes one run. level is the heading prefix for its sections.
func (w *MarkdownWriter) writeRun(md *markdown.Markdown, report *model.RunReport, level string) {
	w.writeHeader(md, report)
	w.writeAlert(md, report)
	w.writeSteps(md, report, level)
	w.writeArtifacts(md, report, level)
	w.writeWarnings(md, report, level)
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	rows := [][]string{
		{"Run ID", "`" + report.ID + "`"},
	}
	if report.Scenario != "" {
		rows = append(rows, []string{"Scenario", report.Scenario})
	}
	rows = append(rows,
		[]string{"Target", "`" + report.TargetURL + "`"},
		[]string{"Audio File", "`" + report.AudioFile + "`"},
		[]string{"Driver", report.Driver},
		[]string{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", formatDuration(report.Duration())},
		[]string{"Status", getStatusText(report.Status)},
	)
	if report.PageTitle != "" {
		rows = append(rows, []string{"Page Title", report.PageTitle})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status with a visual marker.
func getStatusText(s model.Status) string {
	switch s {
	case model.StatusPassed:
		return "✅ Passed"
	case model.StatusTimedOut:
		return "⏱️ Timed Out"
	case model.StatusCancelled:
		return "⚠️ Cancelled"
	case model.StatusFailed:
		return "❌ Failed"
	default:
		return "⏳ Pending"
	}
}

// writeAlert writes an alert describing the outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.RunReport) {
	switch report.Status {
	case model.StatusPassed:
		md.Tip("Verification passed. Both screenshots were captured.")
	case model.StatusTimedOut:
		md.Warningf("Completion marker did not appear in time: %s", report.ErrorMessage)
	case model.StatusCancelled:
		md.Importantf("Verification was cancelled: %s", report.ErrorMessage)
	case model.StatusFailed:
		md.Cautionf("Verification failed: %s", report.ErrorMessage)
	default:
		md.Note("Verification has not finished.")
	}
	md.PlainText("")
}

// writeSteps writes the step table and a duration chart.
func (w *MarkdownWriter) writeSteps(md *markdown.Markdown, report *model.RunReport, level string) {
	md.PlainText(level + " Steps")
	md.PlainText("")

	if len(report.Steps) == 0 {
		md.PlainText("No steps executed.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Steps))
	for i, step := range report.Steps {
		result := "✅"
		errText := "-"
		if step.Failed() {
			result = "❌"
			errText = truncateString(step.Error, 80)
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			stepLabel(step.Name),
			formatDuration(step.Duration),
			result,
			errText,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"#", "Step", "Duration", "Result", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeDurationChart(md, report)
}

// writeDurationChart writes a mermaid pie chart of time spent per step.
func (w *MarkdownWriter) writeDurationChart(md *markdown.Markdown, report *model.RunReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Time per step (ms)"),
		piechart.WithShowData(true),
	)

	plotted := 0
	for _, step := range report.Steps {
		ms := step.Duration.Milliseconds()
		if ms <= 0 {
			continue
		}
		chart.LabelAndIntValue(stepLabel(step.Name), uint64(ms))
		plotted++
	}
	if plotted == 0 {
		return
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeArtifacts writes the screenshots table.
func (w *MarkdownWriter) writeArtifacts(md *markdown.Markdown, report *model.RunReport, level string) {
	md.PlainText(level + " Screenshots")
	md.PlainText("")

	if len(report.Artifacts) == 0 {
		md.PlainText("No screenshots written.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Artifacts))
	for i, a := range report.Artifacts {
		rows[i] = []string{
			"`" + a.Path + "`",
			strconv.FormatInt(a.Size, 10),
			fmt.Sprintf("%dx%d", a.Width, a.Height),
			"`" + shortDigest(a.Digest) + "`",
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Path", "Bytes", "Size", "SHA3-256"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, a := range report.Artifacts {
		md.Details(a.Name, a.Digest)
	}
	md.PlainText("")
}

// writeWarnings writes non-fatal observations, if any.
func (w *MarkdownWriter) writeWarnings(md *markdown.Markdown, report *model.RunReport, level string) {
	if len(report.Warnings) == 0 {
		return
	}

	md.PlainText(level + " Warnings")
	md.PlainText("")
	md.BulletList(report.Warnings...)
	md.PlainText("")
}

// writeBatchSummary writes a table with one row per run.
func (w *MarkdownWriter) writeBatchSummary(md *markdown.Markdown, reports []*model.RunReport) {
	md.H2("Summary")
	md.PlainText("")

	summary := NewSummary(reports)
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"✅ Passed", strconv.Itoa(summary.Passed)},
			{"❌ Failed", strconv.Itoa(summary.Failed)},
			{"⏱️ Timed Out", strconv.Itoa(summary.TimedOut)},
			{"⚠️ Cancelled", strconv.Itoa(summary.Cancelled)},
			{"**Total**", "**" + strconv.Itoa(summary.Total) + "**"},
		},
	})
	md.PlainText("")

	if summary.Total > 0 && summary.Passed == summary.Total {
		md.Tip("All scenarios passed.")
	} else if summary.Total > 0 {
		md.Cautionf("%d of %d scenario(s) did not pass.", summary.Total-summary.Passed, summary.Total)
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [uiprobe](https://github.com/nao1215/uiprobe)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
