package report

import (
	"io"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/uiprobe/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs a single run.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.RunReport) (int, error)

	// WriteBatch outputs several runs, e.g. from --all.
	WriteBatch(reports []*model.RunReport) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// stepLabel returns a display label for a step name,
// e.g. "wait_for_completion" becomes "Wait For Completion".
// Casers are stateful, so one is created per call.
func stepLabel(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// statusLabel returns the upper-case display form of a status.
func statusLabel(s model.Status) string {
	return cases.Upper(language.English).String(strings.ReplaceAll(s.String(), "_", " "))
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(10 * time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Millisecond).String()
	default:
		return d.String()
	}
}

// shortDigest returns the first 12 characters of a digest.
func shortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}

// countByStatus tallies runs per status.
func countByStatus(reports []*model.RunReport) map[model.Status]int {
	counts := make(map[model.Status]int)
	for _, r := range reports {
		counts[r.Status]++
	}
	return counts
}
