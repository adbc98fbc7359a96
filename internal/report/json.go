package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/uiprobe/internal/model"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run as a JSON object.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	return w.writeJSON(report)
}

// WriteBatch outputs the runs as a JSON array.
func (w *JSONWriter) WriteBatch(reports []*model.RunReport) (int, error) {
	if reports == nil {
		reports = []*model.RunReport{}
	}
	return w.writeJSON(reports)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')

	return w.output.Write(data)
}

// Summary counts runs by outcome.
type Summary struct {
	Total     int `json:"total"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
	Cancelled int `json:"cancelled"`
}

// NewSummary tallies reports.
func NewSummary(reports []*model.RunReport) Summary {
	counts := countByStatus(reports)
	return Summary{
		Total:     len(reports),
		Passed:    counts[model.StatusPassed],
		Failed:    counts[model.StatusFailed],
		TimedOut:  counts[model.StatusTimedOut],
		Cancelled: counts[model.StatusCancelled],
	}
}

// JSONReport wraps runs with the tool version and a summary.
type JSONReport struct {
	// Version is the uiprobe version that generated this report.
	Version string `json:"version"`

	// Summary counts the runs by outcome.
	Summary Summary `json:"summary"`

	// Runs holds every run in the report.
	Runs []*model.RunReport `json:"runs"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(reports []*model.RunReport, version string) *JSONReport {
	if reports == nil {
		reports = []*model.RunReport{}
	}
	return &JSONReport{
		Version: version,
		Summary: NewSummary(reports),
		Runs:    reports,
	}
}

// FullJSONWriter outputs runs inside a JSONReport envelope.
type FullJSONWriter struct {
	*JSONWriter

	// version is the uiprobe version string.
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs a single run wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.RunReport) (int, error) {
	return w.writeJSON(NewJSONReport([]*model.RunReport{report}, w.version))
}

// WriteBatch outputs the runs wrapped with metadata.
func (w *FullJSONWriter) WriteBatch(reports []*model.RunReport) (int, error) {
	return w.writeJSON(NewJSONReport(reports, w.version))
}
