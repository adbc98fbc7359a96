// Package report writes verification run reports.
//
// Three formats are provided:
//   - SimpleWriter: human-readable text for the terminal
//   - JSONWriter and FullJSONWriter: structured JSON for tooling
//   - MarkdownWriter: Markdown for pull requests and CI summaries
//
// All of them implement Writer, so the CLI picks one from flags and uses it
// the same way for a single run or a batch.
package report
