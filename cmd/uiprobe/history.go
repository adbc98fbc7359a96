package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/uiprobe/internal/config"
	"github.com/nao1215/uiprobe/internal/database"
	"github.com/nao1215/uiprobe/internal/model"
)

// Screenshot and status change labels.
const (
	changeChanged   = "changed"
	changeUnchanged = "unchanged"
	changeNew       = "new"
	changeMissing   = "missing"

	statusRegressed = "regressed"
	statusRecovered = "recovered"
)

// NewHistoryCmd creates the history command.
// This command lists stored runs and compares the latest run with an
// earlier one.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [target-url]",
		Short: "Show run history and compare screenshots between runs",
		Long: `History reads the runs saved by 'uiprobe verify' and shows:
- Whether the run status changed (passed, failed, timed out)
- Which screenshots changed, by comparing their SHA3-256 digests

Without a target URL, the default target (http://localhost:5173) is used.
At least two runs are needed for a comparison.

Examples:
  # Compare the latest two runs of the local dev server
  uiprobe history

  # List every stored run for a target
  uiprobe history --list https://staging.example.com

  # Compare the latest run with a specific stored run
  uiprobe history --with-run-id 5

  # Compare with the first run since a date
  uiprobe history --since 2026-01-01

  # List every target in the database
  uiprobe history --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List every target in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison in Markdown format")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	target      string
	list        bool
	listTargets bool
	withRunID   int64
	since       string
	json        bool
	markdown    bool
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(context.Background(), db, opts, cmd.OutOrStdout())
}

// parseHistoryFlags validates flags before the database is opened.
func parseHistoryFlags(cmd *cobra.Command, args []string) (historyOptions, error) {
	opts := historyOptions{target: config.DefaultTargetURL}
	if len(args) > 0 {
		opts.target = args[0]
	}

	var err error
	if opts.list, err = cmd.Flags().GetBool("list"); err != nil {
		return opts, err
	}
	if opts.listTargets, err = cmd.Flags().GetBool("list-targets"); err != nil {
		return opts, err
	}
	if opts.withRunID, err = cmd.Flags().GetInt64("with-run-id"); err != nil {
		return opts, err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return opts, err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return opts, err
	}

	if opts.json && opts.markdown {
		return opts, config.ErrConflictingReportFormats
	}
	if opts.withRunID != 0 && opts.since != "" {
		return opts, errors.New("--with-run-id and --since cannot be used together")
	}
	if opts.withRunID < 0 {
		return opts, fmt.Errorf("invalid run ID: %d", opts.withRunID)
	}
	return opts, nil
}

// runHistory dispatches to listing or comparison.
func runHistory(ctx context.Context, db *database.RunDB, opts historyOptions, w io.Writer) error {
	if opts.listTargets {
		return listTargets(ctx, db, opts.json, w)
	}
	if opts.list {
		return listRunHistory(ctx, db, opts.target, opts.json, w)
	}

	result, err := buildComparison(ctx, db, opts)
	if err != nil {
		return err
	}

	switch {
	case opts.json:
		return outputComparisonJSON(result, w)
	case opts.markdown:
		return outputComparisonMarkdown(result, w)
	default:
		return outputComparisonText(result, w)
	}
}

// listTargets lists every target that has runs in the database.
func listTargets(ctx context.Context, db *database.RunDB, asJSON bool, w io.Writer) error {
	targets, err := db.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if asJSON {
		if targets == nil {
			targets = []string{}
		}
		return encodeJSON(w, targets)
	}

	if len(targets) == 0 {
		fmt.Fprintln(w, "No runs found in the database.")
		fmt.Fprintln(w, "\nUse 'uiprobe verify' to record a run.")
		return nil
	}

	fmt.Fprintf(w, "Verified targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(w, "  • %s\n", target)
	}
	fmt.Fprintln(w, "\nUse 'uiprobe history --list <target-url>' to see the runs for a target.")

	return nil
}

// listRunHistory lists every stored run for a target.
func listRunHistory(ctx context.Context, db *database.RunDB, target string, asJSON bool, w io.Writer) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if asJSON {
		if runs == nil {
			runs = []database.RunMetadata{}
		}
		return encodeJSON(w, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintf(w, "No run history found for %s\n", target)
		fmt.Fprintln(w, "\nUse 'uiprobe verify' to record a run.")
		return nil
	}

	fmt.Fprintf(w, "Run history for %s (%d runs):\n\n", target, len(runs))
	fmt.Fprintf(w, "  %-6s  %-20s  %-10s  %-10s  %-12s  %s\n",
		"ID", "Date", "Status", "Duration", "results", "raw_results")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 80))

	for _, meta := range runs {
		fmt.Fprintf(w, "  %-6d  %-20s  %-10s  %-10s  %-12s  %s\n",
			meta.ID,
			meta.StartedAt.Local().Format("2006-01-02 15:04:05"),
			meta.Status.String(),
			meta.Duration.Round(time.Millisecond),
			shortDigest(meta.ResultsDigest),
			shortDigest(meta.RawResultsDigest),
		)
	}

	fmt.Fprintln(w, "\nUse 'uiprobe history <target-url>' to compare the latest two runs.")
	fmt.Fprintln(w, "Use 'uiprobe history --with-run-id <id> <target-url>' to compare with a specific run.")

	return nil
}

// buildComparison picks the two runs to compare and compares them.
// The latest run is always the current one.
func buildComparison(ctx context.Context, db *database.RunDB, opts historyOptions) (*ComparisonResult, error) {
	reports, err := db.GetRunHistory(ctx, opts.target)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("no run history found for %s", opts.target)
	}

	if len(reports) < 2 && opts.withRunID == 0 && opts.since == "" {
		return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
	}

	current := reports[0]
	var previous *model.RunReport

	switch {
	case opts.withRunID > 0:
		previous, err = db.GetRunByID(ctx, opts.withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", opts.withRunID, err)
		}
		if previous == nil {
			return nil, fmt.Errorf("run with ID %d not found", opts.withRunID)
		}
		if previous.TargetURL != opts.target {
			return nil, fmt.Errorf("run ID %d belongs to %s, not %s", opts.withRunID, previous.TargetURL, opts.target)
		}
	case opts.since != "":
		sinceDate, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are newest first, so walk backwards to find the oldest
		// run on or after the date.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].StartedAt.Before(sinceDate) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return nil, fmt.Errorf("no runs found since %s", opts.since)
		}
		if previous.ID == current.ID {
			return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since)
		}
	default:
		previous = reports[1]
	}

	return compareRuns(previous, current), nil
}

// ComparisonResult holds the result of comparing two runs of a target.
type ComparisonResult struct {
	// Target is the verified URL.
	Target string `json:"target"`

	// PreviousRun and CurrentRun summarize the compared runs.
	PreviousRun RunSummary `json:"previous_run"`
	CurrentRun  RunSummary `json:"current_run"`

	// StatusChange is "unchanged", "regressed", "recovered" or "changed".
	StatusChange string `json:"status_change"`

	// Screenshots holds one entry per screenshot name seen in either run.
	Screenshots []ScreenshotChange `json:"screenshots"`
}

// RunSummary describes one side of a comparison.
type RunSummary struct {
	// RunID is the run's UUID.
	RunID string `json:"run_id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Status is the run's terminal status.
	Status model.Status `json:"status"`

	// Duration is the wall time of the run.
	Duration time.Duration `json:"duration"`
}

// ScreenshotChange compares one screenshot across two runs.
type ScreenshotChange struct {
	// Name is the artifact name, e.g. "results".
	Name string `json:"name"`

	// PreviousDigest and CurrentDigest are empty when the run has no such
	// screenshot.
	PreviousDigest string `json:"previous_digest,omitempty"`
	CurrentDigest  string `json:"current_digest,omitempty"`

	// Change is "changed", "unchanged", "new" or "missing".
	Change string `json:"change"`
}

// compareRuns compares two runs of the same target.
func compareRuns(previous, current *model.RunReport) *ComparisonResult {
	result := &ComparisonResult{
		Target:       current.TargetURL,
		PreviousRun:  summarizeRun(previous),
		CurrentRun:   summarizeRun(current),
		StatusChange: statusChange(previous.Status, current.Status),
	}

	// Keep the order in which screenshots were taken.
	var names []string
	seen := make(map[string]bool)
	for _, r := range []*model.RunReport{current, previous} {
		for _, a := range r.Artifacts {
			if !seen[a.Name] {
				seen[a.Name] = true
				names = append(names, a.Name)
			}
		}
	}

	for _, name := range names {
		change := ScreenshotChange{Name: name}
		prev := previous.GetArtifact(name)
		cur := current.GetArtifact(name)
		if prev != nil {
			change.PreviousDigest = prev.Digest
		}
		if cur != nil {
			change.CurrentDigest = cur.Digest
		}

		switch {
		case prev == nil:
			change.Change = changeNew
		case cur == nil:
			change.Change = changeMissing
		case cur.SameContent(*prev):
			change.Change = changeUnchanged
		default:
			change.Change = changeChanged
		}
		result.Screenshots = append(result.Screenshots, change)
	}

	return result
}

// summarizeRun extracts the comparison metadata of a run.
func summarizeRun(r *model.RunReport) RunSummary {
	return RunSummary{
		RunID:     r.ID,
		StartedAt: r.StartedAt,
		Status:    r.Status,
		Duration:  r.Duration(),
	}
}

// statusChange describes how the run status moved between two runs.
func statusChange(previous, current model.Status) string {
	switch {
	case previous == current:
		return changeUnchanged
	case previous == model.StatusPassed:
		return statusRegressed
	case current == model.StatusPassed:
		return statusRecovered
	default:
		return changeChanged
	}
}

// shortDigest abbreviates a digest for tables.
func shortDigest(digest string) string {
	if digest == "" {
		return "-"
	}
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// encodeJSON writes v as indented JSON.
func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(result *ComparisonResult, w io.Writer) error {
	return encodeJSON(w, result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(result *ComparisonResult, w io.Writer) error {
	md := markdown.NewMarkdown(w)

	md.H1("Run Comparison: " + result.Target)
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.PlainText("**Status:** " + formatStatusChange(result.StatusChange))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Previous", "Current"},
		Rows: [][]string{
			{"Run ID", "`" + result.PreviousRun.RunID + "`", "`" + result.CurrentRun.RunID + "`"},
			{"Date", result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04"), result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04")},
			{"Status", result.PreviousRun.Status.String(), result.CurrentRun.Status.String()},
			{"Duration", result.PreviousRun.Duration.Round(time.Millisecond).String(), result.CurrentRun.Duration.Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")

	md.H2("Screenshots")
	md.PlainText("")
	if len(result.Screenshots) == 0 {
		md.PlainText("*No screenshots in either run*")
		return md.Build()
	}

	rows := make([][]string, 0, len(result.Screenshots))
	for _, s := range result.Screenshots {
		rows = append(rows, []string{
			s.Name,
			"`" + shortDigest(s.PreviousDigest) + "`",
			"`" + shortDigest(s.CurrentDigest) + "`",
			s.Change,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Screenshot", "Previous", "Current", "Change"},
		Rows:   rows,
	})

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(result *ComparisonResult, w io.Writer) error {
	fmt.Fprintf(w, "Run Comparison: %s\n", result.Target)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintf(w, "\nStatus: %s\n", formatStatusChange(result.StatusChange))

	fmt.Fprintf(w, "\nPrevious run: %s  %s\n",
		result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04:05"), result.PreviousRun.Status)
	fmt.Fprintf(w, "Current run:  %s  %s\n",
		result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04:05"), result.CurrentRun.Status)

	fmt.Fprintln(w, "\nScreenshots:")
	if len(result.Screenshots) == 0 {
		fmt.Fprintln(w, "  No screenshots in either run")
		return nil
	}

	fmt.Fprintf(w, "  %-12s  %-12s  %-12s  %s\n", "Name", "Previous", "Current", "Change")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 50))
	for _, s := range result.Screenshots {
		fmt.Fprintf(w, "  %-12s  %-12s  %-12s  %s\n",
			s.Name, shortDigest(s.PreviousDigest), shortDigest(s.CurrentDigest), s.Change)
	}

	return nil
}

// formatStatusChange returns a human-readable status change.
func formatStatusChange(change string) string {
	switch change {
	case statusRegressed:
		return "✗ Regressed"
	case statusRecovered:
		return "✓ Recovered"
	case changeChanged:
		return "~ Changed"
	default:
		return "= Unchanged"
	}
}
