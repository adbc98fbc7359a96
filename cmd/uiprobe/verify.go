package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/uiprobe/internal/browser"
	"github.com/nao1215/uiprobe/internal/config"
	"github.com/nao1215/uiprobe/internal/database"
	"github.com/nao1215/uiprobe/internal/model"
	"github.com/nao1215/uiprobe/internal/pipeline"
	"github.com/nao1215/uiprobe/internal/preflight"
	"github.com/nao1215/uiprobe/internal/report"
)

// errRunsFailed is returned when at least one verification did not pass.
var errRunsFailed = errors.New("verification did not pass")

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [scenario]",
		Short: "Run the browser verification and capture screenshots",
		Long: `Verify opens the transcription app in a browser and walks through one upload:

1. Navigate to the target URL
2. Attach the audio file to the hidden file input and fire "change"
3. Click "Start Processing"
4. Wait for "Transcription Complete" (60s by default)
5. Save a full-page screenshot to results.png
6. Open the "raw" tab and save raw_results.png

Any failure stops the run, closes the browser and exits non-zero.

Examples:
  # Verify the local dev server with the default sample
  uiprobe verify

  # Verify another deployment with a different sample
  uiprobe verify --url https://staging.example.com --audio ./speech.mp3

  # Run a named scenario from .uiprobe
  uiprobe verify staging

  # Run every scenario, two browsers at a time
  uiprobe verify --all --batch 2

  # Use go-rod instead of Playwright and write a Markdown report
  uiprobe verify --driver rod --markdown -o report.md

Configuration file (.uiprobe) example:
  defaults:
    audio: jules-scratch/verification/silent.mp3
  scenarios:
    local:
      url: http://localhost:5173
    staging:
      url: https://staging.example.com
      outputDir: out/staging
      completionTimeout: 90s`,
		Args: cobra.MaximumNArgs(1),
		RunE: runVerifyCmd,
	}

	// Target flags
	cmd.Flags().StringP("url", "u", config.DefaultTargetURL,
		"URL of the application under test")
	cmd.Flags().StringP("audio", "a", config.DefaultAudioFile,
		"Audio file attached to the upload input")
	cmd.Flags().StringP("output-dir", "d", config.DefaultOutputDir,
		"Directory the screenshots are written to")
	cmd.Flags().DurationP("timeout", "t", config.DefaultCompletionTimeout,
		"Maximum wait for the completion marker")

	// Browser flags
	cmd.Flags().String("driver", config.DefaultDriver,
		"Browser driver (playwright or rod)")
	cmd.Flags().Bool("headed", false,
		"Show the browser window")
	cmd.Flags().Bool("install", false,
		"Download the Playwright browser before launching")
	cmd.Flags().Int("viewport-width", config.DefaultViewportWidth,
		"Viewport width in CSS pixels")
	cmd.Flags().Int("viewport-height", config.DefaultViewportHeight,
		"Viewport height in CSS pixels")

	// Run behavior flags
	cmd.Flags().Bool("preflight", false,
		"Fetch the target over HTTP before launching a browser")
	cmd.Flags().Bool("clean", false,
		"Remove screenshots from an earlier run before starting")
	cmd.Flags().Bool("all", false,
		"Verify every scenario in the configuration file")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of scenarios verified concurrently with --all")
	cmd.Flags().Bool("no-history", false,
		"Do not save the run to the history database")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .uiprobe in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	runs, err := expandScenarios(cfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.Verbose)
	slog.SetDefault(logger)

	// Cancelling the context still lets the verifier close the browser.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := verifyEnv{
		newLauncher: browser.NewLauncher,
		stdout:      cmd.OutOrStdout(),
		logger:      logger,
	}
	return runVerify(ctx, cfg, runs, env)
}

// buildConfig creates a Config from defaults, the configuration file and
// cobra command flags, in that order. Only flags the user actually set
// override file values.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	base := config.NewConfig()

	var err error
	base.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := base.ConfigFilePath != ""
	configPath := config.FindConfigFile(base.ConfigFilePath)

	switch {
	case configPath != "":
		base.Scenarios, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicitConfigPath:
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, base.ConfigFilePath)
	default:
		base.Scenarios = &config.File{
			Scenarios: make(map[string]config.Scenario),
		}
	}

	base.RunAll, err = cmd.Flags().GetBool("all")
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if base.RunAll {
			return nil, errors.New("a scenario name cannot be combined with --all")
		}
		base.ScenarioName = args[0]
	}

	// With --all, scenarios are applied later on top of the file defaults.
	scenarioName := base.ScenarioName
	if base.RunAll {
		scenarioName = ""
	}
	scenario, err := base.Scenarios.GetScenario(scenarioName)
	if err != nil {
		return nil, err
	}
	cfg := base.WithScenario(scenario)

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFormat = getLogFormatFlag(cmd)
	cfg.DBDir = config.XDGDataDir()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("url") {
		if cfg.TargetURL, err = flags.GetString("url"); err != nil {
			return err
		}
	}
	if flags.Changed("audio") {
		if cfg.AudioFile, err = flags.GetString("audio"); err != nil {
			return err
		}
	}
	if flags.Changed("output-dir") {
		if cfg.OutputDir, err = flags.GetString("output-dir"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.CompletionTimeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("driver") {
		if cfg.Driver, err = flags.GetString("driver"); err != nil {
			return err
		}
	}

	headed, err := flags.GetBool("headed")
	if err != nil {
		return err
	}
	cfg.Headless = !headed

	if cfg.InstallBrowser, err = flags.GetBool("install"); err != nil {
		return err
	}
	if cfg.ViewportWidth, err = flags.GetInt("viewport-width"); err != nil {
		return err
	}
	if cfg.ViewportHeight, err = flags.GetInt("viewport-height"); err != nil {
		return err
	}
	if cfg.Preflight, err = flags.GetBool("preflight"); err != nil {
		return err
	}
	if cfg.CleanArtifacts, err = flags.GetBool("clean"); err != nil {
		return err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noHistory

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}

	return nil
}

// expandScenarios returns the configurations to verify. Without --all it
// is cfg itself. With --all every scenario is applied on top of cfg, so
// scenario values win over global flags. Two scenarios may not share a
// screenshot path since they run concurrently.
func expandScenarios(cfg *config.Config) ([]*config.Config, error) {
	if !cfg.RunAll {
		return []*config.Config{cfg}, nil
	}

	names := cfg.Scenarios.ScenarioNames()
	if len(names) == 0 {
		return nil, errors.New("--all requires at least one scenario in the configuration file")
	}

	runs := make([]*config.Config, 0, len(names))
	owners := make(map[string]string)
	for _, name := range names {
		c := cfg.WithScenario(cfg.Scenarios.Scenarios[name])
		c.ScenarioName = name
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}

		for _, p := range []string{c.ResultsPath(), c.RawResultsPath()} {
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			if other, ok := owners[abs]; ok {
				return nil, fmt.Errorf("scenarios %s and %s both write %s: set a distinct outputDir", other, name, p)
			}
			owners[abs] = name
		}

		runs = append(runs, c)
	}
	return runs, nil
}

// verifyEnv holds what runVerify needs from the outside world.
type verifyEnv struct {
	newLauncher func(driver string, opts browser.Options) (browser.Launcher, error)
	stdout      io.Writer
	logger      *slog.Logger
}

// runVerify verifies every configuration, stores the runs and writes the
// report. It returns an error if any run did not pass.
func runVerify(ctx context.Context, cfg *config.Config, runs []*config.Config, env verifyEnv) error {
	logger := env.logger

	logger.Info("starting verification",
		"runs", len(runs),
		"driver", cfg.Driver,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.RunDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	factory := newVerifierFactory(cfg, env)

	targets := make([]pipeline.Target, len(runs))
	for i, c := range runs {
		targets[i] = pipeline.TargetFromConfig(c)
	}

	var (
		reports []*model.RunReport
		runErr  error
	)
	if len(targets) == 1 {
		v, err := factory(targets[0])
		if err != nil {
			return err
		}
		var rep *model.RunReport
		rep, runErr = v.Verify(ctx, targets[0])
		reports = []*model.RunReport{rep}
	} else {
		bp := pipeline.NewBatchProcessor(factory,
			pipeline.WithConcurrency(cfg.BatchSize),
			pipeline.WithBatchLogger(logger),
		)
		reports, runErr = bp.ProcessBatch(ctx, targets)
	}

	for _, rep := range reports {
		if err := saveRunReport(ctx, db, rep, logger); err != nil {
			logger.Error("failed to save run", "target", rep.TargetURL, "error", err)
		}
	}

	if err := outputReport(cfg, reports, env.stdout); err != nil {
		logger.Error("report failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return runErr
	}
	return failedRunsError(reports)
}

// newVerifierFactory returns a factory that builds a verifier with the
// driver each target asks for.
func newVerifierFactory(cfg *config.Config, env verifyEnv) pipeline.VerifierFactory {
	opts := browser.Options{
		Headless:       cfg.Headless,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		Install:        cfg.InstallBrowser,
	}

	return func(target pipeline.Target) (*pipeline.Verifier, error) {
		launcher, err := env.newLauncher(target.Driver, opts)
		if err != nil {
			return nil, err
		}

		verifierOpts := []pipeline.VerifierOption{
			pipeline.WithVerifierLogger(env.logger),
			pipeline.WithCleanArtifacts(cfg.CleanArtifacts),
		}
		if cfg.Preflight {
			verifierOpts = append(verifierOpts,
				pipeline.WithPreflight(preflight.NewProber(preflight.WithLogger(env.logger))))
		}

		return pipeline.NewVerifier(launcher, verifierOpts...), nil
	}
}

// failedRunsError summarizes runs that did not pass, or returns nil.
func failedRunsError(reports []*model.RunReport) error {
	var errs []error
	for _, rep := range reports {
		if rep.Passed() {
			continue
		}
		name := rep.Scenario
		if name == "" {
			name = rep.TargetURL
		}
		cause := rep.Error
		if cause == nil {
			cause = errors.New(rep.Status.String())
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, cause))
	}

	if len(errs) == 0 {
		return nil
	}
	if len(reports) == 1 {
		return errs[0]
	}
	return fmt.Errorf("%w: %d of %d scenarios: %w", errRunsFailed, len(errs), len(reports), errors.Join(errs...))
}

// saveRunReport saves a run to the database.
// Returns nil if db is nil (saving disabled).
func saveRunReport(ctx context.Context, db *database.RunDB, rep *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// A cancelled run is still worth recording.
	id, err := db.SaveRun(context.WithoutCancel(ctx), rep)
	if err != nil {
		return err
	}

	logger.Info("run saved to database",
		"target", rep.TargetURL,
		"id", id,
		"run_id", rep.ID,
	)
	return nil
}

// outputReport writes the reports in the requested format, to ReportFile
// when set and to stdout otherwise.
func outputReport(cfg *config.Config, reports []*model.RunReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports carry target URLs and local paths, so keep them owner-only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	writer := newReportWriter(cfg, output)
	var err error
	if len(reports) == 1 {
		_, err = writer.Write(reports[0])
	} else {
		_, err = writer.WriteBatch(reports)
	}
	return err
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
