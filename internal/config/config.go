package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// With no flags and no configuration file, uiprobe reproduces the fixed
// verification run against the local development server.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "uiprobe"

	// DefaultTargetURL is the address of the local development server.
	DefaultTargetURL = "http://localhost:5173"

	// DefaultAudioFile is the sample payload attached to the file input.
	DefaultAudioFile = "jules-scratch/verification/silent.mp3"

	// DefaultOutputDir is where the two screenshots are written.
	DefaultOutputDir = "jules-scratch/verification"

	// DefaultResultsFile is the screenshot taken once transcription completes.
	DefaultResultsFile = "results.png"

	// DefaultRawResultsFile is the screenshot taken after opening the raw tab.
	DefaultRawResultsFile = "raw_results.png"

	// DefaultFileInputSelector locates the hidden file input.
	DefaultFileInputSelector = "#file-input"

	// DefaultStartButtonName is the accessible name of the button that
	// starts processing.
	DefaultStartButtonName = "Start Processing"

	// DefaultCompletionText is the marker shown when transcription finishes.
	DefaultCompletionText = "Transcription Complete"

	// DefaultRawTabName is the accessible name of the raw results tab.
	DefaultRawTabName = "raw"

	// DefaultCompletionTimeout bounds the wait for DefaultCompletionText.
	DefaultCompletionTimeout = 60 * time.Second

	// DefaultDriver is the browser automation backend.
	DefaultDriver = DriverPlaywright

	// DefaultViewportWidth and DefaultViewportHeight size the page.
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720

	// DefaultBatchSize is the number of scenarios verified concurrently
	// with --all. Each scenario owns a whole browser, so keep it small.
	DefaultBatchSize = 2

	// DefaultLogFormat writes logs as logfmt text.
	DefaultLogFormat = LogFormatText
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Supported browser drivers.
const (
	// DriverPlaywright drives Chromium through playwright-go.
	DriverPlaywright = "playwright"

	// DriverRod drives Chromium through go-rod over the DevTools protocol.
	DriverRod = "rod"
)

// Config holds all configuration options for uiprobe.
// It is populated from defaults, the configuration file and CLI flags, in
// that order, and passed through the application explicitly.
type Config struct {
	// TargetURL is the page the browser navigates to.
	TargetURL string

	// AudioFile is the local file attached to the file input.
	AudioFile string

	// OutputDir is the directory the screenshots are written to.
	OutputDir string

	// ResultsFile and RawResultsFile are screenshot names inside OutputDir.
	ResultsFile    string
	RawResultsFile string

	// FileInputSelector is the CSS selector of the hidden file input.
	FileInputSelector string

	// StartButtonName is the accessible name of the start button.
	StartButtonName string

	// CompletionText is the text whose visibility marks a finished run.
	CompletionText string

	// RawTabName is the accessible name of the raw results tab.
	RawTabName string

	// CompletionTimeout bounds the wait for CompletionText.
	// It is the only timeout uiprobe imposes on top of the driver defaults.
	CompletionTimeout time.Duration

	// Driver selects the browser automation backend (playwright or rod).
	Driver string

	// Headless runs the browser without a visible window.
	Headless bool

	// InstallBrowser downloads the driver's browser before launching.
	// Only the playwright driver honours it; rod downloads on demand.
	InstallBrowser bool

	// ViewportWidth and ViewportHeight size the page in CSS pixels.
	ViewportWidth  int
	ViewportHeight int

	// Preflight fetches the target over plain HTTP before a browser is
	// launched, so an unreachable server fails fast.
	Preflight bool

	// CleanArtifacts removes screenshots from an earlier run before the
	// browser starts, so a failed run never leaves stale evidence behind.
	CleanArtifacts bool

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat is "text" or "json".
	LogFormat string

	// BatchSize is the number of scenarios verified concurrently with RunAll.
	BatchSize int

	// RunAll verifies every scenario in the configuration file.
	RunAll bool

	// ScenarioName selects a named scenario from the configuration file.
	ScenarioName string

	// ConfigFilePath is the path to the configuration file.
	// If empty, .uiprobe is searched for in the current and home directories.
	ConfigFilePath string

	// Scenarios holds the scenarios loaded from the configuration file.
	Scenarios *File

	// JSONReport and MarkdownReport select the report format.
	// They are mutually exclusive; neither means plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the report destination. Empty means stdout.
	ReportFile string

	// SaveToDB stores each run in the history database under DBDir.
	SaveToDB bool
	DBDir    string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		TargetURL:         DefaultTargetURL,
		AudioFile:         DefaultAudioFile,
		OutputDir:         DefaultOutputDir,
		ResultsFile:       DefaultResultsFile,
		RawResultsFile:    DefaultRawResultsFile,
		FileInputSelector: DefaultFileInputSelector,
		StartButtonName:   DefaultStartButtonName,
		CompletionText:    DefaultCompletionText,
		RawTabName:        DefaultRawTabName,
		CompletionTimeout: DefaultCompletionTimeout,
		Driver:            DefaultDriver,
		Headless:          true,
		ViewportWidth:     DefaultViewportWidth,
		ViewportHeight:    DefaultViewportHeight,
		BatchSize:         DefaultBatchSize,
		LogFormat:         DefaultLogFormat,
	}
}

// ResultsPath returns the path of the post-transcription screenshot.
func (c *Config) ResultsPath() string {
	return filepath.Join(c.OutputDir, c.ResultsFile)
}

// RawResultsPath returns the path of the raw tab screenshot.
func (c *Config) RawResultsPath() string {
	return filepath.Join(c.OutputDir, c.RawResultsFile)
}

// WithScenario returns a copy of c with the scenario's non-zero fields applied.
func (c *Config) WithScenario(s Scenario) *Config {
	out := *c
	if s.URL != "" {
		out.TargetURL = s.URL
	}
	if s.Audio != "" {
		out.AudioFile = s.Audio
	}
	if s.OutputDir != "" {
		out.OutputDir = s.OutputDir
	}
	if s.CompletionText != "" {
		out.CompletionText = s.CompletionText
	}
	if s.CompletionTimeout > 0 {
		out.CompletionTimeout = s.CompletionTimeout
	}
	if s.Driver != "" {
		out.Driver = s.Driver
	}
	return &out
}

// XDGDataDir returns the XDG data directory for uiprobe.
// On Linux: ~/.local/share/uiprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return ErrNoTargetURL
	}
	u, err := url.Parse(c.TargetURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidTargetURL
	}

	if c.AudioFile == "" {
		return ErrNoAudioFile
	}

	if c.CompletionTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Driver != DriverPlaywright && c.Driver != DriverRod {
		return ErrUnknownDriver
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return ErrInvalidViewport
	}

	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}

	return nil
}
