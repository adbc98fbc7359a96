package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can match them
// with errors.Is() while still printing a readable message.
var (
	// ErrNoTargetURL is returned when the target URL is empty.
	ErrNoTargetURL = errors.New("no target URL specified: use --url or set url in the config file")

	// ErrInvalidTargetURL is returned when the target URL cannot be parsed
	// or does not use the http or https scheme.
	ErrInvalidTargetURL = errors.New("invalid target URL: must be an absolute http(s) URL")

	// ErrNoAudioFile is returned when no audio file is configured for upload.
	ErrNoAudioFile = errors.New("no audio file specified: use --audio or set audio in the config file")

	// ErrInvalidTimeout is returned when the completion timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid completion timeout: must be positive")

	// ErrUnknownDriver is returned when the browser driver name is not supported.
	ErrUnknownDriver = errors.New("unknown browser driver: must be playwright or rod")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidViewport is returned when a viewport dimension is negative or zero.
	ErrInvalidViewport = errors.New("invalid viewport: width and height must be positive")

	// ErrInvalidLogFormat is returned when the log format is not text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrUnknownScenario is returned when a named scenario is not in the config file.
	ErrUnknownScenario = errors.New("unknown scenario")
)
