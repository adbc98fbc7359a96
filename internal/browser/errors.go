package browser

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying driver failures.
// Each driver wraps the library error so both the class and the original
// cause are reachable through errors.Is and errors.As.
var (
	// ErrLaunch is returned when the browser process cannot be started.
	ErrLaunch = errors.New("browser launch failed")

	// ErrNavigation is returned when the target page cannot be loaded.
	ErrNavigation = errors.New("navigation failed")

	// ErrElementNotFound is returned when a locator does not resolve.
	ErrElementNotFound = errors.New("element not found")

	// ErrVisibilityTimeout is returned when an element does not become
	// visible before the deadline.
	ErrVisibilityTimeout = errors.New("timed out waiting for element to become visible")

	// ErrScreenshot is returned when a screenshot cannot be captured.
	ErrScreenshot = errors.New("screenshot failed")

	// ErrUnknownDriver is returned by NewLauncher for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown browser driver")
)

// wrap joins a sentinel, a short description and the driver error.
func wrap(kind error, detail string, err error) error {
	return fmt.Errorf("%w: %s: %w", kind, detail, err)
}
