package browser

import (
	"context"
	"fmt"
	"time"
)

// DefaultActionTimeout bounds element lookups and clicks that have no
// explicit timeout. It matches Playwright's built-in default so both drivers
// behave alike.
const DefaultActionTimeout = 30 * time.Second

// Role is an ARIA role used to locate elements by accessible name.
type Role string

// RoleButton matches buttons and elements with role="button".
const RoleButton Role = "button"

// Options configures how a browser is launched.
type Options struct {
	// Headless runs the browser without a window.
	Headless bool

	// ViewportWidth and ViewportHeight size new pages.
	ViewportWidth  int
	ViewportHeight int

	// Install downloads the browser before launching (playwright only).
	Install bool

	// ActionTimeout bounds lookups and clicks. Zero means DefaultActionTimeout.
	ActionTimeout time.Duration
}

func (o Options) actionTimeout() time.Duration {
	if o.ActionTimeout <= 0 {
		return DefaultActionTimeout
	}
	return o.ActionTimeout
}

// Launcher starts browsers.
type Launcher interface {
	// Launch starts a browser. The caller owns the returned Browser and
	// must Close it.
	Launch(ctx context.Context) (Browser, error)

	// Name returns the driver name for logs and reports.
	Name() string
}

// Browser is a running browser instance.
type Browser interface {
	// NewPage opens a blank page.
	NewPage(ctx context.Context) (Page, error)

	// Close shuts the browser down. Only the first call has an effect;
	// later calls return the first call's result.
	Close() error
}

// Page is a single tab in a Browser.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// SetInputFiles attaches files to the file input matching selector.
	SetInputFiles(ctx context.Context, selector string, files ...string) error

	// DispatchEvent fires a DOM event of the given type on the element
	// matching selector.
	DispatchEvent(ctx context.Context, selector, eventType string) error

	// ClickByRole clicks the element with the given role whose accessible
	// name contains name, case-insensitively.
	ClickByRole(ctx context.Context, role Role, name string) error

	// WaitForText waits until an element containing text is visible.
	// It returns an error wrapping ErrVisibilityTimeout if timeout elapses.
	WaitForText(ctx context.Context, text string, timeout time.Duration) error

	// Screenshot captures the page as PNG.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// NewLauncher returns the launcher for the named driver.
func NewLauncher(driver string, opts Options) (Launcher, error) {
	switch driver {
	case DriverPlaywright:
		return NewPlaywrightLauncher(opts), nil
	case DriverRod:
		return NewRodLauncher(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Driver names accepted by NewLauncher.
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)
