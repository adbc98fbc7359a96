package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher launches Chromium through playwright-go.
// The Playwright driver and browsers must be installed, either beforehand
// or with Options.Install.
type PlaywrightLauncher struct {
	opts Options
}

// NewPlaywrightLauncher creates a launcher with the given options.
func NewPlaywrightLauncher(opts Options) *PlaywrightLauncher {
	return &PlaywrightLauncher{opts: opts}
}

// Name returns the driver name.
func (l *PlaywrightLauncher) Name() string {
	return DriverPlaywright
}

// Launch starts the Playwright driver and a Chromium instance.
func (l *PlaywrightLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, wrap(ErrLaunch, "install playwright", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, wrap(ErrLaunch, "start playwright", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
	})
	if err != nil {
		_ = pw.Stop() //nolint:errcheck // Best effort cleanup
		return nil, wrap(ErrLaunch, "launch chromium", err)
	}

	return &playwrightBrowser{pw: pw, browser: b, opts: l.opts}, nil
}

type playwrightBrowser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options

	closeOnce sync.Once
	closeErr  error
}

func (b *playwrightBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := b.browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
	})
	if err != nil {
		return nil, wrap(ErrLaunch, "open page", err)
	}
	page.SetDefaultTimeout(float64(b.opts.actionTimeout().Milliseconds()))

	return &playwrightPage{page: page}, nil
}

// Close closes Chromium and stops the Playwright driver process.
func (b *playwrightBrowser) Close() error {
	b.closeOnce.Do(func() {
		closeErr := b.browser.Close()
		stopErr := b.pw.Stop()
		b.closeErr = errors.Join(closeErr, stopErr)
	})
	return b.closeErr
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return wrap(ErrNavigation, url, err)
	}
	return nil
}

func (p *playwrightPage) SetInputFiles(ctx context.Context, selector string, files ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Locator(selector).SetInputFiles(files); err != nil {
		return wrap(ErrElementNotFound, selector, err)
	}
	return nil
}

func (p *playwrightPage) DispatchEvent(ctx context.Context, selector, eventType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Locator(selector).DispatchEvent(eventType, nil); err != nil {
		return wrap(ErrElementNotFound, selector, err)
	}
	return nil
}

func (p *playwrightPage) ClickByRole(ctx context.Context, role Role, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := p.page.GetByRole(playwright.AriaRole(role), playwright.PageGetByRoleOptions{
		Name: name,
	})
	if err := loc.Click(); err != nil {
		return wrap(ErrElementNotFound, fmt.Sprintf("%s %q", role, name), err)
	}
	return nil
}

func (p *playwrightPage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.GetByText(text).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return wrap(ErrVisibilityTimeout, fmt.Sprintf("text %q after %s", text, timeout), err)
	}
	return wrap(ErrElementNotFound, fmt.Sprintf("text %q", text), err)
}

func (p *playwrightPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, wrap(ErrScreenshot, "capture page", err)
	}
	return data, nil
}
