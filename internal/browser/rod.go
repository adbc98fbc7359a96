package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher launches Chromium through go-rod.
// If no local Chromium is found, rod downloads a pinned revision on first use.
type RodLauncher struct {
	opts Options
}

// NewRodLauncher creates a launcher with the given options.
func NewRodLauncher(opts Options) *RodLauncher {
	return &RodLauncher{opts: opts}
}

// Name returns the driver name.
func (l *RodLauncher) Name() string {
	return DriverRod
}

// Launch starts Chromium and connects to its DevTools endpoint.
func (l *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proc := launcher.New().Headless(l.opts.Headless).Context(ctx)
	controlURL, err := proc.Launch()
	if err != nil {
		proc.Cleanup()
		return nil, wrap(ErrLaunch, "launch chromium", err)
	}

	// The browser is not bound to ctx so Close still works after cancellation.
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		proc.Kill()
		proc.Cleanup()
		return nil, wrap(ErrLaunch, "connect to chromium", err)
	}

	return &rodBrowser{browser: b, proc: proc, opts: l.opts}, nil
}

type rodBrowser struct {
	browser *rod.Browser
	proc    *launcher.Launcher
	opts    Options

	closeOnce sync.Once
	closeErr  error
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, wrap(ErrLaunch, "open page", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.opts.ViewportWidth,
		Height:            b.opts.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, wrap(ErrLaunch, "set viewport", err)
	}

	return &rodPage{page: page, actionTimeout: b.opts.actionTimeout()}, nil
}

// Close closes the browser, kills the process and removes its profile dir.
func (b *rodBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.browser.Close()
		b.proc.Kill()
		b.proc.Cleanup()
	})
	return b.closeErr
}

type rodPage struct {
	page          *rod.Page
	actionTimeout time.Duration
}

// scoped returns the page bound to ctx with the action timeout applied.
func (p *rodPage) scoped(ctx context.Context) *rod.Page {
	return p.page.Context(ctx).Timeout(p.actionTimeout)
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.scoped(ctx)
	if err := page.Navigate(url); err != nil {
		return wrap(ErrNavigation, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return wrap(ErrNavigation, url, err)
	}
	return nil
}

func (p *rodPage) SetInputFiles(ctx context.Context, selector string, files ...string) error {
	el, err := p.scoped(ctx).Element(selector)
	if err != nil {
		return wrap(ErrElementNotFound, selector, err)
	}
	if err := el.SetFiles(files); err != nil {
		return wrap(ErrElementNotFound, selector, err)
	}
	return nil
}

func (p *rodPage) DispatchEvent(ctx context.Context, selector, eventType string) error {
	el, err := p.scoped(ctx).Element(selector)
	if err != nil {
		return wrap(ErrElementNotFound, selector, err)
	}
	if _, err := el.Eval(`(type) => this.dispatchEvent(new Event(type, { bubbles: true }))`, eventType); err != nil {
		return wrap(ErrElementNotFound, selector, err)
	}
	return nil
}

func (p *rodPage) ClickByRole(ctx context.Context, role Role, name string) error {
	el, err := p.scoped(ctx).ElementR(roleSelector(role), nameRegex(name))
	if err != nil {
		return wrap(ErrElementNotFound, fmt.Sprintf("%s %q", role, name), err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return wrap(ErrElementNotFound, fmt.Sprintf("%s %q", role, name), err)
	}
	return nil
}

func (p *rodPage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)

	el, err := page.ElementX(textXPath(text))
	if err == nil {
		err = el.WaitVisible()
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return wrap(ErrVisibilityTimeout, fmt.Sprintf("text %q after %s", text, timeout), err)
	}
	return wrap(ErrElementNotFound, fmt.Sprintf("text %q", text), err)
}

func (p *rodPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := p.scoped(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, wrap(ErrScreenshot, "capture page", err)
	}
	return data, nil
}

// roleSelector returns a CSS selector approximating an ARIA role.
func roleSelector(role Role) string {
	switch role {
	case RoleButton:
		return `button, [role="button"], input[type="button"], input[type="submit"]`
	default:
		return fmt.Sprintf(`[role=%q]`, string(role))
	}
}

// nameRegex returns a case-insensitive JS regex literal matching name as a
// substring, mirroring Playwright's default accessible-name matching.
func nameRegex(name string) string {
	return "/" + strings.ReplaceAll(regexp.QuoteMeta(name), "/", `\/`) + "/i"
}

// textXPath returns an XPath selecting elements with a text node that
// contains text.
func textXPath(text string) string {
	return fmt.Sprintf(`//*[text()[contains(normalize-space(.), %s)]]`, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if part != "" {
			quoted = append(quoted, `"`+part+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
