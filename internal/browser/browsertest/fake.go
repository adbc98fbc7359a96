// Package browsertest provides an in-memory browser.Launcher for tests.
//
// The fake records every call in order, counts Close calls, and returns
// injected errors per operation so failure paths can be exercised without a
// real browser.
package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/nao1215/uiprobe/internal/browser"
)

// Operation names used in Call.Op and as keys of Launcher.Errors.
const (
	OpLaunch        = "launch"
	OpNewPage       = "new_page"
	OpNavigate      = "navigate"
	OpSetInputFiles = "set_input_files"
	OpDispatchEvent = "dispatch_event"
	OpClickByRole   = "click_by_role"
	OpWaitForText   = "wait_for_text"
	OpScreenshot    = "screenshot"
	OpClose         = "close"
)

// Call is one recorded operation.
type Call struct {
	Op      string
	Args    []string
	Timeout time.Duration
}

// Launcher is a fake browser.Launcher. The zero value is not usable; use
// NewLauncher.
type Launcher struct {
	mu sync.Mutex

	// Errors maps an operation name to the error it returns.
	Errors map[string]error

	// ClickErrors maps an accessible name to the error ClickByRole returns
	// for it, so a single button can be made to fail.
	ClickErrors map[string]error

	// Screenshots, when set, is returned by successive Screenshot calls.
	// Otherwise each call returns a distinct generated PNG.
	Screenshots [][]byte

	calls       []Call
	closeCalls  int
	launches    int
	screenshots int
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher creates a fake launcher with no injected errors.
func NewLauncher() *Launcher {
	return &Launcher{
		Errors:      make(map[string]error),
		ClickErrors: make(map[string]error),
	}
}

// Fail makes op return err.
func (l *Launcher) Fail(op string, err error) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors[op] = err
	return l
}

// Name returns "fake".
func (l *Launcher) Name() string {
	return "fake"
}

// Launch records the launch and returns a fake browser.
func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	if err := l.record(ctx, Call{Op: OpLaunch}); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.launches++
	l.mu.Unlock()
	return &fakeBrowser{l: l}, nil
}

// Calls returns a copy of the recorded calls.
func (l *Launcher) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Call, len(l.calls))
	copy(out, l.calls)
	return out
}

// Ops returns the recorded operation names in order.
func (l *Launcher) Ops() []string {
	calls := l.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

// CloseCalls returns how many times any browser from this launcher was closed.
func (l *Launcher) CloseCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeCalls
}

// Launches returns how many browsers were launched successfully.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// record appends c and returns the injected error for c.Op, if any.
// A cancelled context is reported before the injected error.
func (l *Launcher) record(ctx context.Context, c Call) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.Op == OpClickByRole && len(c.Args) == 2 {
		if err, ok := l.ClickErrors[c.Args[1]]; ok {
			return err
		}
	}
	return l.Errors[c.Op]
}

func (l *Launcher) nextScreenshot() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.screenshots
	l.screenshots++
	if i < len(l.Screenshots) {
		return l.Screenshots[i]
	}
	return GeneratePNG(8, 6, uint8(i*40))
}

type fakeBrowser struct {
	l *Launcher
}

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := b.l.record(ctx, Call{Op: OpNewPage}); err != nil {
		return nil, err
	}
	return &fakePage{l: b.l}, nil
}

func (b *fakeBrowser) Close() error {
	err := b.l.record(context.Background(), Call{Op: OpClose})
	b.l.mu.Lock()
	b.l.closeCalls++
	b.l.mu.Unlock()
	return err
}

type fakePage struct {
	l *Launcher
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.l.record(ctx, Call{Op: OpNavigate, Args: []string{url}})
}

func (p *fakePage) SetInputFiles(ctx context.Context, selector string, files ...string) error {
	return p.l.record(ctx, Call{Op: OpSetInputFiles, Args: append([]string{selector}, files...)})
}

func (p *fakePage) DispatchEvent(ctx context.Context, selector, eventType string) error {
	return p.l.record(ctx, Call{Op: OpDispatchEvent, Args: []string{selector, eventType}})
}

func (p *fakePage) ClickByRole(ctx context.Context, role browser.Role, name string) error {
	return p.l.record(ctx, Call{Op: OpClickByRole, Args: []string{string(role), name}})
}

func (p *fakePage) WaitForText(ctx context.Context, text string, timeout time.Duration) error {
	return p.l.record(ctx, Call{Op: OpWaitForText, Args: []string{text}, Timeout: timeout})
}

func (p *fakePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := p.l.record(ctx, Call{Op: OpScreenshot, Args: []string{fmt.Sprint(fullPage)}}); err != nil {
		return nil, err
	}
	return p.l.nextScreenshot(), nil
}

// GeneratePNG returns a solid-colour PNG of the given size.
func GeneratePNG(width, height int, shade uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	c := color.RGBA{R: shade, G: 255 - shade, B: 128, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img) //nolint:errcheck // Encoding to memory cannot fail
	return buf.Bytes()
}
