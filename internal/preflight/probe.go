package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultTimeout bounds the preflight request.
const DefaultTimeout = 10 * time.Second

// defaultMaxBodySize limits how much of the page is parsed.
const defaultMaxBodySize = 2 * 1024 * 1024

var (
	// ErrUnreachable is returned when the target does not answer.
	ErrUnreachable = errors.New("target unreachable")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Result is what the probe observed.
type Result struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Title is the text of the <title> element, trimmed.
	Title string

	// ElementChecked is true when the selector was an id selector and the
	// markup was searched for it.
	ElementChecked bool

	// ElementFound is true when an element with that id is in the markup.
	ElementFound bool
}

// Prober fetches and parses the target page.
type Prober struct {
	client      *http.Client
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient sets the HTTP client used for the request.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) {
		p.client = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

// NewProber creates a Prober with a DefaultTimeout client.
func NewProber(opts ...Option) *Prober {
	p := &Prober{
		client:      &http.Client{Timeout: DefaultTimeout},
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Probe fetches targetURL and looks for the element matched by selector.
// Only "#id" selectors are searched for; other selectors leave
// ElementChecked false.
func (p *Prober) Probe(ctx context.Context, targetURL, selector string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	result := &Result{StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return result, fmt.Errorf("failed to parse page: %w", err)
	}

	id, isID := strings.CutPrefix(selector, "#")
	result.ElementChecked = isID && id != ""

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" && result.Title == "" && n.FirstChild != nil {
				result.Title = strings.TrimSpace(n.FirstChild.Data)
			}
			if result.ElementChecked && getAttr(n, "id") == id {
				result.ElementFound = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	p.logger.Debug("preflight complete",
		"url", targetURL,
		"status", result.StatusCode,
		"title", result.Title,
		"elementFound", result.ElementFound,
	)

	return result, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
