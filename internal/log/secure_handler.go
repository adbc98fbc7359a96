package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose values are always masked.
// Keys are compared lower-cased.
var sensitiveKeys = map[string]struct{}{
	"authorization": {}, "proxy-authorization": {},
	"cookie": {}, "set-cookie": {},
	"x-api-key": {}, "api_key": {}, "apikey": {}, "api-key": {},
	"access_token": {}, "refresh_token": {},
	"signature": {}, "sig": {},
	"session": {}, "session_id": {}, "sessionid": {}, "sid": {}, "jsessionid": {},
}

// sensitiveKeywords mask any key containing them. The bare word "key" is
// not one of them: it matches names like "primary_key" or "keyboard".
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private", "cookie",
}

// digestKeys hold screenshot digests. They are long hex strings that would
// otherwise match the API key pattern.
var digestKeys = map[string]struct{}{
	"digest": {}, "results_digest": {}, "raw_results_digest": {},
}

// sensitivePatterns mask a string value regardless of its key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^(bearer\s+.+|basic\s+[A-Za-z0-9+/=]+)$`),          // Authorization header values
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),                                    // AWS access key
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),                                    // opaque API key
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// userinfoPattern matches "scheme://user:pass@" in free text.
var userinfoPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/?#@\s]+@`)

// SecureHandler is an slog.Handler that masks credentials before records
// reach the wrapped handler. Target URLs and driver errors are the main
// sources: a URL may carry userinfo or a token query parameter.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next wraps slog.Default's handler.
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled reports whether the wrapped handler handles level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle masks the record's attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs masks attrs once, at the time they are attached.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SecureHandler{next: h.next.WithAttrs(redactAttrs(attrs))}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

func redactAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return out
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redactAttrs(a.Value.Group())...)}
	}

	key := strings.ToLower(a.Key)
	if isSensitiveKey(key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if _, digest := digestKeys[key]; !digest && isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if masked, changed := SanitizeURLs(s); changed {
			return slog.String(a.Key, masked)
		}
	case slog.KindAny:
		// Driver errors quote the URL they failed on.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			if masked, changed := SanitizeURLs(err.Error()); changed {
				return slog.String(a.Key, masked)
			}
		}
	default:
	}
	return a
}

// isSensitiveKey reports whether a lower-cased key names sensitive data.
func isSensitiveKey(key string) bool {
	if _, ok := sensitiveKeys[key]; ok {
		return true
	}
	return containsSensitiveKeyword(key)
}

func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// SanitizeURLs masks URL credentials and sensitive query parameter values
// found in s, leaving scheme, host and path intact. It reports whether
// anything was masked.
func SanitizeURLs(s string) (string, bool) {
	if !strings.Contains(s, "://") {
		return s, false
	}
	out := userinfoPattern.ReplaceAllString(s, "${1}"+MaskValue+"@")
	out = maskQueryParams(out)
	return out, out != s
}

// maskQueryParams masks the values of sensitive parameters in the first
// query string that follows a URL scheme in s.
func maskQueryParams(s string) string {
	scheme := strings.Index(s, "://")
	q := strings.IndexByte(s[scheme:], '?')
	if q < 0 {
		return s
	}
	q += scheme

	query, rest := s[q+1:], ""
	if end := strings.IndexAny(query, "# \t\n\"'"); end >= 0 {
		query, rest = query[:end], query[end:]
	}

	params := strings.Split(query, "&")
	for i, p := range params {
		k, _, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		name, err := url.QueryUnescape(k)
		if err != nil {
			name = k
		}
		if isSensitiveKey(strings.ToLower(name)) {
			params[i] = k + "=" + MaskValue
		}
	}
	return s[:q+1] + strings.Join(params, "&") + rest
}

// handlerOptions logs Warn and above, or everything when verbose.
func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}

// NewSecureLogger returns a text logger writing to w through a SecureHandler.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output, for CI log
// collectors.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}
