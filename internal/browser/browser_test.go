package browser

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

// TestNewLauncher tests driver selection.
func TestNewLauncher(t *testing.T) {
	t.Parallel()

	t.Run("playwright", func(t *testing.T) {
		t.Parallel()
		l, err := NewLauncher(DriverPlaywright, Options{Headless: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.Name() != DriverPlaywright {
			t.Errorf("expected %q, got %q", DriverPlaywright, l.Name())
		}
	})

	t.Run("rod", func(t *testing.T) {
		t.Parallel()
		l, err := NewLauncher(DriverRod, Options{Headless: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.Name() != DriverRod {
			t.Errorf("expected %q, got %q", DriverRod, l.Name())
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()
		_, err := NewLauncher("selenium", Options{})
		if !errors.Is(err, ErrUnknownDriver) {
			t.Errorf("expected ErrUnknownDriver, got %v", err)
		}
	})
}

// TestOptionsActionTimeout tests the action timeout fallback.
func TestOptionsActionTimeout(t *testing.T) {
	t.Parallel()

	if got := (Options{}).actionTimeout(); got != DefaultActionTimeout {
		t.Errorf("expected default timeout, got %v", got)
	}
	if got := (Options{ActionTimeout: 5 * time.Second}).actionTimeout(); got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}
}

// TestWrap tests that wrapped errors keep both the class and the cause.
func TestWrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("net::ERR_CONNECTION_REFUSED")
	err := wrap(ErrNavigation, "http://localhost:5173", cause)

	if !errors.Is(err, ErrNavigation) {
		t.Error("expected error to match ErrNavigation")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to keep the cause")
	}
	if errors.Is(err, ErrVisibilityTimeout) {
		t.Error("did not expect ErrVisibilityTimeout")
	}
	if !strings.Contains(err.Error(), "http://localhost:5173") {
		t.Errorf("expected detail in message, got %q", err.Error())
	}
}

// TestRoleSelector tests the CSS approximation of ARIA roles.
func TestRoleSelector(t *testing.T) {
	t.Parallel()

	if got := roleSelector(RoleButton); !strings.HasPrefix(got, "button,") {
		t.Errorf("unexpected button selector %q", got)
	}
	if got := roleSelector(Role("tab")); got != `[role="tab"]` {
		t.Errorf("unexpected tab selector %q", got)
	}
}

// TestNameRegex tests that accessible names become case-insensitive literals.
func TestNameRegex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"raw", "/raw/i"},
		{"Start Processing", "/Start Processing/i"},
		{"a.b", `/a\.b/i`},
		{"in/out", `/in\/out/i`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := nameRegex(tt.name); got != tt.want {
				t.Errorf("nameRegex(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

// TestXPathLiteral tests quoting for XPath 1.0.
func TestXPathLiteral(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Transcription Complete", `"Transcription Complete"`},
		{`say "hi"`, `'say "hi"'`},
		{`it's "done"`, `concat("it's ", '"', "done", '"')`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := xpathLiteral(tt.in); got != tt.want {
				t.Errorf("xpathLiteral(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestTextXPath tests the completion marker query.
func TestTextXPath(t *testing.T) {
	t.Parallel()

	got := textXPath("Transcription Complete")
	want := `//*[text()[contains(normalize-space(.), "Transcription Complete")]]`
	if got != want {
		t.Errorf("textXPath() = %q, want %q", got, want)
	}
	if !regexp.MustCompile(`^//\*\[`).MatchString(got) {
		t.Error("expected a descendant query")
	}
}
