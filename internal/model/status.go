package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the state of a verification run.
type Status int

const (
	// StatusPending means the run has not finished yet.
	StatusPending Status = iota

	// StatusPassed means every step completed and both screenshots exist.
	StatusPassed

	// StatusFailed means a step returned an error.
	StatusFailed

	// StatusTimedOut means the completion marker never became visible.
	StatusTimedOut

	// StatusCancelled means the run was interrupted, e.g. by SIGINT.
	StatusCancelled
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus converts a name produced by String back to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "passed":
		return StatusPassed, nil
	case "failed":
		return StatusFailed, nil
	case "timed_out":
		return StatusTimedOut, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return StatusPending, fmt.Errorf("unknown status %q", s)
	}
}

// MarshalJSON encodes the status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsTerminal reports whether the run has finished.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}
