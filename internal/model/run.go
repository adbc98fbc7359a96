package model

import (
	"time"

	"github.com/google/uuid"
)

// StepResult records how one pipeline step went.
type StepResult struct {
	// Name is the step's name, e.g. "navigate" or "wait_for_completion".
	Name string `json:"name"`

	// StartedAt is when the step began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the step took.
	Duration time.Duration `json:"duration"`

	// Error is the error message if the step failed.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the step returned an error.
func (s StepResult) Failed() bool {
	return s.Error != ""
}

// RunReport is the outcome of one verification run.
// A run is created before the browser is launched and finished exactly once.
type RunReport struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Scenario is the configured scenario name, empty for the default run.
	Scenario string `json:"scenario,omitempty"`

	// TargetURL is the page under test.
	TargetURL string `json:"target_url"`

	// AudioFile is the file that was uploaded.
	AudioFile string `json:"audio_file"`

	// Driver is the browser driver used.
	Driver string `json:"driver"`

	// PageTitle is the document title seen by the preflight probe, if any.
	PageTitle string `json:"page_title,omitempty"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Status is the terminal state of the run.
	Status Status `json:"status"`

	// Steps holds one entry per executed step, in execution order.
	Steps []StepResult `json:"steps"`

	// Artifacts holds the screenshots written by the run.
	Artifacts []Artifact `json:"artifacts"`

	// Warnings are non-fatal observations, e.g. from the preflight probe.
	Warnings []string `json:"warnings,omitempty"`

	// Error is the error that stopped the run. Not serialized.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRunReport creates a pending run for the given target.
func NewRunReport(targetURL string) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		TargetURL: targetURL,
		StartedAt: time.Now(),
		Status:    StatusPending,
		Steps:     make([]StepResult, 0),
		Artifacts: make([]Artifact, 0),
	}
}

// AddStep appends a step result.
func (r *RunReport) AddStep(step StepResult) {
	r.Steps = append(r.Steps, step)
}

// AddArtifact appends an artifact. An artifact with the same name replaces
// the earlier entry.
func (r *RunReport) AddArtifact(a Artifact) {
	for i := range r.Artifacts {
		if r.Artifacts[i].Name == a.Name {
			r.Artifacts[i] = a
			return
		}
	}
	r.Artifacts = append(r.Artifacts, a)
}

// GetArtifact returns the artifact with the given name, or nil.
func (r *RunReport) GetArtifact(name string) *Artifact {
	for i := range r.Artifacts {
		if r.Artifacts[i].Name == name {
			return &r.Artifacts[i]
		}
	}
	return nil
}

// AddWarning records a non-fatal observation.
func (r *RunReport) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finish sets the terminal status. Later calls are ignored so the first
// recorded outcome wins.
func (r *RunReport) Finish(status Status, err error) {
	if r.Status.IsTerminal() {
		return
	}
	r.Status = status
	r.FinishedAt = time.Now()
	if err != nil {
		r.Error = err
		r.ErrorMessage = err.Error()
	}
}

// Passed reports whether the run succeeded.
func (r *RunReport) Passed() bool {
	return r.Status == StatusPassed
}

// Duration returns the wall time of the run, or zero while pending.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedStep returns the first failed step, or nil.
func (r *RunReport) FailedStep() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Failed() {
			return &r.Steps[i]
		}
	}
	return nil
}
