// Package model defines the data structures shared by the verification
// pipeline, the report writers and the history database.
//
// This package contains the following main types:
//   - RunReport: the outcome of one verification run
//   - StepResult: timing and error of a single browser step
//   - Artifact: a screenshot written by the run
//   - Status: the terminal state of a run
//
// The models are serializable to JSON for report output and database storage.
package model
