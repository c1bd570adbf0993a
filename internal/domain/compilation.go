package domain

import "time"

// CompilationState tracks one CompilationRunner invocation.
type CompilationState string

const (
	StatePending           CompilationState = "pending"
	StateToolchainResolved CompilationState = "toolchain_resolved"
	StateInvoked           CompilationState = "invoked"
	StateSucceeded         CompilationState = "succeeded"
	StateFailed            CompilationState = "failed"
	StateToolchainMissing  CompilationState = "toolchain_missing"
	StateTimedOut          CompilationState = "timed_out"
)

// IsTerminal reports whether no further transition can happen.
func (s CompilationState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateToolchainMissing, StateTimedOut:
		return true
	}
	return false
}

// Artifact is a compiled output file collected from the work directory.
type Artifact struct {
	Name string
	Data []byte
}

// CompilationOutcome is the normalized result of a compile attempt.
//
// Success is false whenever the tool exited non-zero, timed out or
// could not be located. Attempted distinguishes "skipped" from "failed".
type CompilationOutcome struct {
	State      CompilationState
	Success    bool
	Attempted  bool
	Toolchain  string
	FailedStep string
	Stdout     string
	Stderr     string
	Duration   time.Duration
	Artifacts  []Artifact
}

// Summary is a short human-readable description of the outcome.
func (o CompilationOutcome) Summary() string {
	switch o.State {
	case StateSucceeded:
		return "compiled successfully with " + o.Toolchain
	case StateToolchainMissing:
		return "unvalidated: toolchain " + o.Toolchain + " not available"
	case StateTimedOut:
		return "compilation timed out"
	case StateFailed:
		if o.FailedStep != "" {
			return "compilation failed at " + o.FailedStep + " step"
		}
		return "compilation failed"
	default:
		return string(o.State)
	}
}
