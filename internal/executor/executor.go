// Package executor defines the contract shared by the isolation backends.
package executor

import (
	"context"
	"time"

	"github.com/sakif/code-sandbox/internal/language"
)

// Cause classifies why an execution was forcibly terminated.
type Cause int

const (
	// CauseNone means the program exited on its own.
	CauseNone Cause = iota
	// CauseTimeout means the wall-clock budget expired.
	CauseTimeout
	// CauseMemory means the memory ceiling was breached.
	CauseMemory
)

// Job is one execution handed to a backend. The security filter has already
// run; backends only isolate and execute.
type Job struct {
	// ID is a unique identifier for this execution, used for scratch
	// naming and log correlation.
	ID string
	// Code is the source text to execute.
	Code string
	// Stdin is fed to the program's standard input, possibly empty.
	Stdin string
	// Spec carries the per-language image, command and ceilings.
	Spec language.Spec
}

// Outcome is the raw result of one backend run, before the broker maps it
// onto the caller-facing taxonomy.
type Outcome struct {
	Stdout string
	Stderr string
	// ExitCode is only meaningful when Exited is true.
	ExitCode int
	// Exited is false when the program was killed before exiting.
	Exited bool
	// Cause records a forced termination; CauseNone otherwise.
	Cause Cause
	// Duration is the elapsed wall-clock time of the run.
	Duration time.Duration
	// Truncated is true when either captured stream hit the byte cap.
	Truncated bool
}

// Backend runs untrusted code in an isolated environment. Implementations
// must release every resource they acquire (scratch files, process groups,
// containers) on all return paths, including timeout and cancellation.
type Backend interface {
	// Name identifies the backend in health reports and logs.
	Name() string
	// Available reports whether the backend can execute right now. The
	// broker calls this once and caches the answer.
	Available(ctx context.Context) bool
	// Run executes the job and blocks until it completes or is forcibly
	// terminated. It returns an error only for broker-side failures;
	// program misbehavior (non-zero exit, kill) is reported in Outcome.
	Run(ctx context.Context, job Job) (*Outcome, error)
}
