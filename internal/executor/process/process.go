// Package process implements the subprocess isolation backend.
//
// It is the weaker of the two backends: the child shares the host kernel
// and is contained only by OS resource limits, a scrubbed environment and a
// throwaway working directory. It exists so the broker still functions on
// hosts without a container runtime.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sakif/code-sandbox/internal/executor"
)

// Executor runs code as a resource-limited child process group.
type Executor struct {
	logger    *slog.Logger
	outputCap int
}

// New creates a process backend capturing at most outputCap bytes per stream.
func New(logger *slog.Logger, outputCap int) *Executor {
	return &Executor{
		logger:    logger,
		outputCap: outputCap,
	}
}

// Name implements executor.Backend.
func (e *Executor) Name() string {
	return "process"
}

// Available implements executor.Backend. The process backend only needs a
// working temp directory, so it is available wherever the broker runs.
func (e *Executor) Available(ctx context.Context) bool {
	return true
}

// Run writes the code to a scratch directory, launches the interpreter as a
// new process group, and reaps it. The scratch directory and the whole
// process group are released on every return path, including timeout —
// cleanup itself is not cancellable.
func (e *Executor) Run(ctx context.Context, job executor.Job) (*executor.Outcome, error) {
	scratch, err := os.MkdirTemp("", "sandbox-"+job.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			e.logger.Error("failed to remove scratch dir",
				slog.String("dir", scratch),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	srcPath := filepath.Join(scratch, "main"+job.Spec.Extension)
	if err := os.WriteFile(srcPath, []byte(job.Code), 0o600); err != nil {
		return nil, fmt.Errorf("writing source file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, job.Spec.Timeout)
	defer cancel()

	args := append(append([]string(nil), job.Spec.Command...), srcPath)
	// Not CommandContext: context expiry must kill the whole group, not
	// just the direct child, so the watchdog below owns termination.
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = scratch
	cmd.Env = []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + scratch,
		"TMPDIR=" + scratch,
	}
	cmd.Stdin = strings.NewReader(job.Stdin)

	stdout := executor.NewCapBuffer(e.outputCap)
	stderr := executor.NewCapBuffer(e.outputCap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting interpreter: %w", err)
	}

	if err := applyLimits(cmd.Process.Pid, job.Spec); err != nil {
		// The group kill and timeout still bound the run; log and carry on.
		e.logger.Warn("failed to apply resource limits",
			slog.String("execution", job.ID),
			slog.String("error", err.Error()),
		)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var timedOut bool
	select {
	case err = <-waitErr:
	case <-runCtx.Done():
		timedOut = true
		e.killGroup(cmd.Process.Pid, job.ID)
		// Reap unconditionally so no zombie survives the call.
		err = <-waitErr
	}
	duration := time.Since(start)

	outcome := &executor.Outcome{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  duration,
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}

	switch {
	case timedOut:
		outcome.Cause = executor.CauseTimeout
	case err == nil:
		outcome.Exited = true
		outcome.ExitCode = 0
	default:
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("waiting for interpreter: %w", err)
		}
		ws, ok := exitErr.Sys().(syscall.WaitStatus)
		switch {
		case ok && ws.Signaled() && ws.Signal() == syscall.SIGXCPU:
			// The CPU-time rlimit fired before the wall clock did.
			outcome.Cause = executor.CauseTimeout
		case ok && ws.Signaled() && ws.Signal() == syscall.SIGKILL && looksOutOfMemory(outcome.Stderr):
			// Killed without our watchdog firing, with allocation
			// failures on record: the memory ceiling got there first.
			outcome.Cause = executor.CauseMemory
		case ok && ws.Signaled():
			// The program died by a signal of its own making (crash,
			// self-kill). Report it as a normal exit using the shell
			// convention for signal deaths.
			outcome.Exited = true
			outcome.ExitCode = 128 + int(ws.Signal())
		case looksOutOfMemory(outcome.Stderr):
			// The runtime survived the allocation failure long
			// enough to report it and exit.
			outcome.Exited = true
			outcome.ExitCode = exitErr.ExitCode()
			outcome.Cause = executor.CauseMemory
		default:
			outcome.Exited = true
			outcome.ExitCode = exitErr.ExitCode()
		}
	}

	return outcome, nil
}

// killGroup forcibly terminates the child and all its descendants.
func (e *Executor) killGroup(pid int, jobID string) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		e.logger.Error("failed to kill process group",
			slog.String("execution", jobID),
			slog.Int("pgid", pid),
			slog.String("error", err.Error()),
		)
	}
}

// looksOutOfMemory recognizes allocation-failure diagnostics from the
// supported runtimes when the address-space limit is hit.
func looksOutOfMemory(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{
		"memoryerror",
		"out of memory",
		"cannot allocate memory",
		"heap limit",
		"allocation failed",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
