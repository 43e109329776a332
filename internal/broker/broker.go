// Package broker coordinates one code execution end to end: validation,
// the security scan, backend dispatch and result normalization.
//
// The backend is chosen once, when the broker is built: the container
// backend if the daemon answers a ping, otherwise the process backend.
// The choice is cached for the process lifetime so isolation strength
// never flaps between requests.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/code-sandbox/internal/apperror"
	"github.com/sakif/code-sandbox/internal/executor"
	"github.com/sakif/code-sandbox/internal/language"
	"github.com/sakif/code-sandbox/internal/security"
)

// dispatchBudget is the fixed overhead allowed on top of a language's
// configured timeout before the broker gives up on a backend.
const dispatchBudget = 2 * time.Second

// Request is one accepted execution request. Immutable once validated.
type Request struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Stdin    string `json:"input"`
}

// Result is the single, normalized outcome of one request. Every Request
// produces exactly one Result; failures are values here, not panics.
type Result struct {
	Success  bool
	Language string
	Stdout   string
	Stderr   string
	// ExitCode is nil when the program was killed before exiting.
	ExitCode  *int
	Duration  time.Duration
	Truncated bool
	// Err carries the taxonomy kind and message; nil only on success.
	Err *apperror.AppError
}

// Limits bounds request payload sizes, taken from configuration.
type Limits struct {
	CodeBytes  int
	StdinBytes int
}

// Status is the health view exposed to capability callers.
type Status struct {
	Healthy       bool     `json:"healthy"`
	ActiveBackend string   `json:"active_backend"`
	Languages     []string `json:"languages"`
}

// Broker routes requests to the selected backend and normalizes outcomes.
type Broker struct {
	registry *language.Registry
	backend  executor.Backend // nil when no backend is usable
	limits   Limits
	logger   *slog.Logger
}

// New probes the candidate backends in preference order and caches the
// first available one. A broker with no usable backend is still returned;
// it answers every execution with BackendUnavailable.
func New(ctx context.Context, registry *language.Registry, candidates []executor.Backend, limits Limits, logger *slog.Logger) *Broker {
	b := &Broker{
		registry: registry,
		limits:   limits,
		logger:   logger,
	}

	for _, cand := range candidates {
		if cand.Available(ctx) {
			b.backend = cand
			logger.Info("execution backend selected", slog.String("backend", cand.Name()))
			break
		}
		logger.Warn("execution backend unavailable", slog.String("backend", cand.Name()))
	}
	if b.backend == nil {
		logger.Error("no execution backend available; all executions will fail")
	}
	return b
}

// Execute runs one request through the full pipeline. It always returns a
// well-formed Result within the language's timeout plus the dispatch
// budget, and never panics on malformed input or a misbehaving backend.
func (b *Broker) Execute(ctx context.Context, req Request) (res Result) {
	res.Language = req.Language

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("execution panicked", slog.Any("panic", r))
			res = Result{
				Language: req.Language,
				Err:      apperror.Unavailable("internal execution failure"),
			}
		}
	}()

	spec, appErr := b.validate(req)
	if appErr != nil {
		res.Err = appErr
		return res
	}

	if match := security.Scan(req.Code); match != nil {
		b.logger.Warn("submission blocked by security filter",
			slog.String("language", req.Language),
			slog.String("category", match.Category),
			slog.String("pattern", match.Pattern),
		)
		res.Err = apperror.Security(match.Category, match.Pattern)
		return res
	}

	if b.backend == nil {
		res.Err = apperror.Unavailable("no execution backend available")
		return res
	}

	job := executor.Job{
		ID:    xid.New().String(),
		Code:  req.Code,
		Stdin: req.Stdin,
		Spec:  spec,
	}

	b.logger.Info("executing code",
		slog.String("execution", job.ID),
		slog.String("language", spec.Name),
		slog.String("backend", b.backend.Name()),
	)

	outcome, err := b.dispatch(ctx, job)
	if err != nil {
		b.logger.Error("backend execution failed",
			slog.String("execution", job.ID),
			slog.String("error", err.Error()),
		)
		res.Err = apperror.Unavailable("execution backend failed")
		return res
	}

	return b.normalize(req.Language, spec, outcome)
}

// validate rejects malformed requests before any resource is allocated.
func (b *Broker) validate(req Request) (language.Spec, *apperror.AppError) {
	if req.Code == "" {
		return language.Spec{}, apperror.Validation("code cannot be empty")
	}
	if len(req.Code) > b.limits.CodeBytes {
		return language.Spec{}, apperror.Validation(
			fmt.Sprintf("code exceeds the %d byte limit", b.limits.CodeBytes))
	}
	if len(req.Stdin) > b.limits.StdinBytes {
		return language.Spec{}, apperror.Validation(
			fmt.Sprintf("input exceeds the %d byte limit", b.limits.StdinBytes))
	}
	if req.Language == "" {
		return language.Spec{}, apperror.Validation("language is required")
	}
	spec, ok := b.registry.Lookup(req.Language)
	if !ok {
		return language.Spec{}, apperror.Validation(
			fmt.Sprintf("unsupported language: %s", req.Language))
	}
	return spec, nil
}

// dispatch runs the backend under the timeout plus dispatch budget. The
// companion timer guarantees a return even if the backend itself hangs;
// the backend still owns termination and cleanup of its environment.
func (b *Broker) dispatch(ctx context.Context, job executor.Job) (*executor.Outcome, error) {
	budget := job.Spec.Timeout + dispatchBudget
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type runResult struct {
		outcome *executor.Outcome
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		outcome, err := b.backend.Run(runCtx, job)
		done <- runResult{outcome, err}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-time.After(budget + time.Second):
		return &executor.Outcome{
			Cause:    executor.CauseTimeout,
			Duration: budget,
		}, nil
	}
}

// normalize maps a raw backend outcome onto the shared error taxonomy.
// Captured output is always carried through, whatever the outcome.
func (b *Broker) normalize(langName string, spec language.Spec, outcome *executor.Outcome) Result {
	res := Result{
		Language:  langName,
		Stdout:    outcome.Stdout,
		Stderr:    outcome.Stderr,
		Duration:  outcome.Duration,
		Truncated: outcome.Truncated,
	}

	switch {
	case outcome.Cause == executor.CauseTimeout:
		res.Err = apperror.Timeout(spec.Timeout.Seconds())
	case outcome.Cause == executor.CauseMemory:
		res.Err = apperror.Resource(
			fmt.Sprintf("memory limit of %d MB exceeded", spec.MemoryBytes/(1024*1024)))
	case outcome.Exited && outcome.ExitCode == 0:
		res.Success = true
		code := outcome.ExitCode
		res.ExitCode = &code
	default:
		code := outcome.ExitCode
		res.ExitCode = &code
		res.Err = apperror.Runtime(outcome.ExitCode)
	}
	return res
}

// Health reports the cached backend choice and the registered languages.
// Read-only; it never re-probes or mutates configuration.
func (b *Broker) Health() Status {
	s := Status{
		Healthy:   b.backend != nil,
		Languages: b.registry.Names(),
	}
	if b.backend != nil {
		s.ActiveBackend = b.backend.Name()
	} else {
		s.ActiveBackend = "none"
	}
	return s
}

// Languages returns capability summaries in registry order.
func (b *Broker) Languages() []language.Summary {
	return b.registry.Summaries()
}

// Examples returns the canned per-language snippets. Static data, never
// executed.
func (b *Broker) Examples() map[string]string {
	return b.registry.Examples()
}
