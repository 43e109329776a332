package broker_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-sandbox/internal/apperror"
	"github.com/sakif/code-sandbox/internal/broker"
	"github.com/sakif/code-sandbox/internal/config"
	"github.com/sakif/code-sandbox/internal/executor"
	"github.com/sakif/code-sandbox/internal/language"
)

// fakeBackend scripts the outcome of Run so broker behavior can be tested
// without an isolation environment.
type fakeBackend struct {
	name      string
	available bool
	outcome   *executor.Outcome
	err       error
	runDelay  time.Duration
	runCalls  int
	lastJob   executor.Job
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Available(ctx context.Context) bool { return f.available }

func (f *fakeBackend) Run(ctx context.Context, job executor.Job) (*executor.Outcome, error) {
	f.runCalls++
	f.lastJob = job
	if f.runDelay > 0 {
		time.Sleep(f.runDelay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func testRegistry(t *testing.T) *language.Registry {
	t.Helper()
	reg, err := language.NewRegistry([]config.LanguageConfig{
		{
			Name:       "python",
			Image:      "python:3.11-alpine",
			Command:    []string{"python3"},
			Extension:  ".py",
			TimeoutSec: 1,
			MemoryMB:   128,
		},
	})
	require.NoError(t, err)
	return reg
}

func newBroker(t *testing.T, backends ...executor.Backend) *broker.Broker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	limits := broker.Limits{CodeBytes: 10 * 1024, StdinBytes: 10 * 1024}
	return broker.New(context.Background(), testRegistry(t), backends, limits, logger)
}

func TestExecuteSuccess(t *testing.T) {
	backend := &fakeBackend{
		name:      "fake",
		available: true,
		outcome: &executor.Outcome{
			Stdout:   "Hello, World!\n",
			Exited:   true,
			ExitCode: 0,
			Duration: 42 * time.Millisecond,
		},
	}
	b := newBroker(t, backend)

	res := b.Execute(context.Background(), broker.Request{
		Language: "python",
		Code:     `print('Hello, World!')`,
	})

	assert.True(t, res.Success)
	assert.Equal(t, "Hello, World!\n", res.Stdout)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Equal(t, "python", res.Language)
	assert.Nil(t, res.Err)
	assert.Equal(t, 1, backend.runCalls)
	assert.NotEmpty(t, backend.lastJob.ID)
}

func TestExecuteValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		req  broker.Request
	}{
		{"empty code", broker.Request{Language: "python"}},
		{"unknown language", broker.Request{Language: "cobol", Code: "DISPLAY 'HI'"}},
		{"missing language", broker.Request{Code: "print(1)"}},
		{"oversized code", broker.Request{Language: "python", Code: string(make([]byte, 20*1024))}},
		{"oversized stdin", broker.Request{Language: "python", Code: "print(1)", Stdin: string(make([]byte, 20*1024))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{name: "fake", available: true}
			b := newBroker(t, backend)

			res := b.Execute(context.Background(), tt.req)

			assert.False(t, res.Success)
			require.NotNil(t, res.Err)
			assert.Equal(t, apperror.KindValidation, res.Err.Kind)
			assert.Zero(t, backend.runCalls, "no backend may be invoked")
		})
	}
}

func TestExecuteSecurityViolationSkipsBackend(t *testing.T) {
	backend := &fakeBackend{name: "fake", available: true}
	b := newBroker(t, backend)

	start := time.Now()
	res := b.Execute(context.Background(), broker.Request{
		Language: "python",
		Code:     "import os",
	})

	assert.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, apperror.KindSecurity, res.Err.Kind)
	assert.Zero(t, backend.runCalls)
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"rejection must not wait on execution machinery")
}

func TestExecuteRuntimeFailureKeepsOutput(t *testing.T) {
	backend := &fakeBackend{
		name:      "fake",
		available: true,
		outcome: &executor.Outcome{
			Stdout:   "partial output\n",
			Stderr:   "Traceback (most recent call last):\n",
			Exited:   true,
			ExitCode: 1,
		},
	}
	b := newBroker(t, backend)

	res := b.Execute(context.Background(), broker.Request{Language: "python", Code: "print(1/0)"})

	assert.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, apperror.KindRuntime, res.Err.Kind)
	assert.Equal(t, "partial output\n", res.Stdout)
	assert.Contains(t, res.Stderr, "Traceback")
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 1, *res.ExitCode)
}

func TestExecuteTimeoutCause(t *testing.T) {
	backend := &fakeBackend{
		name:      "fake",
		available: true,
		outcome:   &executor.Outcome{Cause: executor.CauseTimeout, Duration: time.Second},
	}
	b := newBroker(t, backend)

	res := b.Execute(context.Background(), broker.Request{Language: "python", Code: "while True: pass"})

	assert.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, apperror.KindTimeout, res.Err.Kind)
	assert.Nil(t, res.ExitCode, "killed programs have no exit code")
}

func TestExecuteMemoryCause(t *testing.T) {
	backend := &fakeBackend{
		name:      "fake",
		available: true,
		outcome:   &executor.Outcome{Cause: executor.CauseMemory},
	}
	b := newBroker(t, backend)

	res := b.Execute(context.Background(), broker.Request{Language: "python", Code: "x = ' ' * (10**12)"})

	require.NotNil(t, res.Err)
	assert.Equal(t, apperror.KindResource, res.Err.Kind)
}

func TestExecuteNoBackend(t *testing.T) {
	b := newBroker(t, &fakeBackend{name: "fake", available: false})

	res := b.Execute(context.Background(), broker.Request{Language: "python", Code: "print(1)"})

	require.NotNil(t, res.Err)
	assert.Equal(t, apperror.KindUnavailable, res.Err.Kind)
}

func TestExecuteBackendError(t *testing.T) {
	backend := &fakeBackend{
		name:      "fake",
		available: true,
		err:       errors.New("daemon went away"),
	}
	b := newBroker(t, backend)

	res := b.Execute(context.Background(), broker.Request{Language: "python", Code: "print(1)"})

	require.NotNil(t, res.Err)
	assert.Equal(t, apperror.KindUnavailable, res.Err.Kind)
}

func TestExecuteHangingBackendStillReturns(t *testing.T) {
	// The registry timeout is 1s; a backend stuck past the dispatch
	// budget must not hang the caller.
	backend := &fakeBackend{
		name:      "fake",
		available: true,
		runDelay:  10 * time.Second,
		outcome:   &executor.Outcome{Exited: true},
	}
	b := newBroker(t, backend)

	start := time.Now()
	res := b.Execute(context.Background(), broker.Request{Language: "python", Code: "print(1)"})

	require.NotNil(t, res.Err)
	assert.Equal(t, apperror.KindTimeout, res.Err.Kind)
	assert.Less(t, time.Since(start), 6*time.Second)
}

func TestBackendSelectionPrefersFirstAvailable(t *testing.T) {
	first := &fakeBackend{name: "docker", available: false}
	second := &fakeBackend{name: "process", available: true, outcome: &executor.Outcome{Exited: true}}
	b := newBroker(t, first, second)

	status := b.Health()
	assert.True(t, status.Healthy)
	assert.Equal(t, "process", status.ActiveBackend)
}

func TestHealthWithoutBackend(t *testing.T) {
	b := newBroker(t)

	status := b.Health()
	assert.False(t, status.Healthy)
	assert.Equal(t, "none", status.ActiveBackend)
	assert.Equal(t, []string{"python"}, status.Languages)
}

func TestLanguagesAndExamples(t *testing.T) {
	b := newBroker(t, &fakeBackend{name: "fake", available: true})

	langs := b.Languages()
	require.Len(t, langs, 1)
	assert.Equal(t, "python", langs[0].Name)

	// The test registry configures no example snippets.
	assert.Empty(t, b.Examples())
}
