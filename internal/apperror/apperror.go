package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrSecurity    = errors.New("security violation")
	ErrUnavailable = errors.New("backend unavailable")
	ErrTimeout     = errors.New("execution timed out")
	ErrResource    = errors.New("resource limit exceeded")
	ErrRuntime     = errors.New("runtime failure")
)

// Kind values reported to callers in the error_kind field.
const (
	KindValidation  = "ValidationError"
	KindSecurity    = "SecurityViolation"
	KindUnavailable = "BackendUnavailable"
	KindTimeout     = "TimedOut"
	KindResource    = "ResourceExceeded"
	KindRuntime     = "RuntimeFailure"
)

// AppError is a terminal, per-request error carrying a machine-readable
// kind alongside the human-readable message.
type AppError struct {
	Err     error  // sentinel for errors.Is
	Kind    string // one of the Kind constants
	Message string // human-readable description
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Validation(message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Kind:    KindValidation,
		Message: message,
	}
}

// Security reports a blocked submission; category names the pattern group
// that matched, pattern the offending text.
func Security(category, pattern string) *AppError {
	return &AppError{
		Err:     ErrSecurity,
		Kind:    KindSecurity,
		Message: fmt.Sprintf("code blocked: contains %s pattern %q", category, pattern),
	}
}

func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Kind:    KindUnavailable,
		Message: message,
	}
}

func Timeout(seconds float64) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Kind:    KindTimeout,
		Message: fmt.Sprintf("execution exceeded the %gs time limit", seconds),
	}
}

func Resource(message string) *AppError {
	return &AppError{
		Err:     ErrResource,
		Kind:    KindResource,
		Message: message,
	}
}

func Runtime(exitCode int) *AppError {
	return &AppError{
		Err:     ErrRuntime,
		Kind:    KindRuntime,
		Message: fmt.Sprintf("program exited with code %d", exitCode),
	}
}

// KindOf extracts the kind string from any error wrapping an AppError.
// Unknown errors report as RuntimeFailure so callers always get a kind.
func KindOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindRuntime
}
