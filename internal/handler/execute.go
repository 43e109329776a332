package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/code-sandbox/internal/apperror"
	"github.com/sakif/code-sandbox/internal/broker"
)

// truncationNotice is appended to output that hit the capture byte cap, so
// callers can tell truncation apart from a program that just stopped
// printing.
const truncationNotice = "\n... [output truncated]"

// ExecuteHandler handles code execution requests.
type ExecuteHandler struct {
	broker *broker.Broker
	logger *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler.
func NewExecuteHandler(b *broker.Broker, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		broker: b,
		logger: logger,
	}
}

// executionResponse is the wire shape of one execution outcome. Stderr is
// folded after stdout behind a separator, matching what playground clients
// expect from a single output field.
type executionResponse struct {
	Success       bool    `json:"success"`
	Output        string  `json:"output,omitempty"`
	ExitCode      *int    `json:"exit_code,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
	Language      string  `json:"language"`
	Truncated     bool    `json:"truncated,omitempty"`
	Error         string  `json:"error,omitempty"`
	ErrorKind     string  `json:"error_kind,omitempty"`
}

// HandleExecute processes one code execution request.
//
// Rejections (validation, security) map to 400 and an unusable backend to
// 503. Everything the sandbox actually ran, including timeouts, resource
// kills and non-zero exits, is a 200 with success:false: the broker did
// its job even though the program failed.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req broker.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, apperror.Validation("invalid request body"))
		return
	}

	res := h.broker.Execute(r.Context(), req)

	status := http.StatusOK
	if res.Err != nil {
		switch {
		case errors.Is(res.Err, apperror.ErrValidation), errors.Is(res.Err, apperror.ErrSecurity):
			status = http.StatusBadRequest
		case errors.Is(res.Err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, buildExecutionResponse(res))
}

func buildExecutionResponse(res broker.Result) executionResponse {
	output := res.Stdout
	if res.Stderr != "" {
		output += "\n--- STDERR ---\n" + res.Stderr
	}
	if res.Truncated {
		output += truncationNotice
	}

	resp := executionResponse{
		Success:       res.Success,
		Output:        output,
		ExitCode:      res.ExitCode,
		ExecutionTime: res.Duration.Seconds(),
		Language:      res.Language,
		Truncated:     res.Truncated,
	}
	if res.Err != nil {
		resp.Error = res.Err.Message
		resp.ErrorKind = res.Err.Kind
	}
	return resp
}
