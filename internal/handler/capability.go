package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/code-sandbox/internal/broker"
	"github.com/sakif/code-sandbox/internal/language"
)

// CapabilityHandler serves the read-only introspection endpoints: supported
// languages, canned examples and the health probe. None of them execute
// anything or mutate configuration.
type CapabilityHandler struct {
	broker *broker.Broker
	logger *slog.Logger
}

// NewCapabilityHandler creates a new CapabilityHandler.
func NewCapabilityHandler(b *broker.Broker, logger *slog.Logger) *CapabilityHandler {
	return &CapabilityHandler{
		broker: b,
		logger: logger,
	}
}

type languagesResponse struct {
	Languages []language.Summary `json:"languages"`
}

type examplesResponse struct {
	Examples map[string]string `json:"examples"`
}

type healthResponse struct {
	Status        string   `json:"status"`
	ActiveBackend string   `json:"active_backend"`
	Languages     []string `json:"languages"`
}

// HandleLanguages lists the registered languages with their limits.
func (h *CapabilityHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, languagesResponse{Languages: h.broker.Languages()})
}

// HandleExamples serves the static per-language snippets.
func (h *CapabilityHandler) HandleExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, examplesResponse{Examples: h.broker.Examples()})
}

// HandleHealth reports which backend is active. Degraded (no backend) is
// 503 so load balancers stop routing execution traffic here.
func (h *CapabilityHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.broker.Health()

	resp := healthResponse{
		Status:        "healthy",
		ActiveBackend: health.ActiveBackend,
		Languages:     health.Languages,
	}
	status := http.StatusOK
	if !health.Healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
