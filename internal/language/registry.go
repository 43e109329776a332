// Package language holds the static table of per-language execution
// parameters. The registry is built once at startup and never mutated, so
// concurrent executions share it without locking.
package language

import (
	"fmt"
	"time"

	"github.com/sakif/code-sandbox/internal/config"
)

// Spec carries everything a backend needs to run one language.
type Spec struct {
	// Name is the registry key, e.g. "python".
	Name string
	// Image is the container image used by the container backend.
	Image string
	// Command is the interpreter invocation; the source file path is
	// appended as the final argument.
	Command []string
	// Extension is the source file suffix, including the dot.
	Extension string
	// Timeout is the wall-clock budget for one execution.
	Timeout time.Duration
	// MemoryBytes is the memory ceiling enforced on the execution.
	MemoryBytes int64
	// CPULimit is the CPU share granted to a container, in cores.
	CPULimit float64
	// NetworkDisabled is always true for now; kept explicit so the
	// backends never have to assume it.
	NetworkDisabled bool
	// Example is a canned snippet served by the examples endpoint.
	Example string
}

// Summary is the read-only view of a Spec exposed by capability endpoints.
type Summary struct {
	Name       string  `json:"name"`
	Extension  string  `json:"extension"`
	TimeoutSec float64 `json:"timeout_sec"`
	MemoryMB   int64   `json:"memory_mb"`
	Image      string  `json:"image"`
}

// Registry maps language names to their specs, preserving config order.
type Registry struct {
	specs map[string]Spec
	order []string
}

// NewRegistry builds the registry from validated configuration.
func NewRegistry(langs []config.LanguageConfig) (*Registry, error) {
	if len(langs) == 0 {
		return nil, fmt.Errorf("no languages configured")
	}

	r := &Registry{
		specs: make(map[string]Spec, len(langs)),
		order: make([]string, 0, len(langs)),
	}
	for _, lc := range langs {
		if _, dup := r.specs[lc.Name]; dup {
			return nil, fmt.Errorf("duplicate language %q", lc.Name)
		}
		r.specs[lc.Name] = Spec{
			Name:            lc.Name,
			Image:           lc.Image,
			Command:         append([]string(nil), lc.Command...),
			Extension:       lc.Extension,
			Timeout:         lc.Timeout(),
			MemoryBytes:     lc.MemoryBytes(),
			CPULimit:        lc.CPULimit,
			NetworkDisabled: true,
			Example:         lc.Example,
		}
		r.order = append(r.order, lc.Name)
	}
	return r, nil
}

// Lookup returns the spec for a language name. Pure lookup, no side effects.
func (r *Registry) Lookup(name string) (Spec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns the registered language names in configuration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Summaries returns the capability view of every registered language, in
// configuration order.
func (r *Registry) Summaries() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		spec := r.specs[name]
		out = append(out, Summary{
			Name:       spec.Name,
			Extension:  spec.Extension,
			TimeoutSec: spec.Timeout.Seconds(),
			MemoryMB:   spec.MemoryBytes / (1024 * 1024),
			Image:      spec.Image,
		})
	}
	return out
}

// MaxTimeout returns the longest wall-clock budget across all registered
// languages, so outer deadlines can be sized to outlast any execution.
func (r *Registry) MaxTimeout() time.Duration {
	var longest time.Duration
	for _, spec := range r.specs {
		if spec.Timeout > longest {
			longest = spec.Timeout
		}
	}
	return longest
}

// Examples returns the canned snippet for every language that has one.
func (r *Registry) Examples() map[string]string {
	out := make(map[string]string, len(r.order))
	for _, name := range r.order {
		if ex := r.specs[name].Example; ex != "" {
			out[name] = ex
		}
	}
	return out
}
