//go:build !linux

package process

import "github.com/sakif/code-sandbox/internal/language"

// applyLimits is a no-op off Linux; the wall-clock watchdog still bounds
// the run, and the container backend is preferred on such hosts anyway.
func applyLimits(pid int, spec language.Spec) error {
	return nil
}
