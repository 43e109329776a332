package process

import (
	"golang.org/x/sys/unix"

	"github.com/sakif/code-sandbox/internal/language"
)

// Process-count and written-file ceilings shared by every execution. The
// per-language config governs time and memory; these only stop fork bombs
// and disk filling.
const (
	maxProcs    = 64
	maxFileSize = 8 * 1024 * 1024
)

// applyLimits clamps the already-started child via prlimit. The limits are
// inherited by any processes it spawns inside the group.
func applyLimits(pid int, spec language.Spec) error {
	mem := uint64(spec.MemoryBytes)
	if err := unix.Prlimit(pid, unix.RLIMIT_AS, &unix.Rlimit{Cur: mem, Max: mem}, nil); err != nil {
		return err
	}

	// CPU seconds as a backstop behind the wall-clock watchdog; a busy
	// loop is caught by whichever fires first.
	cpu := uint64(spec.Timeout.Seconds()) + 1
	if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &unix.Rlimit{Cur: cpu, Max: cpu}, nil); err != nil {
		return err
	}

	if err := unix.Prlimit(pid, unix.RLIMIT_NPROC, &unix.Rlimit{Cur: maxProcs, Max: maxProcs}, nil); err != nil {
		return err
	}

	return unix.Prlimit(pid, unix.RLIMIT_FSIZE, &unix.Rlimit{Cur: maxFileSize, Max: maxFileSize}, nil)
}
