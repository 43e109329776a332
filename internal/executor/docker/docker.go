// Package docker implements the container isolation backend.
//
// Every execution gets its own single-use container: no network, hard
// memory and CPU ceilings, read-only root filesystem, all capabilities
// dropped. The container and its anonymous volumes are force-removed on
// every exit path. This is the stronger of the two backends and is
// preferred whenever the daemon is reachable.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/code-sandbox/internal/executor"
)

const (
	// workDir is where the source lands inside the container.
	workDir = "/sandbox"
	// cleanupTimeout bounds the forced removal of a container. Cleanup
	// runs on a background context so an abandoned caller cannot cancel it.
	cleanupTimeout = 10 * time.Second
)

// Executor implements executor.Backend using the Docker API.
type Executor struct {
	cli       *client.Client
	logger    *slog.Logger
	outputCap int
	warmer    *Warmer
}

// New connects to the Docker daemon and starts the image warmer for the
// given registry images. It does not fail when the daemon is unreachable;
// Available reports that instead, so the broker can fall back cleanly.
func New(logger *slog.Logger, outputCap int, images []string) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	e := &Executor{
		cli:       cli,
		logger:    logger,
		outputCap: outputCap,
		warmer:    NewWarmer(cli, images, logger),
	}
	return e, nil
}

// Close stops the image warmer and releases the client connection.
func (e *Executor) Close() error {
	e.warmer.Stop()
	return e.cli.Close()
}

// Name implements executor.Backend.
func (e *Executor) Name() string {
	return "docker"
}

// Available implements executor.Backend by pinging the daemon. On success
// it also kicks off the image warmer so registry images are pulled before
// the first execution needs them.
func (e *Executor) Available(ctx context.Context) bool {
	if _, err := e.cli.Ping(ctx); err != nil {
		return false
	}
	e.warmer.Start()
	return true
}

// Run executes the job in a fresh container and blocks until it exits or
// the wall-clock budget expires.
func (e *Executor) Run(ctx context.Context, job executor.Job) (*executor.Outcome, error) {
	spec := job.Spec

	// The source is staged on the host and bind-mounted read-only at the
	// working directory. The rootfs is read-only, so nothing can be copied
	// into the container after creation.
	scratch, err := os.MkdirTemp("", "sandbox-"+job.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			e.logger.Error("failed to remove scratch dir",
				slog.String("execution", job.ID),
				slog.String("dir", scratch),
				slog.String("error", err.Error()),
			)
		}
	}()
	if err := stageSource(scratch, "main"+spec.Extension, job.Code); err != nil {
		return nil, fmt.Errorf("staging source: %w", err)
	}

	containerCfg := &container.Config{
		Image:           spec.Image,
		Cmd:             append(append([]string(nil), spec.Command...), workDir+"/main"+spec.Extension),
		WorkingDir:      workDir,
		User:            "nobody",
		NetworkDisabled: spec.NetworkDisabled,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		OpenStdin:       true,
		StdinOnce:       true,
		Tty:             false,
	}
	hostCfg := &container.HostConfig{
		Binds:          []string{sourceBind(scratch)},
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges:true"},
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,nosuid,size=16m"},
		Resources: container.Resources{
			Memory:   spec.MemoryBytes,
			NanoCPUs: int64(spec.CPULimit * 1e9),
		},
	}

	resp, err := e.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "sandbox-"+job.ID)
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}

	// Unconditional removal, on a context the caller cannot cancel.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, resp.ID, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container",
				slog.String("execution", job.ID),
				slog.String("container", resp.ID),
				slog.String("error", err.Error()),
			)
		}
	}()

	attach, err := e.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("attaching to container: %w", err)
	}
	defer attach.Close()

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	start := time.Now()
	if err := e.cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	go func() {
		if job.Stdin != "" {
			_, _ = io.WriteString(attach.Conn, job.Stdin)
		}
		_ = attach.CloseWrite()
	}()

	stdout := executor.NewCapBuffer(e.outputCap)
	stderr := executor.NewCapBuffer(e.outputCap)
	copied := make(chan struct{})
	go func() {
		// Demultiplex the combined stream into stdout and stderr.
		_, _ = stdcopy.StdCopy(stdout, stderr, attach.Reader)
		close(copied)
	}()

	waitCh, waitErrCh := e.cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNotRunning)

	outcome := &executor.Outcome{}
	select {
	case wait := <-waitCh:
		outcome.Exited = true
		outcome.ExitCode = int(wait.StatusCode)
		if oomKilled := e.wasOOMKilled(resp.ID); oomKilled {
			outcome.Exited = false
			outcome.Cause = executor.CauseMemory
		}
	case err := <-waitErrCh:
		if runCtx.Err() == nil {
			return nil, fmt.Errorf("waiting for container: %w", err)
		}
		outcome.Cause = executor.CauseTimeout
	case <-runCtx.Done():
		outcome.Cause = executor.CauseTimeout
	}
	outcome.Duration = time.Since(start)

	// Stop the copier before reading the buffers; on the timeout path it
	// would otherwise still be writing while the attach stream is live.
	attach.Close()
	select {
	case <-copied:
	case <-time.After(time.Second):
	}
	outcome.Stdout = stdout.String()
	outcome.Stderr = stderr.String()
	outcome.Truncated = stdout.Truncated() || stderr.Truncated()

	return outcome, nil
}

// wasOOMKilled asks the daemon whether the kernel killed the container for
// breaching its memory ceiling.
func (e *Executor) wasOOMKilled(containerID string) bool {
	inspectCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	info, err := e.cli.ContainerInspect(inspectCtx, containerID)
	if err != nil || info.State == nil {
		return false
	}
	return info.State.OOMKilled
}

// stageSource writes the source into the scratch directory with modes the
// container's unprivileged user can traverse and read.
func stageSource(scratch, name, code string) error {
	// MkdirTemp creates 0700; the container runs as nobody.
	if err := os.Chmod(scratch, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(scratch, name), []byte(code), 0o644)
}

// sourceBind mounts the scratch directory read-only at the container's
// working directory.
func sourceBind(scratch string) string {
	return scratch + ":" + workDir + ":ro"
}
