package docker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

const pullTimeout = 2 * time.Minute

// Warmer pulls every registry image in the background so the first
// execution of each language does not pay the pull latency. Failed pulls
// are retried with backoff until they succeed or the warmer is stopped.
type Warmer struct {
	cli       *client.Client
	images    []string
	logger    *slog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWarmer creates a warmer for the given images. Call Start to begin.
func NewWarmer(cli *client.Client, images []string, logger *slog.Logger) *Warmer {
	return &Warmer{
		cli:    cli,
		images: append([]string(nil), images...),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the pull loop. Safe to call more than once; only the
// first call has any effect.
func (w *Warmer) Start() {
	w.startOnce.Do(func() {
		w.logger.Info("starting image warmer", slog.Int("images", len(w.images)))
		w.wg.Add(1)
		go w.run()
	})
}

// Stop terminates the pull loop and waits for it to finish.
func (w *Warmer) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

// run keeps retrying until every image is present.
func (w *Warmer) run() {
	defer w.wg.Done()

	pending := append([]string(nil), w.images...)
	backoff := time.Second

	for len(pending) > 0 {
		select {
		case <-w.done:
			return
		default:
		}

		remaining := pending[:0]
		for _, img := range pending {
			if err := w.pull(img); err != nil {
				w.logger.Warn("image pull failed, will retry",
					slog.String("image", img),
					slog.String("error", err.Error()),
				)
				remaining = append(remaining, img)
			} else {
				w.logger.Info("image ready", slog.String("image", img))
			}
		}
		pending = remaining

		if len(pending) > 0 {
			select {
			case <-w.done:
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}
}

// pull fetches one image and blocks until the pull completes.
func (w *Warmer) pull(ref string) error {
	ctx, cancel := context.WithTimeout(context.Background(), pullTimeout)
	defer cancel()

	reader, err := w.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	// Drain the progress stream; the pull is only done when it ends.
	_, err = io.Copy(io.Discard, reader)
	return err
}
