// Package ingest runs the background job that generates embeddings for
// frames that do not have one yet.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/raresift/searchcore/embedder"
	"github.com/raresift/searchcore/pg"
)

// Store is what the worker needs from the storage layer.
type Store interface {
	PendingFrames(ctx context.Context, limit int) ([]pg.PendingFrame, error)
	UpdateFrameEmbedding(ctx context.Context, frameID int64, description string, embedding []float32) error
}

// Encoder produces the description + embedding for one frame image.
type Encoder interface {
	EncodeImageDescribed(ctx context.Context, img embedder.Image) (string, []float32, error)
}

type Options struct {
	BatchSize     int
	PollEvery     time.Duration
	MaxConcurrent int

	// ReadFrame loads frame bytes by path. Defaults to os.ReadFile.
	ReadFrame func(path string) ([]byte, error)

	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.BatchSize <= 0 {
		out.BatchSize = 25
	}
	if out.PollEvery <= 0 {
		out.PollEvery = 5 * time.Second
	}
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = 4
	}
	if out.ReadFrame == nil {
		out.ReadFrame = os.ReadFile
	}
	if out.Logger == nil {
		out.Logger = slog.New(slog.DiscardHandler)
	}
	return out
}

// Worker polls for pending frames and embeds them with bounded concurrency.
type Worker struct {
	store Store
	enc   Encoder
	cfg   Options
}

func New(store Store, enc Encoder, opts Options) *Worker {
	return &Worker{store: store, enc: enc, cfg: opts.withDefaults()}
}

// Run polls until ctx is canceled. Rate-limit denials end the current batch
// early; the remaining frames are picked up on the next poll, by which time
// the limiter windows have drained.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	for {
		w.processOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce drains one batch of pending frames and reports how many were
// embedded. Exposed for one-shot CLI use.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	return w.processOnce(ctx)
}

func (w *Worker) processOnce(ctx context.Context) int {
	batch, err := w.store.PendingFrames(ctx, w.cfg.BatchSize)
	if err != nil {
		w.cfg.Logger.Error("list pending frames", "error", err)
		return 0
	}
	if len(batch) == 0 {
		return 0
	}

	w.cfg.Logger.Info("embedding pending frames", "count", len(batch))

	sem := make(chan struct{}, w.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0
	limited := false

	for _, frame := range batch {
		mu.Lock()
		stop := limited
		mu.Unlock()
		if stop || ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(frame pg.PendingFrame) {
			defer func() {
				<-sem
				wg.Done()
			}()

			if err := w.embedFrame(ctx, frame); err != nil {
				if errors.Is(err, embedder.ErrRateLimited) {
					mu.Lock()
					limited = true
					mu.Unlock()
					w.cfg.Logger.Warn("rate limited, deferring batch", "frame_id", frame.ID)
					return
				}
				w.cfg.Logger.Error("embed frame", "frame_id", frame.ID, "error", err)
				return
			}
			mu.Lock()
			done++
			mu.Unlock()
		}(frame)
	}
	wg.Wait()

	if done > 0 {
		w.cfg.Logger.Info("embedded frames", "count", done)
	}
	return done
}

func (w *Worker) embedFrame(ctx context.Context, frame pg.PendingFrame) error {
	data, err := w.cfg.ReadFrame(frame.FramePath)
	if err != nil {
		return err
	}
	description, vec, err := w.enc.EncodeImageDescribed(ctx, embedder.Image{
		ContentType: contentTypeFor(frame.FramePath),
		Bytes:       data,
	})
	if err != nil {
		return err
	}
	return w.store.UpdateFrameEmbedding(ctx, frame.ID, description, vec)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
