package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/raresift/searchcore/embedder"
	"github.com/raresift/searchcore/pg"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []pg.PendingFrame
	updated map[int64]string
}

func (f *fakeStore) PendingFrames(ctx context.Context, limit int) ([]pg.PendingFrame, error) {
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	return f.pending[:limit], nil
}

func (f *fakeStore) UpdateFrameEmbedding(ctx context.Context, frameID int64, description string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updated == nil {
		f.updated = map[int64]string{}
	}
	f.updated[frameID] = description
	return nil
}

type fakeEncoder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEncoder) EncodeImageDescribed(ctx context.Context, img embedder.Image) (string, []float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", nil, f.err
	}
	return "a road scene", []float32{1, 0}, nil
}

func testFrames(n int) []pg.PendingFrame {
	out := make([]pg.PendingFrame, n)
	for i := range out {
		out[i] = pg.PendingFrame{ID: int64(i + 1), VideoID: 1, FramePath: fmt.Sprintf("frame_%03d.jpg", i)}
	}
	return out
}

func readOK(path string) ([]byte, error) { return []byte{0xff, 0xd8}, nil }

func TestProcessOnce_EmbedsBatch(t *testing.T) {
	store := &fakeStore{pending: testFrames(3)}
	enc := &fakeEncoder{}
	w := New(store, enc, Options{ReadFrame: readOK})

	if got := w.ProcessOnce(context.Background()); got != 3 {
		t.Fatalf("expected 3 frames embedded, got %d", got)
	}
	if len(store.updated) != 3 {
		t.Fatalf("expected 3 updates, got %d", len(store.updated))
	}
	if store.updated[1] != "a road scene" {
		t.Fatalf("description not persisted: %q", store.updated[1])
	}
}

func TestProcessOnce_RateLimitDefersBatch(t *testing.T) {
	store := &fakeStore{pending: testFrames(10)}
	enc := &fakeEncoder{err: fmt.Errorf("denied: %w", embedder.ErrRateLimited)}
	// Serial processing so the first denial stops the rest of the batch.
	w := New(store, enc, Options{ReadFrame: readOK, MaxConcurrent: 1})

	if got := w.ProcessOnce(context.Background()); got != 0 {
		t.Fatalf("expected no frames embedded, got %d", got)
	}
	if enc.calls >= 10 {
		t.Fatalf("expected the batch to stop early after a denial, got %d calls", enc.calls)
	}
}

func TestProcessOnce_EmptyQueue(t *testing.T) {
	w := New(&fakeStore{}, &fakeEncoder{}, Options{ReadFrame: readOK})
	if got := w.ProcessOnce(context.Background()); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("a/b/frame.PNG"); got != "image/png" {
		t.Fatalf("got %q", got)
	}
	if got := contentTypeFor("frame_0001.jpg"); got != "image/jpeg" {
		t.Fatalf("got %q", got)
	}
}
