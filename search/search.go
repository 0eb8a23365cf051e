// Package search ranks stored frame embeddings against a query vector and
// resolves adaptive similarity thresholds.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/raresift/searchcore/internal/vecmath"
)

// Filters restrict the candidate set before ranking. The zero value means a
// public/demo search over everything.
type Filters struct {
	// UserID scopes results to one owner; 0 means public/demo.
	UserID    int64
	TimeOfDay string
	Weather   string
	Category  string
}

// Candidate is one stored frame embedding with the denormalized video fields
// callers need for display, as returned by the storage layer.
type Candidate struct {
	FrameID       int64
	VideoID       int64
	Timestamp     float64
	Embedding     []float32
	FramePath     string
	Description   string
	Metadata      map[string]string
	VideoFilename string
	VideoDuration float64
}

// FrameHit is one ranked result.
type FrameHit struct {
	FrameID       int64             `json:"frame_id"`
	VideoID       int64             `json:"video_id"`
	Timestamp     float64           `json:"timestamp"`
	Similarity    float32           `json:"similarity"`
	FramePath     string            `json:"frame_path"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	VideoFilename string            `json:"video_filename"`
	VideoDuration float64           `json:"video_duration"`
}

// Result carries the ranked hits plus totals and timing.
type Result struct {
	Hits         []FrameHit `json:"hits"`
	TotalFound   int        `json:"total_found"`
	SearchTimeMS int64      `json:"search_time_ms"`
}

// CandidateSource is the narrow read contract the engine needs from the
// storage layer. Implementations are expected to pre-rank with a
// nearest-neighbor index (pgvector `<=>`), but the ranking semantics below
// are the contract, not the index choice.
type CandidateSource interface {
	CandidateFrames(ctx context.Context, queryVec []float32, f Filters, fetchLimit int) ([]Candidate, error)
}

// oversampleFactor controls how many candidates are pulled from the source
// relative to the requested limit, so the threshold filter still leaves
// enough qualifying rows.
const oversampleFactor = 5

// SearchSimilarFrames ranks stored frame embeddings against queryVec:
// cosine similarity (a dot product, vectors are pre-normalized), drop
// everything below threshold, order by similarity descending, truncate to
// limit. TotalFound counts qualifying candidates before truncation. Elapsed
// wall-clock time is reported in milliseconds. Zero qualifying candidates is
// not an error.
func SearchSimilarFrames(ctx context.Context, src CandidateSource, queryVec []float32, f Filters, limit int, threshold float32) (*Result, error) {
	if src == nil {
		return nil, fmt.Errorf("candidate source is required")
	}
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if limit <= 0 {
		limit = 20
	}

	start := time.Now()

	candidates, err := src.CandidateFrames(ctx, queryVec, f, limit*oversampleFactor)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	hits := make([]FrameHit, 0, len(candidates))
	for _, c := range candidates {
		sim := vecmath.Dot(queryVec, c.Embedding)
		if sim < threshold {
			continue
		}
		hits = append(hits, FrameHit{
			FrameID:       c.FrameID,
			VideoID:       c.VideoID,
			Timestamp:     c.Timestamp,
			Similarity:    sim,
			FramePath:     c.FramePath,
			Description:   c.Description,
			Metadata:      c.Metadata,
			VideoFilename: c.VideoFilename,
			VideoDuration: c.VideoDuration,
		})
	}

	// Ties break arbitrarily; stable order is not part of the contract.
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	total := len(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}

	return &Result{
		Hits:         hits,
		TotalFound:   total,
		SearchTimeMS: time.Since(start).Milliseconds(),
	}, nil
}
