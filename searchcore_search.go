// Package searchcore is the embedding-backed similarity search core for
// driving-footage frames: a rate-limited encoder for text and image queries,
// adaptive similarity thresholds, and ranked nearest-neighbor search over
// stored frame embeddings.
package searchcore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raresift/searchcore/embedder"
	"github.com/raresift/searchcore/ratelimit"
	"github.com/raresift/searchcore/search"
)

// defaultImageThreshold applies to image searches without an explicit
// threshold; there is no query text to classify adaptively.
const defaultImageThreshold float32 = 0.35

// Store is what the core needs from the storage layer: candidate reads plus
// the search audit log.
type Store interface {
	search.CandidateSource
	InsertSearchRecord(ctx context.Context, rec search.Record) error
}

// Options wires a Service. Encoder and Store are required; Limiter is the
// same instance the encoder was built with and only feeds the status
// endpoint; a nil Logger discards.
type Options struct {
	Encoder embedder.Encoder
	Store   Store
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Service is the entrypoint the HTTP layer calls.
type Service struct {
	enc     embedder.Encoder
	store   Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewService validates opts and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		enc:     opts.Encoder,
		store:   opts.Store,
		limiter: opts.Limiter,
		logger:  logger,
	}, nil
}

// SearchRequest carries the caller's scope, filters, and optional explicit
// threshold (0 means unset).
type SearchRequest struct {
	UserID    int64
	Limit     int
	Threshold float32
	TimeOfDay string
	Weather   string
	Category  string
}

func (r SearchRequest) filters() search.Filters {
	return search.Filters{
		UserID:    r.UserID,
		TimeOfDay: r.TimeOfDay,
		Weather:   r.Weather,
		Category:  r.Category,
	}
}

// SearchResponse annotates the ranked hits with the query and the filters
// that were applied.
type SearchResponse struct {
	Query        string            `json:"query,omitempty"`
	QueryType    search.QueryType  `json:"query_type"`
	Threshold    float32           `json:"threshold"`
	Filters      search.Filters    `json:"filters"`
	Hits         []search.FrameHit `json:"hits"`
	TotalFound   int               `json:"total_found"`
	SearchTimeMS int64             `json:"search_time_ms"`
}

// SearchByText embeds the query text (with traffic-query enhancement) and
// returns the top matching frames. The similarity cutoff is the adaptive
// threshold unless the caller supplied one at or above 0.30. Rate-limit,
// upstream, and encoding failures propagate with their kind intact; a failed
// audit-record write is logged and never surfaced.
func (s *Service) SearchByText(ctx context.Context, query string, req SearchRequest) (*SearchResponse, error) {
	threshold := search.EffectiveThreshold(query, req.Threshold)

	vec, err := s.enc.EncodeText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	return s.run(ctx, query, search.QueryTypeText, vec, req, threshold)
}

// SearchByImage embeds the image (vision description, then text embedding)
// and returns the top matching frames. Without an explicit threshold a fixed
// default applies.
func (s *Service) SearchByImage(ctx context.Context, img embedder.Image, req SearchRequest) (*SearchResponse, error) {
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = defaultImageThreshold
	}

	vec, err := s.enc.EncodeImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return s.run(ctx, "", search.QueryTypeImage, vec, req, threshold)
}

func (s *Service) run(ctx context.Context, query string, qt search.QueryType, vec []float32, req SearchRequest, threshold float32) (*SearchResponse, error) {
	filters := req.filters()

	res, err := search.SearchSimilarFrames(ctx, s.store, vec, filters, req.Limit, threshold)
	if err != nil {
		return nil, err
	}

	// Best-effort audit record: a persistence failure must not alter the
	// result already computed.
	rec := search.Record{
		UserID:       req.UserID,
		Query:        query,
		QueryType:    qt,
		Embedding:    vec,
		Filters:      filters,
		ResultCount:  res.TotalFound,
		SearchTimeMS: res.SearchTimeMS,
	}
	if err := s.store.InsertSearchRecord(ctx, rec); err != nil {
		s.logger.Warn("search record not persisted",
			"query_type", string(qt),
			"error", err,
		)
	}

	return &SearchResponse{
		Query:        query,
		QueryType:    qt,
		Threshold:    threshold,
		Filters:      filters,
		Hits:         res.Hits,
		TotalFound:   res.TotalFound,
		SearchTimeMS: res.SearchTimeMS,
	}, nil
}

// RateLimitStatus exposes the limiter snapshot for the observability
// endpoint. Zero value when no limiter was wired.
func (s *Service) RateLimitStatus() ratelimit.Status {
	if s.limiter == nil {
		return ratelimit.Status{}
	}
	return s.limiter.Status()
}
