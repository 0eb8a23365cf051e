package pg

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/raresift/searchcore/search"
)

var _ search.CandidateSource = (*Store)(nil)

// CandidateFrames runs a KNN query over stored frame embeddings, applying the
// user scope and metadata filters, ordered by cosine distance. The embedding
// column holds unit vectors, so `<=>` ordering matches dot-product ranking.
func (s *Store) CandidateFrames(ctx context.Context, queryVec []float32, f search.Filters, fetchLimit int) ([]search.Candidate, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if fetchLimit <= 0 {
		return []search.Candidate{}, nil
	}

	where := "WHERE f.embedding IS NOT NULL"
	var args []any
	argN := 1

	if f.UserID != 0 {
		where += fmt.Sprintf(" AND v.user_id = $%d", argN)
		args = append(args, f.UserID)
		argN++
	}
	if f.TimeOfDay != "" {
		where += fmt.Sprintf(" AND v.time_of_day = $%d", argN)
		args = append(args, f.TimeOfDay)
		argN++
	}
	if f.Weather != "" {
		where += fmt.Sprintf(" AND v.weather = $%d", argN)
		args = append(args, f.Weather)
		argN++
	}
	if f.Category != "" {
		where += fmt.Sprintf(" AND v.category = $%d", argN)
		args = append(args, f.Category)
		argN++
	}

	sql := fmt.Sprintf(`
		SELECT
			f.id,
			f.video_id,
			f.ts,
			f.embedding,
			f.frame_path,
			COALESCE(f.description, ''),
			COALESCE(v.weather, ''),
			COALESCE(v.time_of_day, ''),
			v.filename,
			v.duration
		FROM frames f
		JOIN videos v ON v.id = f.video_id
		%s
		ORDER BY f.embedding <=> $%d
		LIMIT $%d
	`, where, argN, argN+1)
	args = append(args, pgvector.NewVector(queryVec), fetchLimit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []search.Candidate
	for rows.Next() {
		var c search.Candidate
		var emb pgvector.Vector
		var weather, timeOfDay string
		if err := rows.Scan(&c.FrameID, &c.VideoID, &c.Timestamp, &emb, &c.FramePath, &c.Description, &weather, &timeOfDay, &c.VideoFilename, &c.VideoDuration); err != nil {
			return nil, err
		}
		c.Embedding = emb.Slice()
		c.Metadata = map[string]string{}
		if weather != "" {
			c.Metadata["weather"] = weather
		}
		if timeOfDay != "" {
			c.Metadata["time_of_day"] = timeOfDay
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateFrameEmbedding stores the embedding and the vision description for a
// frame. Regeneration replaces the whole vector; it never mutates dims in
// place.
func (s *Store) UpdateFrameEmbedding(ctx context.Context, frameID int64, description string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE frames
		SET embedding = $2, description = $3, embedded_at = now()
		WHERE id = $1
	`, frameID, pgvector.NewVector(embedding), description)
	return err
}

// PendingFrame is a frame awaiting embedding generation.
type PendingFrame struct {
	ID        int64
	VideoID   int64
	FramePath string
}

// PendingFrames returns up to limit frames that do not have an embedding yet,
// oldest first.
func (s *Store) PendingFrames(ctx context.Context, limit int) ([]PendingFrame, error) {
	if limit <= 0 {
		return []PendingFrame{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, video_id, frame_path
		FROM frames
		WHERE embedding IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingFrame
	for rows.Next() {
		var p PendingFrame
		if err := rows.Scan(&p.ID, &p.VideoID, &p.FramePath); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
