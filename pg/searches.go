package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/raresift/searchcore/search"
)

// InsertSearchRecord appends one immutable audit row for a completed search.
func (s *Store) InsertSearchRecord(ctx context.Context, rec search.Record) error {
	if s.pool == nil {
		return fmt.Errorf("pool is required")
	}

	filters, err := json.Marshal(rec.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	var userID any
	if rec.UserID != 0 {
		userID = rec.UserID
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO searches
			(id, user_id, query, query_type, embedding, filters, result_count, search_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`,
		uuid.New(),
		userID,
		rec.Query,
		string(rec.QueryType),
		pgvector.NewVector(rec.Embedding),
		filters,
		rec.ResultCount,
		rec.SearchTimeMS,
	)
	return err
}
