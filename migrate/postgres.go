// Package migrate bootstraps the Postgres schema the search core reads and
// writes: videos, frames (with a pgvector embedding column), and the search
// audit log.
package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplyPostgres creates the vector extension, tables, and indexes if they do
// not exist. dims is the embedding dimensionality; it is fixed per column, so
// changing models with different dims is a schema migration, not an update.
func ApplyPostgres(ctx context.Context, pool *pgxpool.Pool, dims int) error {
	if pool == nil {
		return fmt.Errorf("pool is required")
	}
	if dims <= 0 {
		return fmt.Errorf("dims must be > 0")
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS videos (
			id          BIGSERIAL PRIMARY KEY,
			user_id     BIGINT,
			filename    TEXT NOT NULL,
			duration    DOUBLE PRECISION NOT NULL DEFAULT 0,
			weather     TEXT,
			time_of_day TEXT,
			location    TEXT,
			category    TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS frames (
			id          BIGSERIAL PRIMARY KEY,
			video_id    BIGINT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
			ts          DOUBLE PRECISION NOT NULL,
			frame_path  TEXT NOT NULL,
			description TEXT,
			embedding   vector(%d),
			embedded_at TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS searches (
			id             UUID PRIMARY KEY,
			user_id        BIGINT,
			query          TEXT NOT NULL,
			query_type     TEXT NOT NULL,
			embedding      vector(%d),
			filters        JSONB NOT NULL DEFAULT '{}'::jsonb,
			result_count   INTEGER NOT NULL DEFAULT 0,
			search_time_ms BIGINT NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`, dims, dims)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	idx := `
		CREATE INDEX IF NOT EXISTS idx_frames_video_id ON frames(video_id);
		CREATE INDEX IF NOT EXISTS idx_frames_pending ON frames(id) WHERE embedding IS NULL;
		CREATE INDEX IF NOT EXISTS idx_frames_embedding_cosine
			ON frames USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
		CREATE INDEX IF NOT EXISTS idx_searches_user_id ON searches(user_id);
	`
	if _, err := pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}
