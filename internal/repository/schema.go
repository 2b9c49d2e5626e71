package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// The unique index on scheduled_time is what makes slot assignment safe
// against concurrent creators.
const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	image_prompt TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	scheduled_time TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'scheduled',
	targets JSONB NOT NULL DEFAULT '[]',
	publication_results JSONB,
	published_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS posts_scheduled_time_key ON posts (scheduled_time);
CREATE INDEX IF NOT EXISTS posts_status_scheduled_time_idx ON posts (status, scheduled_time);
`

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
