package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateStoryViewers, downCreateStoryViewers)
}

func upCreateStoryViewers(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE story_viewers (
		id         SERIAL PRIMARY KEY,
		story_id   VARCHAR NOT NULL REFERENCES stories (id) ON DELETE CASCADE,
		viewer_key VARCHAR NOT NULL,
		viewed_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (story_id, viewer_key)
	);
	CREATE INDEX idx_story_viewers_story ON story_viewers (story_id, viewed_at DESC);
	`)
	return err
}

func downCreateStoryViewers(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS story_viewers;`)
	return err
}
