package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateStories, downCreateStories)
}

func upCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE stories (
		id                VARCHAR PRIMARY KEY,
		wallet_address    VARCHAR NOT NULL,
		user_id           VARCHAR NOT NULL DEFAULT '',
		created_at        TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		media_type        VARCHAR(16) NOT NULL CHECK (media_type IN ('image', 'video')),
		media_url         TEXT NOT NULL,
		media_duration_ms BIGINT NOT NULL DEFAULT 0,
		display           JSONB NOT NULL DEFAULT '{}'::jsonb,
		tags              TEXT[] NOT NULL DEFAULT '{}'
	);
	CREATE INDEX idx_stories_wallet_created ON stories (wallet_address, created_at DESC);
	CREATE INDEX idx_stories_created ON stories (created_at DESC);
	CREATE INDEX idx_stories_tags ON stories USING GIN (tags);
	`)
	return err
}

func downCreateStories(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS stories;`)
	return err
}
