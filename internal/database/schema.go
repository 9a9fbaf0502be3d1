package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// postgresSchema holds the relational side: session and device tokens.
// user_id is the hex form of the owner's Mongo ObjectID.
var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id     TEXT NOT NULL,
		token_hash  TEXT NOT NULL UNIQUE,
		expires_at  TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked_at  TIMESTAMPTZ,
		replaced_by UUID,
		device_info TEXT,
		ip_address  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id) WHERE revoked_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON refresh_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS device_tokens (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL,
		token      TEXT NOT NULL UNIQUE,
		platform   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_tokens_user ON device_tokens (user_id)`,
}

// EnsureSchema creates the Postgres tables if they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range postgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
