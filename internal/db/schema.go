package db

import "context"

// Schema setup is idempotent and runs on every start, the same way the
// original deployment bootstrapped its search indexes.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS geo_sessions (
		id UUID PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		chat_id BIGINT NOT NULL,
		msg_id BIGINT NOT NULL,
		chat_kind TEXT NOT NULL,
		chat_label TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		length_m DOUBLE PRECISION NOT NULL DEFAULT 0,
		duration_s DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_update TIMESTAMPTZ NOT NULL,
		last_lat DOUBLE PRECISION NOT NULL,
		last_lon DOUBLE PRECISION NOT NULL,
		segment_idx INT NOT NULL DEFAULT 1,
		segment_points INT NOT NULL DEFAULT 0,
		UNIQUE (owner_id, chat_id, msg_id)
	)`,
	`CREATE INDEX IF NOT EXISTS geo_sessions_owner_started
		ON geo_sessions (owner_id, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS geo_points (
		id BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES geo_sessions (id),
		owner_id BIGINT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		segment_idx INT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS geo_points_session_ts
		ON geo_points (session_id, ts)`,
}

func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
