package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_key   TEXT PRIMARY KEY,
	active_recipe JSONB,
	current_step  INT NOT NULL DEFAULT -1,
	preferences   JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS turns (
	id          TEXT PRIMARY KEY,
	session_key TEXT NOT NULL REFERENCES sessions(session_key) ON DELETE CASCADE,
	role        TEXT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS turns_session_key_id_idx ON turns (session_key, id);
`

// Migrate applies the schema. ULID turn ids sort lexicographically in
// insertion order, so (session_key, id) doubles as the chronological index.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
