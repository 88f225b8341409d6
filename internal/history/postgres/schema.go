package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id         BIGSERIAL    PRIMARY KEY,
    session_id TEXT         NOT NULL,
    role       TEXT         NOT NULL DEFAULT '',
    text       TEXT         NOT NULL,
    timestamp  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_session_timestamp
    ON utterances (session_id, timestamp);
`

const ddlTranslations = `
CREATE TABLE IF NOT EXISTS translations (
    id              BIGSERIAL    PRIMARY KEY,
    session_id      TEXT         NOT NULL DEFAULT '',
    source_text     TEXT         NOT NULL,
    target_language TEXT         NOT NULL,
    translated_text TEXT         NOT NULL,
    timestamp       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_translations_lookup
    ON translations (source_text, target_language, timestamp DESC);
`

const ddlScenes = `
CREATE TABLE IF NOT EXISTS scene_analyses (
    id            BIGSERIAL    PRIMARY KEY,
    session_id    TEXT         NOT NULL DEFAULT '',
    scenario_name TEXT         NOT NULL,
    confidence    REAL         NOT NULL DEFAULT 0,
    summary       TEXT         NOT NULL DEFAULT '',
    settings      JSONB        NOT NULL DEFAULT '{}',
    timestamp     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scene_analyses_session
    ON scene_analyses (session_id, timestamp);
`

// Migrate creates or ensures all required database tables exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlUtterances,
		ddlTranslations,
		ddlScenes,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
