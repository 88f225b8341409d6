// Package postgres provides the PostgreSQL-backed interaction-history store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wanwindy/ZhiYuAI/internal/history"
	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// Compile-time interface check.
var _ history.Store = (*Store)(nil)

// Store is the PostgreSQL-backed [history.Store]. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn
// and runs [Migrate] to ensure all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// LogUtterance implements [history.Store].
func (s *Store) LogUtterance(ctx context.Context, u history.Utterance) error {
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}

	const q = `
		INSERT INTO utterances (session_id, role, text, timestamp)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, u.SessionID, u.Role, u.Text, u.Timestamp)
	if err != nil {
		return fmt.Errorf("history store: log utterance: %w", err)
	}
	return nil
}

// LogTranslation implements [history.Store].
func (s *Store) LogTranslation(ctx context.Context, tr history.Translation) error {
	const q = `
		INSERT INTO translations (session_id, source_text, target_language, translated_text)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, tr.SessionID, tr.SourceText, tr.TargetLanguage, tr.TranslatedText)
	if err != nil {
		return fmt.Errorf("history store: log translation: %w", err)
	}
	return nil
}

// LogScene implements [history.Store].
func (s *Store) LogScene(ctx context.Context, rec history.SceneRecord) error {
	settings, err := json.Marshal(rec.Snapshot.RecommendedSettings)
	if err != nil {
		return fmt.Errorf("history store: encode settings: %w", err)
	}

	const q = `
		INSERT INTO scene_analyses (session_id, scenario_name, confidence, summary, settings)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.pool.Exec(ctx, q,
		rec.SessionID,
		rec.Snapshot.ScenarioName,
		rec.Snapshot.Confidence,
		rec.Snapshot.Summary,
		settings,
	)
	if err != nil {
		return fmt.Errorf("history store: log scene: %w", err)
	}
	return nil
}

// RecentUtterances implements [history.Store].
func (s *Store) RecentUtterances(ctx context.Context, sessionID string, limit int) ([]history.Utterance, error) {
	const q = `
		SELECT session_id, role, text, timestamp
		FROM (
		    SELECT session_id, role, text, timestamp
		    FROM   utterances
		    WHERE  session_id = $1
		    ORDER  BY timestamp DESC
		    LIMIT  $2
		) latest
		ORDER BY timestamp`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: recent utterances: %w", err)
	}
	defer rows.Close()

	var out []history.Utterance
	for rows.Next() {
		var u history.Utterance
		if err := rows.Scan(&u.SessionID, &u.Role, &u.Text, &u.Timestamp); err != nil {
			return nil, fmt.Errorf("history store: scan utterance: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history store: iterate utterances: %w", err)
	}
	return out, nil
}

// CachedTranslation implements [history.Store]. The newest stored
// translation wins when the same text was translated more than once.
func (s *Store) CachedTranslation(ctx context.Context, sourceText, targetLanguage string) (string, bool, error) {
	const q = `
		SELECT translated_text
		FROM   translations
		WHERE  source_text = $1 AND target_language = $2
		ORDER  BY timestamp DESC
		LIMIT  1`

	var text string
	err := s.pool.QueryRow(ctx, q, sourceText, targetLanguage).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("history store: cached translation: %w", err)
	}
	return text, true, nil
}

// SceneHistory returns the most recent scene analyses for sessionID, newest
// first, up to limit entries.
func (s *Store) SceneHistory(ctx context.Context, sessionID string, limit int) ([]history.SceneRecord, error) {
	const q = `
		SELECT session_id, scenario_name, confidence, summary, settings, timestamp
		FROM   scene_analyses
		WHERE  session_id = $1
		ORDER  BY timestamp DESC
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: scene history: %w", err)
	}
	defer rows.Close()

	var out []history.SceneRecord
	for rows.Next() {
		var (
			rec      history.SceneRecord
			settings []byte
		)
		if err := rows.Scan(&rec.SessionID, &rec.Snapshot.ScenarioName, &rec.Snapshot.Confidence,
			&rec.Snapshot.Summary, &settings, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("history store: scan scene: %w", err)
		}
		var rs types.RecommendedSettings
		if err := json.Unmarshal(settings, &rs); err != nil {
			return nil, fmt.Errorf("history store: decode settings: %w", err)
		}
		rec.Snapshot.RecommendedSettings = rs
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history store: iterate scenes: %w", err)
	}
	return out, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
