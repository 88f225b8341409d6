// Package history defines the interaction-history store: a durable log of
// utterances, translations, and scene analyses produced by live sessions and
// the REST endpoints.
//
// Two implementations exist: [MemoryStore] for single-process deployments and
// tests, and the PostgreSQL-backed store in the postgres subpackage.
package history

import (
	"context"
	"time"

	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

// Utterance is one line of dialogue, either recognized speech or an
// assistant reply.
type Utterance struct {
	SessionID string
	Role      string
	Text      string
	Timestamp time.Time
}

// Translation records one source/target text pair. Stored translations
// double as a cache for repeated requests.
type Translation struct {
	SessionID      string
	SourceText     string
	TargetLanguage string
	TranslatedText string
	Timestamp      time.Time
}

// SceneRecord is one visual scene analysis result.
type SceneRecord struct {
	SessionID string
	Snapshot  types.SceneSnapshot
	Timestamp time.Time
}

// Store is the interaction-history persistence abstraction.
// All methods are safe for concurrent use.
type Store interface {
	// LogUtterance appends one dialogue line.
	LogUtterance(ctx context.Context, u Utterance) error

	// LogTranslation appends one translation result.
	LogTranslation(ctx context.Context, tr Translation) error

	// LogScene appends one scene analysis.
	LogScene(ctx context.Context, rec SceneRecord) error

	// RecentUtterances returns up to limit utterances for sessionID,
	// ordered chronologically (oldest first).
	RecentUtterances(ctx context.Context, sessionID string, limit int) ([]Utterance, error)

	// CachedTranslation looks up a previously stored translation of
	// sourceText into targetLanguage. The second return value reports
	// whether a cached entry was found.
	CachedTranslation(ctx context.Context, sourceText, targetLanguage string) (string, bool, error)

	// Close releases any resources held by the store.
	Close()
}
