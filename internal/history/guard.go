package history

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Guard wraps a [Store] and makes all write operations non-fatal. If the
// underlying store fails, operations return defaults and log warnings
// instead of propagating errors.
//
// This allows live sessions to continue operating even when the history
// backend is temporarily unavailable (e.g., database restart, network
// partition). The IsDegraded method reports whether the store is currently
// experiencing failures.
//
// All methods are safe for concurrent use.
type Guard struct {
	store    Store
	degraded atomic.Bool
}

// Compile-time interface check.
var _ Store = (*Guard)(nil)

// NewGuard creates a new [Guard] wrapping the given store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// LogUtterance attempts to write one dialogue line. On failure the error is
// logged and swallowed; the store is marked as degraded. On success the
// degraded flag is cleared.
func (g *Guard) LogUtterance(ctx context.Context, u Utterance) error {
	if err := g.store.LogUtterance(ctx, u); err != nil {
		g.degraded.Store(true)
		slog.Warn("history guard: LogUtterance failed, swallowing error",
			"session_id", u.SessionID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// LogTranslation attempts to write one translation. Failures are logged
// and swallowed.
func (g *Guard) LogTranslation(ctx context.Context, tr Translation) error {
	if err := g.store.LogTranslation(ctx, tr); err != nil {
		g.degraded.Store(true)
		slog.Warn("history guard: LogTranslation failed, swallowing error",
			"target_language", tr.TargetLanguage,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// LogScene attempts to write one scene analysis. Failures are logged
// and swallowed.
func (g *Guard) LogScene(ctx context.Context, rec SceneRecord) error {
	if err := g.store.LogScene(ctx, rec); err != nil {
		g.degraded.Store(true)
		slog.Warn("history guard: LogScene failed, swallowing error",
			"session_id", rec.SessionID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// RecentUtterances attempts to read recent entries. On failure an empty
// slice is returned and the store is marked as degraded.
func (g *Guard) RecentUtterances(ctx context.Context, sessionID string, limit int) ([]Utterance, error) {
	entries, err := g.store.RecentUtterances(ctx, sessionID, limit)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("history guard: RecentUtterances failed, returning empty",
			"session_id", sessionID,
			"error", err,
		)
		return nil, nil
	}
	g.degraded.Store(false)
	return entries, nil
}

// CachedTranslation attempts a cache lookup. On failure a miss is reported
// and the store is marked as degraded.
func (g *Guard) CachedTranslation(ctx context.Context, sourceText, targetLanguage string) (string, bool, error) {
	text, ok, err := g.store.CachedTranslation(ctx, sourceText, targetLanguage)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("history guard: CachedTranslation failed, reporting miss",
			"target_language", targetLanguage,
			"error", err,
		)
		return "", false, nil
	}
	g.degraded.Store(false)
	return text, ok, nil
}

// IsDegraded reports whether the store is currently operating in degraded
// mode (i.e., the most recent operation on the underlying store failed).
func (g *Guard) IsDegraded() bool {
	return g.degraded.Load()
}

// Close closes the wrapped store.
func (g *Guard) Close() {
	g.store.Close()
}
