package history

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// maxEntriesPerKind bounds in-memory growth for long-running processes.
// Oldest entries are discarded first.
const maxEntriesPerKind = 10000

// MemoryStore is an in-process [Store]. It is the default backend and the
// one used in tests.
type MemoryStore struct {
	mu           sync.Mutex
	utterances   []Utterance
	translations []Translation
	scenes       []SceneRecord

	// cache indexes translations by source text and target language.
	cache map[cacheKey]string
}

type cacheKey struct {
	source   string
	language string
}

// NewMemoryStore returns an empty, ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: make(map[cacheKey]string)}
}

// LogUtterance implements [Store].
func (s *MemoryStore) LogUtterance(_ context.Context, u Utterance) error {
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.utterances = appendBounded(s.utterances, u)
	return nil
}

// LogTranslation implements [Store].
func (s *MemoryStore) LogTranslation(_ context.Context, tr Translation) error {
	if tr.Timestamp.IsZero() {
		tr.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations = appendBounded(s.translations, tr)
	s.cache[cacheKey{source: tr.SourceText, language: tr.TargetLanguage}] = tr.TranslatedText
	return nil
}

// LogScene implements [Store].
func (s *MemoryStore) LogScene(_ context.Context, rec SceneRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = appendBounded(s.scenes, rec)
	return nil
}

// RecentUtterances implements [Store].
func (s *MemoryStore) RecentUtterances(_ context.Context, sessionID string, limit int) ([]Utterance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Utterance
	for _, u := range s.utterances {
		if u.SessionID == sessionID {
			out = append(out, u)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// CachedTranslation implements [Store].
func (s *MemoryStore) CachedTranslation(_ context.Context, sourceText, targetLanguage string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.cache[cacheKey{source: sourceText, language: targetLanguage}]
	return text, ok, nil
}

// Scenes returns a copy of all recorded scene analyses. Used in tests.
func (s *MemoryStore) Scenes() []SceneRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SceneRecord, len(s.scenes))
	copy(out, s.scenes)
	return out
}

// Close implements [Store]. It is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// appendBounded appends v to entries, discarding the oldest entry when the
// slice is at capacity.
func appendBounded[T any](entries []T, v T) []T {
	if len(entries) >= maxEntriesPerKind {
		entries = entries[1:]
	}
	return append(entries, v)
}
