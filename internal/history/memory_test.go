package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/wanwindy/ZhiYuAI/pkg/types"
)

func TestMemoryStore_Utterances(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.LogUtterance(ctx, Utterance{
			SessionID: "s1",
			Role:      "user",
			Text:      fmt.Sprintf("line %d", i),
		})
		if err != nil {
			t.Fatalf("LogUtterance: %v", err)
		}
	}
	if err := s.LogUtterance(ctx, Utterance{SessionID: "s2", Role: "user", Text: "other session"}); err != nil {
		t.Fatalf("LogUtterance: %v", err)
	}

	got, err := s.RecentUtterances(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("RecentUtterances: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Chronological order, last three entries.
	if got[0].Text != "line 2" || got[2].Text != "line 4" {
		t.Errorf("unexpected window: first=%q last=%q", got[0].Text, got[2].Text)
	}
	for _, u := range got {
		if u.SessionID != "s1" {
			t.Errorf("utterance leaked from session %q", u.SessionID)
		}
	}
}

func TestMemoryStore_RecentUtterances_NoLimit(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := s.LogUtterance(ctx, Utterance{SessionID: "s1", Text: "x"}); err != nil {
			t.Fatalf("LogUtterance: %v", err)
		}
	}

	got, err := s.RecentUtterances(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("RecentUtterances: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestMemoryStore_TranslationCache(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := s.CachedTranslation(ctx, "hello", "zh"); err != nil || ok {
		t.Fatalf("empty store lookup: ok=%v err=%v", ok, err)
	}

	err := s.LogTranslation(ctx, Translation{
		SourceText:     "hello",
		TargetLanguage: "zh",
		TranslatedText: "你好",
	})
	if err != nil {
		t.Fatalf("LogTranslation: %v", err)
	}

	text, ok, err := s.CachedTranslation(ctx, "hello", "zh")
	if err != nil {
		t.Fatalf("CachedTranslation: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if text != "你好" {
		t.Errorf("cached text = %q, want 你好", text)
	}

	// Different target language misses.
	if _, ok, _ := s.CachedTranslation(ctx, "hello", "ja"); ok {
		t.Error("lookup with different language should miss")
	}
}

func TestMemoryStore_TranslationCache_NewestWins(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.LogTranslation(ctx, Translation{SourceText: "hi", TargetLanguage: "zh", TranslatedText: "old"})
	_ = s.LogTranslation(ctx, Translation{SourceText: "hi", TargetLanguage: "zh", TranslatedText: "new"})

	text, ok, err := s.CachedTranslation(ctx, "hi", "zh")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if text != "new" {
		t.Errorf("cached text = %q, want new", text)
	}
}

func TestMemoryStore_Scenes(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.LogScene(ctx, SceneRecord{
		SessionID: "s1",
		Snapshot: types.SceneSnapshot{
			ScenarioName: "business_meeting",
			Confidence:   0.9,
			Summary:      "Conference room with several participants.",
		},
	})
	if err != nil {
		t.Fatalf("LogScene: %v", err)
	}

	scenes := s.Scenes()
	if len(scenes) != 1 {
		t.Fatalf("len = %d, want 1", len(scenes))
	}
	if scenes[0].Snapshot.ScenarioName != "business_meeting" {
		t.Errorf("scenario = %q", scenes[0].Snapshot.ScenarioName)
	}
	if scenes[0].Timestamp.IsZero() {
		t.Error("timestamp should be filled in")
	}
}

func TestMemoryStore_BoundedGrowth(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < maxEntriesPerKind+10; i++ {
		if err := s.LogUtterance(ctx, Utterance{SessionID: "s1", Text: fmt.Sprintf("%d", i)}); err != nil {
			t.Fatalf("LogUtterance: %v", err)
		}
	}

	got, err := s.RecentUtterances(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("RecentUtterances: %v", err)
	}
	if len(got) != maxEntriesPerKind {
		t.Errorf("len = %d, want %d", len(got), maxEntriesPerKind)
	}
	// The oldest entries were discarded.
	if got[0].Text != "10" {
		t.Errorf("first retained entry = %q, want 10", got[0].Text)
	}
}
