package session

import (
	"context"
	"errors"
	"testing"

	visionmock "github.com/wanwindy/ZhiYuAI/pkg/provider/vision/mock"
)

func TestSceneCacheDeduplicatesIdenticalFrames(t *testing.T) {
	provider := &visionmock.Provider{}
	cache := NewSceneCache(provider)

	snap, cached, err := cache.Update(context.Background(), "https://cam/frame1.jpg")
	if err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if cached {
		t.Error("first analysis reported as cached")
	}
	if snap.ScenarioName != visionmock.DefaultSnapshot.ScenarioName {
		t.Errorf("scenario = %q", snap.ScenarioName)
	}

	snap2, cached, err := cache.Update(context.Background(), "https://cam/frame1.jpg")
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if !cached {
		t.Error("repeated reference not served from cache")
	}
	if snap2 != snap {
		t.Errorf("cached snapshot differs: %#v vs %#v", snap2, snap)
	}
	if provider.CallCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.CallCount())
	}

	// A distinct reference analyzes again.
	if _, cached, _ = cache.Update(context.Background(), "https://cam/frame2.jpg"); cached {
		t.Error("distinct reference reported as cached")
	}
	if provider.CallCount() != 2 {
		t.Errorf("provider called %d times, want 2", provider.CallCount())
	}
}

func TestSceneCacheFailureKeepsSnapshot(t *testing.T) {
	provider := &visionmock.Provider{}
	cache := NewSceneCache(provider)

	if _, _, err := cache.Update(context.Background(), "ref-a"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := cache.Summary()
	if want == "" {
		t.Fatal("no summary after successful analysis")
	}

	provider.Err = errors.New("vision unavailable")
	if _, _, err := cache.Update(context.Background(), "ref-b"); err == nil {
		t.Fatal("Update with failing provider succeeded")
	}
	if got := cache.Summary(); got != want {
		t.Errorf("summary after failure = %q, want untouched %q", got, want)
	}

	// The failed reference was not cached: a retry hits the provider again.
	provider.Err = nil
	if _, cached, _ := cache.Update(context.Background(), "ref-b"); cached {
		t.Error("failed reference served from cache on retry")
	}
}

func TestSceneCacheSummaryEmptyBeforeFirstFrame(t *testing.T) {
	cache := NewSceneCache(&visionmock.Provider{})
	if got := cache.Summary(); got != "" {
		t.Errorf("Summary = %q, want empty", got)
	}
}
