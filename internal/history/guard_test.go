package history

import (
	"context"
	"errors"
	"testing"
)

// failingStore returns errFail from every operation.
type failingStore struct{}

var errFail = errors.New("backend down")

func (failingStore) LogUtterance(context.Context, Utterance) error     { return errFail }
func (failingStore) LogTranslation(context.Context, Translation) error { return errFail }
func (failingStore) LogScene(context.Context, SceneRecord) error       { return errFail }
func (failingStore) RecentUtterances(context.Context, string, int) ([]Utterance, error) {
	return nil, errFail
}
func (failingStore) CachedTranslation(context.Context, string, string) (string, bool, error) {
	return "", false, errFail
}
func (failingStore) Close() {}

func TestGuard_SwallowsWriteErrors(t *testing.T) {
	t.Parallel()
	g := NewGuard(failingStore{})
	ctx := context.Background()

	if err := g.LogUtterance(ctx, Utterance{SessionID: "s1"}); err != nil {
		t.Errorf("LogUtterance should swallow errors, got %v", err)
	}
	if err := g.LogTranslation(ctx, Translation{}); err != nil {
		t.Errorf("LogTranslation should swallow errors, got %v", err)
	}
	if err := g.LogScene(ctx, SceneRecord{}); err != nil {
		t.Errorf("LogScene should swallow errors, got %v", err)
	}
	if !g.IsDegraded() {
		t.Error("guard should report degraded after failures")
	}
}

func TestGuard_ReadsReturnDefaults(t *testing.T) {
	t.Parallel()
	g := NewGuard(failingStore{})
	ctx := context.Background()

	entries, err := g.RecentUtterances(ctx, "s1", 10)
	if err != nil {
		t.Errorf("RecentUtterances should swallow errors, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty result, got %d entries", len(entries))
	}

	_, ok, err := g.CachedTranslation(ctx, "hello", "zh")
	if err != nil {
		t.Errorf("CachedTranslation should swallow errors, got %v", err)
	}
	if ok {
		t.Error("failed lookup should report a miss")
	}
}

func TestGuard_RecoversFromDegraded(t *testing.T) {
	t.Parallel()
	g := NewGuard(failingStore{})
	ctx := context.Background()

	_ = g.LogUtterance(ctx, Utterance{})
	if !g.IsDegraded() {
		t.Fatal("expected degraded after failure")
	}

	// Swap in a healthy store via a fresh guard over MemoryStore to verify
	// the flag clears on success.
	healthy := NewGuard(NewMemoryStore())
	_ = healthy.LogUtterance(ctx, Utterance{SessionID: "s1"})
	if healthy.IsDegraded() {
		t.Error("healthy store should not be degraded")
	}
}
