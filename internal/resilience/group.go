package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every entry in a [Group] failed or was
// rejected by its breaker.
var ErrExhausted = errors.New("resilience: all providers failed")

type entry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Group chains instances of one provider type behind per-entry breakers.
// Entries are tried in registration order; the first healthy one that
// succeeds wins. A single-entry Group is just a circuit-broken provider.
type Group[T any] struct {
	entries  []entry[T]
	template BreakerConfig
}

// NewGroup creates a Group with primary as its first entry. template
// supplies the breaker tuning for every entry; the Label is set per entry.
func NewGroup[T any](name string, primary T, template BreakerConfig) *Group[T] {
	g := &Group[T]{template: template}
	g.Add(name, primary)
	return g
}

// Add appends a fallback entry.
func (g *Group[T]) Add(name string, value T) {
	cfg := g.template
	cfg.Label = name
	g.entries = append(g.entries, entry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Do tries fn against each entry until one succeeds. Entries with an open
// breaker are skipped without a call. The final error wraps [ErrExhausted]
// together with the last underlying failure.
func Do[T, R any](g *Group[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error = ErrOpen
	)
	for i := range g.entries {
		e := &g.entries[i]
		if !e.breaker.Allow() {
			slog.Debug("skipping provider, breaker open", "provider", e.name)
			continue
		}
		result, err := fn(e.value)
		e.breaker.Report(err)
		if err == nil {
			return result, nil
		}
		lastErr = err
		slog.Warn("provider call failed", "provider", e.name, "error", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}
