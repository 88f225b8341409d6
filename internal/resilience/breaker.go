// Package resilience shields the pipeline from failing upstream providers.
//
// [Breaker] is a three-state circuit breaker (closed → open → half-open)
// sized for the per-request provider calls of this server: a provider that
// keeps failing is cut off for a cooldown instead of adding its timeout to
// every dialogue cycle. [Group] composes several instances of one provider
// kind with per-entry breakers so an unhealthy primary is bypassed.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned without calling the provider while a breaker is
// cooling down.
var ErrOpen = errors.New("resilience: breaker open")

// BreakerConfig tunes a [Breaker]. Zero values select the defaults noted on
// each field.
type BreakerConfig struct {
	// Label names the protected provider in log output.
	Label string

	// Threshold is the consecutive-failure count that opens the breaker.
	// Default 5.
	Threshold int

	// Cooldown is how long an open breaker rejects calls before probing
	// again. Default 30s.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker. After Threshold failures
// in a row it rejects calls for Cooldown, then lets a single probe through:
// probe success closes the breaker, probe failure restarts the cooldown.
type Breaker struct {
	label     string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed [Breaker].
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		label:     cfg.Label,
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
	}
}

// Allow reports whether a call may proceed right now. A true return from an
// open breaker marks the call as the cooldown probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return true
	}
	if b.probing {
		return false
	}
	if time.Since(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	slog.Info("breaker probing", "provider", b.label)
	return true
}

// Report feeds one call outcome back into the breaker.
func (b *Breaker) Report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.failures >= b.threshold {
			slog.Info("breaker closed", "provider", b.label)
		}
		b.failures = 0
		b.probing = false
		return
	}

	wasOpen := b.failures >= b.threshold
	b.failures++
	b.probing = false
	if b.failures >= b.threshold {
		b.openedAt = time.Now()
		if !wasOpen {
			slog.Warn("breaker opened",
				"provider", b.label, "consecutive_failures", b.failures)
		}
	}
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return false
	}
	return b.probing || time.Since(b.openedAt) < b.cooldown
}
