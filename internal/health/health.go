// Package health provides the readiness probe for the interaction server.
//
// The probe aggregates named checks over the server's dependencies (history
// store, provider wiring) and reports 200 only when all of them pass. The
// liveness side needs no package support: a process that answers /health is
// alive.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Check is one named dependency probe. Probe must return nil when the
// dependency can serve traffic and must respect context cancellation.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Probe serves the readiness endpoint. The check list is fixed at
// construction time; evaluation happens per request, sequentially, in the
// order given.
type Probe struct {
	checks []Check
}

var _ http.Handler = (*Probe)(nil)

// NewProbe creates a readiness probe over the given checks.
func NewProbe(checks ...Check) *Probe {
	c := make([]Check, len(checks))
	copy(c, checks)
	return &Probe{checks: c}
}

// ServeHTTP evaluates every check and answers with a JSON body of the form
// {"status":"ok","checks":{"history":"ok"}}. Any failing check turns the
// status to "fail" and the response code to 503.
func (p *Probe) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(p.checks))
	ready := true

	for _, c := range p.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Probe(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	status := http.StatusOK
	body := map[string]any{"status": "ok"}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	if !ready {
		body["status"] = "fail"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
