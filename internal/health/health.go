// Package health exposes a trivial status probe for operational monitoring.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is the probe response.
type Status struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
}

// Probe reports process liveness and the time of the last batch run.
type Probe struct {
	startTime time.Time

	mu        sync.RWMutex
	lastRunAt time.Time
}

// NewProbe creates a new Probe.
func NewProbe() *Probe {
	return &Probe{startTime: time.Now()}
}

// RecordRun notes that a batch run completed.
func (p *Probe) RecordRun(at time.Time) {
	p.mu.Lock()
	p.lastRunAt = at
	p.mu.Unlock()
}

// Status returns the current probe status.
func (p *Probe) Status() Status {
	p.mu.RLock()
	lastRun := p.lastRunAt
	p.mu.RUnlock()

	return Status{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(p.startTime).Round(time.Second).String(),
		LastRunAt: lastRun,
	}
}

// Handler returns an http.Handler serving the probe as JSON.
func (p *Probe) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.Status())
	})
}
