// Package health serves the liveness and readiness probes of the storefront.
//
// Probes run in the background and flip state only after a run of
// consecutive results, so a single slow database ping does not take the
// instance out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc reports the health of one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Kind tells which endpoint a probe belongs to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Option tunes a probe.
type Option func(*probe)

// WithTimeout bounds a single probe run. The default is one second.
func WithTimeout(d time.Duration) Option {
	return func(p *probe) { p.timeout = d }
}

// WithThresholds sets how many consecutive failures mark a probe unhealthy
// and how many consecutive successes bring it back. Defaults are 3 and 1.
func WithThresholds(failures, successes int) Option {
	return func(p *probe) {
		if failures > 0 {
			p.failAfter = failures
		}
		if successes > 0 {
			p.recoverAfter = successes
		}
	}
}

type probe struct {
	name         string
	check        CheckFunc
	timeout      time.Duration
	failAfter    int
	recoverAfter int

	mu      sync.Mutex
	healthy bool
	lastErr error
	streak  int // positive counts successes, negative counts failures
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.check(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		if p.streak > 0 {
			p.streak = 0
		}
		p.streak--
		if -p.streak >= p.failAfter {
			p.healthy = false
		}
		return
	}
	if p.streak < 0 {
		p.streak = 0
	}
	p.streak++
	if p.streak >= p.recoverAfter {
		p.healthy = true
	}
}

// state returns "" when healthy and the failure reason otherwise.
func (p *probe) state() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return ""
	}
	if p.lastErr != nil {
		return p.lastErr.Error()
	}
	return "unhealthy"
}

// Health owns the registered probes and the manual readiness switch.
type Health struct {
	mu     sync.RWMutex
	probes map[Kind][]*probe
	ready  bool
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{probes: make(map[Kind][]*probe)}
}

// Add registers a probe. Probes start healthy. Register everything before
// Start.
func (h *Health) Add(kind Kind, name string, check CheckFunc, opts ...Option) {
	p := &probe{
		name:         name,
		check:        check,
		timeout:      time.Second,
		failAfter:    3,
		recoverAfter: 1,
		healthy:      true,
	}
	for _, o := range opts {
		o(p)
	}

	h.mu.Lock()
	h.probes[kind] = append(h.probes[kind], p)
	h.mu.Unlock()
}

// Start runs every probe once immediately and then on each interval until
// Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	var all []*probe
	for _, ps := range h.probes {
		all = append(all, ps...)
	}
	h.mu.Unlock()

	for _, p := range all {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop halts background probing. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness switch. The server sets it after
// startup and clears it when shutdown begins.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	h.ready = ready
	h.mu.Unlock()
}

// IsReady reports whether the switch is on and every readiness probe passes.
func (h *Health) IsReady() bool {
	failures, ready := h.failures(Readiness)
	return ready && len(failures) == 0
}

func (h *Health) failures(kind Kind) (map[string]string, bool) {
	h.mu.RLock()
	probes := append([]*probe(nil), h.probes[kind]...)
	ready := h.ready
	h.mu.RUnlock()

	out := make(map[string]string)
	for _, p := range probes {
		if reason := p.state(); reason != "" {
			out[p.name] = reason
		}
	}
	return out, ready
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures, _ := h.failures(Liveness)
	respond(w, failures)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures, ready := h.failures(Readiness)
	if !ready {
		failures["server"] = "not accepting traffic"
	}
	respond(w, failures)
}

func respond(w http.ResponseWriter, failures map[string]string) {
	resp := statusResponse{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: failures}
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
