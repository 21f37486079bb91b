// Package health provides Kubernetes-style liveness and readiness probe support.
//
// Each registered probe runs in its own background goroutine at a configurable
// interval. Probes carry failure and success thresholds, mirroring Kubernetes
// probe configuration, so that a single flaky run does not flip the reported
// state: a probe must fail failAfter consecutive times before it is reported
// unhealthy, and pass passAfter consecutive times before it recovers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes a single component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// probe holds the configuration and runtime state for a single check.
//
// Concurrency model: exec() is called from exactly one goroutine (the ticker).
// The consecutive counters are only touched by exec() and need no locking.
// The ok flag and lastErr are read by HTTP handlers from arbitrary
// goroutines, so both are atomics.
type probe struct {
	name      string
	timeout   time.Duration
	fn        CheckFunc
	failAfter int
	passAfter int

	ok      atomic.Bool
	lastErr atomic.Pointer[error]

	// only touched from the single exec() goroutine
	fails  int
	passes int
}

func (p *probe) passing() bool {
	return p.ok.Load()
}

// err returns the result of the most recent exec, or nil before the first run.
func (p *probe) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// exec runs the probe once and applies the thresholds.
// Must only be called from a single goroutine.
func (p *probe) exec(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(probeCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= p.failAfter {
			p.ok.Store(false)
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= p.passAfter {
		p.ok.Store(true)
	}
}

// Health manages liveness and readiness probes for a service.
type Health struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel. Registration happens before
	// Start; HTTP handlers copy the slice under RLock and release before
	// touching per-probe state.
	mu          sync.RWMutex
	liveProbes  []*probe
	readyProbes []*probe
	cancel      context.CancelFunc
}

// New creates a Health instance. The service starts not ready; call
// SetReady(true) once initialization has finished.
func New() *Health {
	return &Health{}
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	p := &probe{
		name:      name,
		timeout:   timeout,
		fn:        fn,
		failAfter: 3,
		passAfter: 1,
	}
	p.ok.Store(true) // healthy until proven otherwise
	return p
}

// AddLivenessCheck registers a liveness probe. Liveness probes answer "is the
// process still functioning", for example goroutine count or GC pause time.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveProbes = append(h.liveProbes, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a readiness probe. Readiness probes answer "can
// this instance take traffic", for example database connectivity.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readyProbes = append(h.readyProbes, newProbe(name, timeout, fn))
}

// Start launches one background goroutine per registered probe, each running
// at the given interval until ctx is cancelled or Stop is called. Call it once
// after all probes are registered.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveProbes)+len(h.readyProbes))
	probes = append(probes, h.liveProbes...)
	probes = append(probes, h.readyProbes...)
	h.mu.Unlock()

	for _, p := range probes {
		go watch(ctx, p, interval)
	}
}

// watch executes a single probe on a ticker until ctx is cancelled.
func watch(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First run happens immediately, not one interval in.
	p.exec(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.exec(ctx)
		}
	}
}

// SetReady flips the manual readiness gate. Pass true once startup completes
// and false at the beginning of graceful shutdown to drain traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the instance should receive traffic: the manual
// gate must be open and every readiness probe passing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readyProbes
	h.mu.RUnlock()

	for _, p := range probes {
		if !p.passing() {
			return false
		}
	}
	return true
}

// Stop cancels all background probe goroutines. Safe to call repeatedly.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// probeReport is the JSON body served by the probe endpoints.
type probeReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez. It responds 200 with {"status":"ok"} while all
// liveness probes pass, or 503 listing the failing probes.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	probes := make([]*probe, len(h.liveProbes))
	copy(probes, h.liveProbes)
	h.mu.RUnlock()

	writeReport(w, gatherFailures(probes))
}

// ReadyEndpoint serves /readyz. It responds 200 only when the manual gate is
// open and every readiness probe passes; otherwise 503 with details.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()

	h.mu.RLock()
	probes := make([]*probe, len(h.readyProbes))
	copy(probes, h.readyProbes)
	h.mu.RUnlock()

	failures := gatherFailures(probes)
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeReport(w, failures)
}

// gatherFailures maps probe name to error message for every probe that is
// currently unhealthy, using the stored last error instead of re-probing.
func gatherFailures(probes []*probe) map[string]string {
	failures := make(map[string]string)
	for _, p := range probes {
		if p.passing() {
			continue
		}
		if err := p.err(); err != nil {
			failures[p.name] = err.Error()
		} else {
			failures[p.name] = "check is unhealthy"
		}
	}
	return failures
}

func writeReport(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	report := probeReport{Status: "ok"}
	status := http.StatusOK
	if len(failures) > 0 {
		report.Status = "unhealthy"
		report.Checks = failures
		status = http.StatusServiceUnavailable
	}

	w.WriteHeader(status)
	// The status code is already on the wire, so encoding errors are only
	// reportable as a dropped body.
	_ = json.NewEncoder(w).Encode(report)
}
