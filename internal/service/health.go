package service

import (
	"sync"
	"time"

	"github.com/driss-b/infercore/internal/domain"
)

// CircuitState describes a target's availability as seen by the router.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// TargetHealth is the externally visible health of one model target.
type TargetHealth struct {
	State    CircuitState `json:"state"`
	Failures int          `json:"failures"`
}

type targetState struct {
	failures  int
	openUntil time.Time
	probing   bool
}

// healthTracker records rolling failures per target and opens a circuit when
// a target keeps failing. It is owned by a Router instance rather than being
// process-wide, so tests can run with fresh trackers. All mutation happens
// under a short critical section; no lock is ever held across a network call.
type healthTracker struct {
	mu               sync.Mutex
	targets          map[domain.TargetName]*targetState
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

func newHealthTracker(failureThreshold int, cooldown time.Duration) *healthTracker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &healthTracker{
		targets:          make(map[domain.TargetName]*targetState),
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

func (h *healthTracker) state(name domain.TargetName) *targetState {
	st, ok := h.targets[name]
	if !ok {
		st = &targetState{}
		h.targets[name] = st
	}
	return st
}

// Allow reports whether the target may receive traffic. An open circuit whose
// cooldown has elapsed admits exactly one half-open probe; further callers are
// rejected until the probe reports back.
func (h *healthTracker) Allow(name domain.TargetName) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(name)
	if st.failures < h.failureThreshold {
		return true
	}
	if st.probing {
		return false
	}
	if h.now().Before(st.openUntil) {
		return false
	}
	// Cooldown elapsed: half-open, let one probe through.
	st.probing = true
	return true
}

// ReportSuccess closes the circuit and resets the failure count.
func (h *healthTracker) ReportSuccess(name domain.TargetName) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(name)
	st.failures = 0
	st.probing = false
	st.openUntil = time.Time{}
}

// ReportFailure counts a failure. Reaching the threshold, or failing a
// half-open probe, opens the circuit for a full cooldown window.
func (h *healthTracker) ReportFailure(name domain.TargetName) {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := h.state(name)
	st.failures++
	if st.probing {
		st.probing = false
		st.openUntil = h.now().Add(h.cooldown)
		return
	}
	if st.failures >= h.failureThreshold {
		st.openUntil = h.now().Add(h.cooldown)
	}
}

// Snapshot returns the health of every tracked target plus the given
// configured targets that never failed.
func (h *healthTracker) Snapshot(configured []domain.TargetName) map[domain.TargetName]TargetHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[domain.TargetName]TargetHealth, len(configured))
	for _, name := range configured {
		st := h.state(name)
		health := TargetHealth{State: CircuitClosed, Failures: st.failures}
		if st.failures >= h.failureThreshold {
			if st.probing || !h.now().Before(st.openUntil) {
				health.State = CircuitHalfOpen
			} else {
				health.State = CircuitOpen
			}
		}
		out[name] = health
	}
	return out
}
