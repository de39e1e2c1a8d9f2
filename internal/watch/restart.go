/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see types.go for the full license header)
 ***************************************************************************** */

package watch

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

const (
	// restartFailureThreshold is how many consecutive STOPPED
	// observations open the circuit and suspend auto-restart.
	restartFailureThreshold = 5
	// restartCooldown is how long the circuit stays open once tripped.
	restartCooldown = 30 * time.Second
)

// restartGate paces the "stopped -> STARTING" auto-restart policy:
// cenkalti/backoff computes the increasing delay between consecutive
// restarts, and a small circuit breaker hard-stops restarts once a
// watch has failed too many times in a row.
type restartGate struct {
	mu        sync.Mutex
	bo        *backoff.ExponentialBackOff
	failures  int
	openUntil time.Time
}

func newRestartGate() *restartGate {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // never give up on its own; the breaker decides that
	return &restartGate{bo: bo}
}

// Allow reports whether a restart may proceed right now. It also resets
// the failure count once the cooldown has elapsed, closing the breaker.
func (g *restartGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failures < restartFailureThreshold {
		return true
	}
	if time.Now().Before(g.openUntil) {
		return false
	}
	// Cooldown elapsed: close the breaker and let backoff start fresh.
	g.failures = 0
	g.bo.Reset()
	return true
}

// NextBackOff records one more observed failure and returns how long to
// wait before restarting. Once the failure threshold is crossed it also
// opens the breaker for restartCooldown, so the caller's next Allow()
// call reports false until the cooldown elapses.
func (g *restartGate) NextBackOff() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures++
	if g.failures >= restartFailureThreshold {
		g.openUntil = time.Now().Add(restartCooldown)
	}
	return g.bo.NextBackOff()
}

// Reset closes the breaker and restarts the backoff curve from its
// initial interval. Called when the watch is next observed healthy, so
// pacing tracks consecutive failures rather than lifetime ones.
func (g *restartGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = 0
	g.openUntil = time.Time{}
	g.bo.Reset()
}

func gateFor(r *Record) *restartGate {
	return r.restart
}
