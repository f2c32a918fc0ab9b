// Package gate limits how many analyses a guest may run before being asked
// to register. The counter is advisory client-side state, not a security
// boundary: a hostile client can evade it, and that is accepted.
package gate

import (
	"sync"

	"truthguard/internal/store"
)

// GuestLimit is the number of anonymous analyses allowed before the gate
// blocks and the signup flow takes over.
const GuestLimit = 3

// Gate tracks the persisted anonymous-usage counter. Check and increment
// share one mutex so no attempt can slip between them.
type Gate struct {
	mu            sync.Mutex
	store         store.StateStore
	authenticated func() bool
}

// New builds a gate over the persisted counter. authenticated reports the
// current session state; the gate never blocks an authenticated user.
func New(st store.StateStore, authenticated func() bool) *Gate {
	return &Gate{store: st, authenticated: authenticated}
}

// ShouldBlock reports whether the next analysis requires registration.
// The authenticated callback acquires the session lock and is read before
// g.mu: the session manager calls Reset while holding its own lock, so
// nesting it the other way here would invert the lock order.
func (g *Gate) ShouldBlock() (bool, error) {
	if g.authenticated() {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.store.UsageCount()
	if err != nil {
		return false, err
	}
	return n >= GuestLimit, nil
}

// RecordAttempt increments the persisted counter. Called once per anonymous
// analysis that was allowed to proceed and succeeded.
func (g *Gate) RecordAttempt() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.store.UsageCount()
	if err != nil {
		return err
	}
	return g.store.SaveUsageCount(n + 1)
}

// Count returns the current counter value.
func (g *Gate) Count() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.UsageCount()
}

// Reset zeroes the counter. Only the session manager calls this, exactly on
// successful authentication; logout does not reset.
func (g *Gate) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.SaveUsageCount(0)
}
