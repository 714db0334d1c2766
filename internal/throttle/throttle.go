// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package throttle enforces the per-actor response cooldown.
//
// Allow is a single check-and-record under one lock, so two callers racing
// on the same actor can never both be told to act.
package throttle

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum spacing between two actions for one actor.
const DefaultCooldown = time.Minute

// Throttler tracks the last action time per actor.
type Throttler struct {
	mu        sync.Mutex
	cooldown  time.Duration
	maxActors int
	last      map[string]time.Time
}

// New creates a Throttler. A non-positive cooldown takes DefaultCooldown;
// maxActors <= 0 disables the expiry sweep.
func New(cooldown time.Duration, maxActors int) *Throttler {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Throttler{
		cooldown:  cooldown,
		maxActors: maxActors,
		last:      make(map[string]time.Time),
	}
}

// Allow reports whether actor is due an action at now and, if so, records
// now as its last action time. An actor is due when it has no record or
// its last action is at least one cooldown old.
func (t *Throttler) Allow(actor string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[actor]; ok && now.Sub(last) < t.cooldown {
		return false
	}

	if _, ok := t.last[actor]; !ok && t.maxActors > 0 && len(t.last) >= t.maxActors {
		t.sweep(now)
	}
	t.last[actor] = now
	return true
}

// Seed records a past action, keeping whichever timestamp is later.
// Used to warm-start the table from the action history.
func (t *Throttler) Seed(actor string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[actor]; ok && !at.After(last) {
		return
	}
	t.last[actor] = at
}

// Last returns the recorded action time for actor.
func (t *Throttler) Last(actor string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.last[actor]
	return at, ok
}

// Len returns the number of tracked actors.
func (t *Throttler) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// Cooldown returns the configured cooldown.
func (t *Throttler) Cooldown() time.Duration {
	return t.cooldown
}

// sweep drops entries whose cooldown has elapsed. Must be called with mu held.
func (t *Throttler) sweep(now time.Time) {
	for actor, last := range t.last {
		if now.Sub(last) >= t.cooldown {
			delete(t.last, actor)
		}
	}
}
