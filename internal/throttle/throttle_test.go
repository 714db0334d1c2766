// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package throttle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 21, 4, 40, 7, 0, time.UTC)

func TestAllow_Cooldown(t *testing.T) {
	tests := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"immediately", 0, false},
		{"within cooldown", 30 * time.Second, false},
		{"just before cooldown", time.Minute - time.Nanosecond, false},
		{"exactly at cooldown", time.Minute, true},
		{"after cooldown", 2 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := New(time.Minute, 0)
			if !th.Allow("1.1.1.1", t0) {
				t.Fatal("first Allow must succeed")
			}
			if got := th.Allow("1.1.1.1", t0.Add(tt.offset)); got != tt.want {
				t.Errorf("second Allow at +%v = %v, want %v", tt.offset, got, tt.want)
			}
		})
	}
}

func TestAllow_SuppressedCallDoesNotExtendCooldown(t *testing.T) {
	th := New(time.Minute, 0)
	th.Allow("a", t0)
	th.Allow("a", t0.Add(50*time.Second))

	if last, _ := th.Last("a"); !last.Equal(t0) {
		t.Errorf("Last() = %v, want %v", last, t0)
	}
	if !th.Allow("a", t0.Add(time.Minute)) {
		t.Error("expected Allow one cooldown after the first action")
	}
}

func TestAllow_ActorsIndependent(t *testing.T) {
	th := New(time.Minute, 0)
	for _, actor := range []string{"10.0.0.1", "10.0.0.2", "alice"} {
		if !th.Allow(actor, t0) {
			t.Errorf("Allow(%q) = false for a fresh actor", actor)
		}
	}
	if th.Len() != 3 {
		t.Errorf("Len() = %d, want 3", th.Len())
	}
}

func TestSeed(t *testing.T) {
	th := New(time.Minute, 0)
	th.Seed("a", t0)
	th.Seed("a", t0.Add(-time.Hour))

	if last, ok := th.Last("a"); !ok || !last.Equal(t0) {
		t.Fatalf("Last() = %v, %v; Seed must keep the later time", last, ok)
	}
	if th.Allow("a", t0.Add(10*time.Second)) {
		t.Error("seeded actor should still be cooling down")
	}
	if !th.Allow("a", t0.Add(time.Minute)) {
		t.Error("seeded actor should be due after the cooldown")
	}
}

func TestAllow_ConcurrentSameActor(t *testing.T) {
	th := New(time.Minute, 0)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if th.Allow("203.0.113.9", t0) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 1 {
		t.Errorf("%d goroutines were allowed, want exactly 1", got)
	}
}

func TestAllow_SweepsExpiredAtCapacity(t *testing.T) {
	th := New(time.Minute, 2)
	th.Allow("old", t0)
	th.Allow("recent", t0.Add(90*time.Second))

	// "old" has cooled down, "recent" has not.
	if !th.Allow("new", t0.Add(2*time.Minute)) {
		t.Fatal("Allow(new) = false")
	}
	if _, ok := th.Last("old"); ok {
		t.Error("expired entry should have been swept")
	}
	if _, ok := th.Last("recent"); !ok {
		t.Error("unexpired entry must never be evicted")
	}
	if th.Len() != 2 {
		t.Errorf("Len() = %d, want 2", th.Len())
	}
}

func TestAllow_SoftBound(t *testing.T) {
	th := New(time.Minute, 2)
	for _, actor := range []string{"a", "b", "c"} {
		if !th.Allow(actor, t0) {
			t.Fatalf("Allow(%q) = false", actor)
		}
	}
	if th.Len() != 3 {
		t.Errorf("Len() = %d, want 3 when nothing has expired", th.Len())
	}
	if th.Allow("a", t0.Add(time.Second)) {
		t.Error("a must still be throttled")
	}
}

func TestNew_Defaults(t *testing.T) {
	if got := New(0, 0).Cooldown(); got != DefaultCooldown {
		t.Errorf("Cooldown() = %v, want %v", got, DefaultCooldown)
	}
}
