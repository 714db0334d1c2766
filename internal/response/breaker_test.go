// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package response

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/logsentinel/internal/detection"
	"github.com/tomtom215/logsentinel/internal/metrics"
)

func TestWithBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := WithBreaker(NewIncidentSink(srv.URL, time.Second), BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour})
	action := Action{Event: detection.NewEvent("10.9.9.9", detection.CausePattern, "", time.Now()), Message: "m"}

	rejectedBefore := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(SinkIncident, "rejected"))

	for i := 0; i < 2; i++ {
		if err := sink.Deliver(context.Background(), action); !errors.Is(err, ErrSinkStatus) {
			t.Fatalf("attempt %d error = %v, want ErrSinkStatus", i, err)
		}
	}
	if err := sink.Deliver(context.Background(), action); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("third attempt error = %v, want ErrCircuitOpen", err)
	}
	if hits.Load() != 2 {
		t.Errorf("endpoint hit %d times, want 2", hits.Load())
	}
	if sink.Name() != SinkIncident {
		t.Errorf("Name() = %q", sink.Name())
	}

	rejectedAfter := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(SinkIncident, "rejected"))
	if rejectedAfter-rejectedBefore != 1 {
		t.Errorf("rejected delta = %v, want 1", rejectedAfter-rejectedBefore)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("test-reset", BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour})
	fail := errors.New("fail")

	_ = b.Execute(func() error { return fail })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return fail })

	if b.State() != "closed" {
		t.Errorf("State() = %s, want closed", b.State())
	}
	_ = b.Execute(func() error { return fail })
	if b.State() != "open" {
		t.Errorf("State() = %s, want open", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker("test-halfopen", BreakerSettings{MaxFailures: 1, OpenTimeout: 20 * time.Millisecond})
	_ = b.Execute(func() error { return errors.New("fail") })
	if b.State() != "open" {
		t.Fatalf("State() = %s, want open", b.State())
	}

	time.Sleep(50 * time.Millisecond)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("trial request error = %v", err)
	}
	if b.State() != "closed" {
		t.Errorf("State() = %s, want closed after a successful trial request", b.State())
	}
}
