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

	"github.com/tomtom215/logsentinel/internal/config"
)

func newTestChecker(t *testing.T, handler http.HandlerFunc) (*ReputationChecker, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.ReputationConfig{URL: srv.URL + "/api/v3/ip_addresses", APIKey: "secret", CacheTTL: time.Hour, CacheMax: 8}
	return NewReputationChecker(cfg, time.Second, BreakerSettings{MaxFailures: 100}), &hits
}

func TestReputation_Parse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		flagged bool
		count   int
	}{
		{"malicious", `{"data":{"attributes":{"last_analysis_stats":{"malicious":4}}}}`, true, 4},
		{"clean", `{"data":{"attributes":{"last_analysis_stats":{"malicious":0,"harmless":70}}}}`, false, 0},
		{"missing stats", `{"data":{}}`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v3/ip_addresses/198.51.100.4" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.Header.Get("x-apikey") != "secret" {
					t.Errorf("x-apikey = %q", r.Header.Get("x-apikey"))
				}
				_, _ = w.Write([]byte(tt.body))
			})

			v, err := c.Check(context.Background(), "198.51.100.4")
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if v.Flagged() != tt.flagged || v.Malicious != tt.count {
				t.Errorf("Check() = %+v, want flagged=%v count=%d", v, tt.flagged, tt.count)
			}
		})
	}
}

func TestReputation_Cached(t *testing.T) {
	c, hits := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":1}}}}`))
	})

	for i := 0; i < 3; i++ {
		if _, err := c.Check(context.Background(), "198.51.100.5"); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("endpoint hit %d times, want 1", hits.Load())
	}
}

func TestReputation_Errors(t *testing.T) {
	c, hits := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/ip_addresses/198.51.100.6" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`not json`))
	})

	if _, err := c.Check(context.Background(), "198.51.100.6"); !errors.Is(err, ErrSinkStatus) {
		t.Errorf("Check(429) error = %v, want ErrSinkStatus", err)
	}
	if _, err := c.Check(context.Background(), "198.51.100.7"); err == nil {
		t.Error("expected decode error")
	}
	if _, err := c.Check(context.Background(), "root"); !errors.Is(err, ErrNotAddress) {
		t.Errorf("Check(root) error = %v, want ErrNotAddress", err)
	}
	if hits.Load() != 2 {
		t.Errorf("endpoint hit %d times, want 2", hits.Load())
	}

	// Failures are not cached.
	_, _ = c.Check(context.Background(), "198.51.100.6")
	if hits.Load() != 3 {
		t.Errorf("endpoint hit %d times after retry, want 3", hits.Load())
	}
}
