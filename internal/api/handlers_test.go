// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/logsentinel/internal/monitor"
	"github.com/tomtom215/logsentinel/internal/store"
)

type stubSummary struct {
	s monitor.Summary
}

func (s stubSummary) Snapshot() monitor.Summary { return s.s }

type failingLister struct{}

func (failingLister) List(context.Context, string, int) ([]store.ActionRecord, error) {
	return nil, errors.New("disk on fire")
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Config{InMemory: true})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedActions(t *testing.T, st *store.Store) {
	t.Helper()
	base := time.Date(2025, 1, 21, 4, 40, 0, 0, time.UTC)
	for i, actor := range []string{"192.168.1.100", "10.0.0.5", "192.168.1.100"} {
		rec := &store.ActionRecord{
			ID:      "ev-" + string(rune('a'+i)),
			Actor:   actor,
			Cause:   "pattern",
			Message: "Suspicious activity detected and blocked from IP: " + actor,
			At:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.Record(context.Background(), rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
}

type rawResponse struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    *APIError       `json:"error,omitempty"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) rawResponse {
	t.Helper()
	var resp rawResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	if data != nil && resp.Status == "success" {
		if err := json.Unmarshal(resp.Data, data); err != nil {
			t.Fatalf("decode data: %v\nbody: %s", err, rec.Body.String())
		}
	}
	return resp
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		running    bool
		wantStatus string
	}{
		{"running", true, "healthy"},
		{"stopped", false, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(stubSummary{monitor.Summary{Running: tt.running, ModelState: "trained"}}, nil, "test")
			rec := serve(NewRouter(h, MiddlewareConfig{}), "/healthz")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var health HealthStatus
			decode(t, rec, &health)
			if health.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", health.Status, tt.wantStatus)
			}
			if health.ModelState != "trained" || health.HistoryEnabled {
				t.Errorf("unexpected health payload: %+v", health)
			}
			if rec.Header().Get("X-Request-Id") == "" {
				t.Error("expected a request ID header")
			}
		})
	}
}

func TestSummary(t *testing.T) {
	want := monitor.Summary{
		Mode:              "tail",
		LinesProcessed:    3,
		EventsDetected:    3,
		ActionsDispatched: 1,
		ActionsSuppressed: 2,
		ActorsActioned:    []string{"192.168.1.100"},
		Running:           true,
	}
	h := NewHandler(stubSummary{want}, nil, "test")
	rec := serve(NewRouter(h, MiddlewareConfig{}), "/api/v1/summary")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got monitor.Summary
	resp := decode(t, rec, &got)
	if resp.Status != "success" {
		t.Errorf("envelope status = %q", resp.Status)
	}
	if got.LinesProcessed != 3 || got.ActionsDispatched != 1 || got.ActionsSuppressed != 2 {
		t.Errorf("summary = %+v", got)
	}
	if len(got.ActorsActioned) != 1 || got.ActorsActioned[0] != "192.168.1.100" {
		t.Errorf("actors = %v", got.ActorsActioned)
	}
}

func TestActions(t *testing.T) {
	st := newTestStore(t)
	seedActions(t, st)
	router := NewRouter(NewHandler(stubSummary{}, st, "test"), MiddlewareConfig{})

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantIDs   []string
		wantError string
	}{
		{"all newest first", "/api/v1/actions", http.StatusOK, []string{"ev-c", "ev-b", "ev-a"}, ""},
		{"by actor", "/api/v1/actions?actor=192.168.1.100", http.StatusOK, []string{"ev-c", "ev-a"}, ""},
		{"limit", "/api/v1/actions?limit=1", http.StatusOK, []string{"ev-c"}, ""},
		{"unknown actor", "/api/v1/actions?actor=203.0.113.9", http.StatusOK, []string{}, ""},
		{"bad limit", "/api/v1/actions?limit=abc", http.StatusBadRequest, nil, "VALIDATION_ERROR"},
		{"zero limit", "/api/v1/actions?limit=0", http.StatusBadRequest, nil, "VALIDATION_ERROR"},
		{"limit too large", "/api/v1/actions?limit=5000", http.StatusBadRequest, nil, "VALIDATION_ERROR"},
		{"actor with control bytes", "/api/v1/actions?actor=ev%1Bil", http.StatusBadRequest, nil, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}

			var records []store.ActionRecord
			resp := decode(t, rec, &records)
			if tt.wantError != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantError {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.wantError)
				}
				return
			}

			if len(records) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(records), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if records[i].ID != id {
					t.Errorf("records[%d].ID = %s, want %s", i, records[i].ID, id)
				}
			}
			if resp.Metadata.Count != len(tt.wantIDs) {
				t.Errorf("metadata count = %d", resp.Metadata.Count)
			}
		})
	}
}

func TestActions_HistoryDisabled(t *testing.T) {
	router := NewRouter(NewHandler(stubSummary{}, nil, "test"), MiddlewareConfig{})
	rec := serve(router, "/api/v1/actions")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestActions_StoreError(t *testing.T) {
	router := NewRouter(NewHandler(stubSummary{}, failingLister{}, "test"), MiddlewareConfig{})
	rec := serve(router, "/api/v1/actions")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Error("internal error text must not leak to clients")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	router := NewRouter(NewHandler(stubSummary{}, nil, "test"), MiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	for i := 0; i < 2; i++ {
		if rec := serve(router, "/api/v1/summary"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := serve(router, "/api/v1/summary")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if resp := decode(t, rec, nil); resp.Error == nil || resp.Error.Code != "RATE_LIMITED" {
		t.Errorf("error = %+v", resp.Error)
	}

	// Health is outside the limited group.
	if rec := serve(router, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d after limit", rec.Code)
	}
}

func TestRouter_GzipOnAPI(t *testing.T) {
	router := NewRouter(NewHandler(stubSummary{s: monitor.Summary{Mode: "tail"}}, nil, "test"), MiddlewareConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}

	// Probes stay uncompressed.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get("Content-Encoding"); got != "" {
		t.Errorf("healthz Content-Encoding = %q, want none", got)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	router := NewRouter(NewHandler(stubSummary{}, nil, "test"), MiddlewareConfig{})

	if rec := serve(router, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := NewRouter(NewHandler(stubSummary{}, nil, "test"), MiddlewareConfig{})
	rec := serve(router, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "logsentinel_lines_processed_total") {
		t.Error("expected logsentinel metrics in scrape output")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\tc"); got != `a\x0ab\x09c` {
		t.Errorf("sanitizeLogValue() = %q", got)
	}
}
