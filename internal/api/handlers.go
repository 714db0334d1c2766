// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package api serves the read-only status surface: liveness, the running
// summary, recorded actions and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/logsentinel/internal/monitor"
	"github.com/tomtom215/logsentinel/internal/store"
	"github.com/tomtom215/logsentinel/internal/validation"
)

const defaultActionsLimit = 50

// ActionsQuery is the validated form of GET /api/v1/actions.
type ActionsQuery struct {
	Actor string `validate:"omitempty,actor"`
	Limit int    `validate:"min=1,max=1000"`
}

// SummaryProvider is satisfied by *monitor.Monitor.
type SummaryProvider interface {
	Snapshot() monitor.Summary
}

// ActionLister is satisfied by *store.Store.
type ActionLister interface {
	List(ctx context.Context, actor string, limit int) ([]store.ActionRecord, error)
}

// Handler holds the dependencies of the status endpoints.
type Handler struct {
	summary   SummaryProvider
	actions   ActionLister
	version   string
	startTime time.Time
}

// NewHandler creates a Handler. actions may be nil when history is disabled.
func NewHandler(summary SummaryProvider, actions ActionLister, version string) *Handler {
	return &Handler{
		summary:   summary,
		actions:   actions,
		version:   version,
		startTime: time.Now(),
	}
}

// Summary returns the monitor's current counters.
func (h *Handler) Summary(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, h.summary.Snapshot(), 0)
}

// Actions returns recorded actions, newest first, optionally filtered by actor.
func (h *Handler) Actions(w http.ResponseWriter, r *http.Request) {
	if h.actions == nil {
		respondError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "Action history is not enabled", nil)
		return
	}

	limit, err := parseLimit(r, defaultActionsLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	q := ActionsQuery{
		Actor: strings.TrimSpace(r.URL.Query().Get("actor")),
		Limit: limit,
	}
	if verr := validation.ValidateStruct(&q); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	records, err := h.actions.List(r.Context(), q.Actor, q.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "HISTORY_ERROR", "Failed to read action history", err)
		return
	}
	if records == nil {
		records = []store.ActionRecord{}
	}
	respondSuccess(w, records, len(records))
}
