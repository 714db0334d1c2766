// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Status         string  `json:"status"`
	Version        string  `json:"version"`
	Monitoring     bool    `json:"monitoring"`
	ModelState     string  `json:"model_state"`
	HistoryEnabled bool    `json:"history_enabled"`
	Uptime         float64 `json:"uptime_seconds"`
}

// Health reports process liveness. The status is "degraded" once the
// monitoring loop has stopped, so operators can tell a finished batch run or
// a failed source from a live one.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	summary := h.summary.Snapshot()

	status := "healthy"
	if !summary.Running {
		status = "degraded"
	}

	respondSuccess(w, HealthStatus{
		Status:         status,
		Version:        h.version,
		Monitoring:     summary.Running,
		ModelState:     summary.ModelState,
		HistoryEnabled: h.actions != nil,
		Uptime:         time.Since(h.startTime).Seconds(),
	}, 0)
}
