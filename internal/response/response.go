// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package response delivers detected events to the configured sinks.
//
// A Dispatcher fans one event out to every enabled Sink concurrently. Each
// sink call gets its own timeout and its own error; a failing sink never
// affects the others or the monitoring loop. Sinks:
//
//   - action_log: local append-only file
//   - block: enforcement endpoint, POST {"ip": actor}
//   - email: SMTP alert
//   - chat: webhook, POST {"text": message}
//   - incident: incident-response endpoint, POST {"message": message}
//
// The HTTP sinks sit behind circuit breakers. Reputation enrichment and the
// per-line Analyzer are optional and never gate delivery.
package response

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/logsentinel/internal/detection"
)

// ErrSinkStatus is returned when an endpoint answers with an unexpected
// HTTP status.
var ErrSinkStatus = errors.New("unexpected response status")

// Sink names, used as metric labels and report keys.
const (
	SinkActionLog = "action_log"
	SinkBlock     = "block"
	SinkEmail     = "email"
	SinkChat      = "chat"
	SinkIncident  = "incident"
)

// MessagePrefix starts every alert message.
const MessagePrefix = "Suspicious activity detected and blocked from IP: "

// Action is what sinks receive: the event plus its rendered message.
type Action struct {
	Event      detection.Event
	Message    string
	Reputation *Verdict
}

// Sink delivers an action to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, action Action) error
}

// BuildMessage renders the alert text for ev. A nil verdict adds no
// reputation suffix.
func BuildMessage(ev detection.Event, verdict *Verdict) string {
	var b strings.Builder
	b.WriteString(MessagePrefix)
	b.WriteString(ev.Actor)

	b.WriteString(" (cause: ")
	b.WriteString(string(ev.Cause))
	if ev.Cause == detection.CausePrivilegeEscalation && ev.Detail != "" {
		b.WriteString(", target role: ")
		b.WriteString(ev.Detail)
	}
	b.WriteString(")")

	if verdict != nil {
		b.WriteString(" (reputation: ")
		b.WriteString(verdict.String())
		b.WriteString(")")
	}
	return b.String()
}

// Report is the outcome of one delivery.
type Report struct {
	EventID string
	Actor   string
	Message string
	// Delivered lists sinks that succeeded, in configuration order.
	Delivered []string
	Failed    map[string]error
}

// OK reports whether every sink succeeded.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// failedStrings flattens Failed for persistence.
func (r Report) failedStrings() map[string]string {
	if len(r.Failed) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Failed))
	for name, err := range r.Failed {
		out[name] = err.Error()
	}
	return out
}

func statusError(sink string, code int) error {
	return fmt.Errorf("%s: %w: %d", sink, ErrSinkStatus, code)
}
