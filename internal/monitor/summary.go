// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package monitor

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Summary reports what a run did.
type Summary struct {
	Mode              string    `json:"mode"`
	LinesProcessed    int64     `json:"lines_processed"`
	EventsDetected    int64     `json:"events_detected"`
	ActionsDispatched int64     `json:"actions_dispatched"`
	ActionsSuppressed int64     `json:"actions_suppressed"`
	ScoreErrors       int64     `json:"score_errors"`
	ActorsActioned    []string  `json:"actors_actioned"`
	ModelState        string    `json:"model_state"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at,omitempty"`
	Running           bool      `json:"running"`
}

// Duration is the elapsed run time, up to now while running.
func (s Summary) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}

// MarshalZerologObject logs the summary as structured fields.
func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Str("mode", s.Mode).
		Int64("lines_processed", s.LinesProcessed).
		Int64("events_detected", s.EventsDetected).
		Int64("actions_dispatched", s.ActionsDispatched).
		Int64("actions_suppressed", s.ActionsSuppressed).
		Int64("score_errors", s.ScoreErrors).
		Int("actors_actioned", len(s.ActorsActioned)).
		Strs("actors", s.ActorsActioned).
		Str("model_state", s.ModelState).
		Dur("duration", s.Duration())
}

// counters is the mutable summary owned by the ingestion goroutine.
type counters struct {
	linesProcessed    int64
	eventsDetected    int64
	actionsDispatched int64
	actionsSuppressed int64
	scoreErrors       int64
	actors            map[string]struct{}
	startedAt         time.Time
	finishedAt        time.Time
	running           bool
}

func (c *counters) summary(mode, modelState string) Summary {
	actors := make([]string, 0, len(c.actors))
	for a := range c.actors {
		actors = append(actors, a)
	}
	sort.Strings(actors)

	return Summary{
		Mode:              mode,
		LinesProcessed:    c.linesProcessed,
		EventsDetected:    c.eventsDetected,
		ActionsDispatched: c.actionsDispatched,
		ActionsSuppressed: c.actionsSuppressed,
		ScoreErrors:       c.scoreErrors,
		ActorsActioned:    actors,
		ModelState:        modelState,
		StartedAt:         c.startedAt,
		FinishedAt:        c.finishedAt,
		Running:           c.running,
	}
}
