// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package monitor runs the per-line detection pipeline over a log source.
//
// For every line, in order:
//
//  1. privilege-escalation rules, then the ordered suspicious patterns
//  2. feature extraction, training window update, retrain, anomaly score
//  3. at most one event per actor (the first cause found wins)
//  4. throttle check-and-record, then asynchronous dispatch
//
// The line is also handed to the optional analyzer, which never affects
// the decision. A single goroutine runs the pipeline, so line N's throttle
// record is visible before line N+1 is evaluated.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/logsentinel/internal/anomaly"
	"github.com/tomtom215/logsentinel/internal/config"
	"github.com/tomtom215/logsentinel/internal/detection"
	"github.com/tomtom215/logsentinel/internal/logging"
	"github.com/tomtom215/logsentinel/internal/metrics"
	"github.com/tomtom215/logsentinel/internal/throttle"
)

// ErrAlreadyRunning is returned by Run while another Run is active.
var ErrAlreadyRunning = errors.New("monitor is already running")

// Dispatcher receives events that passed the throttle.
type Dispatcher interface {
	Dispatch(ev detection.Event)
}

// Analyzer receives every processed line.
type Analyzer interface {
	Analyze(line string) bool
}

// Options configures a Monitor.
type Options struct {
	Mode       string
	Source     Source
	Matcher    *detection.Matcher
	Throttler  *throttle.Throttler
	Dispatcher Dispatcher

	// Scorer enables anomaly detection when set.
	Scorer *anomaly.Scorer
	// RetrainThreshold is the window size that must be exceeded before
	// each update triggers a retrain.
	RetrainThreshold int

	// Analyzer is optional.
	Analyzer Analyzer

	// Duration bounds a tail run. Zero runs until ctx is done. Batch runs
	// ignore it and end when the payload is exhausted.
	Duration time.Duration

	// StatusEvery logs progress every N lines. Zero disables.
	StatusEvery int

	// Now is the clock used for events and the throttle. Defaults to time.Now.
	Now func() time.Time
}

// Monitor is the monitoring loop.
type Monitor struct {
	opts Options

	mu      sync.Mutex
	running bool
	c       counters
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetrainThreshold <= 0 {
		opts.RetrainThreshold = 5
	}
	if opts.Throttler == nil {
		opts.Throttler = throttle.New(throttle.DefaultCooldown, 0)
	}
	return &Monitor{opts: opts, c: counters{actors: make(map[string]struct{})}}
}

// Run processes the source until it ends, Duration elapses (tail mode) or
// ctx is done.
// The summary is always returned; the error is non-nil only when the
// source could not be read.
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return m.Snapshot(), ErrAlreadyRunning
	}
	m.running = true
	m.c = counters{actors: make(map[string]struct{}), startedAt: m.opts.Now(), running: true}
	m.mu.Unlock()

	if m.opts.Duration > 0 && m.opts.Mode != config.ModeBatch {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Duration)
		defer cancel()
	}

	logging.Info().
		Str("mode", m.opts.Mode).
		Dur("duration", m.opts.Duration).
		Bool("anomaly", m.opts.Scorer != nil).
		Msg("Monitoring started")

	err := m.opts.Source.Run(ctx, m.processLine)

	m.mu.Lock()
	m.running = false
	m.c.running = false
	m.c.finishedAt = m.opts.Now()
	m.mu.Unlock()

	summary := m.Snapshot()
	if err != nil {
		logging.Error().Err(err).EmbedObject(summary).Msg("Monitoring aborted")
		return summary, err
	}
	logging.Info().EmbedObject(summary).Msg("Monitoring complete")
	return summary, nil
}

// Snapshot returns the current summary. Safe to call concurrently with Run.
func (m *Monitor) Snapshot() Summary {
	modelState := "disabled"
	if m.opts.Scorer != nil {
		modelState = m.opts.Scorer.State().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c.summary(m.opts.Mode, modelState)
}

func (m *Monitor) processLine(line string) {
	now := m.opts.Now()
	metrics.LinesProcessed.Inc()

	events := m.detect(line, now)

	m.mu.Lock()
	m.c.linesProcessed++
	lines := m.c.linesProcessed
	m.mu.Unlock()

	for _, ev := range events {
		m.act(ev, now)
	}

	if m.opts.Analyzer != nil {
		m.opts.Analyzer.Analyze(line)
	}

	if m.opts.StatusEvery > 0 && lines%int64(m.opts.StatusEvery) == 0 {
		s := m.Snapshot()
		logging.Info().
			Int64("lines_processed", s.LinesProcessed).
			Int64("events_detected", s.EventsDetected).
			Int64("actions_dispatched", s.ActionsDispatched).
			Msg("Monitoring status")
	}
}

// detect returns at most one event per actor.
func (m *Monitor) detect(line string, now time.Time) []detection.Event {
	var events []detection.Event
	seen := make(map[string]bool, 2)

	for _, match := range m.opts.Matcher.Evaluate(line) {
		if seen[match.Actor] {
			continue
		}
		seen[match.Actor] = true
		events = append(events, detection.FromMatch(match, line, now))
	}

	if m.opts.Scorer == nil {
		return events
	}
	features, ok := detection.Extract(line)
	if !ok {
		return events
	}
	if m.scoreAnomaly(features) && !seen[features.Actor] {
		events = append(events, detection.NewEvent(features.Actor, detection.CauseAnomaly, line, now))
	}
	return events
}

// scoreAnomaly updates the window, retrains past the threshold and scores.
func (m *Monitor) scoreAnomaly(f detection.Features) bool {
	scorer := m.opts.Scorer
	if err := scorer.Update(f.Vector); err != nil {
		logging.Warn().Err(err).Msg("Training window update failed")
		return false
	}

	if n := scorer.Len(); n > m.opts.RetrainThreshold {
		if err := scorer.Retrain(); err != nil {
			logging.Warn().Err(err).Int("window", n).Msg("Model retrain failed")
		} else {
			metrics.RecordRetrain(n)
		}
	}

	if scorer.State() != anomaly.Trained {
		return false
	}
	anomalous, err := scorer.Score(f.Vector)
	if err != nil {
		metrics.ModelScoreErrors.Inc()
		m.mu.Lock()
		m.c.scoreErrors++
		m.mu.Unlock()
		logging.Warn().Err(err).Str("actor", f.Actor).Msg("Anomaly scoring failed")
		return false
	}
	return anomalous
}

func (m *Monitor) act(ev detection.Event, now time.Time) {
	metrics.RecordEvent(string(ev.Cause))
	logging.Warn().
		Str("actor", ev.Actor).
		Str("cause", string(ev.Cause)).
		Str("rule", ev.Rule).
		Str("detail", ev.Detail).
		Str("line", ev.Evidence).
		Msg("Suspicious activity detected")

	allowed := m.opts.Throttler.Allow(ev.Actor, now)
	metrics.RecordThrottle(allowed)

	m.mu.Lock()
	m.c.eventsDetected++
	if allowed {
		m.c.actionsDispatched++
		m.c.actors[ev.Actor] = struct{}{}
	} else {
		m.c.actionsSuppressed++
	}
	m.mu.Unlock()

	if !allowed {
		logging.Info().
			Str("actor", ev.Actor).
			Dur("cooldown", m.opts.Throttler.Cooldown()).
			Msg("Action skipped, actor is within cooldown")
		return
	}
	if m.opts.Dispatcher != nil {
		m.opts.Dispatcher.Dispatch(ev)
	}
}
