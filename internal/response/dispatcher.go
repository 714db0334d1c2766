// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package response

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/logsentinel/internal/config"
	"github.com/tomtom215/logsentinel/internal/detection"
	"github.com/tomtom215/logsentinel/internal/logging"
	"github.com/tomtom215/logsentinel/internal/metrics"
	"github.com/tomtom215/logsentinel/internal/store"
)

// Recorder persists delivered actions.
type Recorder interface {
	Record(ctx context.Context, rec *store.ActionRecord) error
}

// Options configures a Dispatcher.
type Options struct {
	Sinks []Sink

	// Reputation enriches messages when set.
	Reputation *ReputationChecker

	// History records each delivery when set.
	History Recorder

	// SinkTimeout bounds each sink call and the reputation lookup.
	SinkTimeout time.Duration
}

// Dispatcher fans events out to sinks.
type Dispatcher struct {
	sinks      []Sink
	reputation *ReputationChecker
	history    Recorder
	timeout    time.Duration

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A dispatcher with no sinks still
// records history and logs every action.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = DefaultTimeout
	}
	return &Dispatcher{
		sinks:      opts.Sinks,
		reputation: opts.Reputation,
		history:    opts.History,
		timeout:    opts.SinkTimeout,
	}
}

// FromConfig builds the sinks enabled in cfg. history may be nil.
func FromConfig(cfg config.ResponseConfig, history Recorder) *Dispatcher {
	timeout := cfg.SinkTimeout
	bs := BreakerSettings{MaxFailures: cfg.Breaker.MaxFailures, OpenTimeout: cfg.Breaker.OpenTimeout}

	var sinks []Sink
	if cfg.ActionLog.Enabled && cfg.ActionLog.Path != "" {
		sinks = append(sinks, NewActionLogSink(cfg.ActionLog.Path))
	}
	if cfg.Block.URL != "" {
		sinks = append(sinks, WithBreaker(NewBlockSink(cfg.Block.URL, timeout), bs))
	}
	if cfg.Email.Enabled() {
		sinks = append(sinks, NewEmailSink(cfg.Email, timeout))
	}
	if cfg.Chat.WebhookURL != "" {
		sinks = append(sinks, WithBreaker(NewChatSink(cfg.Chat.WebhookURL, timeout), bs))
	}
	if cfg.Incident.URL != "" {
		sinks = append(sinks, WithBreaker(NewIncidentSink(cfg.Incident.URL, timeout), bs))
	}

	var reputation *ReputationChecker
	if cfg.Reputation.Enabled() {
		reputation = NewReputationChecker(cfg.Reputation, timeout, bs)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	logging.Info().
		Strs("sinks", names).
		Bool("reputation", reputation != nil).
		Bool("history", history != nil).
		Msg("Response dispatcher configured")

	return NewDispatcher(Options{
		Sinks:       sinks,
		Reputation:  reputation,
		History:     history,
		SinkTimeout: timeout,
	})
}

// AnalyzerFromConfig returns nil when analysis is not configured.
func AnalyzerFromConfig(cfg config.ResponseConfig) *Analyzer {
	if cfg.Analysis.URL == "" || cfg.Analysis.APIKey == "" {
		return nil
	}
	bs := BreakerSettings{MaxFailures: cfg.Breaker.MaxFailures, OpenTimeout: cfg.Breaker.OpenTimeout}
	return NewAnalyzer(cfg.Analysis, cfg.SinkTimeout, bs)
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch delivers ev in the background and returns immediately. Delivery
// is not tied to any caller context; use Wait to drain at shutdown.
func (d *Dispatcher) Dispatch(ev detection.Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Deliver(context.Background(), ev)
	}()
}

// Wait blocks until every Dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Deliver enriches ev, runs every sink concurrently and waits for all of
// them. Sink failures are reported, never returned.
func (d *Dispatcher) Deliver(ctx context.Context, ev detection.Event) Report {
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithCorrelationID(ctx, ev.ID)
	}
	ctx = logging.ContextWithLogger(ctx, logging.WithComponent("dispatcher").With().
		Str("actor", ev.Actor).
		Str("cause", string(ev.Cause)).
		Logger())
	log := logging.Ctx(ctx)

	verdict := d.enrich(ctx, ev.Actor)
	action := Action{Event: ev, Message: BuildMessage(ev, verdict), Reputation: verdict}

	type result struct {
		name string
		err  error
	}
	results := make([]result, len(d.sinks))

	var wg sync.WaitGroup
	for i, sink := range d.sinks {
		wg.Add(1)
		go func(i int, sink Sink) {
			defer wg.Done()
			results[i] = result{name: sink.Name(), err: d.deliverOne(ctx, sink, action)}
		}(i, sink)
	}
	wg.Wait()

	report := Report{EventID: ev.ID, Actor: ev.Actor, Message: action.Message}
	for _, r := range results {
		if r.err != nil {
			if report.Failed == nil {
				report.Failed = make(map[string]error)
			}
			report.Failed[r.name] = r.err
			log.Warn().Err(r.err).Str("sink", r.name).Msg("Sink delivery failed")
			continue
		}
		report.Delivered = append(report.Delivered, r.name)
	}

	log.Info().
		Str("message", action.Message).
		Strs("delivered", report.Delivered).
		Int("failed", len(report.Failed)).
		Msg("Response dispatched")

	d.record(ctx, ev, action, report)
	return report
}

func (d *Dispatcher) deliverOne(ctx context.Context, sink Sink, action Action) (err error) {
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", sink.Name(), r)
		}
		metrics.RecordSinkDelivery(sink.Name(), time.Since(start), err)
	}()

	return sink.Deliver(sctx, action)
}

func (d *Dispatcher) enrich(ctx context.Context, actor string) *Verdict {
	if d.reputation == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	v, err := d.reputation.Check(rctx, actor)
	if err != nil {
		if errors.Is(err, ErrNotAddress) {
			logging.Ctx(ctx).Debug().Msg("Skipping reputation lookup for non-address actor")
		} else {
			logging.Ctx(ctx).Warn().Err(err).Msg("Reputation lookup failed")
		}
		return nil
	}
	if v.Flagged() {
		logging.Ctx(ctx).Warn().Int("malicious", v.Malicious).Msg("Actor flagged by reputation service")
	}
	return &v
}

func (d *Dispatcher) record(ctx context.Context, ev detection.Event, action Action, report Report) {
	if d.history == nil {
		return
	}
	rec := &store.ActionRecord{
		ID:        ev.ID,
		Actor:     ev.Actor,
		Cause:     string(ev.Cause),
		Rule:      ev.Rule,
		Message:   action.Message,
		Delivered: report.Delivered,
		Failed:    report.failedStrings(),
		At:        ev.DetectedAt,
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	if action.Reputation != nil {
		rec.Reputation = action.Reputation.String()
	}
	if err := d.history.Record(ctx, rec); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to record action history")
	}
}
