// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package services

import (
	"context"
	"sync"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/logsentinel/internal/monitor"
)

// MonitorRunner is satisfied by *monitor.Monitor.
type MonitorRunner interface {
	Run(ctx context.Context) (monitor.Summary, error)
}

// MonitorService runs the monitoring loop once under supervision.
//
// A run that ends on its own (batch complete, duration elapsed, source
// failure) is final: Serve reports it through onDone and returns
// suture.ErrDoNotRestart. Source failures are terminal for the run, so
// restarting would only replay the same failure.
type MonitorService struct {
	runner MonitorRunner
	onDone func(monitor.Summary, error)

	mu   sync.Mutex
	done bool
}

// NewMonitorService wraps runner. onDone may be nil.
func NewMonitorService(runner MonitorRunner, onDone func(monitor.Summary, error)) *MonitorService {
	return &MonitorService{runner: runner, onDone: onDone}
}

// Serve implements suture.Service.
func (s *MonitorService) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return suture.ErrDoNotRestart
	}
	s.mu.Unlock()

	summary, err := s.runner.Run(ctx)
	if ctx.Err() != nil && err == nil {
		// Stopped by the supervisor, not finished.
		return ctx.Err()
	}

	s.mu.Lock()
	s.done = true
	s.mu.Unlock()

	if s.onDone != nil {
		s.onDone(summary, err)
	}
	return suture.ErrDoNotRestart
}

func (s *MonitorService) String() string {
	return "monitor"
}
