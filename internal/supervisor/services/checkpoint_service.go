// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/logsentinel/internal/anomaly"
	"github.com/tomtom215/logsentinel/internal/logging"
)

// ModelSaver is satisfied by *anomaly.Scorer.
type ModelSaver interface {
	SaveFile(path string) error
	Version() int
}

// CheckpointService writes the anomaly model to disk every interval and once
// more when stopped. A model whose version has not changed since the last
// save is skipped, as is an untrained one.
type CheckpointService struct {
	model    ModelSaver
	path     string
	interval time.Duration

	savedVersion int
}

// NewCheckpointService creates a checkpointer. A non-positive interval means 5m.
func NewCheckpointService(model ModelSaver, path string, interval time.Duration) *CheckpointService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CheckpointService{
		model:        model,
		path:         path,
		interval:     interval,
		savedVersion: -1,
	}
}

// Serve implements suture.Service.
func (c *CheckpointService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.checkpoint()
			return ctx.Err()
		case <-ticker.C:
			c.checkpoint()
		}
	}
}

// checkpoint saves the model if it changed. Failures are logged and retried
// on the next tick.
func (c *CheckpointService) checkpoint() {
	version := c.model.Version()
	if version == c.savedVersion {
		return
	}

	start := time.Now()
	if err := c.model.SaveFile(c.path); err != nil {
		if errors.Is(err, anomaly.ErrUntrained) {
			return
		}
		logging.Warn().Err(err).Str("path", c.path).Msg("Model checkpoint failed")
		return
	}
	c.savedVersion = version

	logging.Info().
		Str("path", c.path).
		Int("version", version).
		Dur("duration", time.Since(start)).
		Msg("Model checkpoint written")
}

func (c *CheckpointService) String() string {
	return "model-checkpoint"
}

// GarbageCollector is satisfied by *store.Store.
type GarbageCollector interface {
	RunGC() error
}

// HistoryGCService runs value-log garbage collection on the action store.
type HistoryGCService struct {
	store    GarbageCollector
	interval time.Duration
}

// NewHistoryGCService creates the GC loop. A non-positive interval means 10m.
func NewHistoryGCService(store GarbageCollector, interval time.Duration) *HistoryGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &HistoryGCService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (g *HistoryGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Action history GC failed")
			}
		}
	}
}

func (g *HistoryGCService) String() string {
	return "history-gc"
}
