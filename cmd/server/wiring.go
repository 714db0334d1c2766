// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/tomtom215/logsentinel/internal/anomaly"
	"github.com/tomtom215/logsentinel/internal/config"
	"github.com/tomtom215/logsentinel/internal/detection"
	"github.com/tomtom215/logsentinel/internal/logging"
	"github.com/tomtom215/logsentinel/internal/store"
	"github.com/tomtom215/logsentinel/internal/throttle"
)

// openHistory returns nil when no store path is configured.
func openHistory(cfg config.StoreConfig) (*store.Store, error) {
	if cfg.Path == "" {
		logging.Info().Msg("Action history disabled (STORE_PATH not set)")
		return nil, nil
	}
	return store.Open(store.Config{Path: cfg.Path, Retention: cfg.Retention})
}

func buildMatcher(cfg config.DetectionConfig) (*detection.Matcher, error) {
	m, err := detection.NewMatcher(cfg.SuspiciousPatterns, cfg.PrivilegeEscalationPatterns)
	if err != nil {
		return nil, err
	}
	patterns, escalation := m.Rules()
	logging.Info().
		Int("suspicious_patterns", patterns).
		Int("escalation_patterns", escalation).
		Msg("Detection rules compiled")
	return m, nil
}

func buildThrottler(cfg config.ThrottleConfig) *throttle.Throttler {
	return throttle.New(cfg.Cooldown, cfg.MaxActors)
}

// buildScorer returns nil when anomaly detection is disabled. A saved model
// at cfg.ModelPath is restored; a missing file starts untrained and a
// corrupt one is logged and ignored.
func buildScorer(cfg config.AnomalyConfig) *anomaly.Scorer {
	if !cfg.Enabled {
		logging.Info().Msg("Anomaly detection disabled")
		return nil
	}

	scorer := anomaly.NewScorer(anomaly.Config{
		Trees:         cfg.Trees,
		Contamination: cfg.Contamination,
		Seed:          cfg.Seed,
		MaxWindow:     cfg.MaxWindow,
	})
	if cfg.ModelPath == "" {
		return scorer
	}

	err := scorer.LoadFile(cfg.ModelPath)
	switch {
	case err == nil:
		logging.Info().
			Str("path", cfg.ModelPath).
			Int("window", scorer.Len()).
			Time("trained_at", scorer.TrainedAt()).
			Msg("Anomaly model restored")
	case errors.Is(err, fs.ErrNotExist):
		logging.Info().Str("path", cfg.ModelPath).Msg("No saved anomaly model, starting untrained")
	default:
		logging.Warn().Err(err).Str("path", cfg.ModelPath).Msg("Ignoring unreadable anomaly model")
	}
	return scorer
}

// warmStart seeds the throttler with every actor actioned within one cooldown
// of now, so a restart does not repeat an alert that was just sent.
func warmStart(ctx context.Context, t *throttle.Throttler, history *store.Store, now time.Time) (int, error) {
	latest, err := history.LatestPerActor(ctx, now.Add(-t.Cooldown()))
	if err != nil {
		return 0, fmt.Errorf("read recent actions: %w", err)
	}
	for actor, at := range latest {
		t.Seed(actor, at)
	}
	return len(latest), nil
}
