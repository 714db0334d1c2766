// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package anomaly implements the isolation forest scorer.
//
// A Scorer is a two-state machine:
//
//	Untrained --Retrain/Import--> Trained --Retrain/Import--> Trained
//
// Update is legal in both states and only appends to the training window.
// Score is legal only once Trained and returns ErrUntrained otherwise; a
// caller must never read "not anomalous" out of an untrained model.
//
// # Thread Safety
//
// Retrain and Import take an exclusive lock; Score takes a shared lock.
package anomaly

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUntrained is returned by Score before the first successful fit.
	ErrUntrained = errors.New("anomaly model is untrained")

	// ErrInsufficientData is returned by Retrain with fewer than two vectors.
	ErrInsufficientData = errors.New("not enough training data")

	// ErrDimensionMismatch is returned for vectors of the wrong width.
	ErrDimensionMismatch = errors.New("feature vector dimension mismatch")
)

// State is the scorer lifecycle state.
type State int

const (
	Untrained State = iota
	Trained
)

func (s State) String() string {
	if s == Trained {
		return "trained"
	}
	return "untrained"
}

// Config configures a Scorer.
type Config struct {
	// Trees is the number of isolation trees.
	// Default: 100.
	Trees int

	// Contamination is the expected outlier fraction of the training data.
	// Default: 0.1.
	Contamination float64

	// Seed makes fits deterministic for a given window.
	// Default: 42.
	Seed int64

	// MaxWindow caps the training window. 0 means unbounded.
	MaxWindow int
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		Trees:         100,
		Contamination: 0.1,
		Seed:          42,
		MaxWindow:     2048,
	}
}

// Scorer owns the training window and the fitted model.
type Scorer struct {
	mu sync.RWMutex

	cfg    Config
	window *window
	width  int

	model     *forest
	version   int
	trainedAt time.Time
}

// NewScorer creates an Untrained scorer. Zero config fields take defaults.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		cfg.Contamination = def.Contamination
	}
	if cfg.MaxWindow < 0 {
		cfg.MaxWindow = 0
	}
	return &Scorer{cfg: cfg, window: newWindow(cfg.MaxWindow)}
}

// Update appends a copy of v to the training window.
func (s *Scorer) Update(v []float64) error {
	if len(v) == 0 {
		return ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.width == 0 {
		s.width = len(v)
	} else if len(v) != s.width {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), s.width)
	}
	s.window.add(append([]float64(nil), v...))
	return nil
}

// Retrain fits a fresh model over the whole window and moves to Trained.
// The previous model stays in place if the fit fails.
func (s *Scorer) Retrain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window.len() < 2 {
		return fmt.Errorf("%w: have %d vectors", ErrInsufficientData, s.window.len())
	}
	s.model = fitForest(s.window.snapshot(), s.cfg.Trees, s.cfg.Contamination, s.cfg.Seed)
	s.version++
	s.trainedAt = time.Now()
	return nil
}

// Score reports whether v is an outlier under the current model.
func (s *Scorer) Score(v []float64) (bool, error) {
	score, threshold, err := s.evaluate(v)
	if err != nil {
		return false, err
	}
	return score > threshold, nil
}

// AnomalyScore returns the raw isolation score in (0, 1].
func (s *Scorer) AnomalyScore(v []float64) (float64, error) {
	score, _, err := s.evaluate(v)
	return score, err
}

func (s *Scorer) evaluate(v []float64) (score, threshold float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.model == nil {
		return 0, 0, ErrUntrained
	}
	if len(v) != s.model.Width {
		return 0, 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), s.model.Width)
	}
	return s.model.score(v), s.model.Threshold, nil
}

// State returns the current lifecycle state.
func (s *Scorer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return Untrained
	}
	return Trained
}

// Len returns the training window size.
func (s *Scorer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window.len()
}

// Version counts successful fits and imports.
func (s *Scorer) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// TrainedAt returns when the current model was fitted.
func (s *Scorer) TrainedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trainedAt
}
