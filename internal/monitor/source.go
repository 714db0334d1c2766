// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/logsentinel/internal/config"
)

var (
	// ErrSourceNotFound means the log file or URL does not exist.
	ErrSourceNotFound = errors.New("log source not found")

	// ErrSourceUnavailable means the source exists but could not be read.
	ErrSourceUnavailable = errors.New("log source unavailable")
)

// Source produces log lines.
//
// Run calls emit for each complete line, in order, from a single goroutine.
// It returns nil when the source is exhausted or ctx is done, and a wrapped
// ErrSourceNotFound or ErrSourceUnavailable when the source cannot be read.
type Source interface {
	Run(ctx context.Context, emit func(line string)) error
}

// NewSource builds the source selected by cfg.Mode.
func NewSource(cfg config.MonitorConfig) (Source, error) {
	switch cfg.Mode {
	case config.ModeTail:
		return NewTailer(cfg.LogFile, cfg.PollInterval), nil
	case config.ModeBatch:
		return NewRemoteSource(cfg.LogURL, cfg.FetchTimeout), nil
	default:
		return nil, fmt.Errorf("unknown monitor mode %q", cfg.Mode)
	}
}
