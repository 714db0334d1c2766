// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package store persists the history of dispatched response actions in
// BadgerDB.
//
// Records are keyed by dispatch time so iteration order is chronological,
// and every record carries a native badger TTL equal to the retention
// period. The history is used by the status API and to warm-start the
// throttler after a restart, so an actor blocked just before shutdown is
// not blocked again as soon as the process comes back.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/logsentinel/internal/logging"
	"github.com/tomtom215/logsentinel/internal/metrics"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("action store is closed")

const (
	prefixAction = "action:"

	// DefaultRetention applies when Config.Retention is zero.
	DefaultRetention = 7 * 24 * time.Hour

	gcRatio = 0.5
)

// ActionRecord is one dispatched response.
type ActionRecord struct {
	ID         string            `json:"id"`
	Actor      string            `json:"actor"`
	Cause      string            `json:"cause"`
	Rule       string            `json:"rule,omitempty"`
	Message    string            `json:"message"`
	Reputation string            `json:"reputation,omitempty"`
	Delivered  []string          `json:"delivered,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"`
	At         time.Time         `json:"at"`
}

// Config configures the store.
type Config struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory.
	InMemory bool

	Retention time.Duration
}

// Store is the badger-backed action history.
type Store struct {
	db        *badger.DB
	retention time.Duration

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*Store, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open action store: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("retention", cfg.Retention).
		Msg("Action store opened")

	return &Store{db: db, retention: cfg.Retention}, nil
}

// makeKey orders keys by time; zero padding keeps lexical and numeric
// order the same.
func makeKey(at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixAction, at.UnixNano(), id))
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Record persists rec. A zero At is set to now.
func (s *Store) Record(ctx context.Context, rec *ActionRecord) error {
	if err := s.checkOpen(); err != nil {
		metrics.HistoryWrites.WithLabelValues("failure").Inc()
		return err
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		metrics.HistoryWrites.WithLabelValues("failure").Inc()
		return fmt.Errorf("marshal action record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(makeKey(rec.At, rec.ID), data).WithTTL(s.retention))
	})
	if err != nil {
		metrics.HistoryWrites.WithLabelValues("failure").Inc()
		return fmt.Errorf("write action record: %w", err)
	}

	metrics.HistoryWrites.WithLabelValues("success").Inc()
	return nil
}

// List returns up to limit records, newest first. An empty actor matches
// every record; limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, actor string, limit int) ([]ActionRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var out []ActionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixAction)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key under the prefix.
		seek := append([]byte(prefixAction), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			var rec ActionRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Skipping unreadable action record")
				continue
			}
			if actor != "" && rec.Actor != actor {
				continue
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list action records: %w", err)
	}
	return out, nil
}

// LatestPerActor returns the most recent action time per actor for records
// at or after since.
func (s *Store) LatestPerActor(ctx context.Context, since time.Time) (map[string]time.Time, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	latest := make(map[string]time.Time)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixAction)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(makeKey(since, "")); it.Valid(); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var rec ActionRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			if rec.At.After(latest[rec.Actor]) {
				latest[rec.Actor] = rec.At
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan action records: %w", err)
	}
	return latest, nil
}

// RunGC reclaims value log space left behind by expired records.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for {
		err := s.db.RunValueLogGC(gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the underlying database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close action store: %w", err)
	}
	logging.Info().Msg("Action store closed")
	return nil
}
