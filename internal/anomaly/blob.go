// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package anomaly

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ErrCorruptModel is returned when a blob fails to decode or verify.
var ErrCorruptModel = errors.New("corrupt model blob")

// blobFormat is bumped whenever modelState changes incompatibly.
const blobFormat = 1

// blobFile is the outer, uncompressed envelope.
type blobFile struct {
	Format     int
	Checksum   string
	Compressed []byte
}

// modelState is everything needed to resume a session.
type modelState struct {
	Config    Config
	Model     forest
	Window    [][]float64
	Width     int
	Version   int
	TrainedAt time.Time
	SavedAt   time.Time
}

// Export serializes the fitted model and training window.
// Exporting an Untrained scorer returns ErrUntrained.
func (s *Scorer) Export() ([]byte, error) {
	s.mu.RLock()
	if s.model == nil {
		s.mu.RUnlock()
		return nil, ErrUntrained
	}
	state := modelState{
		Config:    s.cfg,
		Model:     *s.model,
		Window:    s.window.snapshot(),
		Width:     s.width,
		Version:   s.version,
		TrainedAt: s.trainedAt,
		SavedAt:   time.Now(),
	}
	// gob encodes while the lock is held because the forest and window share memory.
	var raw bytes.Buffer
	err := gob.NewEncoder(&raw).Encode(state)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}

	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(blobFile{
		Format:     blobFormat,
		Checksum:   hex.EncodeToString(hash[:]),
		Compressed: compressed.Bytes(),
	}); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out.Bytes(), nil
}

// Import replaces the model and training window with the blob contents and
// moves to Trained. On error the scorer is unchanged.
func (s *Scorer) Import(blob []byte) error {
	var bf blobFile
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&bf); err != nil {
		return fmt.Errorf("%w: envelope: %v", ErrCorruptModel, err)
	}
	if bf.Format != blobFormat {
		return fmt.Errorf("%w: format %d, want %d", ErrCorruptModel, bf.Format, blobFormat)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(bf.Compressed))
	if err != nil {
		return fmt.Errorf("%w: decompress: %v", ErrCorruptModel, err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // close after full read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return fmt.Errorf("%w: decompress: %v", ErrCorruptModel, err)
	}

	hash := sha256.Sum256(raw)
	if got := hex.EncodeToString(hash[:]); got != bf.Checksum {
		return fmt.Errorf("%w: checksum mismatch: expected %s, got %s", ErrCorruptModel, bf.Checksum, got)
	}

	var state modelState
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&state); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrCorruptModel, err)
	}
	if !state.Model.valid() || state.Width != state.Model.Width {
		return fmt.Errorf("%w: invalid forest", ErrCorruptModel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w := newWindow(s.cfg.MaxWindow)
	for _, v := range state.Window {
		if len(v) == state.Width {
			w.add(v)
		}
	}
	model := state.Model
	s.model = &model
	s.window = w
	s.width = state.Width
	s.version = state.Version + 1
	s.trainedAt = state.TrainedAt
	return nil
}

// SaveFile writes Export output to path atomically.
func (s *Scorer) SaveFile(path string) error {
	blob, err := s.Export()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename model file: %w", err)
	}
	return nil
}

// LoadFile imports a blob written by SaveFile. A missing file is reported
// with an error wrapping fs.ErrNotExist.
func (s *Scorer) LoadFile(path string) error {
	blob, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("read model file: %w", err)
	}
	return s.Import(blob)
}
