// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/tomtom215/logsentinel/internal/logging"
	"github.com/tomtom215/logsentinel/internal/metrics"
)

// Tailer follows a growing local file.
//
// It starts at the end of the file and emits only complete lines; a
// trailing fragment is held until its newline arrives. After each drain it
// checks for rotation: if the path now names a different file, the old
// handle is drained and the new file is read from the start. If the file
// shrank below the read offset it was truncated in place and is re-read
// from the start. A copytruncate rotation whose new content already
// reaches past the old offset when checked is not seen as a truncation;
// reading then resumes mid-file.
//
// Wake-ups come from fsnotify events on the parent directory, with
// PollInterval as a fallback for filesystems that do not deliver events.
type Tailer struct {
	path string
	poll time.Duration

	// FromStart reads existing content instead of seeking to the end.
	FromStart bool

	log zerolog.Logger
}

// NewTailer creates a tail source.
func NewTailer(path string, poll time.Duration) *Tailer {
	if poll <= 0 {
		poll = time.Second
	}
	return &Tailer{path: path, poll: poll}
}

// tailState is the cursor over the currently open file.
type tailState struct {
	file    *os.File
	reader  *bufio.Reader
	offset  int64
	partial strings.Builder
}

func (t *Tailer) open(seekEnd bool) (*tailState, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, t.path)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var offset int64
	if seekEnd {
		offset, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: seek: %v", ErrSourceUnavailable, err)
		}
	}
	return &tailState{file: f, reader: bufio.NewReader(f), offset: offset}, nil
}

// Run follows the file until ctx is done.
func (t *Tailer) Run(ctx context.Context, emit func(string)) error {
	t.log = logging.WithComponent("tailer").With().Str("path", t.path).Logger()

	st, err := t.open(!t.FromStart)
	if err != nil {
		return err
	}
	defer func() { _ = st.file.Close() }()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.Warn().Err(err).Msg("File watcher unavailable, falling back to polling")
		watcher = nil
	} else {
		defer func() { _ = watcher.Close() }()
		if err := watcher.Add(filepath.Dir(t.path)); err != nil {
			t.log.Warn().Err(err).Msg("Cannot watch log directory, falling back to polling")
		}
	}

	t.log.Info().Int64("offset", st.offset).Msg("Tailing log file")

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	for {
		if err := st.drain(ctx, emit); err != nil {
			return fmt.Errorf("%w: read: %v", ErrSourceUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil
		}

		next, rotated := t.checkRotation(st)
		if rotated {
			// Anything written to the old file before the rename is still ours.
			if err := st.drain(ctx, emit); err != nil {
				return fmt.Errorf("%w: read: %v", ErrSourceUnavailable, err)
			}
			st.flushPartial(emit)
			_ = st.file.Close()
			st = next
			metrics.SourceRotations.Inc()
			t.log.Info().Msg("Log rotation detected, reopened file")
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
				continue
			}
		case werr, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			t.log.Warn().Err(werr).Msg("File watcher error")
		case <-ticker.C:
		}
	}
}

// checkRotation detects replacement and in-place truncation. On
// replacement it returns a state for the new file; truncation is handled
// in place.
func (t *Tailer) checkRotation(st *tailState) (*tailState, bool) {
	pathInfo, err := os.Stat(t.path)
	if err != nil {
		// Moved away and not yet recreated.
		return nil, false
	}
	fileInfo, err := st.file.Stat()
	if err != nil {
		return nil, false
	}

	if !os.SameFile(fileInfo, pathInfo) {
		next, err := t.open(false)
		if err != nil {
			t.log.Warn().Err(err).Msg("Rotated log file not readable yet")
			return nil, false
		}
		return next, true
	}

	if fileInfo.Size() < st.offset {
		if _, err := st.file.Seek(0, io.SeekStart); err != nil {
			t.log.Warn().Err(err).Msg("Seek after truncation failed")
			return nil, false
		}
		st.reader.Reset(st.file)
		st.offset = 0
		st.partial.Reset()
		metrics.SourceRotations.Inc()
		t.log.Info().Msg("Log truncation detected, reading from start")
	}
	return nil, false
}

// drain emits every complete line available now.
func (st *tailState) drain(ctx context.Context, emit func(string)) error {
	for ctx.Err() == nil {
		chunk, err := st.reader.ReadString('\n')
		st.offset += int64(len(chunk))
		st.partial.WriteString(chunk)

		if err == nil {
			line := strings.TrimRight(st.partial.String(), "\r\n")
			st.partial.Reset()
			if line != "" {
				emit(line)
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// flushPartial emits an unterminated final line of a rotated-away file.
func (st *tailState) flushPartial(emit func(string)) {
	if st.partial.Len() == 0 {
		return
	}
	line := strings.TrimRight(st.partial.String(), "\r\n")
	st.partial.Reset()
	if line != "" {
		emit(line)
	}
}
