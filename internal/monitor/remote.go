// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package monitor

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/logsentinel/internal/logging"
)

// maxLineBytes caps a single log line in batch mode.
const maxLineBytes = 1 << 20

// RemoteSource fetches a log over HTTP once and emits its lines.
type RemoteSource struct {
	url    string
	client *http.Client
}

// NewRemoteSource creates a batch source.
func NewRemoteSource(url string, timeout time.Duration) *RemoteSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteSource{url: url, client: &http.Client{Timeout: timeout}}
}

// Run fetches the log and emits each trimmed, non-empty line.
func (s *RemoteSource) Run(ctx context.Context, emit func(string)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: fetch %s: %v", ErrSourceUnavailable, s.url, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // response body close

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSourceNotFound, s.url)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s returned status %d", ErrSourceUnavailable, s.url, resp.StatusCode)
	}

	logging.Info().Str("url", s.url).Msg("Processing remote log")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		emit(line)
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: read body: %v", ErrSourceUnavailable, err)
	}
	return nil
}
