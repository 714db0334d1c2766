// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package response

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ActionLogTimeFormat is the timestamp layout of action log lines.
const ActionLogTimeFormat = "2006-01-02 15:04:05.000000"

// ActionLogSink appends "<timestamp> - Blocked IP: <actor>" lines to a file.
type ActionLogSink struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewActionLogSink creates the sink. The file is created on first write.
func NewActionLogSink(path string) *ActionLogSink {
	return &ActionLogSink{path: path, now: time.Now}
}

func (s *ActionLogSink) Name() string { return SinkActionLog }

// Deliver appends one line. The file is reopened per write so external
// rotation of the action log needs no coordination.
func (s *ActionLogSink) Deliver(_ context.Context, action Action) error {
	line := fmt.Sprintf("%s - Blocked IP: %s\n", s.now().Format(ActionLogTimeFormat), action.Event.Actor)

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create action log directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("open action log: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write action log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close action log: %w", err)
	}
	return nil
}

// BlockSink asks the enforcement endpoint to block the actor.
// Only HTTP 200 counts as success; there is no retry.
type BlockSink struct {
	url    string
	client *http.Client
}

// NewBlockSink creates the sink.
func NewBlockSink(url string, timeout time.Duration) *BlockSink {
	return &BlockSink{url: url, client: newHTTPClient(timeout)}
}

func (s *BlockSink) Name() string { return SinkBlock }

func (s *BlockSink) Deliver(ctx context.Context, action Action) error {
	code, _, err := postJSON(ctx, s.client, s.url, map[string]string{"ip": action.Event.Actor}, nil)
	if err != nil {
		return fmt.Errorf("block: %w", err)
	}
	if code != http.StatusOK {
		return statusError(SinkBlock, code)
	}
	return nil
}

// ChatSink posts the message to a chat webhook. Any 2xx is success.
type ChatSink struct {
	url    string
	client *http.Client
}

// NewChatSink creates the sink.
func NewChatSink(webhookURL string, timeout time.Duration) *ChatSink {
	return &ChatSink{url: webhookURL, client: newHTTPClient(timeout)}
}

func (s *ChatSink) Name() string { return SinkChat }

func (s *ChatSink) Deliver(ctx context.Context, action Action) error {
	code, _, err := postJSON(ctx, s.client, s.url, map[string]string{"text": action.Message}, nil)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if code < 200 || code >= 300 {
		return statusError(SinkChat, code)
	}
	return nil
}

// IncidentSink notifies the incident-response endpoint. Only HTTP 200
// counts as success.
type IncidentSink struct {
	url    string
	client *http.Client
}

// NewIncidentSink creates the sink.
func NewIncidentSink(url string, timeout time.Duration) *IncidentSink {
	return &IncidentSink{url: url, client: newHTTPClient(timeout)}
}

func (s *IncidentSink) Name() string { return SinkIncident }

func (s *IncidentSink) Deliver(ctx context.Context, action Action) error {
	code, _, err := postJSON(ctx, s.client, s.url, map[string]string{"message": action.Message}, nil)
	if err != nil {
		return fmt.Errorf("incident: %w", err)
	}
	if code != http.StatusOK {
		return statusError(SinkIncident, code)
	}
	return nil
}

// guardedSink runs a sink behind a circuit breaker.
type guardedSink struct {
	Sink
	breaker *Breaker
}

// WithBreaker wraps s so repeated failures open a circuit and further
// deliveries fail fast with ErrCircuitOpen.
func WithBreaker(s Sink, settings BreakerSettings) Sink {
	return &guardedSink{Sink: s, breaker: NewBreaker(s.Name(), settings)}
}

func (g *guardedSink) Deliver(ctx context.Context, action Action) error {
	return g.breaker.Execute(func() error {
		return g.Sink.Deliver(ctx, action)
	})
}
