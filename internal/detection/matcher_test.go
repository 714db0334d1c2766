// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package detection

import (
	"errors"
	"testing"
	"time"
)

var testEscalation = []string{
	`User (\w+) escalated privileges to (\w+)`,
	`Unauthorized privilege escalation by (\w+)`,
}

func TestNewMatcher_Errors(t *testing.T) {
	t.Run("invalid regexp", func(t *testing.T) {
		if _, err := NewMatcher([]string{`from (\d+`}, nil); err == nil {
			t.Fatal("expected compile error")
		}
	})

	t.Run("no capture group", func(t *testing.T) {
		_, err := NewMatcher(nil, []string{`escalation`})
		if !errors.Is(err, ErrNoCaptureGroup) {
			t.Fatalf("expected ErrNoCaptureGroup, got %v", err)
		}
	})
}

func TestMatchPattern_FirstRuleWins(t *testing.T) {
	// Both rules match; the second would capture a longer span.
	m, err := NewMatcher([]string{
		`from (\d+\.\d+)`,
		`Failed password for root from (\d+\.\d+\.\d+\.\d+)`,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := m.MatchPattern("2025-01-21 04:40:07 Failed password for root from 10.1.2.3 port 22")
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Actor != "10.1" {
		t.Errorf("Actor = %q, want first rule's capture 10.1", got.Actor)
	}
	if got.Rule != `from (\d+\.\d+)` {
		t.Errorf("Rule = %q", got.Rule)
	}
	if got.Cause != CausePattern {
		t.Errorf("Cause = %q", got.Cause)
	}
}

func TestMatchPattern_NoMatch(t *testing.T) {
	m, err := NewMatcher([]string{`Failed login from (\d+\.\d+\.\d+\.\d+)`}, testEscalation)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.MatchPattern("2025-01-21 04:40:07 Accepted login from 10.0.0.1"); ok {
		t.Error("expected no match")
	}
}

func TestMatchPattern_SkipsEmptyCapture(t *testing.T) {
	m, err := NewMatcher([]string{`denied(?: for (\w+))?`, `blocked (\w+)`}, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := m.MatchPattern("request denied, blocked mallory")
	if !ok || got.Actor != "mallory" {
		t.Fatalf("got %+v ok=%v, want actor mallory from second rule", got, ok)
	}
}

func TestMatchEscalation(t *testing.T) {
	m, err := NewMatcher(nil, testEscalation)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		line      string
		wantOK    bool
		wantActor string
		wantRole  string
	}{
		{"2025-01-21 04:40:07 User alice escalated privileges to root", true, "alice", "root"},
		{"2025-01-21 04:40:07 Unauthorized privilege escalation by bob", true, "bob", UnknownRole},
		{"2025-01-21 04:40:07 User carol logged in", false, "", ""},
	}
	for _, tt := range tests {
		got, ok := m.MatchEscalation(tt.line)
		if ok != tt.wantOK {
			t.Errorf("MatchEscalation(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if got.Actor != tt.wantActor || got.Detail != tt.wantRole {
			t.Errorf("MatchEscalation(%q) = %+v", tt.line, got)
		}
		if got.Cause != CausePrivilegeEscalation {
			t.Errorf("Cause = %q", got.Cause)
		}
	}
}

func TestEvaluate_EscalationFirst(t *testing.T) {
	m, err := NewMatcher([]string{`from (\d+\.\d+\.\d+\.\d+)`}, testEscalation)
	if err != nil {
		t.Fatal(err)
	}

	matches := m.Evaluate("User eve escalated privileges to admin from 172.16.0.4")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Cause != CausePrivilegeEscalation || matches[0].Actor != "eve" {
		t.Errorf("first match = %+v, want escalation by eve", matches[0])
	}
	if matches[1].Cause != CausePattern || matches[1].Actor != "172.16.0.4" {
		t.Errorf("second match = %+v, want pattern 172.16.0.4", matches[1])
	}

	if got := m.Evaluate("nothing here"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestFromMatch(t *testing.T) {
	at := time.Date(2025, 1, 21, 4, 40, 7, 0, time.UTC)
	ev := FromMatch(Match{Actor: "alice", Cause: CausePrivilegeEscalation, Rule: "r", Detail: "root"}, "line", at)
	if ev.ID == "" {
		t.Error("expected event ID")
	}
	if ev.Actor != "alice" || ev.Detail != "root" || ev.Rule != "r" || !ev.DetectedAt.Equal(at) {
		t.Errorf("unexpected event %+v", ev)
	}
}
