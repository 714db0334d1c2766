// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package detection turns raw log lines into signals.
//
// Two pure components live here:
//   - Extract: line -> numeric feature vector plus actor address
//   - Matcher: ordered regular-expression rules, first match wins
//
// Neither keeps state between calls, so both are safe for concurrent use.
package detection

import (
	"time"

	"github.com/google/uuid"
)

// Cause identifies why an event was raised.
type Cause string

const (
	// CausePattern is a match against a configured suspicious pattern.
	CausePattern Cause = "pattern"

	// CauseAnomaly is an outlier reported by the anomaly scorer.
	CauseAnomaly Cause = "anomaly"

	// CausePrivilegeEscalation is a match against the privilege-escalation rule set.
	CausePrivilegeEscalation Cause = "privilege_escalation"
)

// FeatureWidth is the number of fields in a FeatureVector.
const FeatureWidth = 2

// FeatureVector is [last address octet (0-255), hour of day (0-23)].
type FeatureVector []float64

// Features is the result of a successful extraction.
type Features struct {
	Vector FeatureVector
	// Actor is the dotted-quad address the vector was derived from.
	Actor string
}

// Event is a detected signal attributed to one actor.
type Event struct {
	ID       string `json:"id"`
	Actor    string `json:"actor"`
	Cause    Cause  `json:"cause"`
	Evidence string `json:"evidence"`
	// Rule is the pattern that matched; empty for anomalies.
	Rule string `json:"rule,omitempty"`
	// Detail carries cause-specific context such as the escalation target role.
	Detail     string    `json:"detail,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// NewEvent builds an Event with a fresh ID.
func NewEvent(actor string, cause Cause, evidence string, at time.Time) Event {
	return Event{
		ID:         uuid.New().String(),
		Actor:      actor,
		Cause:      cause,
		Evidence:   evidence,
		DetectedAt: at,
	}
}

// FromMatch builds an Event from a rule match.
func FromMatch(m Match, evidence string, at time.Time) Event {
	ev := NewEvent(m.Actor, m.Cause, evidence, at)
	ev.Rule = m.Rule
	ev.Detail = m.Detail
	return ev
}
