// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package detection

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNoCaptureGroup is returned for a rule that cannot yield an actor.
var ErrNoCaptureGroup = errors.New("rule has no capture group")

// UnknownRole is reported when an escalation rule does not capture a target role.
const UnknownRole = "unknown"

// Match is a successful rule evaluation.
type Match struct {
	Actor string
	Cause Cause
	Rule  string
	// Detail is the escalation target role for privilege-escalation matches.
	Detail string
}

type rule struct {
	pattern string
	re      *regexp.Regexp
}

// Matcher evaluates two ordered rule sets against log lines.
// Within a set the first rule that matches wins, regardless of match length.
type Matcher struct {
	escalation []rule
	patterns   []rule
}

// NewMatcher compiles both rule sets. Every rule must compile and contain
// at least one capture group; group 1 is the actor.
func NewMatcher(patterns, escalation []string) (*Matcher, error) {
	p, err := compileRules(patterns)
	if err != nil {
		return nil, fmt.Errorf("suspicious patterns: %w", err)
	}
	e, err := compileRules(escalation)
	if err != nil {
		return nil, fmt.Errorf("privilege escalation patterns: %w", err)
	}
	return &Matcher{escalation: e, patterns: p}, nil
}

func compileRules(patterns []string) ([]rule, error) {
	rules := make([]rule, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("rule %d %q: %w", i, p, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("rule %d %q: %w", i, p, ErrNoCaptureGroup)
		}
		rules = append(rules, rule{pattern: p, re: re})
	}
	return rules, nil
}

// MatchEscalation evaluates the privilege-escalation rules.
func (m *Matcher) MatchEscalation(line string) (Match, bool) {
	r, groups, ok := firstMatch(m.escalation, line)
	if !ok {
		return Match{}, false
	}
	role := UnknownRole
	if len(groups) > 2 && groups[2] != "" {
		role = groups[2]
	}
	return Match{
		Actor:  groups[1],
		Cause:  CausePrivilegeEscalation,
		Rule:   r.pattern,
		Detail: role,
	}, true
}

// MatchPattern evaluates the suspicious-pattern rules.
func (m *Matcher) MatchPattern(line string) (Match, bool) {
	r, groups, ok := firstMatch(m.patterns, line)
	if !ok {
		return Match{}, false
	}
	return Match{Actor: groups[1], Cause: CausePattern, Rule: r.pattern}, true
}

// Evaluate runs the escalation set, then the pattern set, and returns
// every match in that order. At most one match per set is returned.
func (m *Matcher) Evaluate(line string) []Match {
	var out []Match
	if esc, ok := m.MatchEscalation(line); ok {
		out = append(out, esc)
	}
	if pat, ok := m.MatchPattern(line); ok {
		out = append(out, pat)
	}
	return out
}

// Rules returns the number of compiled rules in each set.
func (m *Matcher) Rules() (patterns, escalation int) {
	return len(m.patterns), len(m.escalation)
}

// firstMatch skips rules whose actor group did not participate or is empty.
func firstMatch(rules []rule, line string) (rule, []string, bool) {
	for _, r := range rules {
		groups := r.re.FindStringSubmatch(line)
		if groups == nil || groups[1] == "" {
			continue
		}
		return r, groups, true
	}
	return rule{}, nil, false
}
