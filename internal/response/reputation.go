// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package response

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/logsentinel/internal/cache"
	"github.com/tomtom215/logsentinel/internal/config"
	"github.com/tomtom215/logsentinel/internal/metrics"
)

// ErrNotAddress is returned for actors that are not IP addresses, such as
// user names from privilege-escalation rules.
var ErrNotAddress = errors.New("actor is not an IP address")

// Verdict is the reputation of one address.
type Verdict struct {
	// Malicious is the number of engines that flagged the address.
	Malicious int `json:"malicious"`
}

// Flagged reports whether any engine flagged the address.
func (v Verdict) Flagged() bool { return v.Malicious > 0 }

func (v Verdict) String() string {
	if !v.Flagged() {
		return "clean"
	}
	return "malicious, flagged by " + strconv.Itoa(v.Malicious) + " engines"
}

type reputationResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious int `json:"malicious"`
			} `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// ReputationChecker looks addresses up at GET <base>/<ip> with an
// x-apikey header and caches verdicts.
type ReputationChecker struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *cache.LRU[Verdict]
	breaker *Breaker
}

// NewReputationChecker creates a checker from configuration.
func NewReputationChecker(cfg config.ReputationConfig, timeout time.Duration, bs BreakerSettings) *ReputationChecker {
	base := cfg.URL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &ReputationChecker{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  newHTTPClient(timeout),
		cache:   cache.NewLRU[Verdict](cfg.CacheMax, cfg.CacheTTL),
		breaker: NewBreaker("reputation", bs),
	}
}

// Check returns the verdict for actor, from cache when fresh.
func (r *ReputationChecker) Check(ctx context.Context, actor string) (Verdict, error) {
	if net.ParseIP(actor) == nil {
		return Verdict{}, fmt.Errorf("%w: %q", ErrNotAddress, actor)
	}
	if v, ok := r.cache.Get(actor); ok {
		metrics.ReputationLookups.WithLabelValues("cached").Inc()
		return v, nil
	}

	var verdict Verdict
	err := r.breaker.Execute(func() error {
		v, err := r.lookup(ctx, actor)
		verdict = v
		return err
	})
	if err != nil {
		metrics.ReputationLookups.WithLabelValues("error").Inc()
		return Verdict{}, err
	}

	r.cache.Add(actor, verdict)
	if verdict.Flagged() {
		metrics.ReputationLookups.WithLabelValues("malicious").Inc()
	} else {
		metrics.ReputationLookups.WithLabelValues("clean").Inc()
	}
	return verdict, nil
}

func (r *ReputationChecker) lookup(ctx context.Context, ip string) (Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+ip, http.NoBody)
	if err != nil {
		return Verdict{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-apikey", r.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("reputation lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // response body close

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Verdict{}, statusError("reputation", resp.StatusCode)
	}

	var payload reputationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&payload); err != nil {
		return Verdict{}, fmt.Errorf("decode reputation response: %w", err)
	}
	return Verdict{Malicious: payload.Data.Attributes.LastAnalysisStats.Malicious}, nil
}
