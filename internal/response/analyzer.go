// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package response

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/logsentinel/internal/config"
	"github.com/tomtom215/logsentinel/internal/logging"
	"github.com/tomtom215/logsentinel/internal/metrics"
)

// DefaultAnalysisPrompt is sent with each line when none is configured.
const DefaultAnalysisPrompt = "Analyze this log entry for potential security threats:"

type analysisRequest struct {
	LogEntry string `json:"log_entry"`
	Prompt   string `json:"prompt"`
}

type analysisResponse struct {
	Analysis string `json:"analysis"`
}

// Analyzer sends log lines to an LLM endpoint for auxiliary analysis.
// Results are only logged. Requests above the rate limit are dropped.
type Analyzer struct {
	url     string
	apiKey  string
	prompt  string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
	breaker *Breaker
	wg      sync.WaitGroup
}

// NewAnalyzer creates an analyzer from configuration.
func NewAnalyzer(cfg config.AnalysisConfig, timeout time.Duration, bs BreakerSettings) *Analyzer {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultAnalysisPrompt
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Analyzer{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		prompt:  prompt,
		timeout: timeout,
		client:  newHTTPClient(timeout),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		breaker: NewBreaker("analysis", bs),
	}
}

// Analyze starts a background analysis of line and returns immediately.
// It reports whether a request was started. A nil Analyzer does nothing.
func (a *Analyzer) Analyze(line string) bool {
	if a == nil {
		return false
	}
	if !a.limiter.Allow() {
		metrics.AnalysisRequests.WithLabelValues("dropped").Inc()
		logging.Debug().Msg("Analysis rate limit reached, line not analyzed")
		return false
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		analysis, err := a.analyze(ctx, line)
		if err != nil {
			metrics.AnalysisRequests.WithLabelValues("failure").Inc()
			logging.Warn().Err(err).Msg("Log analysis failed")
			return
		}
		metrics.AnalysisRequests.WithLabelValues("success").Inc()
		logging.Info().Str("log_entry", line).Str("analysis", analysis).Msg("Log analysis")
	}()
	return true
}

// Wait blocks until in-flight analyses finish.
func (a *Analyzer) Wait() {
	if a == nil {
		return
	}
	a.wg.Wait()
}

func (a *Analyzer) analyze(ctx context.Context, line string) (string, error) {
	var out analysisResponse
	err := a.breaker.Execute(func() error {
		code, body, err := postJSON(ctx, a.client, a.url,
			analysisRequest{LogEntry: line, Prompt: a.prompt},
			map[string]string{"Authorization": "Bearer " + a.apiKey})
		if err != nil {
			return err
		}
		if code < 200 || code >= 300 {
			return statusError("analysis", code)
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("decode analysis response: %w", err)
		}
		return nil
	})
	return out.Analysis, err
}
