// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package config loads LogSentinel configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment Variables: explicit mapping in envTransformFunc
//
// The resulting *Config is built once in main and passed by reference to
// every component. Nothing in this package is read after startup.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Monitor   MonitorConfig   `koanf:"monitor"`
	Detection DetectionConfig `koanf:"detection"`
	Anomaly   AnomalyConfig   `koanf:"anomaly"`
	Throttle  ThrottleConfig  `koanf:"throttle"`
	Response  ResponseConfig  `koanf:"response"`
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// Ingestion modes.
const (
	ModeTail  = "tail"
	ModeBatch = "batch"
)

// MonitorConfig controls the log source and the monitoring loop.
type MonitorConfig struct {
	// Mode is "tail" (follow a local file) or "batch" (fetch LogURL once).
	Mode string `koanf:"mode" validate:"oneof=tail batch"`

	// LogFile is the local file followed in tail mode.
	LogFile string `koanf:"log_file"`

	// LogURL is fetched once in batch mode.
	LogURL string `koanf:"log_url"`

	// Duration bounds a tail-mode run. Zero runs until stopped.
	// Default: 30s
	Duration time.Duration `koanf:"duration" validate:"min=0"`

	// PollInterval is the fallback wake-up when no file event arrives.
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`

	// FetchTimeout bounds the batch-mode HTTP fetch.
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`

	// StatusEvery logs a progress line every N processed lines. Zero disables.
	StatusEvery int `koanf:"status_every" validate:"min=0"`
}

// DetectionConfig holds the ordered rule lists.
// Each rule is a regular expression whose first capture group is the actor.
type DetectionConfig struct {
	SuspiciousPatterns          []string `koanf:"suspicious_patterns" validate:"dive,required"`
	PrivilegeEscalationPatterns []string `koanf:"privilege_escalation_patterns" validate:"dive,required"`
}

// AnomalyConfig configures the isolation forest scorer.
type AnomalyConfig struct {
	Enabled bool `koanf:"enabled"`

	// Trees is the number of isolation trees per fit.
	Trees int `koanf:"trees" validate:"min=1,max=1000"`

	// Contamination is the expected outlier fraction of the training window.
	Contamination float64 `koanf:"contamination" validate:"gt=0,lt=0.5"`

	// Seed makes fits reproducible.
	Seed int64 `koanf:"seed"`

	// RetrainThreshold is the window size that must be exceeded before
	// the loop retrains and scores.
	RetrainThreshold int `koanf:"retrain_threshold" validate:"min=1"`

	// MaxWindow caps the training window. Zero means unbounded.
	MaxWindow int `koanf:"max_window" validate:"min=0"`

	// ModelPath is where the fitted model is checkpointed. Empty disables.
	ModelPath string `koanf:"model_path"`

	// CheckpointInterval is how often the model is written to ModelPath.
	CheckpointInterval time.Duration `koanf:"checkpoint_interval" validate:"gt=0"`
}

// ThrottleConfig configures the per-actor cooldown.
type ThrottleConfig struct {
	Cooldown time.Duration `koanf:"cooldown" validate:"gt=0"`

	// MaxActors is the table size at which expired entries are swept.
	// Unexpired entries are never evicted, so the bound is soft.
	MaxActors int `koanf:"max_actors" validate:"min=1"`
}

// ResponseConfig configures the response sinks.
// A sink with no endpoint configured is disabled.
type ResponseConfig struct {
	// SinkTimeout bounds every individual outbound call.
	SinkTimeout time.Duration `koanf:"sink_timeout" validate:"gt=0"`

	ActionLog  ActionLogConfig  `koanf:"action_log"`
	Block      BlockConfig      `koanf:"block"`
	Email      EmailConfig      `koanf:"email"`
	Chat       ChatConfig       `koanf:"chat"`
	Incident   IncidentConfig   `koanf:"incident"`
	Reputation ReputationConfig `koanf:"reputation"`
	Analysis   AnalysisConfig   `koanf:"analysis"`
	Breaker    BreakerConfig    `koanf:"breaker"`
}

// ActionLogConfig configures the local append-only action log.
type ActionLogConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// BlockConfig configures the enforcement endpoint.
type BlockConfig struct {
	URL string `koanf:"url"`
}

// EmailConfig configures SMTP alerts.
type EmailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=1,max=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	To       string `koanf:"to"`
	Subject  string `koanf:"subject"`
	// StartTLS is required unless the server is loopback.
	StartTLS bool `koanf:"starttls"`
}

// Enabled reports whether enough is configured to send mail.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.To != ""
}

// ChatConfig configures the chat webhook.
type ChatConfig struct {
	WebhookURL string `koanf:"webhook_url"`
}

// IncidentConfig configures the incident-response endpoint.
type IncidentConfig struct {
	URL string `koanf:"url"`
}

// ReputationConfig configures IP reputation lookups.
type ReputationConfig struct {
	// URL is the lookup base; the actor address is appended.
	URL      string        `koanf:"url"`
	APIKey   string        `koanf:"api_key"`
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gt=0"`
	CacheMax int           `koanf:"cache_max" validate:"min=1"`
}

// Enabled reports whether lookups should be attempted.
func (r ReputationConfig) Enabled() bool {
	return r.URL != "" && r.APIKey != ""
}

// AnalysisConfig configures the per-line LLM analysis call.
type AnalysisConfig struct {
	URL    string `koanf:"url"`
	APIKey string `koanf:"api_key"`
	Prompt string `koanf:"prompt"`

	// RatePerSecond and Burst bound outbound analysis requests.
	// Lines above the limit are not analysed.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gt=0"`
	Burst         int     `koanf:"burst" validate:"min=1"`
}

// BreakerConfig configures the circuit breakers around HTTP sinks.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32 `koanf:"max_failures" validate:"min=1"`
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

// StoreConfig configures the action history store.
type StoreConfig struct {
	// Path is the badger directory. Empty disables persistence.
	Path string `koanf:"path"`

	// Retention is how long action records are kept.
	Retention time.Duration `koanf:"retention" validate:"gt=0"`
}

// ServerConfig configures the status/metrics HTTP server.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"min=1,max=65535"`

	// RateLimitReqs per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
