// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/logsentinel/config.yaml",
	"/etc/logsentinel/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default rule sets.
var (
	DefaultSuspiciousPatterns = []string{
		`Failed password for .* from (\d+\.\d+\.\d+\.\d+)`,
		`Invalid user \S+ from (\d+\.\d+\.\d+\.\d+)`,
		`Unauthorized access attempt from (\d+\.\d+\.\d+\.\d+)`,
	}
	DefaultPrivilegeEscalationPatterns = []string{
		`User (\w+) escalated privileges to (\w+)`,
		`Unauthorized privilege escalation by (\w+)`,
	}
)

func defaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Mode:         ModeTail,
			LogFile:      "",
			LogURL:       "",
			Duration:     30 * time.Second,
			PollInterval: time.Second,
			FetchTimeout: 30 * time.Second,
			StatusEvery:  100,
		},
		Detection: DetectionConfig{
			SuspiciousPatterns:          append([]string(nil), DefaultSuspiciousPatterns...),
			PrivilegeEscalationPatterns: append([]string(nil), DefaultPrivilegeEscalationPatterns...),
		},
		Anomaly: AnomalyConfig{
			Enabled:            true,
			Trees:              100,
			Contamination:      0.1,
			Seed:               42,
			RetrainThreshold:   5,
			MaxWindow:          2048,
			ModelPath:          "",
			CheckpointInterval: 5 * time.Minute,
		},
		Throttle: ThrottleConfig{
			Cooldown:  time.Minute,
			MaxActors: 100000,
		},
		Response: ResponseConfig{
			SinkTimeout: 10 * time.Second,
			ActionLog: ActionLogConfig{
				Enabled: true,
				Path:    "security_actions.log",
			},
			Email: EmailConfig{
				Port:     587,
				Subject:  "Cybersecurity Alert",
				StartTLS: true,
			},
			Reputation: ReputationConfig{
				URL:      "https://www.virustotal.com/api/v3/ip_addresses/",
				CacheTTL: time.Hour,
				CacheMax: 4096,
			},
			Analysis: AnalysisConfig{
				Prompt:        "Analyze the following log entry for suspicious activity:",
				RatePerSecond: 2,
				Burst:         5,
			},
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Store: StoreConfig{
			Path:      "",
			Retention: 7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            9464,
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration from defaults, an optional YAML file
// and the environment, in increasing precedence, then validates it.
func LoadWithKoanf() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is LoadWithKoanf with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SMTP_USER -> response.email.username, LOG_FILE -> monitor.log_file
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Rule lists set through the environment are split on ";;" because
// regular expressions routinely contain commas.
var sliceConfigPaths = map[string]string{
	"detection.suspicious_patterns":           ";;",
	"detection.privilege_escalation_patterns": ";;",
}

func processSliceFields(k *koanf.Koanf) error {
	for path, sep := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, sep)
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Monitor
	"monitor_mode":          "monitor.mode",
	"log_file":              "monitor.log_file",
	"log_url":               "monitor.log_url",
	"monitor_duration":      "monitor.duration",
	"monitor_poll_interval": "monitor.poll_interval",
	"monitor_fetch_timeout": "monitor.fetch_timeout",
	"monitor_status_every":  "monitor.status_every",

	// Detection
	"suspicious_patterns":           "detection.suspicious_patterns",
	"privilege_escalation_patterns": "detection.privilege_escalation_patterns",

	// Anomaly
	"anomaly_enabled":             "anomaly.enabled",
	"anomaly_trees":               "anomaly.trees",
	"anomaly_contamination":       "anomaly.contamination",
	"anomaly_seed":                "anomaly.seed",
	"anomaly_retrain_threshold":   "anomaly.retrain_threshold",
	"anomaly_max_window":          "anomaly.max_window",
	"anomaly_model_path":          "anomaly.model_path",
	"anomaly_checkpoint_interval": "anomaly.checkpoint_interval",

	// Throttle
	"action_cooldown":     "throttle.cooldown",
	"throttle_max_actors": "throttle.max_actors",

	// Response sinks
	"sink_timeout":          "response.sink_timeout",
	"action_log_enabled":    "response.action_log.enabled",
	"action_log_path":       "response.action_log.path",
	"firewall_api_url":      "response.block.url",
	"smtp_server":           "response.email.host",
	"smtp_port":             "response.email.port",
	"smtp_user":             "response.email.username",
	"smtp_password":         "response.email.password",
	"smtp_from":             "response.email.from",
	"smtp_starttls":         "response.email.starttls",
	"alert_recipient":       "response.email.to",
	"alert_subject":         "response.email.subject",
	"slack_webhook_url":     "response.chat.webhook_url",
	"incident_response_url": "response.incident.url",
	"virustotal_api_url":    "response.reputation.url",
	"virustotal_api_key":    "response.reputation.api_key",
	"reputation_cache_ttl":  "response.reputation.cache_ttl",
	"groq_api_url":          "response.analysis.url",
	"groq_api_key":          "response.analysis.api_key",
	"analysis_rate":         "response.analysis.rate_per_second",
	"analysis_burst":        "response.analysis.burst",
	"breaker_max_failures":  "response.breaker.max_failures",
	"breaker_open_timeout":  "response.breaker.open_timeout",

	// Store
	"store_path":      "store.path",
	"store_retention": "store.retention",

	// Server
	"http_enabled":        "server.enabled",
	"http_host":           "server.host",
	"http_port":           "server.port",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps known environment variables to koanf paths.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
