// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Monitor.Mode != ModeTail {
		t.Errorf("Monitor.Mode = %q, want tail", cfg.Monitor.Mode)
	}
	if cfg.Monitor.Duration != 30*time.Second {
		t.Errorf("Monitor.Duration = %v, want 30s", cfg.Monitor.Duration)
	}
	if cfg.Throttle.Cooldown != time.Minute {
		t.Errorf("Throttle.Cooldown = %v, want 1m", cfg.Throttle.Cooldown)
	}
	if cfg.Anomaly.Trees != 100 {
		t.Errorf("Anomaly.Trees = %d, want 100", cfg.Anomaly.Trees)
	}
	if cfg.Anomaly.Contamination != 0.1 {
		t.Errorf("Anomaly.Contamination = %v, want 0.1", cfg.Anomaly.Contamination)
	}
	if cfg.Anomaly.RetrainThreshold != 5 {
		t.Errorf("Anomaly.RetrainThreshold = %d, want 5", cfg.Anomaly.RetrainThreshold)
	}
	if cfg.Response.Email.Subject != "Cybersecurity Alert" {
		t.Errorf("Email.Subject = %q", cfg.Response.Email.Subject)
	}
	if cfg.Response.ActionLog.Path != "security_actions.log" {
		t.Errorf("ActionLog.Path = %q", cfg.Response.ActionLog.Path)
	}
	if len(cfg.Detection.PrivilegeEscalationPatterns) != 2 {
		t.Errorf("expected 2 privilege escalation patterns, got %d", len(cfg.Detection.PrivilegeEscalationPatterns))
	}

	// Defaults must not alias the package-level rule slices.
	cfg.Detection.SuspiciousPatterns[0] = "changed"
	if DefaultSuspiciousPatterns[0] == "changed" {
		t.Error("defaultConfig aliases DefaultSuspiciousPatterns")
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOG_FILE", "/var/log/auth.log")
	t.Setenv("MONITOR_DURATION", "45s")
	t.Setenv("ACTION_COOLDOWN", "2m")
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "alerts@example.com")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("ALERT_RECIPIENT", "soc@example.com")
	t.Setenv("FIREWALL_API_URL", "http://firewall.local/api/block_ip")
	t.Setenv("SUSPICIOUS_PATTERNS", `Failed login from (\d+\.\d+\.\d+\.\d+);; Denied (\S+)`)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Monitor.LogFile != "/var/log/auth.log" {
		t.Errorf("LogFile = %q", cfg.Monitor.LogFile)
	}
	if cfg.Monitor.Duration != 45*time.Second {
		t.Errorf("Duration = %v, want 45s", cfg.Monitor.Duration)
	}
	if cfg.Throttle.Cooldown != 2*time.Minute {
		t.Errorf("Cooldown = %v, want 2m", cfg.Throttle.Cooldown)
	}
	if cfg.Response.Email.Port != 2525 {
		t.Errorf("Email.Port = %d, want 2525", cfg.Response.Email.Port)
	}
	if !cfg.Response.Email.Enabled() {
		t.Error("expected email to be enabled")
	}
	if cfg.Response.Block.URL != "http://firewall.local/api/block_ip" {
		t.Errorf("Block.URL = %q", cfg.Response.Block.URL)
	}
	want := []string{`Failed login from (\d+\.\d+\.\d+\.\d+)`, `Denied (\S+)`}
	if len(cfg.Detection.SuspiciousPatterns) != len(want) {
		t.Fatalf("SuspiciousPatterns = %v, want %v", cfg.Detection.SuspiciousPatterns, want)
	}
	for i := range want {
		if cfg.Detection.SuspiciousPatterns[i] != want[i] {
			t.Errorf("SuspiciousPatterns[%d] = %q, want %q", i, cfg.Detection.SuspiciousPatterns[i], want[i])
		}
	}
}

func TestLoadWithKoanf_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
monitor:
  mode: batch
  log_url: https://logs.example.com/auth.log
throttle:
  cooldown: 90s
detection:
  suspicious_patterns:
    - 'Blocked (\d+\.\d+\.\d+\.\d+)'
anomaly:
  max_window: 0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	// Environment still wins over the file.
	t.Setenv("ACTION_COOLDOWN", "3m")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Monitor.Mode != ModeBatch {
		t.Errorf("Mode = %q, want batch", cfg.Monitor.Mode)
	}
	if cfg.Throttle.Cooldown != 3*time.Minute {
		t.Errorf("Cooldown = %v, want 3m from env", cfg.Throttle.Cooldown)
	}
	if len(cfg.Detection.SuspiciousPatterns) != 1 {
		t.Errorf("SuspiciousPatterns = %v", cfg.Detection.SuspiciousPatterns)
	}
	if cfg.Anomaly.MaxWindow != 0 {
		t.Errorf("MaxWindow = %d, want 0", cfg.Anomaly.MaxWindow)
	}
	// Untouched sections keep their defaults.
	if cfg.Anomaly.Trees != 100 {
		t.Errorf("Trees = %d, want 100", cfg.Anomaly.Trees)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid tail config",
			mutate: func(c *Config) { c.Monitor.LogFile = "/var/log/auth.log" },
		},
		{
			name:    "tail without file",
			mutate:  func(c *Config) {},
			wantErr: "LOG_FILE is required",
		},
		{
			name: "batch without url",
			mutate: func(c *Config) {
				c.Monitor.Mode = ModeBatch
			},
			wantErr: "LOG_URL is required",
		},
		{
			name: "batch with ftp url",
			mutate: func(c *Config) {
				c.Monitor.Mode = ModeBatch
				c.Monitor.LogURL = "ftp://logs.example.com/auth.log"
			},
			wantErr: "scheme must be http or https",
		},
		{
			name: "unknown mode",
			mutate: func(c *Config) {
				c.Monitor.Mode = "stream"
				c.Monitor.LogFile = "/var/log/auth.log"
			},
			wantErr: "Monitor.Mode failed oneof",
		},
		{
			name: "contamination out of range",
			mutate: func(c *Config) {
				c.Monitor.LogFile = "/var/log/auth.log"
				c.Anomaly.Contamination = 0.7
			},
			wantErr: "Anomaly.Contamination",
		},
		{
			name: "zero cooldown",
			mutate: func(c *Config) {
				c.Monitor.LogFile = "/var/log/auth.log"
				c.Throttle.Cooldown = 0
			},
			wantErr: "Throttle.Cooldown",
		},
		{
			name: "bad block url",
			mutate: func(c *Config) {
				c.Monitor.LogFile = "/var/log/auth.log"
				c.Response.Block.URL = "firewall.local"
			},
			wantErr: "FIREWALL_API_URL",
		},
		{
			name: "smtp user without password",
			mutate: func(c *Config) {
				c.Monitor.LogFile = "/var/log/auth.log"
				c.Response.Email.Host = "smtp.example.com"
				c.Response.Email.To = "soc@example.com"
				c.Response.Email.Username = "alerts"
			},
			wantErr: "SMTP_PASSWORD",
		},
		{
			name: "bad log level",
			mutate: func(c *Config) {
				c.Monitor.LogFile = "/var/log/auth.log"
				c.Logging.Level = "chatty"
			},
			wantErr: "LOG_LEVEL",
		},
		{
			name: "empty rule",
			mutate: func(c *Config) {
				c.Monitor.LogFile = "/var/log/auth.log"
				c.Detection.SuspiciousPatterns = []string{""}
			},
			wantErr: "SuspiciousPatterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"SLACK_WEBHOOK_URL":     "response.chat.webhook_url",
		"VIRUSTOTAL_API_KEY":    "response.reputation.api_key",
		"GROQ_API_KEY":          "response.analysis.api_key",
		"INCIDENT_RESPONSE_URL": "response.incident.url",
		"HOME":                  "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
