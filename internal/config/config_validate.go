// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/logsentinel/internal/logging"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field ranges and the cross-field rules that struct tags
// cannot express.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return translateValidationError(err)
	}

	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateResponse(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMonitor() error {
	switch c.Monitor.Mode {
	case ModeTail:
		if c.Monitor.LogFile == "" {
			return fmt.Errorf("LOG_FILE is required when MONITOR_MODE=%s", ModeTail)
		}
	case ModeBatch:
		if c.Monitor.LogURL == "" {
			return fmt.Errorf("LOG_URL is required when MONITOR_MODE=%s", ModeBatch)
		}
		if err := validateEndpointURL(c.Monitor.LogURL, "LOG_URL"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateResponse() error {
	endpoints := []struct {
		value string
		name  string
	}{
		{c.Response.Block.URL, "FIREWALL_API_URL"},
		{c.Response.Chat.WebhookURL, "SLACK_WEBHOOK_URL"},
		{c.Response.Incident.URL, "INCIDENT_RESPONSE_URL"},
		{c.Response.Reputation.URL, "VIRUSTOTAL_API_URL"},
		{c.Response.Analysis.URL, "GROQ_API_URL"},
	}
	for _, ep := range endpoints {
		if ep.value == "" {
			continue
		}
		if err := validateEndpointURL(ep.value, ep.name); err != nil {
			return err
		}
	}

	if c.Response.ActionLog.Enabled && c.Response.ActionLog.Path == "" {
		return errors.New("ACTION_LOG_PATH is required when the action log is enabled")
	}

	email := c.Response.Email
	if email.Enabled() && email.Username != "" && email.Password == "" {
		return errors.New("SMTP_PASSWORD is required when SMTP_USER is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, disabled; got %q", c.Logging.Level)
	}
	return nil
}

// translateValidationError flattens validator output into one readable error.
func translateValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
