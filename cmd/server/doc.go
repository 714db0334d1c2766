// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

/*
Package main is the entry point for the LogSentinel server.

LogSentinel follows a security log (tail mode) or fetches one over HTTP
(batch mode), detects suspicious activity per line and fans each
non-throttled detection out to the configured response sinks.

# Startup Order

 1. Configuration: Koanf v2 (defaults, optional YAML file, environment)
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Action history: badger store (if STORE_PATH is set)
 4. Throttler: warm-started from history so a restart does not re-alert
 5. Anomaly scorer: restored from ANOMALY_MODEL_PATH when the file exists
 6. Dispatcher and analyzer: response sinks behind circuit breakers
 7. Supervisor tree: monitor, checkpoint, history GC and status server

# Shutdown

SIGINT/SIGTERM, the end of a batch run or an elapsed MONITOR_DURATION all
stop the tree. In-flight dispatches and analyses are then drained, the model
is checkpointed one last time and the store is closed. A run that ended on a
source failure exits with status 1.

# Example Usage

Follow a local auth log for ten minutes:

	export LOG_FILE=/var/log/auth.log
	export MONITOR_DURATION=10m
	export FIREWALL_API_URL=http://firewall.internal/block
	./logsentinel

Scan a remote log once:

	export MONITOR_MODE=batch
	export LOG_URL=https://logs.example.com/app.log
	./logsentinel
*/
package main
