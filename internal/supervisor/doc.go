// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

/*
Package supervisor runs LogSentinel's long-lived services under a suture v4
tree.

	logsentinel
	├── detection-layer
	│   └── MonitorService
	├── maintenance-layer
	│   ├── CheckpointService (if anomaly.model_path is set)
	│   └── HistoryGCService  (if store.path is set)
	└── api-layer
	    └── HTTPServerService (if server.enabled)

Each layer counts failures independently, so a status server that cannot
bind its port backs off on its own without touching detection.

# Return Semantics

  - ctx.Err(): shutdown requested, the service stopped promptly
  - suture.ErrDoNotRestart: the monitoring run finished and must not repeat
  - any other error: crash, restarted with backoff

Supervisor events are logged through sutureslog, which takes a *slog.Logger.
logging.NewSlogLogger bridges that to zerolog so supervisor events share the
application's log format.

# Debugging Shutdown Issues

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service did not stop")
	}
*/
package supervisor
