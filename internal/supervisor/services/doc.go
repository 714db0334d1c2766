// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

// Package services adapts LogSentinel components to suture.Service.
//
// Each wrapper depends on a small interface rather than the concrete type,
// so tests drive it with fakes:
//
//	MonitorService     MonitorRunner     (*monitor.Monitor)
//	HTTPServerService  HTTPServer        (*http.Server)
//	CheckpointService  ModelSaver        (*anomaly.Scorer)
//	HistoryGCService   GarbageCollector  (*store.Store)
package services
