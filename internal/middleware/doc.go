// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

/*
Package middleware provides chi-compatible HTTP middleware for the status API.

  - Compression: gzip (klauspost/compress) when the client accepts it
  - PrometheusMetrics: request counts, latency and in-flight gauge labelled
    by chi route pattern

Both have the func(http.Handler) http.Handler shape expected by chi.Router.Use.
*/
package middleware
