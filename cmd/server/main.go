// LogSentinel - Streaming Security Log Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/logsentinel

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/logsentinel/internal/api"
	"github.com/tomtom215/logsentinel/internal/config"
	"github.com/tomtom215/logsentinel/internal/logging"
	"github.com/tomtom215/logsentinel/internal/monitor"
	"github.com/tomtom215/logsentinel/internal/response"
	"github.com/tomtom215/logsentinel/internal/supervisor"
	"github.com/tomtom215/logsentinel/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

//nolint:gocyclo // sequential wiring of every component
func run() int {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 2
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("mode", cfg.Monitor.Mode).
		Str("log_file", cfg.Monitor.LogFile).
		Str("log_url", cfg.Monitor.LogURL).
		Bool("anomaly", cfg.Anomaly.Enabled).
		Msg("Starting LogSentinel")

	history, err := openHistory(cfg.Store)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open action history")
		return 1
	}
	defer func() {
		if history == nil {
			return
		}
		if err := history.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing action history")
		}
	}()

	matcher, err := buildMatcher(cfg.Detection)
	if err != nil {
		logging.Error().Err(err).Msg("Invalid detection rules")
		return 2
	}

	throttler := buildThrottler(cfg.Throttle)
	if history != nil {
		n, err := warmStart(context.Background(), throttler, history, time.Now())
		if err != nil {
			logging.Warn().Err(err).Msg("Throttle warm start failed, starting cold")
		} else if n > 0 {
			logging.Info().Int("actors", n).Msg("Throttle warm-started from action history")
		}
	}

	scorer := buildScorer(cfg.Anomaly)

	var recorder response.Recorder
	if history != nil {
		recorder = history
	}
	dispatcher := response.FromConfig(cfg.Response, recorder)
	analyzer := response.AnalyzerFromConfig(cfg.Response)

	source, err := monitor.NewSource(cfg.Monitor)
	if err != nil {
		logging.Error().Err(err).Msg("Invalid log source")
		return 2
	}

	opts := monitor.Options{
		Mode:             cfg.Monitor.Mode,
		Source:           source,
		Matcher:          matcher,
		Throttler:        throttler,
		Dispatcher:       dispatcher,
		RetrainThreshold: cfg.Anomaly.RetrainThreshold,
		Duration:         cfg.Monitor.Duration,
		StatusEvery:      cfg.Monitor.StatusEvery,
		Scorer:           scorer,
	}
	if analyzer != nil {
		opts.Analyzer = analyzer
	}
	mon := monitor.New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	runErr := make(chan error, 1)
	tree.AddDetectionService(services.NewMonitorService(mon, func(_ monitor.Summary, err error) {
		runErr <- err
		cancel()
	}))

	if scorer != nil && cfg.Anomaly.ModelPath != "" {
		tree.AddMaintenanceService(services.NewCheckpointService(scorer, cfg.Anomaly.ModelPath, cfg.Anomaly.CheckpointInterval))
	}
	if history != nil {
		tree.AddMaintenanceService(services.NewHistoryGCService(history, 0))
	}

	if cfg.Server.Enabled {
		var actions api.ActionLister
		if history != nil {
			actions = history
		}
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
		server := &http.Server{
			Addr: addr,
			Handler: api.NewRouter(api.NewHandler(mon, actions, version), api.MiddlewareConfig{
				RateLimitRequests: cfg.Server.RateLimitReqs,
				RateLimitWindow:   cfg.Server.RateLimitWindow,
			}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, addr, 10*time.Second))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	dispatcher.Wait()
	analyzer.Wait()

	exitCode := 0
	select {
	case err := <-runErr:
		if err != nil {
			exitCode = 1
		}
	default:
	}

	logging.Info().Int("exit_code", exitCode).Msg("LogSentinel stopped")
	return exitCode
}
