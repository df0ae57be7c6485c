// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

// Package main is the entry point for the Retail CMS gateway.
//
// The gateway sits between the CMS frontend and the backend REST service.
// It keeps the user's backend tokens in an encrypted, signed session cookie,
// forwards resource calls with the bearer token attached, proxies tus
// uploads and serves the prebuilt frontend.
//
// # Startup
//
//  1. Configuration: defaults, config.yaml and environment (Koanf v2)
//  2. Logging: zerolog, with an slog bridge for the supervisor
//  3. Backend client with circuit breaker
//  4. Session denylist (memory or BadgerDB) and session manager
//  5. Casbin authorization, upload proxy, Chi router
//  6. Supervisor tree: HTTP server and denylist cleanup
//
// # Example Usage
//
//	export BACKEND_URL=https://cms-api.internal
//	export SESSION_SECRET=$(openssl rand -hex 32)
//	export STATIC_DIR=./web/dist
//	./retailcms
//
// SIGINT and SIGTERM trigger a graceful shutdown: the server stops accepting
// connections and in-flight requests get server.shutdown_timeout to finish.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/supervisor"
	"github.com/tomtom215/retailcms/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backend_url", cfg.Backend.URL).
		Str("upload_url", cfg.Upload.URL).
		Str("session_store", cfg.Security.SessionStore).
		Bool("authz_enabled", cfg.Security.AuthzEnabled).
		Str("environment", cfg.Server.Environment).
		Msg("Configuration loaded")

	gw, err := newGateway(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize gateway")
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logging.Err(err).Msg("Error closing session denylist")
		}
	}()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLoggerWithLevel(cfg.Logging.Level), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           gw.handler,
		ReadHeaderTimeout: cfg.Server.Timeout,
		// No ReadTimeout or WriteTimeout: upload chunks stream for as
		// long as the client keeps sending.
		IdleTimeout: 120 * time.Second,
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(services.NewDenylistCleanupService(gw.denylist, cfg.Security.DenylistCleanupInterval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Gateway stopped")
}
