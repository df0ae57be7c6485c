// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/retailcms/internal/api"
	"github.com/tomtom215/retailcms/internal/auth"
	"github.com/tomtom215/retailcms/internal/authz"
	"github.com/tomtom215/retailcms/internal/backend"
	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/upload"
)

// gateway holds the wired components the supervisor runs.
type gateway struct {
	handler  http.Handler
	denylist auth.Denylist
}

// Close releases the denylist store.
func (g *gateway) Close() error {
	return g.denylist.Close()
}

// newGateway builds every component from cfg. The caller owns Close.
func newGateway(cfg *config.Config) (*gateway, error) {
	client, err := backend.NewClient(&cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	denylist, err := auth.NewDenylist(&cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("session denylist: %w", err)
	}
	g := &gateway{denylist: denylist}

	handler, err := buildRouter(cfg, client, denylist)
	if err != nil {
		return nil, errors.Join(err, denylist.Close())
	}
	g.handler = handler
	return g, nil
}

func buildRouter(cfg *config.Config, client *backend.Client, denylist auth.Denylist) (http.Handler, error) {
	sessions, err := auth.NewManager(&cfg.Security, client, denylist)
	if err != nil {
		return nil, fmt.Errorf("session manager: %w", err)
	}

	var authzMiddleware *authz.Middleware
	if cfg.Security.AuthzEnabled {
		enforcer, err := authz.NewEnforcer(authz.Config{
			PolicyPath:  cfg.Security.AuthzPolicyPath,
			DefaultRole: cfg.Security.DefaultRole,
		})
		if err != nil {
			return nil, fmt.Errorf("authorization: %w", err)
		}
		authzMiddleware = authz.NewMiddleware(enforcer)
	} else {
		logging.Warn().Msg("Role-based authorization disabled; every signed-in user has full access")
	}

	uploads, err := upload.NewProxy(&cfg.Upload, backend.BreakerSettingsFromConfig("upload", &cfg.Backend))
	if err != nil {
		return nil, fmt.Errorf("upload proxy: %w", err)
	}

	router := api.NewRouter(api.Deps{
		Sessions: sessions,
		Auth:     auth.NewHandlers(sessions, client),
		Authz:    authzMiddleware,
		Proxy:    api.NewProxy(client),
		Uploads:  uploads,
		Health: api.NewHealth(client, map[string]api.BreakerReporter{
			"backend": client,
			"upload":  uploads,
		}),
		Middleware: api.ChiMiddlewareConfigFromSecurity(&cfg.Security),
		StaticDir:  cfg.Server.StaticDir,
	})
	return router.SetupChi(), nil
}
