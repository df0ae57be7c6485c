// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

// Package logging provides the zerolog-backed structured logger used by the
// Retail CMS gateway.
//
// The package keeps a single global logger, configured once from main:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("backend", url).Msg("Gateway starting")
//
// Request-scoped logging picks up the request and correlation IDs placed in
// the context by the HTTP middleware:
//
//	logging.Ctx(r.Context()).Warn().Err(err).Msg("Backend call failed")
//
// Authentication events (login, logout, token refresh) go through
// SecurityLogger, which masks identifiers and never writes token material.
//
// Libraries that require a *slog.Logger (suture's event hook) are given one
// backed by zerolog via NewSlogLogger.
package logging
