// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

// Package config loads gateway configuration with koanf.
//
// Sources are layered, later ones winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file: $CONFIG_PATH, ./config.yaml or /etc/retailcms/config.yaml
//  3. Environment variables, mapped explicitly in envTransformFunc
//
// Only mapped environment variables are read; anything else in the process
// environment is ignored. Comma-separated values are split for slice fields
// such as CORS_ORIGINS.
//
// Minimal environment for a working gateway:
//
//	BACKEND_URL=https://cms-api.internal
//	UPLOAD_URL=https://cms-api.internal/files/
//	SESSION_SECRET=<at least 32 characters>
package config
