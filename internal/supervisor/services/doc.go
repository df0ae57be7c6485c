// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

// Package services adapts the gateway's long-running components to
// suture.Service: the HTTP server and the revoked-session cleanup loop.
// Each type implements fmt.Stringer so supervisor logs name the service.
package services
