// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

// Package validation checks request bodies with go-playground/validator v10.
//
// A single validator instance is shared by all handlers. Field names in
// errors use the JSON tag, and nested fields are reported by path, for
// example "items[2].duration_seconds", so the frontend can map them to form
// inputs.
//
// Custom tags:
//
//	resolution   WIDTHxHEIGHT, e.g. 1920x1080
//
// Failures convert to the VALIDATION_ERROR API error via ToAPIError.
package validation
