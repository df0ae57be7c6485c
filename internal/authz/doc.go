// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

// Package authz provides role-based route authorization using Casbin.
//
// The model and policy are embedded (model.conf, policy.csv). Roles form a
// hierarchy: admin inherits editor, editor inherits viewer. Objects are
// request paths matched with keyMatch2; actions are read, write and delete,
// derived from the HTTP method.
//
// A deployment can replace the policy with security.authz_policy_path.
package authz
