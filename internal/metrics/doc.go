// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package metrics defines the gateway's Prometheus metrics.

All collectors are registered on the default registry through promauto and
exposed at /metrics:

	curl http://localhost:3000/metrics

# Available Metrics

HTTP surface:
  - retailcms_api_requests_total{method,endpoint,status}
  - retailcms_api_request_duration_seconds{method,endpoint}
  - retailcms_api_active_requests
  - retailcms_api_rate_limit_hits_total{limiter}

Backend:
  - retailcms_backend_requests_total{method,resource,status}
  - retailcms_backend_request_duration_seconds{method,resource}
  - retailcms_circuit_breaker_state{name} (0=closed, 1=half-open, 2=open)
  - retailcms_circuit_breaker_requests_total{name,result}
  - retailcms_circuit_breaker_state_transitions_total{name,from_state,to_state}

Sessions and authorization:
  - retailcms_auth_logins_total{result}
  - retailcms_auth_token_refreshes_total{result}
  - retailcms_auth_revoked_sessions
  - retailcms_authz_decisions_total{result}

Uploads:
  - retailcms_upload_requests_total{method,status}
  - retailcms_upload_bytes_total

The endpoint label is the chi route pattern (e.g. /api/assets/{id}), never
the raw path, to keep label cardinality bounded.
*/
package metrics
