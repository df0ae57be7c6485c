// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package upload proxies tus resumable uploads to the upstream upload endpoint.

Browsers talk to /api/uploads on the gateway; the gateway attaches the
session's bearer token and forwards to upload.url:

	OPTIONS /api/uploads[/{id}]   discovery
	POST    /api/uploads          creation (optionally with data)
	HEAD    /api/uploads/{id}     offset
	PATCH   /api/uploads/{id}     chunk, streamed without buffering
	DELETE  /api/uploads/{id}     termination

POST with X-HTTP-Method-Override is forwarded with the overriding method.
Only tus request and response headers on an allow-list cross the proxy.

Location headers that point into the upstream endpoint are rewritten to
<public base>/api/uploads/<id> so the browser keeps talking to the gateway.
Locations elsewhere are relayed unchanged.

Chunk bodies larger than upload.max_chunk_bytes are refused with 413, and
upload creation is rate limited per user with a token bucket.
*/
package upload
