// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package models defines the interchange types exchanged with the CMS backend.

The backend owns every entity. The gateway never stores them; it uses these
types to validate write bodies before forwarding, to read the token set
returned by the login and refresh endpoints, and in tests to stand up fake
backends.

Entities:

  - Asset: a media file (image, video, audio or document)
  - Device: a signage playback endpoint, assigned playlists or a playlist group
  - Playlist: an ordered list of assets with per-item display duration
  - PlaylistGroup: a named set of playlists assignable to devices
  - User: the signed-in account as reported by the backend

Write requests carry go-playground/validator tags and are checked with
validation.ValidateStruct. Requests that implement Normalizer are normalized
after validation and before they are re-encoded.

Identifiers use ID, which accepts both numeric and string JSON values and
writes them back in the same form.
*/
package models
