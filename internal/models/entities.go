// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package models

import "time"

// Asset types accepted by the backend.
const (
	AssetTypeImage    = "image"
	AssetTypeVideo    = "video"
	AssetTypeAudio    = "audio"
	AssetTypeDocument = "document"
)

// Device statuses reported by the backend.
const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
	DeviceStatusUnknown = "unknown"
)

// Asset is a media file managed through the CMS.
type Asset struct {
	ID              ID         `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	URL             string     `json:"url,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	MimeType        string     `json:"mime_type,omitempty"`
	SizeBytes       int64      `json:"size_bytes,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Device is a registered playback endpoint such as a signage screen.
type Device struct {
	ID              ID         `json:"id"`
	Name            string     `json:"name"`
	SerialNumber    string     `json:"serial_number"`
	Location        string     `json:"location,omitempty"`
	Status          string     `json:"status,omitempty"`
	Resolution      string     `json:"resolution,omitempty"`
	Orientation     string     `json:"orientation,omitempty"`
	PlaylistGroupID *ID        `json:"playlist_group_id,omitempty"`
	PlaylistIDs     []ID       `json:"playlist_ids,omitempty"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
}

// PlaylistItem is one entry of a playlist, shown for DurationSeconds.
type PlaylistItem struct {
	AssetID         ID     `json:"asset_id"`
	Position        int    `json:"position"`
	DurationSeconds int    `json:"duration_seconds"`
	Asset           *Asset `json:"asset,omitempty"`
}

// Playlist is an ordered collection of assets.
type Playlist struct {
	ID          ID             `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Items       []PlaylistItem `json:"items"`
	CreatedAt   *time.Time     `json:"created_at,omitempty"`
	UpdatedAt   *time.Time     `json:"updated_at,omitempty"`
}

// PlaylistGroup is a named collection of playlists assignable to devices.
type PlaylistGroup struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PlaylistIDs []ID   `json:"playlist_ids"`
	DeviceIDs   []ID   `json:"device_ids,omitempty"`
}

// User is the signed-in account.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}
