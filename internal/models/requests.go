// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package models

// MaxPlaylistItems caps the number of items in one playlist write.
const MaxPlaylistItems = 500

// Normalizer is implemented by write requests that adjust themselves after
// validation, before being forwarded.
type Normalizer interface {
	Normalize()
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,max=1024"`
}

// AssetRequest creates or fully replaces an asset.
type AssetRequest struct {
	Name            string   `json:"name" validate:"required,min=1,max=255"`
	Type            string   `json:"type" validate:"required,oneof=image video audio document"`
	URL             string   `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty" validate:"omitempty,url,max=2048"`
	MimeType        string   `json:"mime_type,omitempty" validate:"omitempty,max=127"`
	SizeBytes       int64    `json:"size_bytes,omitempty" validate:"gte=0"`
	DurationSeconds float64  `json:"duration_seconds,omitempty" validate:"gte=0"`
	Tags            []string `json:"tags,omitempty" validate:"omitempty,max=50,dive,min=1,max=64"`
}

// AssetPatch partially updates an asset. Nil fields are left untouched.
type AssetPatch struct {
	Name            *string   `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Type            *string   `json:"type,omitempty" validate:"omitempty,oneof=image video audio document"`
	URL             *string   `json:"url,omitempty" validate:"omitempty,url,max=2048"`
	ThumbnailURL    *string   `json:"thumbnail_url,omitempty" validate:"omitempty,url,max=2048"`
	MimeType        *string   `json:"mime_type,omitempty" validate:"omitempty,max=127"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty" validate:"omitempty,gte=0"`
	Tags            *[]string `json:"tags,omitempty" validate:"omitempty,max=50,dive,min=1,max=64"`
}

// DeviceRequest creates or fully replaces a device.
type DeviceRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=255"`
	SerialNumber    string `json:"serial_number" validate:"required,min=1,max=128"`
	Location        string `json:"location,omitempty" validate:"omitempty,max=255"`
	Resolution      string `json:"resolution,omitempty" validate:"omitempty,resolution"`
	Orientation     string `json:"orientation,omitempty" validate:"omitempty,oneof=landscape portrait"`
	PlaylistGroupID *ID    `json:"playlist_group_id,omitempty"`
	PlaylistIDs     []ID   `json:"playlist_ids,omitempty" validate:"omitempty,unique,dive,required"`
}

// DevicePatch partially updates a device.
type DevicePatch struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	SerialNumber *string `json:"serial_number,omitempty" validate:"omitempty,min=1,max=128"`
	Location     *string `json:"location,omitempty" validate:"omitempty,max=255"`
	Resolution   *string `json:"resolution,omitempty" validate:"omitempty,resolution"`
	Orientation  *string `json:"orientation,omitempty" validate:"omitempty,oneof=landscape portrait"`
	PlaylistIDs  *[]ID   `json:"playlist_ids,omitempty" validate:"omitempty,unique,dive,required"`
}

// PlaylistGroupAssignment is the body of PUT /api/devices/{id}/playlist-group.
// A null playlist_group_id unassigns the device.
type PlaylistGroupAssignment struct {
	PlaylistGroupID *ID `json:"playlist_group_id"`
}

// PlaylistItemInput is one item of a playlist write. Position is rewritten
// from the slice order by Normalize.
type PlaylistItemInput struct {
	AssetID         ID  `json:"asset_id" validate:"required"`
	Position        int `json:"position" validate:"gte=0"`
	DurationSeconds int `json:"duration_seconds" validate:"required,min=1,max=86400"`
}

// PlaylistRequest creates or fully replaces a playlist.
type PlaylistRequest struct {
	Name        string              `json:"name" validate:"required,min=1,max=255"`
	Description string              `json:"description,omitempty" validate:"omitempty,max=2000"`
	Items       []PlaylistItemInput `json:"items" validate:"max=500,dive"`
}

// Normalize implements Normalizer.
func (r *PlaylistRequest) Normalize() {
	r.Items = normalizeItems(r.Items)
}

// PlaylistPatch partially updates a playlist. Items, when present, replace
// the whole list.
type PlaylistPatch struct {
	Name        *string              `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string              `json:"description,omitempty" validate:"omitempty,max=2000"`
	Items       *[]PlaylistItemInput `json:"items,omitempty" validate:"omitempty,max=500,dive"`
}

// Normalize implements Normalizer.
func (r *PlaylistPatch) Normalize() {
	if r.Items != nil {
		items := normalizeItems(*r.Items)
		r.Items = &items
	}
}

// PlaylistItemsRequest is the body of PUT /api/playlists/{id}/items.
type PlaylistItemsRequest struct {
	Items []PlaylistItemInput `json:"items" validate:"max=500,dive"`
}

// Normalize implements Normalizer.
func (r *PlaylistItemsRequest) Normalize() {
	r.Items = normalizeItems(r.Items)
}

// normalizeItems sets each item's position to its index and turns a nil
// list into an empty one so it encodes as [].
func normalizeItems(items []PlaylistItemInput) []PlaylistItemInput {
	if items == nil {
		return []PlaylistItemInput{}
	}
	for i := range items {
		items[i].Position = i
	}
	return items
}

// PlaylistGroupRequest creates or fully replaces a playlist group.
type PlaylistGroupRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
	PlaylistIDs []ID   `json:"playlist_ids" validate:"omitempty,unique,dive,required"`
	DeviceIDs   []ID   `json:"device_ids,omitempty" validate:"omitempty,unique,dive,required"`
}

// Normalize implements Normalizer.
func (r *PlaylistGroupRequest) Normalize() {
	if r.PlaylistIDs == nil {
		r.PlaylistIDs = []ID{}
	}
}

// PlaylistGroupPatch partially updates a playlist group.
type PlaylistGroupPatch struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	PlaylistIDs *[]ID   `json:"playlist_ids,omitempty" validate:"omitempty,unique,dive,required"`
	DeviceIDs   *[]ID   `json:"device_ids,omitempty" validate:"omitempty,unique,dive,required"`
}
