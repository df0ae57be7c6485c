// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/retailcms/internal/models"
)

// Resource describes one backend collection exposed under /api.
type Resource struct {
	Name    string // URL segment, shared with the backend
	Create  bodyFactory
	Replace bodyFactory
	Patch   bodyFactory
}

// Resources lists the CMS collections.
var Resources = []Resource{
	{
		Name:    "assets",
		Create:  bodyOf[models.AssetRequest](),
		Replace: bodyOf[models.AssetRequest](),
		Patch:   bodyOf[models.AssetPatch](),
	},
	{
		Name:    "devices",
		Create:  bodyOf[models.DeviceRequest](),
		Replace: bodyOf[models.DeviceRequest](),
		Patch:   bodyOf[models.DevicePatch](),
	},
	{
		Name:    "playlists",
		Create:  bodyOf[models.PlaylistRequest](),
		Replace: bodyOf[models.PlaylistRequest](),
		Patch:   bodyOf[models.PlaylistPatch](),
	},
	{
		Name:    "playlist-groups",
		Create:  bodyOf[models.PlaylistGroupRequest](),
		Replace: bodyOf[models.PlaylistGroupRequest](),
		Patch:   bodyOf[models.PlaylistGroupPatch](),
	},
}

// mount registers the CRUD routes of res.
func (p *Proxy) mount(r chi.Router, res Resource) {
	r.Route("/"+res.Name, func(r chi.Router) {
		r.Get("/", p.forward(collection(res.Name)))
		r.Post("/", p.forwardBody(collection(res.Name), res.Create))

		r.Get("/{id}", p.forward(item(res.Name, "")))
		r.Put("/{id}", p.forwardBody(item(res.Name, ""), res.Replace))
		r.Patch("/{id}", p.forwardBody(item(res.Name, ""), res.Patch))
		r.Delete("/{id}", p.forward(item(res.Name, "")))

		switch res.Name {
		case "devices":
			r.Put("/{id}/playlist-group",
				p.forwardBody(item(res.Name, "playlist-group"), bodyOf[models.PlaylistGroupAssignment]()))
		case "playlists":
			r.Put("/{id}/items",
				p.forwardBody(item(res.Name, "items"), bodyOf[models.PlaylistItemsRequest]()))
		}
	})
}

// Routes mounts every resource on r.
func (p *Proxy) Routes(r chi.Router) {
	for _, res := range Resources {
		p.mount(r, res)
	}
}
