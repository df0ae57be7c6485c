// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// staticHandler serves the prebuilt frontend. Unknown paths without a file
// extension get index.html so client-side routes survive a reload.
type staticHandler struct {
	root  string
	files http.Handler
}

func newStaticHandler(dir string) *staticHandler {
	return &staticHandler{
		root:  dir,
		files: http.FileServer(http.Dir(dir)),
	}
}

func (s *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)

	if clean != "/" && !s.exists(clean) {
		if path.Ext(clean) != "" {
			http.NotFound(w, r)
			return
		}
		clean = "/"
	}

	setCacheControl(w, clean)
	if clean == "/" || clean == "/index.html" {
		// FileServer redirects /index.html to /.
		http.ServeFile(w, r, filepath.Join(s.root, "index.html"))
		return
	}
	s.files.ServeHTTP(w, r)
}

func (s *staticHandler) exists(p string) bool {
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(p)))
	return err == nil && !info.IsDir()
}

func setCacheControl(w http.ResponseWriter, p string) {
	switch {
	case p == "/" || p == "/index.html" || p == "/manifest.json":
		w.Header().Set("Cache-Control", "no-cache")
	case strings.HasPrefix(p, "/assets/") || strings.HasSuffix(p, ".js") || strings.HasSuffix(p, ".css"):
		// Bundler output is content-hashed.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	case strings.HasSuffix(p, ".png"), strings.HasSuffix(p, ".svg"), strings.HasSuffix(p, ".jpg"),
		strings.HasSuffix(p, ".webp"), strings.HasSuffix(p, ".ico"):
		w.Header().Set("Cache-Control", "public, max-age=604800")
	}
}
