// SPDX-License-Identifier: MIT

package api

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/filmgrid/catalogd/internal/log"
)

// wantsGzip decides whether a JSON response body gets gzipped. Proxied
// clients are assumed capable even when the proxy strips Accept-Encoding.
func (s *Server) wantsGzip(r *http.Request) bool {
	if s.forceGzip {
		return true
	}
	if r.Header.Get("CF-Connecting-IP") != "" || r.Header.Get("X-Forwarded-For") != "" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// writeJSON encodes v compactly and compresses on the fly when the client
// takes gzip. The precompressed home path bypasses this entirely.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		lg := log.WithComponentFromContext(r.Context(), "api")
		lg.Error().Err(err).Msg("encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Add("Vary", "Accept-Encoding")

	if s.wantsGzip(r) {
		h.Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write(body)
		_ = gz.Close()
		return
	}
	_, _ = w.Write(body)
}
