// SPDX-License-Identifier: MIT

// Package api exposes the catalog over HTTP.
package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filmgrid/catalogd/internal/api/middleware"
	"github.com/filmgrid/catalogd/internal/catalog"
	"github.com/filmgrid/catalogd/internal/locale"
	"github.com/filmgrid/catalogd/internal/log"
)

// Config carries the HTTP surface settings the router needs.
type Config struct {
	Stack     middleware.StackConfig
	ForceGzip bool
}

// Server routes catalog requests. All endpoints are GET.
type Server struct {
	catalog   *catalog.Service
	forceGzip bool
}

// NewRouter builds the chi router with the full middleware stack and all
// catalog routes mounted.
func NewRouter(svc *catalog.Service, cfg Config) *chi.Mux {
	s := &Server{catalog: svc, forceGzip: cfg.ForceGzip}

	r := chi.NewRouter()
	middleware.ApplyStack(r, cfg.Stack)

	r.Get("/ping", s.handleOK)
	r.Get("/health", s.handleOK)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/home", s.handleHome)
		r.Get("/titles/{id}", s.handleTitle)
		r.Get("/browse/{tab}/{page}", s.handleBrowse)
		r.Get("/search", s.handleSearchLanding)
		r.Get("/search/{query}", s.handleSearch)
	})

	r.NotFound(s.handleNotFound)
	return r
}

func (s *Server) handleOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("not found\n"))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, what string) {
	lg := log.WithComponentFromContext(r.Context(), "api")
	lg.Error().Err(err).Msg(what)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func requestLocale(r *http.Request) locale.Locale {
	return locale.Resolve(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
}

// handleHome serves the precompressed home payload, best encoding first.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalog.Home(r.Context(), requestLocale(r))
	if err != nil {
		s.internalError(w, r, err, "compose home")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Add("Vary", "Accept-Encoding")

	accept := r.Header.Get("Accept-Encoding")
	switch {
	case strings.Contains(accept, "br") && len(entry.Brotli) > 0:
		h.Set("Content-Encoding", "br")
		_, _ = w.Write(entry.Brotli)
	case strings.Contains(accept, "gzip") && len(entry.Gzip) > 0:
		h.Set("Content-Encoding", "gzip")
		_, _ = w.Write(entry.Gzip)
	default:
		_, _ = w.Write(entry.Raw)
	}
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.handleNotFound(w, r)
		return
	}
	page, err := s.catalog.Title(r.Context(), id, requestLocale(r))
	if err != nil {
		s.internalError(w, r, err, "compose title")
		return
	}
	if page == nil {
		s.handleNotFound(w, r)
		return
	}
	s.writeJSON(w, r, page)
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	tab := chi.URLParam(r, "tab")
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		s.handleNotFound(w, r)
		return
	}
	result, err := s.catalog.Browse(r.Context(), tab, page, requestLocale(r))
	if err != nil {
		s.internalError(w, r, err, "compose browse")
		return
	}
	if result == nil {
		s.handleNotFound(w, r)
		return
	}
	s.writeJSON(w, r, result)
}

func (s *Server) handleSearchLanding(w http.ResponseWriter, r *http.Request) {
	landing, err := s.catalog.SearchLandingPage(r.Context(), requestLocale(r))
	if err != nil {
		s.internalError(w, r, err, "compose search landing")
		return
	}
	s.writeJSON(w, r, landing)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if unescaped, err := url.PathUnescape(query); err == nil {
		query = unescaped
	}
	result, err := s.catalog.Search(r.Context(), query, requestLocale(r))
	if err != nil {
		s.internalError(w, r, err, "search")
		return
	}
	s.writeJSON(w, r, result)
}
