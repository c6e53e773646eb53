// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/filmgrid/catalogd/internal/log"
)

// Logging emits one structured line per completed request.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			lg := log.WithComponentFromContext(r.Context(), "http")
			lg.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Str("client", ClientIP(r)).
				Msg("request")
		})
	}
}
