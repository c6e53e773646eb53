// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CORS implements the read-only cross-origin policy. An Origin is echoed
// back only when it is a localhost origin and localhost is allowed, or an
// https origin whose host is on the allowlist. Preflight termination lives
// in Preflight, behind the rest of the stack.
func CORS(allowHosts []string, allowLocalhost bool) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowHosts))
	for _, h := range allowHosts {
		allowed[strings.ToLower(h)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin := r.Header.Get("Origin"); origin != "" {
				if originAllowed(origin, allowed, allowLocalhost) {
					h.Set("Access-Control-Allow-Origin", origin)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Preflight answers OPTIONS with 204. It sits innermost so a preflight
// still picks up the security headers and consumes the caller's rate
// bucket like every other response; the API is GET-only.
func Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		h.Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
	})
}

func originAllowed(origin string, allowed map[string]struct{}, allowLocalhost bool) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if allowLocalhost && isLocalhost(host) {
		return true
	}
	if u.Scheme != "https" {
		return false
	}
	_, ok := allowed[host]
	return ok
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
