// SPDX-License-Identifier: MIT

package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/filmgrid/catalogd/internal/metrics"
)

// ipLimiterCap bounds the per-IP limiter map. When exceeded the whole map
// is dropped, which briefly refills every bucket but keeps memory flat
// under address-rotation floods.
const ipLimiterCap = 20000

// PerIPRateLimit rejects clients that exceed rps with burst headroom.
// Rejections are a plain 429 with a one second Retry-After.
func PerIPRateLimit(rps, burst float64) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	take := func(ip string) bool {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ip]
		if !ok {
			if len(limiters) >= ipLimiterCap {
				limiters = make(map[string]*rate.Limiter)
			}
			l = rate.NewLimiter(rate.Limit(rps), int(burst))
			limiters[ip] = l
		}
		return l.Allow()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !take(ClientIP(r)) {
				metrics.RateLimited.Inc()
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("rate limited\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the real client address: the CDN header first, then the
// first hop of X-Forwarded-For, then the socket peer.
func ClientIP(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); v != "" {
		return v
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if i := strings.IndexByte(first, ','); i >= 0 {
			first = first[:i]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
