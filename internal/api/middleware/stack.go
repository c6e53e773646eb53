// SPDX-License-Identifier: MIT

// Package middleware holds the canonical HTTP ingress stack for catalogd.
package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	// CORS
	AllowHosts     []string // origin hosts allowed over https
	AllowLocalhost bool

	// Per-IP rate limit
	RateLimitRPS   float64
	RateLimitBurst float64

	// Optional coarse global ceiling, requests per minute across all
	// clients. 0 disables it.
	GlobalRPM int
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. CORS origin echo (so browser clients behave)
	r.Use(CORS(cfg.AllowHosts, cfg.AllowLocalhost))
	// 4. Security headers
	r.Use(SecurityHeaders)
	// 5. Metrics (track all requests)
	r.Use(Metrics())
	// 6. Logging (wraps handlers, captures full latency)
	r.Use(Logging())
	// 7. Rate limits (global ceiling first, then per-IP)
	if cfg.GlobalRPM > 0 {
		r.Use(httprate.LimitAll(cfg.GlobalRPM, time.Minute))
	}
	r.Use(PerIPRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	// 8. Preflight termination (innermost so 204s carry the full stack)
	r.Use(Preflight)
}
