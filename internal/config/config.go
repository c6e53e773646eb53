// SPDX-License-Identifier: MIT

// Package config loads catalogd settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds store, provider, backfill and HTTP surface settings.
type Config struct {
	// Store
	DBPath string // CATALOG_DB; SQLite database file

	// Provider (TMDB-shaped JSON)
	TMDBKey      string  // TMDB_API_KEY; empty disables all provider calls
	TMDBProxy    string  // TMDB_PROXY; optional outbound HTTP proxy URL
	TMDBBaseURL  string  // TMDB_BASE_URL; override for tests/stubs
	TotalRPS     float64 // TMDB_RPS; shared foreground+background budget
	ForegroundPS float64 // TMDB_RPS_FOREGROUND; request-driven share

	// Backfill
	BackfillWorkers    int           // BACKFILL_WORKERS
	BackfillQueueLimit int           // BACKFILL_QUEUE_LIMIT; inflight cap
	BackfillTTL        time.Duration // repeat-submission suppression window

	// HTTP surface
	BindAddr     string
	HTTPPort     int
	HTTPSPort    int
	TLSCert      string
	TLSKey       string
	ConnTimeout  time.Duration // read timeout per connection
	WriteTimeout time.Duration // 0 = unlimited

	// CORS
	CORSAllowHosts     []string // origin hosts allowed over https
	CORSAllowLocalhost bool

	// Per-IP rate limit
	RateLimitRPS   float64
	RateLimitBurst float64
	// Optional coarse global ceiling, requests per minute across all clients.
	// 0 disables the global limiter.
	RateLimitGlobalRPM int

	// Response encoding
	ForceGzip     bool
	BrotliQuality int
}

// Load reads config from the environment. Call LoadDotenv first to merge a
// .env file; values already exported always win.
func Load() *Config {
	c := &Config{
		DBPath:             getEnv("CATALOG_DB", "./catalog.sqlite"),
		TMDBKey:            strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBProxy:          strings.TrimSpace(os.Getenv("TMDB_PROXY")),
		TMDBBaseURL:        getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TotalRPS:           getEnvFloat("TMDB_RPS", 47),
		ForegroundPS:       getEnvFloat("TMDB_RPS_FOREGROUND", 7),
		BackfillWorkers:    getEnvInt("BACKFILL_WORKERS", 8),
		BackfillQueueLimit: getEnvInt("BACKFILL_QUEUE_LIMIT", 2000),
		BackfillTTL:        10 * time.Minute,
		BindAddr:           getEnv("BIND_ADDR", "::"),
		HTTPPort:           getEnvInt("HTTP_PORT", 80),
		HTTPSPort:          getEnvInt("HTTPS_PORT", 443),
		TLSCert:            os.Getenv("TLS_CERT"),
		TLSKey:             os.Getenv("TLS_KEY"),
		ConnTimeout:        getEnvSeconds("CONN_TIMEOUT_S", 15*time.Second),
		WriteTimeout:       getEnvSeconds("WRITE_TIMEOUT_S", 0),
		CORSAllowHosts:     splitHosts(os.Getenv("CORS_ALLOW_HOSTS")),
		CORSAllowLocalhost: getEnvBool("CORS_ALLOW_LOCALHOST", false),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 3),
		RateLimitBurst:     getEnvFloat("RATE_LIMIT_BURST", 120),
		RateLimitGlobalRPM: getEnvInt("RATE_LIMIT_GLOBAL_RPM", 0),
		ForceGzip:          getEnvBool("FORCE_GZIP", false),
		BrotliQuality:      getEnvInt("BROTLI_QUALITY", 5),
	}
	if c.BackfillWorkers <= 0 {
		c.BackfillWorkers = 8
	}
	if c.BackfillQueueLimit <= 0 {
		c.BackfillQueueLimit = 2000
	}
	if c.BrotliQuality < 0 {
		c.BrotliQuality = 0
	}
	if c.BrotliQuality > 11 {
		c.BrotliQuality = 11
	}
	return c
}

// SplitProviderRate derives the foreground and background bucket rates from
// the shared total. Foreground is capped at total-1 so background work can
// always make progress; background gets the remainder.
func (c *Config) SplitProviderRate() (fg, bg float64) {
	fg = c.ForegroundPS
	if c.TotalRPS > 1 {
		if fg > c.TotalRPS-1 {
			fg = c.TotalRPS - 1
		}
	} else {
		fg = c.TotalRPS
	}
	bg = c.TotalRPS - fg
	if bg < 0 {
		bg = 0
	}
	return fg, bg
}

func splitHosts(raw string) []string {
	raw = strings.ReplaceAll(raw, " ", ",")
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.ToLower(strings.TrimSpace(p)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

// getEnvSeconds reads a plain number of seconds (the original deployment
// convention), not a Go duration string.
func getEnvSeconds(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultVal
}
