// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"CATALOG_DB", "TMDB_API_KEY", "TMDB_PROXY", "TMDB_BASE_URL", "TMDB_RPS",
		"TMDB_RPS_FOREGROUND", "BACKFILL_WORKERS", "BACKFILL_QUEUE_LIMIT",
		"BIND_ADDR", "HTTP_PORT", "HTTPS_PORT", "TLS_CERT", "TLS_KEY",
		"CONN_TIMEOUT_S", "WRITE_TIMEOUT_S", "CORS_ALLOW_HOSTS",
		"CORS_ALLOW_LOCALHOST", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"RATE_LIMIT_GLOBAL_RPM", "FORCE_GZIP", "BROTLI_QUALITY",
	} {
		t.Setenv(k, "")
	}
	want := &Config{
		DBPath:             "./catalog.sqlite",
		TMDBBaseURL:        "https://api.themoviedb.org/3",
		TotalRPS:           47,
		ForegroundPS:       7,
		BackfillWorkers:    8,
		BackfillQueueLimit: 2000,
		BackfillTTL:        10 * time.Minute,
		BindAddr:           "::",
		HTTPPort:           80,
		HTTPSPort:          443,
		ConnTimeout:        15 * time.Second,
		WriteTimeout:       0,
		CORSAllowHosts:     []string{},
		RateLimitRPS:       3,
		RateLimitBurst:     120,
		BrotliQuality:      5,
	}
	if diff := cmp.Diff(want, Load()); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CATALOG_DB", "/data/db.sqlite")
	t.Setenv("TMDB_API_KEY", " secret ")
	t.Setenv("TMDB_RPS", "20")
	t.Setenv("TMDB_RPS_FOREGROUND", "5")
	t.Setenv("CONN_TIMEOUT_S", "2.5")
	t.Setenv("WRITE_TIMEOUT_S", "30")
	t.Setenv("CORS_ALLOW_HOSTS", "App.Example.com, cdn.example.com")
	t.Setenv("CORS_ALLOW_LOCALHOST", "true")
	t.Setenv("FORCE_GZIP", "1")
	t.Setenv("BROTLI_QUALITY", "99")

	c := Load()
	assert.Equal(t, "/data/db.sqlite", c.DBPath)
	assert.Equal(t, "secret", c.TMDBKey)
	assert.Equal(t, float64(20), c.TotalRPS)
	assert.Equal(t, 2500*time.Millisecond, c.ConnTimeout)
	assert.Equal(t, 30*time.Second, c.WriteTimeout)
	assert.Equal(t, []string{"app.example.com", "cdn.example.com"}, c.CORSAllowHosts)
	assert.True(t, c.CORSAllowLocalhost)
	assert.True(t, c.ForceGzip)
	assert.Equal(t, 11, c.BrotliQuality, "quality clamps to the brotli maximum")
}

func TestSplitProviderRate(t *testing.T) {
	cases := []struct {
		name           string
		total, fg      float64
		wantFG, wantBG float64
	}{
		{"defaults", 47, 7, 7, 40},
		{"foreground capped below total", 10, 20, 9, 1},
		{"tiny total goes entirely foreground", 1, 7, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{TotalRPS: tc.total, ForegroundPS: tc.fg}
			fg, bg := c.SplitProviderRate()
			assert.Equal(t, tc.wantFG, fg)
			assert.Equal(t, tc.wantBG, bg)
		})
	}
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\n"+
			"DOTENV_PLAIN=hello\n"+
			"DOTENV_QUOTED=\"quoted value\"\n"+
			"DOTENV_TAKEN=from-file\n"+
			"not a pair\n"), 0o600))

	t.Setenv("DOTENV_TAKEN", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("DOTENV_PLAIN")
		os.Unsetenv("DOTENV_QUOTED")
	})

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "hello", os.Getenv("DOTENV_PLAIN"))
	assert.Equal(t, "quoted value", os.Getenv("DOTENV_QUOTED"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_TAKEN"), "exported values win")

	require.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "absent.env")), "missing file is fine")
}
