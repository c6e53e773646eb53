// SPDX-License-Identifier: MIT

// catalogd serves a read-optimized movie and TV catalog over HTTP, backed
// by a local SQLite mirror of provider metadata.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/filmgrid/catalogd/internal/api"
	"github.com/filmgrid/catalogd/internal/api/middleware"
	"github.com/filmgrid/catalogd/internal/backfill"
	"github.com/filmgrid/catalogd/internal/catalog"
	"github.com/filmgrid/catalogd/internal/config"
	"github.com/filmgrid/catalogd/internal/log"
	"github.com/filmgrid/catalogd/internal/store"
	"github.com/filmgrid/catalogd/internal/tmdb"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := config.LoadDotenv(".env"); err != nil {
		lg := log.Base()
		lg.Warn().Err(err).Msg("load .env")
	}
	cfg := config.Load()
	log.Configure(log.Config{Service: "catalogd"})
	logger := log.WithComponent("main")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open store")
	}
	defer st.Close()

	fg, bg := cfg.SplitProviderRate()
	client, err := tmdb.New(tmdb.Options{
		BaseURL:       cfg.TMDBBaseURL,
		APIKey:        cfg.TMDBKey,
		ProxyURL:      cfg.TMDBProxy,
		ForegroundRPS: fg,
		BackgroundRPS: bg,
		Logger:        log.WithComponent("tmdb"),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build provider client")
	}
	if !client.Enabled() {
		logger.Warn().Msg("no provider API key; serving from the local catalog only")
	}

	sched := backfill.New(st, client, cfg.BackfillWorkers, cfg.BackfillQueueLimit, cfg.BackfillTTL, log.WithComponent("backfill"))
	svc := catalog.New(st, client, sched, cfg.BrotliQuality, log.WithComponent("catalog"))

	router := api.NewRouter(svc, api.Config{
		Stack: middleware.StackConfig{
			AllowHosts:     cfg.CORSAllowHosts,
			AllowLocalhost: cfg.CORSAllowLocalhost,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			GlobalRPM:      cfg.RateLimitGlobalRPM,
		},
		ForceGzip: cfg.ForceGzip,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{newServer(cfg, router, cfg.HTTPPort)}
	tlsReady := cfg.TLSCert != "" && cfg.TLSKey != "" && fileExists(cfg.TLSCert) && fileExists(cfg.TLSKey)
	if tlsReady {
		servers = append(servers, newServer(cfg, router, cfg.HTTPSPort))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		https := tlsReady && i == 1
		g.Go(func() error {
			logger.Info().Str("addr", srv.Addr).Bool("tls", https).Msg("listening")
			var err error
			if https {
				err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			} else {
				err = srv.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(sctx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}
	sched.Stop()
	logger.Info().Msg("shutdown complete")
}

func newServer(cfg *config.Config, handler http.Handler, port int) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(cfg.BindAddr, strconv.Itoa(port)),
		Handler:      handler,
		ReadTimeout:  cfg.ConnTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
