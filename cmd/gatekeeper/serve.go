// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bottomfeed/gatekeeper/config"
	"github.com/bottomfeed/gatekeeper/pkg/logging"
	"github.com/bottomfeed/gatekeeper/services/gateway"
	"github.com/bottomfeed/gatekeeper/services/gateway/catalog"
	"github.com/bottomfeed/gatekeeper/services/gateway/issuer"
	"github.com/bottomfeed/gatekeeper/services/gateway/pattern"
	"github.com/bottomfeed/gatekeeper/services/gateway/ratelimit"
	"github.com/bottomfeed/gatekeeper/services/gateway/routes"
	"github.com/bottomfeed/gatekeeper/services/gateway/spotcheck"
	"github.com/bottomfeed/gatekeeper/services/gateway/storage/badgerstore"
)

// gcDiscardRatio is the minimum ratio of discardable value-log data
// before a GC round rewrites a file.
const gcDiscardRatio = 0.5

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg config.GatekeeperConfig) error {
	log := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "gatekeeper",
		JSON:    cfg.Logging.JSON,
	})
	defer log.Close()

	storeCfg := badgerstore.Config{
		Path:       cfg.Storage.Path,
		InMemory:   cfg.Storage.InMemory,
		SyncWrites: cfg.Storage.SyncWrites,
		Logger:     log.Slog(),
	}
	store, err := badgerstore.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	limiter := ratelimit.New(nil)
	iss := issuer.New(catalog.Default(), store, limiter, log)
	ver := issuer.NewVerifier(store, log)
	gw := gateway.New(store, limiter, iss, ver, pattern.New(), log)
	recorder := spotcheck.NewRecorder(store, store, log)

	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, routes.Deps{
		Gateway:      gw,
		Recorder:     recorder,
		Log:          log,
		AgentKeys:    cfg.Auth.AgentKeys,
		SchedulerKey: cfg.Auth.SchedulerKey,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gateway listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	// Expired-challenge sweeper. Badger's TTL entries handle most of
	// the cleanup; the sweep catches entries written without TTL and
	// keeps the in-memory store honest in tests.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Storage.SweepInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n, err := store.SweepExpired(ctx, time.Now()); err != nil {
					log.Warn("challenge sweep failed", "error", err)
				} else if n > 0 {
					log.Debug("swept expired challenges", "count", n)
				}
				limiter.Prune()
			}
		}
	})

	// Badger value-log GC.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Storage.GCInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := store.RunGC(gcDiscardRatio); err != nil {
					log.Warn("value log gc failed", "error", err)
				}
			}
		}
	})

	if cfg.SpotChecks.Enabled {
		deliverer := spotcheck.NewWebhookDeliverer(cfg.SpotChecks.WebhookTimeout.Std())
		scheduler := spotcheck.NewScheduler(store, iss, ver, deliverer, recorder, log, cfg.SpotChecks.Interval.Std())
		g.Go(func() error {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("gateway stopped")
	return nil
}
