// cmd/fantrack/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/api"
	"github.com/clubforge/fantrack/internal/cache"
	"github.com/clubforge/fantrack/internal/config"
	"github.com/clubforge/fantrack/internal/failover"
	"github.com/clubforge/fantrack/internal/orchestrator"
	"github.com/clubforge/fantrack/internal/secondary"
	"github.com/clubforge/fantrack/internal/sheets"
	"github.com/clubforge/fantrack/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	// Durable snapshot loads here; expired entries are purged on the way in.
	tiered, err := cache.NewTieredCache(cache.Config{
		TTL: cfg.Cache.TTL,
		Dir: cfg.Cache.Dir,
	}, logger)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	sec, err := secondary.Open(ctx, cfg.Secondary.DSN(), logger)
	cancel()
	if err != nil {
		logger.Fatal("secondary store unavailable", zap.Error(err))
	}
	defer func() { _ = sec.Close() }()

	primary := sheets.NewClient(cfg.Primary.BaseURL, cfg.Primary.APIKey,
		sheets.WithLogger(logger),
		sheets.WithRetryPolicy(sheets.NewRetryPolicy(
			sheets.WithMaxAttempts(cfg.Primary.MaxAttempts),
			sheets.WithInitialDelay(cfg.Primary.InitialBackoff),
			sheets.WithRetryLogger(logger),
		)),
	)

	coord := failover.NewCoordinator(primary, sec,
		cfg.Primary.CallTimeout, cfg.Failover.Cooldown, logger)

	deriver := stats.NewDeriver(cfg.QuotaPerDay, logger)

	orch := orchestrator.New(coord, tiered, deriver, logger,
		orchestrator.WithMirror(sec),
		orchestrator.WithPacing(cfg.Refresh.Pacing),
	)

	server := api.NewServer(cfg, logger, orch)

	// All refresh triggers, scheduled or manual, funnel through one
	// channel so a single owner serializes cache mutation per sweep.
	sweeps := make(chan struct{}, 1)
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(cfg.Refresh.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case sweeps <- struct{}{}:
				default: // a sweep is already queued
				}
			case <-stop:
				return
			}
		}
	}()

	go func() {
		refs := make([]orchestrator.DatasetRef, 0, len(cfg.Clubs))
		for _, club := range cfg.Clubs {
			dataset := club.Dataset
			if dataset == "" {
				dataset = "data"
			}
			refs = append(refs, orchestrator.DatasetRef{Club: club.Name, Dataset: dataset})
		}
		for {
			select {
			case <-sweeps:
				sctx, scancel := context.WithTimeout(context.Background(), cfg.Refresh.SweepTimeout)
				orch.RefreshAll(sctx, refs)
				scancel()
			case <-stop:
				return
			}
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		close(stop)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}

		tiered.Flush()
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
