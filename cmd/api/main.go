package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/api"
	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/config"
	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/gcsuploader"
	"github.com/dvloznov/sales-dashboard/internal/infra/source"
	"github.com/dvloznov/sales-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/dvloznov/sales-dashboard/internal/snapshot"
)

func main() {
	cfg, err := config.Load("api", os.Args[1:], os.Getenv)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx := logger.WithContext(context.Background(), log)

	src, err := source.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.DataSource).Msg("Failed to open purchase source")
	}
	defer src.Close()

	service := dashboard.NewService(dashboard.Options{
		Source:         src,
		SourceTZ:       cfg.SourceTZ,
		TargetTZ:       cfg.TargetTZ,
		TopN:           cfg.TopN,
		CurrencyPrefix: cfg.CurrencyPrefix,
		YearsPerClient: cfg.YearsPerClient,
	})

	deps := api.Deps{Renderer: service, Log: log}

	// Snapshot export runs on the in-memory queue when a bucket is configured.
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var jobQueue *inmemory.Queue
	if cfg.SnapshotBucket == "" {
		log.Warn().Msg("No GCS bucket configured - snapshot export will be disabled")
	} else {
		jobStore := inmemory.NewStore()
		jobQueue = inmemory.NewQueue(100, jobStore)

		exporter := &snapshot.Exporter{
			Renderer: service,
			Storage:  gcsuploader.NewGCSStorageService(),
			Bucket:   cfg.SnapshotBucket,
			Width:    charts.DefaultWidth,
			Height:   charts.DefaultHeight,
		}
		if err := jobQueue.Start(workerCtx, exporter.Handle); err != nil {
			log.Fatal().Err(err).Msg("Failed to start snapshot worker")
		}
		log.Info().Str("bucket", cfg.SnapshotBucket).Msg("Snapshot worker started")

		deps.Publisher = jobQueue
		deps.Store = jobStore
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("source", cfg.DataSource).
			Str("target_tz", cfg.TargetTZ.String()).
			Msg("Starting dashboard server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if jobQueue != nil {
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
	}

	log.Info().Msg("Server exited")
}
