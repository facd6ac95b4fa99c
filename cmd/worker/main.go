package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/charts"
	"github.com/dvloznov/sales-dashboard/internal/config"
	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/gcsuploader"
	"github.com/dvloznov/sales-dashboard/internal/infra/source"
	"github.com/dvloznov/sales-dashboard/internal/jobs"
	"github.com/dvloznov/sales-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/sales-dashboard/internal/logger"
	"github.com/dvloznov/sales-dashboard/internal/selection"
	"github.com/dvloznov/sales-dashboard/internal/snapshot"
	"github.com/rs/zerolog"
)

// The worker exports dashboard snapshots on a fixed interval: the landing
// view, and with -all-clients one view per client for the current year.
func main() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	interval := fs.Duration("interval", 24*time.Hour, "Time between snapshot rounds")
	allClients := fs.Bool("all-clients", false, "Also export one snapshot per client")
	once := fs.Bool("once", false, "Run a single round and exit")

	cfg, err := config.Parse(fs, os.Args[1:], os.Getenv)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.SnapshotBucket == "" {
		log.Fatal().Msg("-bucket (or GCS_BUCKET) is required")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

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

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)
	exporter := &snapshot.Exporter{
		Renderer: service,
		Storage:  gcsuploader.NewGCSStorageService(),
		Bucket:   cfg.SnapshotBucket,
		Width:    charts.DefaultWidth,
		Height:   charts.DefaultHeight,
	}

	if err := jobQueue.Start(ctx, exporter.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Dur("interval", *interval).Bool("all_clients", *allClients).Msg("Snapshot worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

loop:
	for {
		enqueueRound(ctx, log, service, jobQueue, *allClients)
		if *once {
			waitForRound(ctx, jobStore)
			break
		}

		select {
		case <-ticker.C:
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}

// enqueueRound publishes the landing snapshot and, optionally, one per client.
func enqueueRound(ctx context.Context, log zerolog.Logger, service *dashboard.Service, publisher jobs.Publisher, allClients bool) {
	requests := []*jobs.SnapshotJob{{}}

	if allClients {
		view, err := service.Render(ctx, selection.Request{})
		if err != nil {
			log.Error().Err(err).Msg("Failed to list clients, exporting the landing view only")
		} else {
			for _, client := range view.Controls.Client.Options {
				if client == "" {
					continue
				}
				requests = append(requests, &jobs.SnapshotJob{Client: client})
			}
		}
	}

	for _, job := range requests {
		if err := publisher.PublishSnapshot(ctx, job); err != nil {
			log.Error().Err(err).Str("client", job.Client).Msg("Failed to enqueue snapshot job")
			continue
		}
		log.Debug().Str("job_id", job.JobID).Str("client", job.Client).Msg("Snapshot job enqueued")
	}
}

// waitForRound blocks until no job is pending, running or retrying.
func waitForRound(ctx context.Context, store jobs.JobStore) {
	for {
		busy := false
		for _, status := range []jobs.JobStatus{jobs.JobStatusPending, jobs.JobStatusRunning, jobs.JobStatusRetrying} {
			list, err := store.ListJobs(ctx, jobs.JobFilter{Status: status, Limit: 1})
			if err == nil && len(list) > 0 {
				busy = true
			}
		}
		if !busy {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}
