package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/notify"
)

// The worker runs the reminder and weekly summary schedules without the
// HTTP surface, for deployments where the chat front end lives elsewhere.
func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	base := logger.WithContext(context.Background(), log)

	a, err := app.Build(base, cfg, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	jobQueue := inmemory.NewQueue(inmemory.Options{
		BufferSize: cfg.QueueSize,
		Workers:    cfg.WorkerCount,
		Store:      inmemory.NewStore(),
		Clock:      a.Clock,
	})

	workerCtx, cancelWorkers := context.WithCancel(base)
	defer cancelWorkers()

	if err := jobQueue.Start(workerCtx, notify.JobHandler(notify.New(cfg.NotifyWebhookURL))); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	schedCtx, stopScheduler := context.WithCancel(base)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		a.Scheduler(jobQueue).Start(schedCtx)
	}()

	log.Info().Int("workers", cfg.WorkerCount).Msg("Worker service started, waiting for schedules...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	stopScheduler()
	<-schedDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
