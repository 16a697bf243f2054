package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-bot/internal/api/handlers"
	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/dvloznov/finance-bot/internal/notify"
	"github.com/dvloznov/finance-bot/internal/ratelimit"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{Parser: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	// Notifications are delivered in-process by the same binary. Workers get
	// their own context so queued jobs drain after the scheduler stops.
	workerCtx, cancelWorkers := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancelWorkers()

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Options{
		BufferSize: cfg.QueueSize,
		Workers:    cfg.WorkerCount,
		Store:      jobStore,
		Clock:      a.Clock,
	})
	if err := jobQueue.Start(workerCtx, notify.JobHandler(notify.New(cfg.NotifyWebhookURL))); err != nil {
		log.Fatal().Err(err).Msg("Failed to start notification workers")
	}

	sched := a.Scheduler(jobQueue)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Start(ctx)
	}()

	limiter := ratelimit.NewMemory(cfg.RateLimitMessages, cfg.RateLimitWindow, a.Clock)

	api := http.NewServeMux()
	handlers.Routes(api,
		handlers.NewMessagesHandler(a.Dispatcher),
		handlers.NewExportHandler(a.Export),
		handlers.NewJobsHandler(jobStore),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Chain(api,
		middleware.Auth(cfg.Allowed),
		middleware.RateLimit(limiter),
	))
	mux.Handle("GET /health", http.HandlerFunc(handlers.NewHealthHandler(a.DB, a.Clock).Get))

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.RequestID,
		middleware.CORS,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ParseTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop scheduling new batches before the queue goes away.
	cancel()
	<-schedDone

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
