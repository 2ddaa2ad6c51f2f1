package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-ledger/internal/api/handlers"
	"github.com/dvloznov/budget-ledger/internal/api/middleware"
	"github.com/dvloznov/budget-ledger/internal/app"
	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/scheduler"
	"github.com/dvloznov/budget-ledger/internal/statement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	withScheduler := flag.Bool("scheduler", cfg.RecurringSchedule != "", "Run the recurring bill sweep in this process")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueSize, cfg.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.Workers).Msg("Starting job workers")
		if err := jobQueue.Start(workerCtx, a.Ingestor.HandleJob); err != nil {
			log.Error().Err(err).Msg("Job workers stopped with error")
		}
	}()

	var sched *scheduler.Scheduler
	if *withScheduler {
		sched = scheduler.New(workerCtx, log)
		if err := sched.AddJob(cfg.RecurringSchedule, scheduler.NewRecurringSweep(a.Engine, a.Store)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule recurring sweep")
		}
		sched.Start()
	}

	mux := http.NewServeMux()
	handlers.NewEntriesHandler(a.Engine).Register(mux)
	handlers.NewInstallmentsHandler(a.Engine).Register(mux)
	handlers.NewCategoriesHandler(a.Engine).Register(mux)
	handlers.NewRecurringBillsHandler(a.Engine).Register(mux)
	handlers.NewStatementsHandler(a.Parser, a.Importer, statement.NewSessions(), a.Ingestor, a.Store, jobQueue, cfg.MaxRetries).Register(mux)
	handlers.NewJobsHandler(jobStore).Register(mux)
	handlers.NewReportsHandler(a.Engine).Register(mux)

	// RequestID runs first so the request logger and panics carry the id.
	handler := middleware.RequestID(
		middleware.Recovery(log)(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth("/health")(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if sched != nil {
		sched.Stop()
	}

	// Stop accepting jobs and wait for in-flight ones before cancelling them.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
