// Command worker runs background ledger work: the monthly recurring bill
// sweep on a cron schedule, and on demand the reprocessing of archived
// statements that never finished importing.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budget-ledger/internal/app"
	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/dvloznov/budget-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/dvloznov/budget-ledger/internal/scheduler"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		once      = flag.Bool("once", false, "Run the recurring sweep once and exit")
		month     = flag.String("month", "", "Month to sweep with -once, YYYY-MM (default: current month)")
		reprocess = flag.Bool("reprocess", false, "Re-import the user's pending and failed statements and exit")
		userID    = flag.String("user", "", "User whose statements to reprocess")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	sweep := scheduler.NewRecurringSweep(a.Engine, a.Store)

	switch {
	case *reprocess:
		if *userID == "" {
			log.Fatal().Msg("-user is required with -reprocess")
		}
		if err := reprocessStatements(ctx, log, a, *userID); err != nil {
			log.Fatal().Err(err).Msg("Reprocessing failed")
		}

	case *once:
		if *month != "" {
			start, err := time.Parse("2006-01", *month)
			if err != nil {
				log.Fatal().Err(err).Str("month", *month).Msg("Invalid -month, expected YYYY-MM")
			}
			sweep.Clock = func() time.Time { return start }
		}
		if err := scheduler.New(ctx, log).RunNow(sweep); err != nil {
			log.Fatal().Err(err).Msg("Recurring sweep failed")
		}

	default:
		if cfg.RecurringSchedule == "" {
			log.Fatal().Msg("RECURRING_SCHEDULE is empty, nothing to schedule")
		}
		sched := scheduler.New(ctx, log)
		if err := sched.AddJob(cfg.RecurringSchedule, sweep); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule recurring sweep")
		}
		sched.Start()

		log.Info().Msg("Worker service started, waiting for schedule...")
		<-ctx.Done()

		log.Info().Msg("Shutting down worker service...")
		sched.Stop()
	}

	log.Info().Msg("Worker service exited")
}

// reprocessStatements queues an import job for every statement of userID not
// yet processed and waits until the queue has drained.
func reprocessStatements(ctx context.Context, log zerolog.Logger, a *app.App, userID string) error {
	statements, err := a.Store.ListStatements(ctx, userID)
	if err != nil {
		return err
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(len(statements)+1, a.Config.Workers, jobStore)
	defer queue.Close()

	if err := queue.Start(ctx, a.Ingestor.HandleJob); err != nil {
		return err
	}

	queued := 0
	for _, st := range statements {
		if st.Status == domain.StatementProcessed {
			continue
		}
		job := &jobs.ImportStatementJob{
			UserID:      userID,
			StatementID: st.ID,
			GCSURI:      st.URI,
			MaxRetries:  a.Config.MaxRetries,
		}
		if err := queue.PublishImportStatement(ctx, job); err != nil {
			return err
		}
		queued++
	}
	log.Info().Int("queued", queued).Str("user_id", userID).Msg("Statements queued for import")

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		all, err := jobStore.ListJobs(ctx, jobs.JobFilter{UserID: userID})
		if err != nil {
			return err
		}
		if done, failed := finished(all); done {
			log.Info().Int("jobs", len(all)).Int("failed", failed).Msg("Reprocessing finished")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// finished reports whether every job reached a final state, and how many
// of them failed.
func finished(all []*jobs.ImportStatementJob) (bool, int) {
	failed := 0
	for _, j := range all {
		switch j.Status {
		case jobs.JobStatusCompleted:
		case jobs.JobStatusFailed:
			failed++
		default:
			return false, 0
		}
	}
	return true, failed
}
