// Command ingestiond is the scheduled-daemon entrypoint: it loads
// configuration, wires the object store/search/embedding collaborators,
// builds the indexer and purger engines, registers them on the scheduler at
// their configured intervals, and runs until signalled.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"ingestpipe/internal/appwiring"
	"ingestpipe/internal/config"
	"ingestpipe/internal/logging"
	"ingestpipe/internal/scheduler"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.LogPath, cfg.LogLevel)

	baseCtx := context.Background()
	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := appwiring.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build engines")
	}

	sched, err := scheduler.New(cfg.SchedulerTZ)
	if err != nil {
		log.Fatal().Err(err).Msg("init scheduler")
	}

	indexInterval := intervalOrDefault(cfg.CronBlob, time.Hour)
	nl2sqlInterval := intervalOrDefault(cfg.CronNL2SQL, time.Hour)
	purgeInterval := intervalOrDefault(cfg.CronPurger, 6*time.Hour)

	register(sched, "blob", indexInterval, cfg.RunOnStartup, app.BlobIndexer.Run)
	register(sched, "nl2sql-queries", nl2sqlInterval, cfg.RunOnStartup, app.QueriesIndexer.Run)
	register(sched, "nl2sql-tables", nl2sqlInterval, cfg.RunOnStartup, app.TablesIndexer.Run)
	register(sched, "nl2sql-measures", nl2sqlInterval, cfg.RunOnStartup, app.MeasuresIndexer.Run)

	register(sched, "purge-blob", purgeInterval, cfg.RunOnStartup, app.BlobPurger.Run)
	register(sched, "purge-nl2sql-queries", purgeInterval, cfg.RunOnStartup, app.QueriesPurger.Run)
	register(sched, "purge-nl2sql-tables", purgeInterval, cfg.RunOnStartup, app.TablesPurger.Run)
	register(sched, "purge-nl2sql-measures", purgeInterval, cfg.RunOnStartup, app.MeasuresPurger.Run)
	if app.FiguresPurger != nil {
		register(sched, "purge-figures", purgeInterval, cfg.RunOnStartup, app.FiguresPurger.Run)
	}

	log.Info().Msg("ingestiond: starting scheduler")
	sched.Start(ctx)
	sched.Wait()
	log.Info().Msg("ingestiond: shut down")
}

// register wraps a "run(ctx, runId) (summary, error)" engine method as a
// scheduler.Job, discarding the summary (the engine already logged it
// through the Run Logger) and surfacing only the error to the scheduler.
func register[T any](sched *scheduler.Scheduler, name string, interval time.Duration, runAtStartup bool, run func(context.Context, string) (T, error)) {
	sched.Register(scheduler.Job{
		Name:         name,
		Interval:     interval,
		RunAtStartup: runAtStartup,
		Func: func(ctx context.Context) error {
			_, err := run(ctx, runID())
			return err
		},
	})
}

// intervalOrDefault parses a Go duration string (e.g. "1h", "30m") from a
// CRON_RUN_* setting; unset or unparseable values fall back to def.
func intervalOrDefault(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func runID() string {
	return time.Now().UTC().Format("20060102T150405Z")
}
