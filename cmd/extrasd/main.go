package main

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/shishobooks/extrasync/pkg/config"
	"github.com/shishobooks/extrasync/pkg/database"
	"github.com/shishobooks/extrasync/pkg/extrafiles"
	"github.com/shishobooks/extrasync/pkg/housekeeping"
	"github.com/shishobooks/extrasync/pkg/migrations"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/shishobooks/extrasync/pkg/series"
	"github.com/shishobooks/extrasync/pkg/version"
	"github.com/shishobooks/extrasync/pkg/worker"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	var db *bun.DB
	openDB := func(c *cli.Context) error {
		db, err = database.New(cfg)
		if err != nil {
			return errors.Wrap(err, "database error")
		}
		return nil
	}
	closeDB := func(c *cli.Context) error {
		if db == nil {
			return nil
		}
		return errors.Wrap(db.Close(), "database close error")
	}

	app := &cli.App{
		Name:        "extrasd",
		Usage:       "keep track of the extra files that live next to episodes",
		Description: "Reconciles subtitles, metadata and other companion files of a TV library with its catalog.",
		Version:     version.Version,
		Before:      openDB,
		After:       closeDB,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the event worker and the housekeeping schedule",
				Action: func(c *cli.Context) error {
					return serve(c.Context, cfg, db, log)
				},
			},
			{
				Name:  "scan",
				Usage: "reconcile the extra files of one series, or of every series",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "series-id", Usage: "only scan this series"},
				},
				Action: func(c *cli.Context) error {
					return scan(log.WithContext(c.Context), cfg, db, c.Int("series-id"))
				},
			},
			{
				Name:  "housekeep",
				Usage: "remove orphaned and duplicate extra file records",
				Action: func(c *cli.Context) error {
					sweeper := housekeeping.NewSweeper(extrafiles.NewService(db, cfg.DatabaseMaxRetries), cfg.JobRetention)
					return sweeper.Run(log.WithContext(c.Context))
				},
			},
			migrateCommand(func() *bun.DB { return db }),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

func serve(ctx context.Context, cfg *config.Config, db *bun.DB, log logger.Logger) error {
	log.Info("starting extrasd", logger.Data{"version": version.Version})
	ctx = log.WithContext(ctx)

	if _, err := migrations.BringUpToDate(ctx, db); err != nil {
		return errors.Wrap(err, "migrations error")
	}

	wrkr := worker.New(cfg, db)
	if err := wrkr.Start(); err != nil {
		return err
	}
	log.Info("worker started", logger.Data{"housekeeping_schedule": cfg.HousekeepingSchedule})

	graceful := signals.Setup()
	<-graceful
	log.Info("starting graceful shutdown")

	wrkr.Shutdown()
	log.Info("worker shutdown")
	return nil
}

func scan(ctx context.Context, cfg *config.Config, db *bun.DB, seriesID int) error {
	catalog := series.NewService(db)

	var all []*models.Series
	if seriesID != 0 {
		s, err := catalog.GetSeries(ctx, seriesID)
		if err != nil {
			return err
		}
		all = []*models.Series{s}
	} else {
		var err error
		all, err = catalog.ListSeries(ctx, series.ListSeriesOptions{})
		if err != nil {
			return err
		}
	}

	wrkr := worker.New(cfg, db)
	return wrkr.Extras().ScanAll(ctx, all, cfg.ScanConcurrency)
}
