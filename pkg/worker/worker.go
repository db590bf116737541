package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/extrasync/pkg/config"
	"github.com/shishobooks/extrasync/pkg/events"
	"github.com/shishobooks/extrasync/pkg/extrafiles"
	"github.com/shishobooks/extrasync/pkg/extras"
	"github.com/shishobooks/extrasync/pkg/fileutils"
	"github.com/shishobooks/extrasync/pkg/housekeeping"
	"github.com/shishobooks/extrasync/pkg/joblogs"
	"github.com/shishobooks/extrasync/pkg/jobs"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/shishobooks/extrasync/pkg/series"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]func(ctx context.Context, job *models.Job) error

	bus           *events.Bus
	extrasService *extras.Service
	jobService    *jobs.Service
	jobLogService *joblogs.Service
	sweeper       *housekeeping.Sweeper
	scheduler     *cron.Cron

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB) *Worker {
	jobService := jobs.NewService(db)
	store := extrafiles.NewService(db, cfg.DatabaseMaxRetries)
	extrasService := extras.NewService(cfg, series.NewService(db), store, fileutils.NewStore())

	bus := events.NewBus(jobService)
	extrasService.RegisterHandlers(bus)

	w := &Worker{
		config: cfg,
		log:    logger.New(),

		bus:           bus,
		extrasService: extrasService,
		jobService:    jobService,
		jobLogService: joblogs.NewService(db),
		sweeper:       housekeeping.NewSweeper(store, cfg.JobRetention),
		scheduler:     cron.New(),

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *models.Job) error{
		models.JobTypeEvent:        w.ProcessEventJob,
		models.JobTypeHousekeeping: w.ProcessHousekeepingJob,
	}

	return w
}

// Bus is where the catalog publishes its events.
func (w *Worker) Bus() *events.Bus {
	return w.bus
}

func (w *Worker) Extras() *extras.Service {
	return w.extrasService
}

func (w *Worker) Start() error {
	if w.config.HousekeepingSchedule != "" {
		_, err := w.scheduler.AddFunc(w.config.HousekeepingSchedule, func() {
			ctx := w.log.WithContext(context.Background())
			if _, err := w.ScheduleHousekeeping(ctx); err != nil {
				w.log.Err(err).Error("schedule housekeeping error")
			}
		})
		if err != nil {
			return errors.Wrapf(err, "invalid housekeeping schedule %q", w.config.HousekeepingSchedule)
		}
	}
	w.scheduler.Start()

	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
	return nil
}

// ScheduleHousekeeping enqueues a housekeeping job unless one is already
// pending or running. It reports whether a job was created.
func (w *Worker) ScheduleHousekeeping(ctx context.Context) (bool, error) {
	active, err := w.jobService.HasActiveJobByType(ctx, models.JobTypeHousekeeping)
	if err != nil {
		return false, errors.WithStack(err)
	}
	if active {
		logger.FromContext(ctx).Debug("housekeeping already queued")
		return false, nil
	}

	err = w.jobService.CreateJob(ctx, &models.Job{
		Type:       models.JobTypeHousekeeping,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobHousekeepingData{},
	})
	if err != nil {
		return false, errors.WithStack(err)
	}
	return true, nil
}

func (w *Worker) ProcessEventJob(ctx context.Context, job *models.Job) error {
	data, ok := job.DataParsed.(*models.JobEventData)
	if !ok {
		return errors.Errorf("unexpected data for event job %d", job.ID)
	}
	return w.bus.Deliver(ctx, data.Name, data.Payload)
}

func (w *Worker) ProcessHousekeepingJob(ctx context.Context, _ *models.Job) error {
	return w.sweeper.Run(ctx)
}

func (w *Worker) fetchJobs() {
	duration := w.config.WorkerPollInterval
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			timer.Stop()
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			ctx := w.log.WithContext(context.Background())
			j, err := w.jobService.ListJobs(ctx, jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(duration)
				continue
			}
			queued := false
			for _, job := range j {
				// Claim before queueing so the next poll doesn't return the
				// same job again.
				claimed, err := w.jobService.ClaimJob(ctx, job, processID)
				if err != nil {
					w.log.Err(err).Error("claim job error")
					continue
				}
				if !claimed {
					continue
				}
				select {
				case w.queue <- job:
					queued = true
				case <-w.shutdown:
					// The job stays in progress and is picked up again by
					// the next process.
					w.doneFetching <- struct{}{}
					return
				}
			}
			// Drain the queue before waiting again when there was work.
			if queued {
				timer.Reset(0)
				continue
			}
			timer.Reset(duration)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			// Prep the context to be passed down to the process function.
			id, err := uuid.NewRandom()
			if err != nil {
				w.log.Err(err).Error("new uuid error")
				continue
			}
			log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
			ctx := log.WithContext(context.Background())

			w.processJob(ctx, job)
		}
	}
}

// processJob runs a claimed job and records its outcome.
func (w *Worker) processJob(ctx context.Context, job *models.Job) {
	log := logger.FromContext(ctx)
	jobLog := w.jobLogService.NewJobLogger(ctx, job.ID)

	fail := func(err error) {
		jobLog.Error("job failed", err, nil)
		if err := w.jobService.FailJob(ctx, job, err); err != nil {
			log.Err(err).Error("update job error")
		}
	}

	// Find and invoke the appropriate process function.
	fn, ok := w.processFuncs[job.Type]
	if !ok {
		fail(errors.Errorf("can't find process function for type %q", job.Type))
		return
	}

	started := time.Now()
	if err := fn(ctx, job); err != nil {
		fail(err)
		return
	}

	// Update job to be completed so that it's not picked up anymore.
	job.Status = models.JobStatusCompleted

	err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"status"},
	})
	if err != nil {
		log.Err(err).Error("update job error")
		return
	}
	jobLog.Info("job completed", logger.Data{"duration": time.Since(started).String()})
}

func (w *Worker) Shutdown() {
	<-w.scheduler.Stop().Done()
	close(w.shutdown)

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
