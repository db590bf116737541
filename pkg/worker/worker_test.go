package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/extrasync/pkg/config"
	"github.com/shishobooks/extrasync/pkg/events"
	"github.com/shishobooks/extrasync/pkg/extrafiles"
	"github.com/shishobooks/extrasync/pkg/joblogs"
	"github.com/shishobooks/extrasync/pkg/jobs"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/shishobooks/extrasync/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// testContext holds all the dependencies needed for testing the worker.
type testContext struct {
	t          *testing.T
	ctx        context.Context
	db         *bun.DB
	config     *config.Config
	worker     *Worker
	jobService *jobs.Service
	store      *extrafiles.Service
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	cfg := config.NewForTest()
	cfg.PathComparison = config.PathComparisonExact
	cfg.WorkerPollInterval = 10 * time.Millisecond
	db := testutils.NewDB(t)

	return &testContext{
		t:          t,
		ctx:        logger.New().WithContext(context.Background()),
		db:         db,
		config:     cfg,
		worker:     New(cfg, db),
		jobService: jobs.NewService(db),
		store:      extrafiles.NewService(db, 1),
	}
}

func (tc *testContext) onlyJob() *models.Job {
	tc.t.Helper()
	all, err := tc.jobService.ListJobs(tc.ctx, jobs.ListJobsOptions{})
	require.NoError(tc.t, err)
	require.Len(tc.t, all, 1)
	return all[0]
}

func (tc *testContext) claim(job *models.Job) {
	tc.t.Helper()
	claimed, err := tc.jobService.ClaimJob(tc.ctx, job, processID)
	require.NoError(tc.t, err)
	require.True(tc.t, claimed)
}

func (tc *testContext) reload(job *models.Job) *models.Job {
	tc.t.Helper()
	retrieved, err := tc.jobService.RetrieveJob(tc.ctx, job.ID)
	require.NoError(tc.t, err)
	return retrieved
}

func (tc *testContext) logs(job *models.Job) []*models.JobLog {
	tc.t.Helper()
	logs, err := joblogs.NewService(tc.db).ListJobLogs(tc.ctx, joblogs.ListJobLogsOptions{JobID: job.ID})
	require.NoError(tc.t, err)
	return logs
}

func TestScheduleHousekeeping(t *testing.T) {
	tc := newTestContext(t)

	created, err := tc.worker.ScheduleHousekeeping(tc.ctx)
	require.NoError(t, err)
	assert.True(t, created)

	// Skipped while one is pending.
	created, err = tc.worker.ScheduleHousekeeping(tc.ctx)
	require.NoError(t, err)
	assert.False(t, created)

	job := tc.onlyJob()
	assert.Equal(t, models.JobTypeHousekeeping, job.Type)

	// Skipped while one is running.
	tc.claim(job)
	created, err = tc.worker.ScheduleHousekeeping(tc.ctx)
	require.NoError(t, err)
	assert.False(t, created)

	job.Status = models.JobStatusCompleted
	require.NoError(t, tc.jobService.UpdateJob(tc.ctx, job, jobs.UpdateJobOptions{Columns: []string{"status"}}))
	created, err = tc.worker.ScheduleHousekeeping(tc.ctx)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestProcessJob_Housekeeping(t *testing.T) {
	tc := newTestContext(t)
	testutils.CreateExtraFile(t, tc.db, &models.ExtraFile{SeriesID: 404, Type: models.ExtraTypeOther, RelativePath: "orphan.txt"})

	_, err := tc.worker.ScheduleHousekeeping(tc.ctx)
	require.NoError(t, err)
	job := tc.onlyJob()
	tc.claim(job)

	tc.worker.processJob(tc.ctx, job)

	assert.Equal(t, models.JobStatusCompleted, tc.reload(job).Status)
	extras, err := tc.store.ListExtraFiles(tc.ctx, extrafiles.ListExtraFilesOptions{})
	require.NoError(t, err)
	assert.Empty(t, extras)

	logs := tc.logs(job)
	require.Len(t, logs, 1)
	assert.Equal(t, models.JobLogLevelInfo, logs[0].Level)
	assert.Equal(t, "job completed", logs[0].Message)
}

func TestProcessJob_Event(t *testing.T) {
	tc := newTestContext(t)
	dir := filepath.Join(t.TempDir(), "Show")
	require.NoError(t, os.MkdirAll(dir, 0755))
	show := testutils.CreateSeries(t, tc.db, "Show", dir)
	testutils.CreateEpisodeFile(t, tc.db, show, 1, "Season 1/Show.S01E01.mkv")
	testutils.WriteFile(t, filepath.Join(dir, "Season 1", "Show.S01E01.en.srt"), "sub")

	require.NoError(t, tc.worker.Bus().Publish(tc.ctx, &events.SeriesScanned{SeriesID: show.ID}))
	job := tc.onlyJob()
	assert.Equal(t, models.JobTypeEvent, job.Type)
	tc.claim(job)

	tc.worker.processJob(tc.ctx, job)

	assert.Equal(t, models.JobStatusCompleted, tc.reload(job).Status)
	extras, err := tc.store.ListExtraFiles(tc.ctx, extrafiles.ListExtraFilesOptions{SeriesID: &show.ID})
	require.NoError(t, err)
	require.Len(t, extras, 1)
	assert.Equal(t, "Season 1/Show.S01E01.en.srt", extras[0].RelativePath)
}

func TestProcessJob_Failures(t *testing.T) {
	tests := []struct {
		name     string
		job      *models.Job
		expected string
	}{
		{
			name: "unknown event",
			job: &models.Job{
				Type:       models.JobTypeEvent,
				DataParsed: &models.JobEventData{Name: "library_exploded", Payload: []byte(`{}`)},
				SeriesID:   pointerutil.Int(1),
			},
			expected: `Unknown event "library_exploded"`,
		},
		{
			name:     "unknown type",
			job:      &models.Job{Type: "export"},
			expected: `can't find process function for type "export"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestContext(t)
			require.NoError(t, tc.jobService.CreateJob(tc.ctx, tt.job))
			job := tc.onlyJob()
			tc.claim(job)

			tc.worker.processJob(tc.ctx, job)

			failed := tc.reload(job)
			assert.Equal(t, models.JobStatusFailed, failed.Status)
			require.NotNil(t, failed.Error)
			assert.Equal(t, tt.expected, *failed.Error)

			logs := tc.logs(job)
			require.Len(t, logs, 1)
			assert.Equal(t, models.JobLogLevelError, logs[0].Level)
			require.NotNil(t, logs[0].Data)
			assert.Contains(t, *logs[0].Data, "error")
			assert.NotNil(t, logs[0].StackTrace)
		})
	}
}

func TestStart_ProcessesQueuedJobs(t *testing.T) {
	tc := newTestContext(t)
	testutils.CreateExtraFile(t, tc.db, &models.ExtraFile{SeriesID: 404, Type: models.ExtraTypeOther, RelativePath: "orphan.txt"})
	_, err := tc.worker.ScheduleHousekeeping(tc.ctx)
	require.NoError(t, err)
	job := tc.onlyJob()

	require.NoError(t, tc.worker.Start())
	assert.Eventually(t, func() bool {
		retrieved, err := tc.jobService.RetrieveJob(tc.ctx, job.ID)
		return err == nil && retrieved.Status == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	tc.worker.Shutdown()

	extras, err := tc.store.ListExtraFiles(tc.ctx, extrafiles.ListExtraFilesOptions{})
	require.NoError(t, err)
	assert.Empty(t, extras)
}

func TestStart_InvalidSchedule(t *testing.T) {
	tc := newTestContext(t)
	tc.config.HousekeepingSchedule = "whenever"

	assert.Error(t, tc.worker.Start())
}
