// Package housekeeping repairs the extra file table independently of
// reconciliation. Every pass is a single set-based DELETE, so running a pass
// twice or alongside a scan is harmless.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/extrasync/pkg/models"
)

// BulkDeleter runs a raw DELETE statement and reports how many rows it
// removed.
type BulkDeleter interface {
	BulkDelete(ctx context.Context, query string, args ...interface{}) (int, error)
}

type Sweeper struct {
	store        BulkDeleter
	jobRetention time.Duration
}

// NewSweeper returns a sweeper that also prunes finished jobs older than
// jobRetention. A zero retention keeps every job.
func NewSweeper(store BulkDeleter, jobRetention time.Duration) *Sweeper {
	return &Sweeper{store: store, jobRetention: jobRetention}
}

type pass struct {
	name  string
	query string
	args  []interface{}
}

var orphanPasses = []pass{
	{
		name: "missing series",
		query: `DELETE FROM extra_files WHERE id IN (
			SELECT ef.id FROM extra_files ef
			LEFT JOIN series s ON ef.series_id = s.id
			WHERE s.id IS NULL)`,
	},
	{
		name: "missing episode file",
		query: `DELETE FROM extra_files WHERE id IN (
			SELECT ef.id FROM extra_files ef
			LEFT JOIN episode_files epf ON ef.episode_file_id = epf.id
			WHERE ef.episode_file_id > 0 AND epf.id IS NULL)`,
	},
	{
		// Zero marks episode-scoped metadata whose episode file was never
		// resolved. NULL is left alone.
		name:  "unresolved episode metadata",
		query: `DELETE FROM extra_files WHERE type = ? AND metadata_type IN (?, ?) AND episode_file_id = 0`,
		args:  []interface{}{models.ExtraTypeMetadata, models.MetadataTypeEpisodeMetadata, models.MetadataTypeEpisodeImage},
	},
}

// duplicatePass keeps the row with the lowest id of every group.
func duplicatePass(metadataType models.MetadataType, groupBy string) pass {
	scope := fmt.Sprintf("type = ? AND metadata_type = ? AND %s IS NOT NULL", groupBy)
	return pass{
		name: "duplicate " + metadataType.String(),
		query: fmt.Sprintf(`DELETE FROM extra_files WHERE %s AND id NOT IN (
			SELECT MIN(id) FROM extra_files WHERE %s
			GROUP BY %s, metadata_consumer)`, scope, scope, groupBy),
		args: []interface{}{
			models.ExtraTypeMetadata, metadataType,
			models.ExtraTypeMetadata, metadataType,
		},
	}
}

var duplicatePasses = []pass{
	duplicatePass(models.MetadataTypeSeriesMetadata, "series_id"),
	duplicatePass(models.MetadataTypeEpisodeMetadata, "episode_file_id"),
	duplicatePass(models.MetadataTypeEpisodeImage, "episode_file_id"),
}

func (s *Sweeper) run(ctx context.Context, passes []pass) (int, error) {
	log := logger.FromContext(ctx)

	total := 0
	for _, p := range passes {
		n, err := s.store.BulkDelete(ctx, p.query, p.args...)
		if err != nil {
			return total, errors.Wrapf(err, "housekeeping pass %q", p.name)
		}
		if n > 0 {
			log.Info("removed extra files", logger.Data{"pass": p.name, "count": n})
		}
		total += n
	}
	return total, nil
}

// CleanupOrphanedExtraFiles deletes rows whose series or episode file no
// longer exists, and episode metadata left with the zero episode file id.
func (s *Sweeper) CleanupOrphanedExtraFiles(ctx context.Context) (int, error) {
	return s.run(ctx, orphanPasses)
}

// CleanupDuplicateExtraFiles keeps one metadata row per series and consumer
// for series metadata, and one per episode file and consumer for episode
// metadata and images. The oldest row survives.
func (s *Sweeper) CleanupDuplicateExtraFiles(ctx context.Context) (int, error) {
	return s.run(ctx, duplicatePasses)
}

// CleanupFinishedJobs deletes completed and failed jobs last updated before
// cutoff, together with their logs.
func (s *Sweeper) CleanupFinishedJobs(ctx context.Context, cutoff time.Time) (int, error) {
	finished := `SELECT id FROM jobs WHERE status IN (?, ?) AND updated_at < ?`
	args := []interface{}{models.JobStatusCompleted, models.JobStatusFailed, cutoff}
	return s.run(ctx, []pass{
		{
			name:  "job logs",
			query: `DELETE FROM job_logs WHERE job_id IN (` + finished + `)`,
			args:  args,
		},
		{
			name:  "finished jobs",
			query: `DELETE FROM jobs WHERE id IN (` + finished + `)`,
			args:  args,
		},
	})
}

// Run performs every housekeeping pass.
func (s *Sweeper) Run(ctx context.Context) error {
	orphans, err := s.CleanupOrphanedExtraFiles(ctx)
	if err != nil {
		return err
	}
	duplicates, err := s.CleanupDuplicateExtraFiles(ctx)
	if err != nil {
		return err
	}
	jobs := 0
	if s.jobRetention > 0 {
		jobs, err = s.CleanupFinishedJobs(ctx, time.Now().Add(-s.jobRetention))
		if err != nil {
			return err
		}
	}
	logger.FromContext(ctx).Info("housekeeping finished", logger.Data{
		"orphans":    orphans,
		"duplicates": duplicates,
		"jobs":       jobs,
	})
	return nil
}
