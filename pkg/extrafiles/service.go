// Package extrafiles is the persisted store of tracked extra files.
package extrafiles

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/extrasync/pkg/database"
	"github.com/shishobooks/extrasync/pkg/errcodes"
	"github.com/shishobooks/extrasync/pkg/language"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/uptrace/bun"
)

type ListExtraFilesOptions struct {
	IDs           []int
	SeriesID      *int
	EpisodeFileID *int
	SeasonNumber  *int
	Type          *models.ExtraType
}

func (opts ListExtraFilesOptions) empty() bool {
	return len(opts.IDs) == 0 &&
		opts.SeriesID == nil &&
		opts.EpisodeFileID == nil &&
		opts.SeasonNumber == nil &&
		opts.Type == nil
}

func (opts ListExtraFilesOptions) apply(q bun.QueryBuilder) bun.QueryBuilder {
	if len(opts.IDs) > 0 {
		q = q.Where("id IN (?)", bun.In(opts.IDs))
	}
	if opts.SeriesID != nil {
		q = q.Where("series_id = ?", *opts.SeriesID)
	}
	if opts.EpisodeFileID != nil {
		q = q.Where("episode_file_id = ?", *opts.EpisodeFileID)
	}
	if opts.SeasonNumber != nil {
		q = q.Where("season_number = ?", *opts.SeasonNumber)
	}
	if opts.Type != nil {
		q = q.Where("type = ?", *opts.Type)
	}
	return q
}

type Service struct {
	db         *bun.DB
	maxRetries int
}

// NewService returns a store over db. Writes that hit a busy database are
// retried up to maxRetries times.
func NewService(db *bun.DB, maxRetries int) *Service {
	return &Service{db: db, maxRetries: maxRetries}
}

func (svc *Service) RetrieveExtraFile(ctx context.Context, id int) (*models.ExtraFile, error) {
	extra := &models.ExtraFile{}

	err := svc.db.
		NewSelect().
		Model(extra).
		Where("ef.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Extra File")
		}
		return nil, errors.WithStack(err)
	}

	return extra, nil
}

func (svc *Service) ListExtraFiles(ctx context.Context, opts ListExtraFilesOptions) ([]*models.ExtraFile, error) {
	extras := []*models.ExtraFile{}

	q := svc.db.
		NewSelect().
		Model(&extras).
		Order("ef.id ASC")
	q = opts.apply(q.QueryBuilder()).Unwrap().(*bun.SelectQuery)

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return extras, nil
}

// InsertMany inserts new rows and sets their IDs. All rows are written in
// one transaction.
func (svc *Service) InsertMany(ctx context.Context, extras []*models.ExtraFile) error {
	if len(extras) == 0 {
		return nil
	}

	return database.WithRetry(ctx, svc.maxRetries, func() error {
		return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			for _, extra := range extras {
				_, err := tx.NewInsert().
					Model(extra).
					Returning("id").
					Exec(ctx)
				if err != nil {
					return errors.WithStack(err)
				}
			}
			return nil
		})
	})
}

// UpdateMany overwrites every column of existing rows. All rows are written
// in one transaction.
func (svc *Service) UpdateMany(ctx context.Context, extras []*models.ExtraFile) error {
	if len(extras) == 0 {
		return nil
	}

	return database.WithRetry(ctx, svc.maxRetries, func() error {
		return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			for _, extra := range extras {
				_, err := tx.NewUpdate().
					Model(extra).
					ExcludeColumn("id", "added").
					WherePK().
					Exec(ctx)
				if err != nil {
					return errors.WithStack(err)
				}
			}
			return nil
		})
	})
}

// Upsert inserts rows without an ID and updates the rest, stamping
// LastUpdated and, for new rows, Added. Inserts and updates are separate
// transactions so an interrupted upsert is repaired by running it again.
func (svc *Service) Upsert(ctx context.Context, extras []*models.ExtraFile) error {
	now := time.Now()

	var toInsert, toUpdate []*models.ExtraFile
	for _, extra := range extras {
		extra.LastUpdated = now
		if extra.Language == "" {
			extra.Language = language.Unknown
		}
		if extra.ID == 0 {
			extra.Added = now
			toInsert = append(toInsert, extra)
		} else {
			toUpdate = append(toUpdate, extra)
		}
	}

	err := svc.InsertMany(ctx, toInsert)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(svc.UpdateMany(ctx, toUpdate))
}

// DeleteExtraFiles deletes every row matching opts and returns how many
// rows were removed. At least one filter is required.
func (svc *Service) DeleteExtraFiles(ctx context.Context, opts ListExtraFilesOptions) (int, error) {
	if opts.empty() {
		return 0, errcodes.InvalidArgument("refusing to delete extra files without a filter")
	}

	var deleted int
	err := database.WithRetry(ctx, svc.maxRetries, func() error {
		q := svc.db.
			NewDelete().
			Model((*models.ExtraFile)(nil))
		q = opts.apply(q.QueryBuilder()).Unwrap().(*bun.DeleteQuery)

		result, err := q.Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		n, _ := result.RowsAffected()
		deleted = int(n)
		return nil
	})
	return deleted, err
}

// BulkDelete runs a single raw DELETE statement and returns the number of
// rows it removed.
func (svc *Service) BulkDelete(ctx context.Context, query string, args ...interface{}) (int, error) {
	var deleted int
	err := database.WithRetry(ctx, svc.maxRetries, func() error {
		result, err := svc.db.ExecContext(ctx, query, args...)
		if err != nil {
			return errors.WithStack(err)
		}
		n, _ := result.RowsAffected()
		deleted = int(n)
		return nil
	})
	return deleted, err
}
