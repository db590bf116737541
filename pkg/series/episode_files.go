package series

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/extrasync/pkg/errcodes"
	"github.com/shishobooks/extrasync/pkg/models"
)

type ListEpisodeFilesOptions struct {
	SeriesID     *int
	SeasonNumber *int
}

type UpdateEpisodeFileOptions struct {
	Columns []string
}

func (svc *Service) CreateEpisodeFile(ctx context.Context, episodeFile *models.EpisodeFile) error {
	now := time.Now()
	if episodeFile.CreatedAt.IsZero() {
		episodeFile.CreatedAt = now
	}
	episodeFile.UpdatedAt = episodeFile.CreatedAt

	if episodeFile.RelativePath == "" || filepath.IsAbs(episodeFile.RelativePath) {
		return errcodes.InvalidArgument("episode file path must be relative to the series folder")
	}
	episodeFile.RelativePath = filepath.Clean(episodeFile.RelativePath)

	_, err := svc.db.
		NewInsert().
		Model(episodeFile).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveEpisodeFile(ctx context.Context, id int) (*models.EpisodeFile, error) {
	episodeFile := &models.EpisodeFile{}

	err := svc.db.
		NewSelect().
		Model(episodeFile).
		Where("epf.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Episode File")
		}
		return nil, errors.WithStack(err)
	}

	return episodeFile, nil
}

func (svc *Service) ListEpisodeFiles(ctx context.Context, opts ListEpisodeFilesOptions) ([]*models.EpisodeFile, error) {
	episodeFiles := []*models.EpisodeFile{}

	q := svc.db.
		NewSelect().
		Model(&episodeFiles).
		Order("epf.season_number ASC", "epf.relative_path ASC")

	if opts.SeriesID != nil {
		q = q.Where("epf.series_id = ?", *opts.SeriesID)
	}
	if opts.SeasonNumber != nil {
		q = q.Where("epf.season_number = ?", *opts.SeasonNumber)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return episodeFiles, nil
}

// GetEpisodeFilesBySeries lists every episode file of a series.
func (svc *Service) GetEpisodeFilesBySeries(ctx context.Context, seriesID int) ([]*models.EpisodeFile, error) {
	return svc.ListEpisodeFiles(ctx, ListEpisodeFilesOptions{SeriesID: &seriesID})
}

func (svc *Service) UpdateEpisodeFile(ctx context.Context, episodeFile *models.EpisodeFile, opts UpdateEpisodeFileOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	episodeFile.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(episodeFile).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Episode File")
		}
		return errors.WithStack(err)
	}
	return nil
}

func (svc *Service) DeleteEpisodeFile(ctx context.Context, id int) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.EpisodeFile)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}
