package extras

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shishobooks/extrasync/pkg/episodes"
	"github.com/shishobooks/extrasync/pkg/extrafiles"
	"github.com/shishobooks/extrasync/pkg/models"
)

const (
	metadataOrder = 0
	subtitleOrder = 1
	otherOrder    = 2
)

// MetadataManager tracks the files written by metadata consumers.
type MetadataManager struct {
	base
	consumers []Consumer
}

func (m *MetadataManager) Order() int {
	return metadataOrder
}

func (m *MetadataManager) consumer(name *string) Consumer {
	if name == nil {
		return nil
	}
	for _, c := range m.consumers {
		if c.Name() == *name {
			return c
		}
	}
	return nil
}

// trackExisting returns rows for the expected files that exist on disk and
// aren't tracked yet. Generating the files themselves happens elsewhere, so
// a file that doesn't exist is simply not tracked.
func (m *MetadataManager) trackExisting(ctx context.Context, series *models.Series, expected []*models.ExtraFile) ([]*models.ExtraFile, error) {
	if len(expected) == 0 {
		return nil, nil
	}

	// Rows of any kind count: a plain-text .nfo beside an episode may
	// already be tracked as an other file.
	extras, err := m.store.ListExtraFiles(ctx, extrafiles.ListExtraFilesOptions{SeriesID: &series.ID})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	known := m.comparer.NewSet()
	for _, extra := range extras {
		known.Add(extra.Path(series))
	}

	created := make([]*models.ExtraFile, 0)
	for _, extra := range expected {
		path := extra.Path(series)
		if known.Contains(path) || !m.files.FileExists(path) {
			continue
		}
		known.Add(path)
		created = append(created, extra)
	}
	return created, nil
}

func (m *MetadataManager) expectedSeriesFiles(series *models.Series, consumer Consumer) []*models.ExtraFile {
	out := make([]*models.ExtraFile, 0)
	for _, f := range consumer.SeriesFiles(series) {
		out = append(out, newMetadataFile(series, consumer.Name(), f.RelativePath, f.Type))
	}
	return out
}

func (m *MetadataManager) expectedSeasonFiles(series *models.Series, consumer Consumer, seasonNumber int) []*models.ExtraFile {
	out := make([]*models.ExtraFile, 0)
	for _, f := range consumer.SeasonFiles(series, seasonNumber) {
		extra := newMetadataFile(series, consumer.Name(), f.RelativePath, f.Type)
		season := seasonNumber
		extra.SeasonNumber = &season
		out = append(out, extra)
	}
	return out
}

func (m *MetadataManager) expectedEpisodeFiles(series *models.Series, consumer Consumer, episodeFile *models.EpisodeFile) []*models.ExtraFile {
	out := make([]*models.ExtraFile, 0)
	for _, f := range consumer.EpisodeFiles(series, episodeFile) {
		extra := newMetadataFile(series, consumer.Name(), f.RelativePath, f.Type)
		season := episodeFile.SeasonNumber
		episodeFileID := episodeFile.ID
		extra.SeasonNumber = &season
		extra.EpisodeFileID = &episodeFileID
		out = append(out, extra)
	}
	return out
}

func (m *MetadataManager) CreateAfterSeriesScan(ctx context.Context, series *models.Series, episodeFiles []*models.EpisodeFile) ([]*models.ExtraFile, error) {
	seasons := make(map[int]struct{})
	for _, episodeFile := range episodeFiles {
		seasons[episodeFile.SeasonNumber] = struct{}{}
	}

	expected := make([]*models.ExtraFile, 0)
	for _, consumer := range m.consumers {
		expected = append(expected, m.expectedSeriesFiles(series, consumer)...)
		for season := range seasons {
			expected = append(expected, m.expectedSeasonFiles(series, consumer, season)...)
		}
		for _, episodeFile := range episodeFiles {
			expected = append(expected, m.expectedEpisodeFiles(series, consumer, episodeFile)...)
		}
	}
	return m.trackExisting(ctx, series, expected)
}

func (m *MetadataManager) CreateAfterEpisodeImport(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile) ([]*models.ExtraFile, error) {
	expected := make([]*models.ExtraFile, 0)
	for _, consumer := range m.consumers {
		expected = append(expected, m.expectedEpisodeFiles(series, consumer, episodeFile)...)
	}
	return m.trackExisting(ctx, series, expected)
}

func (m *MetadataManager) CreateAfterFolderCreation(ctx context.Context, series *models.Series, seriesFolder, seasonFolder string) ([]*models.ExtraFile, error) {
	expected := make([]*models.ExtraFile, 0)
	for _, consumer := range m.consumers {
		if seriesFolder != "" {
			expected = append(expected, m.expectedSeriesFiles(series, consumer)...)
		}
		if seasonFolder != "" {
			if season, ok := episodes.ParseSeasonFolder(filepath.Base(seasonFolder)); ok {
				expected = append(expected, m.expectedSeasonFiles(series, consumer, season)...)
			}
		}
	}
	return m.trackExisting(ctx, series, expected)
}

func (m *MetadataManager) MoveFilesAfterRename(ctx context.Context, series *models.Series, episodeFiles []*models.EpisodeFile) ([]*models.ExtraFile, error) {
	extras, err := m.tracked(ctx, series.ID)
	if err != nil {
		return nil, err
	}

	moved := make([]*models.ExtraFile, 0)
	for _, episodeFile := range episodeFiles {
		for _, extra := range extras {
			if !extra.BelongsTo(episodeFile) {
				continue
			}
			consumer := m.consumer(extra.MetadataConsumer)
			if consumer == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return moved, errors.WithStack(err)
			}
			if updated := m.moveFile(ctx, series, extra, consumer.RenamedPath(series, episodeFile, extra)); updated != nil {
				moved = append(moved, updated)
			}
		}
	}
	return moved, nil
}

// Import never claims a file. Metadata that arrives with a download is
// handled as an other extra file so it can't replace generated metadata.
func (m *MetadataManager) Import(_ context.Context, _ *models.Series, _ *models.EpisodeFile, _, _ string, _ bool) (*models.ExtraFile, error) {
	return nil, nil
}

// MetadataImporter adopts consumer files found on disk.
type MetadataImporter struct {
	manager *MetadataManager
}

func (i *MetadataImporter) Order() int {
	return metadataOrder
}

func (i *MetadataImporter) ProcessFiles(ctx context.Context, series *models.Series, index *episodes.Index, files []string) ([]*models.ExtraFile, error) {
	imported := make([]*models.ExtraFile, 0)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return imported, errors.WithStack(err)
		}

		var extra *models.ExtraFile
		for _, consumer := range i.manager.consumers {
			if extra = consumer.FindMetadataFile(series, path); extra != nil {
				break
			}
		}
		if extra == nil {
			continue
		}

		if extra.MetadataType.EpisodeScoped() {
			le, ok := matchEpisode(ctx, index, path)
			if !ok {
				continue
			}
			season := le.SeasonNumber
			episodeFileID := le.EpisodeFile.ID
			extra.SeasonNumber = &season
			extra.EpisodeFileID = &episodeFileID
		}

		imported = append(imported, extra)
	}
	return imported, nil
}
