package extras

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/extrasync/pkg/episodes"
	"github.com/shishobooks/extrasync/pkg/models"
)

// OtherManager tracks any remaining companion file of an episode.
type OtherManager struct {
	base
}

func (m *OtherManager) Order() int {
	return otherOrder
}

func (m *OtherManager) CreateAfterSeriesScan(_ context.Context, _ *models.Series, _ []*models.EpisodeFile) ([]*models.ExtraFile, error) {
	return nil, nil
}

func (m *OtherManager) CreateAfterEpisodeImport(_ context.Context, _ *models.Series, _ *models.EpisodeFile) ([]*models.ExtraFile, error) {
	return nil, nil
}

func (m *OtherManager) CreateAfterFolderCreation(_ context.Context, _ *models.Series, _, _ string) ([]*models.ExtraFile, error) {
	return nil, nil
}

// MoveFilesAfterRename names each file after its episode file, keeping its
// own extension. Files sharing an extension get copy numbers.
func (m *OtherManager) MoveFilesAfterRename(ctx context.Context, series *models.Series, episodeFiles []*models.EpisodeFile) ([]*models.ExtraFile, error) {
	extras, err := m.tracked(ctx, series.ID)
	if err != nil {
		return nil, err
	}

	moved := make([]*models.ExtraFile, 0)
	for _, episodeFile := range episodeFiles {
		groups := make(map[string][]*models.ExtraFile)
		order := make([]string, 0)
		for _, extra := range extras {
			if !extra.BelongsTo(episodeFile) {
				continue
			}
			ext := filepath.Ext(extra.RelativePath)
			if _, ok := groups[ext]; !ok {
				order = append(order, ext)
			}
			groups[ext] = append(groups[ext], extra)
		}

		for _, ext := range order {
			group := groups[ext]
			suffixes := copySuffixes(group)
			for _, extra := range group {
				if err := ctx.Err(); err != nil {
					return moved, errors.WithStack(err)
				}
				relativePath := changeExtension(episodeFile.RelativePath, suffixes[extra.ID]+ext)
				if updated := m.moveFile(ctx, series, extra, relativePath); updated != nil {
					moved = append(moved, updated)
				}
			}
		}
	}
	return moved, nil
}

// Import claims any file that isn't media. A downloaded .nfo is stored as
// .nfo-orig so it doesn't clash with generated metadata.
func (m *OtherManager) Import(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile, path, extension string, readOnly bool) (*models.ExtraFile, error) {
	if looksLikeMedia(ctx, path) {
		return nil, nil
	}
	if strings.EqualFold(extension, ".nfo") {
		extension += "-orig"
	}
	return m.importFile(ctx, series, episodeFile, path, "", extension, readOnly)
}

// looksLikeMedia sniffs the file's content so a video with a misleading
// extension is never tracked as an extra file.
func looksLikeMedia(ctx context.Context, path string) bool {
	if isMediaFile(path) {
		return true
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		logger.FromContext(ctx).Debug("unable to detect file type", logger.Data{"path": path, "error": err.Error()})
		return false
	}
	return strings.HasPrefix(mtype.String(), "video/")
}

// OtherImporter adopts the files no other importer claimed, as long as they
// belong to a single episode file.
type OtherImporter struct {
	manager *OtherManager
}

func (i *OtherImporter) Order() int {
	return otherOrder
}

func (i *OtherImporter) ProcessFiles(ctx context.Context, series *models.Series, index *episodes.Index, files []string) ([]*models.ExtraFile, error) {
	imported := make([]*models.ExtraFile, 0)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return imported, errors.WithStack(err)
		}
		rel, ok := relativeTo(series, path)
		if !ok {
			continue
		}
		le, ok := matchEpisode(ctx, index, path)
		if !ok {
			continue
		}
		if looksLikeMedia(ctx, path) {
			continue
		}

		season := le.SeasonNumber
		episodeFileID := le.EpisodeFile.ID
		imported = append(imported, &models.ExtraFile{
			SeriesID:      series.ID,
			SeasonNumber:  &season,
			EpisodeFileID: &episodeFileID,
			Type:          models.ExtraTypeOther,
			RelativePath:  rel,
		})
	}
	return imported, nil
}
