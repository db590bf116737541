package extras

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shishobooks/extrasync/pkg/episodes"
	"github.com/shishobooks/extrasync/pkg/language"
	"github.com/shishobooks/extrasync/pkg/models"
)

// SubtitleManager tracks subtitles and keeps their language in the name.
type SubtitleManager struct {
	base
}

func (m *SubtitleManager) Order() int {
	return subtitleOrder
}

func languageSuffix(lang language.Language) string {
	if code := language.TwoLetterCode(lang); code != "" {
		return "." + code
	}
	return ""
}

func (m *SubtitleManager) CreateAfterSeriesScan(_ context.Context, _ *models.Series, _ []*models.EpisodeFile) ([]*models.ExtraFile, error) {
	return nil, nil
}

func (m *SubtitleManager) CreateAfterEpisodeImport(_ context.Context, _ *models.Series, _ *models.EpisodeFile) ([]*models.ExtraFile, error) {
	return nil, nil
}

func (m *SubtitleManager) CreateAfterFolderCreation(_ context.Context, _ *models.Series, _, _ string) ([]*models.ExtraFile, error) {
	return nil, nil
}

// MoveFilesAfterRename names each subtitle after its episode file followed
// by its language code. Subtitles sharing a language and extension get copy
// numbers so they don't collide.
func (m *SubtitleManager) MoveFilesAfterRename(ctx context.Context, series *models.Series, episodeFiles []*models.EpisodeFile) ([]*models.ExtraFile, error) {
	extras, err := m.tracked(ctx, series.ID)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		lang language.Language
		ext  string
	}

	moved := make([]*models.ExtraFile, 0)
	for _, episodeFile := range episodeFiles {
		groups := make(map[groupKey][]*models.ExtraFile)
		order := make([]groupKey, 0)
		for _, extra := range extras {
			if !extra.BelongsTo(episodeFile) {
				continue
			}
			key := groupKey{extra.Language, filepath.Ext(extra.RelativePath)}
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], extra)
		}

		for _, key := range order {
			group := groups[key]
			suffixes := copySuffixes(group)
			for _, extra := range group {
				if err := ctx.Err(); err != nil {
					return moved, errors.WithStack(err)
				}
				relativePath := changeExtension(episodeFile.RelativePath, suffixes[extra.ID]+languageSuffix(key.lang)+key.ext)
				if updated := m.moveFile(ctx, series, extra, relativePath); updated != nil {
					moved = append(moved, updated)
				}
			}
		}
	}
	return moved, nil
}

// subtitleLanguage reads the language code before the extension, falling
// back to a language tag in the release name.
func subtitleLanguage(path string) language.Language {
	lang := language.ParseSubtitleLanguage(path)
	if lang != language.Unknown {
		return lang
	}
	// Release subtitles often only carry the language in the release name,
	// e.g. Show.S01E01.VOSTFR.srt.
	if found, ok := language.FindReleaseLanguage(filepath.Base(path)); ok {
		return found
	}
	return language.Unknown
}

func (m *SubtitleManager) Import(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile, path, extension string, readOnly bool) (*models.ExtraFile, error) {
	if !isSubtitleFile(path) {
		return nil, nil
	}

	lang := subtitleLanguage(path)
	extra, err := m.importFile(ctx, series, episodeFile, path, languageSuffix(lang), extension, readOnly)
	if err != nil {
		return nil, err
	}
	extra.Language = lang
	return extra, nil
}

// SubtitleImporter adopts subtitles found on disk.
type SubtitleImporter struct {
	manager *SubtitleManager
}

func (i *SubtitleImporter) Order() int {
	return subtitleOrder
}

func (i *SubtitleImporter) ProcessFiles(ctx context.Context, series *models.Series, index *episodes.Index, files []string) ([]*models.ExtraFile, error) {
	imported := make([]*models.ExtraFile, 0)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return imported, errors.WithStack(err)
		}
		if !isSubtitleFile(path) {
			continue
		}
		rel, ok := relativeTo(series, path)
		if !ok {
			continue
		}
		le, ok := matchEpisode(ctx, index, path)
		if !ok {
			continue
		}

		season := le.SeasonNumber
		episodeFileID := le.EpisodeFile.ID
		imported = append(imported, &models.ExtraFile{
			SeriesID:      series.ID,
			SeasonNumber:  &season,
			EpisodeFileID: &episodeFileID,
			Type:          models.ExtraTypeSubtitle,
			RelativePath:  rel,
			Language:      subtitleLanguage(path),
		})
	}
	return imported, nil
}
