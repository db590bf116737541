package extras

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/extrasync/pkg/config"
	"github.com/shishobooks/extrasync/pkg/episodes"
	"github.com/shishobooks/extrasync/pkg/extrafiles"
	"github.com/shishobooks/extrasync/pkg/fileutils"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/shishobooks/extrasync/pkg/pathcmp"
)

// Manager handles one kind of extra file. Managers are consulted in
// ascending Order and the first one to claim a file owns it.
type Manager interface {
	Order() int
	Type() models.ExtraType

	// FilterExisting drops the files already tracked as this kind.
	FilterExisting(ctx context.Context, series *models.Series, files []string) ([]string, error)

	CreateAfterSeriesScan(ctx context.Context, series *models.Series, episodeFiles []*models.EpisodeFile) ([]*models.ExtraFile, error)
	CreateAfterEpisodeImport(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile) ([]*models.ExtraFile, error)
	CreateAfterFolderCreation(ctx context.Context, series *models.Series, seriesFolder, seasonFolder string) ([]*models.ExtraFile, error)

	// MoveFilesAfterRename relocates tracked files next to their renamed
	// episode files and returns the rows whose path changed.
	MoveFilesAfterRename(ctx context.Context, series *models.Series, episodeFiles []*models.EpisodeFile) ([]*models.ExtraFile, error)

	// Import transfers a companion of a freshly imported episode file next
	// to it. It returns nil when the file isn't this manager's kind.
	Import(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile, path, extension string, readOnly bool) (*models.ExtraFile, error)
}

// ExistingImporter adopts untracked files found on disk during a full scan.
// Importers run in ascending Order and only see files that no earlier
// importer claimed.
type ExistingImporter interface {
	Order() int
	ProcessFiles(ctx context.Context, series *models.Series, index *episodes.Index, files []string) ([]*models.ExtraFile, error)
}

// ExtraStore is the persisted record store used by the managers.
type ExtraStore interface {
	ListExtraFiles(ctx context.Context, opts extrafiles.ListExtraFilesOptions) ([]*models.ExtraFile, error)
	Upsert(ctx context.Context, extras []*models.ExtraFile) error
	DeleteExtraFiles(ctx context.Context, opts extrafiles.ListExtraFilesOptions) (int, error)
}

// FileStore is the disk access used by the managers.
type FileStore interface {
	ListFiles(root string, recursive bool) ([]string, error)
	FileExists(path string) bool
	FileSize(path string) (int64, error)
	FolderExists(path string) bool
	MoveFile(src, dst string) error
	TransferFile(src, dst string, mode fileutils.TransferMode, overwrite, verify bool) error
	GetParentFolder(path string) string
	DeleteFile(path string) error
}

// base carries what every manager shares.
type base struct {
	extraType models.ExtraType
	config    *config.Config
	store     ExtraStore
	files     FileStore
	comparer  *pathcmp.Comparer
}

func (b *base) Type() models.ExtraType {
	return b.extraType
}

func (b *base) tracked(ctx context.Context, seriesID int) ([]*models.ExtraFile, error) {
	extraType := b.extraType
	extras, err := b.store.ListExtraFiles(ctx, extrafiles.ListExtraFilesOptions{
		SeriesID: &seriesID,
		Type:     &extraType,
	})
	return extras, errors.WithStack(err)
}

func (b *base) FilterExisting(ctx context.Context, series *models.Series, files []string) ([]string, error) {
	extras, err := b.tracked(ctx, series.ID)
	if err != nil {
		return nil, err
	}

	existing := make([]string, 0, len(extras))
	for _, extra := range extras {
		existing = append(existing, extra.Path(series))
	}
	return b.comparer.Except(files, existing), nil
}

func (b *base) transferMode(readOnly bool) fileutils.TransferMode {
	if !readOnly {
		return fileutils.TransferModeMove
	}
	if b.config.CopyUsingHardlinks {
		return fileutils.TransferModeHardLinkOrCopy
	}
	return fileutils.TransferModeCopy
}

// importFile transfers path beside episodeFile, naming it after the episode
// file with ext (which may carry a suffix such as ".en.srt"). When the name
// is taken by another file a copy number is inserted before the suffix.
// Importing the same file again returns the row already tracked for it.
func (b *base) importFile(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile, path, suffix, ext string, readOnly bool) (*models.ExtraFile, error) {
	relativePath := changeExtension(episodeFile.RelativePath, suffix+ext)

	existing, err := b.trackedAt(ctx, series, episodeFile, relativePath)
	if err != nil {
		return nil, err
	}
	if existing != nil && b.sameSize(path, existing.Path(series)) {
		logger.FromContext(ctx).Debug("extra file already imported", logger.Data{"path": path, "extra_file_id": existing.ID})
		return existing, nil
	}

	// A tracked row whose file is gone is reused for the new transfer.
	reuse := existing != nil && !b.files.FileExists(existing.Path(series))
	if !reuse {
		for n := 2; b.files.FileExists(filepath.Join(series.Path, relativePath)); n++ {
			relativePath = changeExtension(episodeFile.RelativePath, "."+strconv.Itoa(n)+suffix+ext)
		}
	}

	err = b.files.TransferFile(path, filepath.Join(series.Path, relativePath), b.transferMode(readOnly), true, false)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if reuse {
		existing.RelativePath = relativePath
		return existing, nil
	}

	seasonNumber := episodeFile.SeasonNumber
	episodeFileID := episodeFile.ID
	return &models.ExtraFile{
		SeriesID:      series.ID,
		SeasonNumber:  &seasonNumber,
		EpisodeFileID: &episodeFileID,
		Type:          b.extraType,
		RelativePath:  relativePath,
	}, nil
}

// trackedAt returns this kind's row for episodeFile at relativePath, or nil.
func (b *base) trackedAt(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile, relativePath string) (*models.ExtraFile, error) {
	extraType := b.extraType
	episodeFileID := episodeFile.ID
	extras, err := b.store.ListExtraFiles(ctx, extrafiles.ListExtraFilesOptions{
		SeriesID:      &series.ID,
		EpisodeFileID: &episodeFileID,
		Type:          &extraType,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	path := filepath.Join(series.Path, relativePath)
	for _, extra := range extras {
		if b.comparer.Equal(extra.Path(series), path) {
			return extra, nil
		}
	}
	return nil, nil
}

func (b *base) sameSize(src, dst string) bool {
	srcSize, err := b.files.FileSize(src)
	if err != nil {
		return false
	}
	dstSize, err := b.files.FileSize(dst)
	if err != nil {
		return false
	}
	return srcSize == dstSize
}

// moveFile relocates extra to relativePath. A failed move is logged and the
// row is left untouched, so nil is returned for it.
func (b *base) moveFile(ctx context.Context, series *models.Series, extra *models.ExtraFile, relativePath string) *models.ExtraFile {
	oldPath := extra.Path(series)
	newPath := filepath.Join(series.Path, relativePath)
	if b.comparer.Equal(oldPath, newPath) {
		return nil
	}

	log := logger.FromContext(ctx)
	err := b.files.MoveFile(oldPath, newPath)
	if err != nil {
		log.Warn("unable to move extra file after rename", logger.Data{
			"error":     err.Error(),
			"series_id": series.ID,
			"from":      oldPath,
			"to":        newPath,
		})
		return nil
	}

	log.Debug("moved extra file", logger.Data{"from": oldPath, "to": newPath})
	extra.RelativePath = relativePath
	return extra
}

// copySuffixes names a group of files that would otherwise collide: a
// lone file gets no copy number, several get ".1", ".2" and so on in ID
// order.
func copySuffixes(group []*models.ExtraFile) map[int]string {
	sorted := append([]*models.ExtraFile(nil), group...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	suffixes := make(map[int]string, len(sorted))
	for i, extra := range sorted {
		if len(sorted) > 1 {
			suffixes[extra.ID] = "." + strconv.Itoa(i+1)
		} else {
			suffixes[extra.ID] = ""
		}
	}
	return suffixes
}

// matchEpisode associates path with an episode file. Parse failures are
// logged at debug level and reported as ok == false.
func matchEpisode(ctx context.Context, index *episodes.Index, path string) (*episodes.LocalEpisode, bool) {
	le, err := index.Match(path)
	if err != nil {
		logger.FromContext(ctx).Debug("skipping extra file", logger.Data{
			"path":   path,
			"reason": err.Error(),
		})
		return nil, false
	}
	return le, true
}
