// Package extras reconciles the tracked extra files of a series with what
// is on disk. Metadata, subtitle and other files are each handled by a
// Manager; managers are consulted in a fixed order and the first to claim a
// file owns it.
package extras

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/extrasync/pkg/config"
	"github.com/shishobooks/extrasync/pkg/episodes"
	"github.com/shishobooks/extrasync/pkg/errcodes"
	"github.com/shishobooks/extrasync/pkg/extrafiles"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/shishobooks/extrasync/pkg/pathcmp"
	"golang.org/x/sync/errgroup"
)

// Catalog is the source of series and episode files.
type Catalog interface {
	GetSeries(ctx context.Context, id int) (*models.Series, error)
	GetEpisodeFilesBySeries(ctx context.Context, seriesID int) ([]*models.EpisodeFile, error)
}

type Service struct {
	config    *config.Config
	catalog   Catalog
	store     ExtraStore
	files     FileStore
	comparer  *pathcmp.Comparer
	managers  []Manager
	importers []ExistingImporter
	locks     *seriesLocks
}

func NewService(cfg *config.Config, catalog Catalog, store ExtraStore, files FileStore) *Service {
	comparer := pathcmp.New(cfg.FoldPaths())
	newBase := func(t models.ExtraType) base {
		return base{extraType: t, config: cfg, store: store, files: files, comparer: comparer}
	}

	metadata := &MetadataManager{base: newBase(models.ExtraTypeMetadata), consumers: NewConsumers(cfg.EnabledMetadataConsumers())}
	subtitle := &SubtitleManager{base: newBase(models.ExtraTypeSubtitle)}
	other := &OtherManager{base: newBase(models.ExtraTypeOther)}

	svc := &Service{
		config:    cfg,
		catalog:   catalog,
		store:     store,
		files:     files,
		comparer:  comparer,
		managers:  []Manager{other, subtitle, metadata},
		importers: []ExistingImporter{&OtherImporter{other}, &SubtitleImporter{subtitle}, &MetadataImporter{metadata}},
		locks:     newSeriesLocks(),
	}
	sort.SliceStable(svc.managers, func(i, j int) bool { return svc.managers[i].Order() < svc.managers[j].Order() })
	sort.SliceStable(svc.importers, func(i, j int) bool { return svc.importers[i].Order() < svc.importers[j].Order() })
	return svc
}

// candidateFiles lists the files below the series root that could be extra
// files: media files, the EXTRAS folder and known junk are left out.
func (svc *Service) candidateFiles(series *models.Series) ([]string, error) {
	files, err := svc.files.ListFiles(series.Path, true)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	extrasRoot := filepath.Join(series.Path, extrasFolder)
	candidates := make([]string, 0, len(files))
	for _, path := range files {
		if isMediaFile(path) {
			continue
		}
		if svc.isBelow(path, extrasRoot) {
			continue
		}
		rel, ok := relativeTo(series, path)
		if !ok || excludedFoldersRE.MatchString(filepath.Dir(rel)) || excludedFilesRE.MatchString(filepath.Base(path)) {
			continue
		}
		candidates = append(candidates, path)
	}
	return candidates, nil
}

func (svc *Service) isBelow(path, dir string) bool {
	return strings.HasPrefix(svc.comparer.Key(path), svc.comparer.Key(dir)+string(filepath.Separator))
}

// FullScan adopts every untracked extra file below the series root and
// returns the rows it created. A series whose root folder is missing is
// skipped without error.
func (svc *Service) FullScan(ctx context.Context, series *models.Series) ([]*models.ExtraFile, error) {
	unlock := svc.locks.lock(series.ID)
	defer unlock()

	return svc.fullScan(ctx, series)
}

func (svc *Service) fullScan(ctx context.Context, series *models.Series) ([]*models.ExtraFile, error) {
	log := logger.FromContext(ctx)

	if !svc.files.FolderExists(series.Path) {
		log.Debug("series folder does not exist, skipping extra file scan", logger.Data{"series_id": series.ID, "path": series.Path})
		return nil, nil
	}

	candidates, err := svc.candidateFiles(series)
	if err != nil {
		return nil, err
	}

	for _, m := range svc.managers {
		candidates, err = m.FilterExisting(ctx, series, candidates)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}

	episodeFiles, err := svc.catalog.GetEpisodeFilesBySeries(ctx, series.ID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	index := episodes.NewIndex(episodeFiles)

	imported := make([]*models.ExtraFile, 0)
	for _, importer := range svc.importers {
		claimed, err := importer.ProcessFiles(ctx, series, index, candidates)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		claimedPaths := make([]string, 0, len(claimed))
		for _, extra := range claimed {
			claimedPaths = append(claimedPaths, extra.Path(series))
		}
		candidates = svc.comparer.Except(candidates, claimedPaths)
		imported = append(imported, claimed...)
	}

	if err := svc.store.Upsert(ctx, imported); err != nil {
		return nil, errors.WithStack(err)
	}

	log.Info("scanned series for extra files", logger.Data{
		"series_id": series.ID,
		"imported":  len(imported),
		"untracked": len(candidates),
	})
	return imported, nil
}

// CleanMissing deletes the rows of a series whose file is no longer on
// disk and returns how many were removed.
func (svc *Service) CleanMissing(ctx context.Context, series *models.Series) (int, error) {
	unlock := svc.locks.lock(series.ID)
	defer unlock()

	return svc.cleanMissing(ctx, series)
}

func (svc *Service) cleanMissing(ctx context.Context, series *models.Series) (int, error) {
	if !svc.files.FolderExists(series.Path) {
		return 0, nil
	}

	extras, err := svc.store.ListExtraFiles(ctx, extrafiles.ListExtraFilesOptions{SeriesID: &series.ID})
	if err != nil {
		return 0, errors.WithStack(err)
	}

	missing := make([]int, 0)
	for _, extra := range extras {
		if !svc.files.FileExists(extra.Path(series)) {
			missing = append(missing, extra.ID)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	n, err := svc.store.DeleteExtraFiles(ctx, extrafiles.ListExtraFilesOptions{IDs: missing})
	if err != nil {
		return 0, errors.WithStack(err)
	}
	logger.FromContext(ctx).Info("removed extra files missing from disk", logger.Data{"series_id": series.ID, "count": n})
	return n, nil
}

// SeriesScanned reconciles a series after the catalog rescanned it: stale
// rows are dropped, untracked files adopted and consumer files tracked.
func (svc *Service) SeriesScanned(ctx context.Context, seriesID int) error {
	series, err := svc.catalog.GetSeries(ctx, seriesID)
	if err != nil {
		return errors.WithStack(err)
	}

	unlock := svc.locks.lock(series.ID)
	defer unlock()

	if _, err := svc.cleanMissing(ctx, series); err != nil {
		return err
	}
	if _, err := svc.fullScan(ctx, series); err != nil {
		return err
	}
	if !svc.files.FolderExists(series.Path) {
		return nil
	}

	episodeFiles, err := svc.catalog.GetEpisodeFilesBySeries(ctx, series.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	created := make([]*models.ExtraFile, 0)
	for _, m := range svc.managers {
		extras, err := m.CreateAfterSeriesScan(ctx, series, episodeFiles)
		if err != nil {
			return errors.WithStack(err)
		}
		created = append(created, extras...)
	}
	return errors.WithStack(svc.store.Upsert(ctx, created))
}

// ScanAll reconciles every series, running up to concurrency series at a
// time. A failing series is logged and doesn't stop the others.
func (svc *Service) ScanAll(ctx context.Context, series []*models.Series, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	log := logger.FromContext(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, s := range series {
		seriesID := s.ID
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := svc.SeriesScanned(ctx, seriesID); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Warn("unable to scan series for extra files", logger.Data{"series_id": seriesID, "error": err.Error()})
			}
			return nil
		})
	}
	return errors.WithStack(g.Wait())
}

// TargetedImport carries the companions of a freshly imported episode file
// along with it. sourcePath is where the media file was imported from;
// files next to it that share its base name and have a wanted extension
// are offered to each manager in order. A file that fails is logged and the
// rest are still imported.
func (svc *Service) TargetedImport(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile, sourcePath string, readOnly bool) ([]*models.ExtraFile, error) {
	unlock := svc.locks.lock(series.ID)
	defer unlock()

	log := logger.FromContext(ctx)

	if !svc.config.ImportExtraFiles {
		return nil, nil
	}

	wanted := make(map[string]struct{})
	for _, ext := range svc.config.WantedExtensions() {
		wanted[ext] = struct{}{}
	}

	sourceFolder := svc.files.GetParentFolder(sourcePath)
	files, err := svc.files.ListFiles(sourceFolder, false)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	sourceBase := strings.ToLower(strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath)))

	imported := make([]*models.ExtraFile, 0)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return imported, errors.WithStack(err)
		}
		if svc.comparer.Equal(path, sourcePath) {
			continue
		}
		ext := extension(path)
		if _, ok := wanted[ext]; !ok {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(filepath.Base(path)), sourceBase) {
			continue
		}

		extra, err := svc.importFile(ctx, series, episodeFile, path, ext, readOnly)
		if err != nil {
			log.Warn("unable to import extra file", logger.Data{
				"error":           err.Error(),
				"path":            path,
				"episode_file_id": episodeFile.ID,
			})
			continue
		}
		if extra != nil {
			imported = append(imported, extra)
		}
	}
	return imported, nil
}

func (svc *Service) importFile(ctx context.Context, series *models.Series, episodeFile *models.EpisodeFile, path, ext string, readOnly bool) (*models.ExtraFile, error) {
	for _, m := range svc.managers {
		extra, err := m.Import(ctx, series, episodeFile, path, ext, readOnly)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if extra == nil {
			continue
		}
		if err := svc.store.Upsert(ctx, []*models.ExtraFile{extra}); err != nil {
			return nil, errors.WithStack(err)
		}
		logger.FromContext(ctx).Info("imported extra file", logger.Data{
			"type": string(extra.Type),
			"from": path,
			"to":   extra.RelativePath,
		})
		return extra, nil
	}
	return nil, nil
}

// EpisodeImported handles a finished episode import: companions of a new
// download are imported and consumer files for the episode tracked.
func (svc *Service) EpisodeImported(ctx context.Context, seriesID, episodeFileID int, sourcePath string, newDownload, readOnly bool) error {
	series, err := svc.catalog.GetSeries(ctx, seriesID)
	if err != nil {
		return errors.WithStack(err)
	}
	episodeFile, err := svc.episodeFile(ctx, seriesID, episodeFileID)
	if err != nil {
		return err
	}

	if newDownload && sourcePath != "" {
		if _, err := svc.TargetedImport(ctx, series, episodeFile, sourcePath, readOnly); err != nil {
			return err
		}
	}

	unlock := svc.locks.lock(series.ID)
	defer unlock()

	created := make([]*models.ExtraFile, 0)
	for _, m := range svc.managers {
		extras, err := m.CreateAfterEpisodeImport(ctx, series, episodeFile)
		if err != nil {
			return errors.WithStack(err)
		}
		created = append(created, extras...)
	}
	return errors.WithStack(svc.store.Upsert(ctx, created))
}

func (svc *Service) episodeFile(ctx context.Context, seriesID, episodeFileID int) (*models.EpisodeFile, error) {
	episodeFiles, err := svc.catalog.GetEpisodeFilesBySeries(ctx, seriesID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, episodeFile := range episodeFiles {
		if episodeFile.ID == episodeFileID {
			return episodeFile, nil
		}
	}
	return nil, errors.Errorf("episode file %d not found in series %d", episodeFileID, seriesID)
}

// FolderCreated tracks consumer files that exist once a series or season
// folder has been created.
func (svc *Service) FolderCreated(ctx context.Context, seriesID int, seriesFolder, seasonFolder string) error {
	series, err := svc.catalog.GetSeries(ctx, seriesID)
	if err != nil {
		return errors.WithStack(err)
	}

	unlock := svc.locks.lock(series.ID)
	defer unlock()

	created := make([]*models.ExtraFile, 0)
	for _, m := range svc.managers {
		extras, err := m.CreateAfterFolderCreation(ctx, series, seriesFolder, seasonFolder)
		if err != nil {
			return errors.WithStack(err)
		}
		created = append(created, extras...)
	}
	return errors.WithStack(svc.store.Upsert(ctx, created))
}

// Rename relocates the extra files of renamed episode files. Each manager
// moves its own kind; a file that can't be moved keeps its old path.
func (svc *Service) Rename(ctx context.Context, series *models.Series, episodeFiles []*models.EpisodeFile) ([]*models.ExtraFile, error) {
	unlock := svc.locks.lock(series.ID)
	defer unlock()

	moved := make([]*models.ExtraFile, 0)
	for _, m := range svc.managers {
		extras, err := m.MoveFilesAfterRename(ctx, series, episodeFiles)
		// Moves already done on disk are persisted even when the manager
		// stopped early.
		moved = append(moved, extras...)
		if err != nil {
			if upsertErr := svc.store.Upsert(ctx, moved); upsertErr != nil {
				logger.FromContext(ctx).Err(upsertErr).Error("unable to save renamed extra files")
			}
			return moved, errors.WithStack(err)
		}
	}

	if err := svc.store.Upsert(ctx, moved); err != nil {
		return nil, errors.WithStack(err)
	}
	return moved, nil
}

// SeriesRenamed relocates the extra files of every episode file of a series.
func (svc *Service) SeriesRenamed(ctx context.Context, seriesID int) error {
	series, err := svc.catalog.GetSeries(ctx, seriesID)
	if err != nil {
		return errors.WithStack(err)
	}
	episodeFiles, err := svc.catalog.GetEpisodeFilesBySeries(ctx, seriesID)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = svc.Rename(ctx, series, episodeFiles)
	return err
}

// HandleSeriesDeleted forgets every extra file of a deleted series. Files on
// disk are left alone.
func (svc *Service) HandleSeriesDeleted(ctx context.Context, seriesID int) error {
	unlock := svc.locks.lock(seriesID)
	defer unlock()

	n, err := svc.store.DeleteExtraFiles(ctx, extrafiles.ListExtraFilesOptions{SeriesID: &seriesID})
	if err != nil {
		return errors.WithStack(err)
	}
	logger.FromContext(ctx).Info("removed extra files of deleted series", logger.Data{"series_id": seriesID, "count": n})
	return nil
}

// HandleEpisodeFileDeleted removes the extra files of a deleted episode
// file from disk and forgets them. With keepFiles only the rows are removed,
// which is what a database cleanup wants.
func (svc *Service) HandleEpisodeFileDeleted(ctx context.Context, seriesID, episodeFileID int, keepFiles bool) error {
	unlock := svc.locks.lock(seriesID)
	defer unlock()

	log := logger.FromContext(ctx)

	if !keepFiles {
		extras, err := svc.store.ListExtraFiles(ctx, extrafiles.ListExtraFilesOptions{EpisodeFileID: &episodeFileID})
		if err != nil {
			return errors.WithStack(err)
		}
		if len(extras) > 0 {
			series, err := svc.catalog.GetSeries(ctx, seriesID)
			switch {
			case errors.Is(err, errcodes.NotFound("Series")):
				// Without a series there is no root to resolve paths against.
				extras = nil
			case err != nil:
				return errors.WithStack(err)
			}
			for _, extra := range extras {
				path := extra.Path(series)
				if err := svc.files.DeleteFile(path); err != nil {
					log.Warn("unable to delete extra file", logger.Data{"error": err.Error(), "path": path})
				}
			}
		}
	}

	n, err := svc.store.DeleteExtraFiles(ctx, extrafiles.ListExtraFilesOptions{EpisodeFileID: &episodeFileID})
	if err != nil {
		return errors.WithStack(err)
	}
	log.Debug("removed extra files of deleted episode file", logger.Data{"episode_file_id": episodeFileID, "count": n})
	return nil
}
