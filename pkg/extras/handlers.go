package extras

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/extrasync/pkg/errcodes"
	"github.com/shishobooks/extrasync/pkg/events"
)

// RegisterHandlers subscribes the service to catalog events. Imports and
// folder creation run inline so companions move before the importer cleans
// up its source. Everything else is delivered by the worker.
func (svc *Service) RegisterHandlers(bus *events.Bus) {
	bus.Subscribe(events.NameEpisodeImported, svc.handle(func(ctx context.Context, event events.Event) error {
		e := event.(*events.EpisodeImported)
		return svc.EpisodeImported(ctx, e.SeriesID, e.EpisodeFileID, e.SourcePath, e.IsNewDownload, e.IsReadOnly)
	}))
	bus.Subscribe(events.NameEpisodeFolderCreated, svc.handle(func(ctx context.Context, event events.Event) error {
		e := event.(*events.EpisodeFolderCreated)
		return svc.FolderCreated(ctx, e.SeriesID, e.SeriesFolder, e.SeasonFolder)
	}))

	bus.SubscribeDeferred(events.NameSeriesScanned, svc.handle(func(ctx context.Context, event events.Event) error {
		return svc.SeriesScanned(ctx, event.Series())
	}))
	bus.SubscribeDeferred(events.NameSeriesRenamed, svc.handle(func(ctx context.Context, event events.Event) error {
		return svc.SeriesRenamed(ctx, event.Series())
	}))
	bus.SubscribeDeferred(events.NameSeriesDeleted, svc.handle(func(ctx context.Context, event events.Event) error {
		return svc.HandleSeriesDeleted(ctx, event.Series())
	}))
	bus.SubscribeDeferred(events.NameEpisodeFileDeleted, svc.handle(func(ctx context.Context, event events.Event) error {
		e := event.(*events.EpisodeFileDeleted)
		return svc.HandleEpisodeFileDeleted(ctx, e.SeriesID, e.EpisodeFileID, e.KeepFiles)
	}))
}

// handle tags the context with the event and drops events whose series has
// been deleted since they were published.
func (svc *Service) handle(fn events.Handler) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		log := logger.FromContext(ctx).Root(logger.Data{"event": event.Name(), "series_id": event.Series()})
		ctx = log.WithContext(ctx)

		err := fn(ctx, event)
		if errors.Is(err, errcodes.NotFound("Series")) {
			log.Debug("series is gone, skipping event")
			return nil
		}
		return err
	}
}
