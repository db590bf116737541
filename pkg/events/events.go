// Package events carries catalog notifications to the extra file handlers.
package events

import (
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/extrasync/pkg/errcodes"
)

const (
	NameSeriesScanned        = "series_scanned"
	NameEpisodeImported      = "episode_imported"
	NameEpisodeFolderCreated = "episode_folder_created"
	NameSeriesRenamed        = "series_renamed"
	NameSeriesDeleted        = "series_deleted"
	NameEpisodeFileDeleted   = "episode_file_deleted"
)

// Event is anything that can be published on a Bus. Events must round trip
// through JSON so they can be delivered from the job queue.
type Event interface {
	Name() string
	Series() int
}

type SeriesScanned struct {
	SeriesID int `json:"series_id"`
}

func (e *SeriesScanned) Name() string { return NameSeriesScanned }
func (e *SeriesScanned) Series() int  { return e.SeriesID }

type EpisodeImported struct {
	SeriesID      int    `json:"series_id"`
	EpisodeFileID int    `json:"episode_file_id"`
	SourcePath    string `json:"source_path"`
	IsNewDownload bool   `json:"is_new_download"`
	IsReadOnly    bool   `json:"is_read_only"`
}

func (e *EpisodeImported) Name() string { return NameEpisodeImported }
func (e *EpisodeImported) Series() int  { return e.SeriesID }

type EpisodeFolderCreated struct {
	SeriesID     int    `json:"series_id"`
	SeriesFolder string `json:"series_folder"`
	SeasonFolder string `json:"season_folder,omitempty"`
}

func (e *EpisodeFolderCreated) Name() string { return NameEpisodeFolderCreated }
func (e *EpisodeFolderCreated) Series() int  { return e.SeriesID }

type SeriesRenamed struct {
	SeriesID int `json:"series_id"`
}

func (e *SeriesRenamed) Name() string { return NameSeriesRenamed }
func (e *SeriesRenamed) Series() int  { return e.SeriesID }

type SeriesDeleted struct {
	SeriesID int `json:"series_id"`
}

func (e *SeriesDeleted) Name() string { return NameSeriesDeleted }
func (e *SeriesDeleted) Series() int  { return e.SeriesID }

// EpisodeFileDeleted is published after an episode file row is removed.
// KeepFiles is set when the media file was replaced by an upgrade, in which
// case companion files stay on disk.
type EpisodeFileDeleted struct {
	SeriesID      int  `json:"series_id"`
	EpisodeFileID int  `json:"episode_file_id"`
	KeepFiles     bool `json:"keep_files"`
}

func (e *EpisodeFileDeleted) Name() string { return NameEpisodeFileDeleted }
func (e *EpisodeFileDeleted) Series() int  { return e.SeriesID }

func newEvent(name string) (Event, error) {
	switch name {
	case NameSeriesScanned:
		return &SeriesScanned{}, nil
	case NameEpisodeImported:
		return &EpisodeImported{}, nil
	case NameEpisodeFolderCreated:
		return &EpisodeFolderCreated{}, nil
	case NameSeriesRenamed:
		return &SeriesRenamed{}, nil
	case NameSeriesDeleted:
		return &SeriesDeleted{}, nil
	case NameEpisodeFileDeleted:
		return &EpisodeFileDeleted{}, nil
	}
	return nil, errcodes.UnknownEvent(name)
}

// Encode returns the JSON payload of an event.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return payload, nil
}

// Decode rebuilds an event from its name and JSON payload.
func Decode(name string, payload []byte) (Event, error) {
	event, err := newEvent(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, errors.Wrapf(err, "decode %s event", name)
	}
	return event, nil
}
