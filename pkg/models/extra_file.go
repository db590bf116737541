package models

import (
	"path/filepath"
	"time"

	"github.com/shishobooks/extrasync/pkg/language"
	"github.com/uptrace/bun"
)

type ExtraType string

const (
	ExtraTypeMetadata ExtraType = "metadata"
	ExtraTypeSubtitle ExtraType = "subtitle"
	ExtraTypeOther    ExtraType = "other"
)

// MetadataType is the sub-kind of a metadata extra file. The numeric values
// are persisted and used by the housekeeping statements.
type MetadataType int

const (
	MetadataTypeUnknown MetadataType = iota
	MetadataTypeSeriesMetadata
	MetadataTypeEpisodeMetadata
	MetadataTypeSeriesImage
	MetadataTypeSeasonImage
	MetadataTypeEpisodeImage
)

func (mt MetadataType) String() string {
	switch mt {
	case MetadataTypeSeriesMetadata:
		return "series_metadata"
	case MetadataTypeEpisodeMetadata:
		return "episode_metadata"
	case MetadataTypeSeriesImage:
		return "series_image"
	case MetadataTypeSeasonImage:
		return "season_image"
	case MetadataTypeEpisodeImage:
		return "episode_image"
	}
	return "unknown"
}

// EpisodeScoped reports whether files of this sub-kind belong to a single
// episode file.
func (mt MetadataType) EpisodeScoped() bool {
	return mt == MetadataTypeEpisodeMetadata || mt == MetadataTypeEpisodeImage
}

// ExtraFile is a tracked companion file. Type discriminates the variant:
// Language is only meaningful for subtitles, MetadataConsumer and
// MetadataType only for metadata.
//
// EpisodeFileID keeps nil and 0 apart. nil means the file is not tied to an
// episode, 0 marks episode-scoped metadata whose episode was never resolved
// and is purged by housekeeping.
type ExtraFile struct {
	bun.BaseModel `bun:"table:extra_files,alias:ef"`

	ID               int               `bun:",pk,nullzero" json:"id"`
	SeriesID         int               `json:"series_id"`
	SeasonNumber     *int              `json:"season_number,omitempty"`
	EpisodeFileID    *int              `json:"episode_file_id,omitempty"`
	Type             ExtraType         `json:"type"`
	RelativePath     string            `json:"relative_path"`
	Added            time.Time         `json:"added"`
	LastUpdated      time.Time         `json:"last_updated"`
	MetadataConsumer *string           `json:"metadata_consumer,omitempty"`
	MetadataType     MetadataType      `json:"metadata_type"`
	Language         language.Language `json:"language"`
}

// Path returns the absolute path of the extra file inside the series root.
func (ef *ExtraFile) Path(series *Series) string {
	return filepath.Join(series.Path, ef.RelativePath)
}

// BelongsTo reports whether the extra file references the given episode file.
func (ef *ExtraFile) BelongsTo(episodeFile *EpisodeFile) bool {
	return ef.EpisodeFileID != nil && *ef.EpisodeFileID == episodeFile.ID
}
