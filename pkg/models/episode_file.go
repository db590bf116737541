package models

import (
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
)

type EpisodeFile struct {
	bun.BaseModel `bun:"table:episode_files,alias:epf"`

	ID           int       `bun:",pk,nullzero" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SeriesID     int       `bun:",nullzero" json:"series_id"`
	SeasonNumber int       `json:"season_number"`
	RelativePath string    `bun:",nullzero" json:"relative_path"`
}

// Path returns the absolute path of the episode file inside the series root.
func (ef *EpisodeFile) Path(series *Series) string {
	return filepath.Join(series.Path, ef.RelativePath)
}
