// Package testutils provides an in-memory database and fixture helpers for
// package tests.
package testutils

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/shishobooks/extrasync/pkg/language"
	"github.com/shishobooks/extrasync/pkg/migrations"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewDB returns a migrated in-memory database that is closed when the test
// ends. It is limited to a single connection since every connection to
// ":memory:" would otherwise see its own empty database.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CreateSeries inserts a series rooted at dir.
func CreateSeries(t *testing.T, db *bun.DB, title, dir string) *models.Series {
	t.Helper()

	series := &models.Series{Title: title, Path: dir}
	_, err := db.NewInsert().Model(series).Returning("*").Exec(context.Background())
	require.NoError(t, err)
	return series
}

// CreateEpisodeFile inserts an episode file and writes a placeholder media
// file for it below the series root.
func CreateEpisodeFile(t *testing.T, db *bun.DB, series *models.Series, seasonNumber int, relativePath string) *models.EpisodeFile {
	t.Helper()

	episodeFile := &models.EpisodeFile{
		SeriesID:     series.ID,
		SeasonNumber: seasonNumber,
		RelativePath: relativePath,
	}
	_, err := db.NewInsert().Model(episodeFile).Returning("*").Exec(context.Background())
	require.NoError(t, err)

	WriteFile(t, episodeFile.Path(series), "media")
	return episodeFile
}

// CreateExtraFile inserts an extra file row as-is. It does not touch disk.
func CreateExtraFile(t *testing.T, db *bun.DB, extra *models.ExtraFile) *models.ExtraFile {
	t.Helper()

	if extra.Language == "" {
		extra.Language = language.Unknown
	}
	_, err := db.NewInsert().Model(extra).Returning("*").Exec(context.Background())
	require.NoError(t, err)
	return extra
}

// WriteFile creates path and its parent folders.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
