package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		// series_id and episode_file_id are deliberately not foreign keys.
		// Dangling references are repaired by housekeeping, and
		// episode_file_id = 0 is a sentinel that must be storable.
		_, err := db.Exec(`
			CREATE TABLE extra_files (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				series_id INTEGER NOT NULL,
				season_number INTEGER,
				episode_file_id INTEGER,
				type TEXT NOT NULL,
				relative_path TEXT NOT NULL,
				added TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				metadata_consumer TEXT,
				metadata_type INTEGER NOT NULL DEFAULT 0,
				language TEXT NOT NULL DEFAULT 'unknown'
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_extra_files_series_id ON extra_files (series_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_extra_files_episode_file_id ON extra_files (episode_file_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_extra_files_series_id_relative_path ON extra_files (series_id, relative_path)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS extra_files")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
