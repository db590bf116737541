package extrafiles

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/shishobooks/extrasync/pkg/errcodes"
	"github.com/shishobooks/extrasync/pkg/language"
	"github.com/shishobooks/extrasync/pkg/models"
	"github.com/shishobooks/extrasync/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert_InsertsAndUpdates(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db, 3)
	ctx := context.Background()

	series := testutils.CreateSeries(t, db, "Show", filepath.Join(t.TempDir(), "Show"))
	episodeFile := testutils.CreateEpisodeFile(t, db, series, 1, "Season 1/Show.S01E01.mkv")

	sub := &models.ExtraFile{
		SeriesID:      series.ID,
		SeasonNumber:  pointerutil.Int(1),
		EpisodeFileID: pointerutil.Int(episodeFile.ID),
		Type:          models.ExtraTypeSubtitle,
		RelativePath:  "Season 1/Show.S01E01.en.srt",
		Language:      language.English,
	}
	other := &models.ExtraFile{
		SeriesID:     series.ID,
		Type:         models.ExtraTypeOther,
		RelativePath: "notes.txt",
	}
	require.NoError(t, svc.Upsert(ctx, []*models.ExtraFile{sub, other}))
	assert.NotZero(t, sub.ID)
	assert.NotZero(t, other.ID)
	assert.False(t, sub.Added.IsZero())
	assert.Equal(t, language.Unknown, other.Language)

	added := sub.Added
	time.Sleep(5 * time.Millisecond)
	sub.RelativePath = "Season 1/Show - S01E01.en.srt"
	require.NoError(t, svc.Upsert(ctx, []*models.ExtraFile{sub}))

	got, err := svc.RetrieveExtraFile(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Season 1/Show - S01E01.en.srt", got.RelativePath)
	assert.Equal(t, language.English, got.Language)
	assert.True(t, got.Added.Equal(added), "added should not change on update")
	assert.True(t, got.LastUpdated.After(added))
	require.NotNil(t, got.EpisodeFileID)
	assert.Equal(t, episodeFile.ID, *got.EpisodeFileID)

	gotOther, err := svc.RetrieveExtraFile(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, gotOther.EpisodeFileID)
	assert.Nil(t, gotOther.SeasonNumber)
}

func TestUpsert_KeepsZeroEpisodeFileIDApartFromNull(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db, 3)
	ctx := context.Background()

	zero := &models.ExtraFile{
		SeriesID:         1,
		EpisodeFileID:    pointerutil.Int(0),
		Type:             models.ExtraTypeMetadata,
		RelativePath:     "a.nfo",
		MetadataConsumer: pointerutil.String("kodi"),
		MetadataType:     models.MetadataTypeEpisodeMetadata,
	}
	null := &models.ExtraFile{
		SeriesID:     1,
		Type:         models.ExtraTypeMetadata,
		RelativePath: "b.nfo",
		MetadataType: models.MetadataTypeEpisodeMetadata,
	}
	require.NoError(t, svc.Upsert(ctx, []*models.ExtraFile{zero, null}))

	got, err := svc.RetrieveExtraFile(ctx, zero.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EpisodeFileID)
	assert.Equal(t, 0, *got.EpisodeFileID)
	require.NotNil(t, got.MetadataConsumer)
	assert.Equal(t, "kodi", *got.MetadataConsumer)

	got, err = svc.RetrieveExtraFile(ctx, null.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EpisodeFileID)
	assert.Nil(t, got.MetadataConsumer)
}

func TestRetrieveExtraFile_NotFound(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db, 3)

	_, err := svc.RetrieveExtraFile(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcodes.NotFound("Extra File")))
}

func TestListExtraFiles_Filters(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db, 3)
	ctx := context.Background()

	a := testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 1, EpisodeFileID: pointerutil.Int(10), SeasonNumber: pointerutil.Int(1), Type: models.ExtraTypeSubtitle, RelativePath: "a.srt"})
	b := testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 1, EpisodeFileID: pointerutil.Int(11), SeasonNumber: pointerutil.Int(2), Type: models.ExtraTypeMetadata, RelativePath: "b.nfo"})
	c := testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 2, Type: models.ExtraTypeOther, RelativePath: "c.txt"})

	ids := func(extras []*models.ExtraFile) []int {
		out := make([]int, 0, len(extras))
		for _, e := range extras {
			out = append(out, e.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		opts     ListExtraFilesOptions
		expected []int
	}{
		{"all", ListExtraFilesOptions{}, []int{a.ID, b.ID, c.ID}},
		{"series", ListExtraFilesOptions{SeriesID: pointerutil.Int(1)}, []int{a.ID, b.ID}},
		{"episode file", ListExtraFilesOptions{EpisodeFileID: pointerutil.Int(11)}, []int{b.ID}},
		{"season", ListExtraFilesOptions{SeriesID: pointerutil.Int(1), SeasonNumber: pointerutil.Int(1)}, []int{a.ID}},
		{"type", ListExtraFilesOptions{Type: typePtr(models.ExtraTypeOther)}, []int{c.ID}},
		{"ids", ListExtraFilesOptions{IDs: []int{a.ID, c.ID}}, []int{a.ID, c.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extras, err := svc.ListExtraFiles(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(extras))
		})
	}
}

func TestDeleteExtraFiles(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db, 3)
	ctx := context.Background()

	testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 1, Type: models.ExtraTypeOther, RelativePath: "a.txt"})
	testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 1, Type: models.ExtraTypeOther, RelativePath: "b.txt"})
	keep := testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 2, Type: models.ExtraTypeOther, RelativePath: "c.txt"})

	_, err := svc.DeleteExtraFiles(ctx, ListExtraFilesOptions{})
	require.Error(t, err)

	n, err := svc.DeleteExtraFiles(ctx, ListExtraFilesOptions{SeriesID: pointerutil.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := svc.ListExtraFiles(ctx, ListExtraFilesOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)
}

func TestBulkDelete(t *testing.T) {
	db := testutils.NewDB(t)
	svc := NewService(db, 3)
	ctx := context.Background()

	testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 1, Type: models.ExtraTypeOther, RelativePath: "a.txt"})
	testutils.CreateExtraFile(t, db, &models.ExtraFile{SeriesID: 2, Type: models.ExtraTypeOther, RelativePath: "b.txt"})

	n, err := svc.BulkDelete(ctx, "DELETE FROM extra_files WHERE series_id = ?", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.BulkDelete(ctx, "DELETE FROM extra_files WHERE series_id = ?", 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func typePtr(t models.ExtraType) *models.ExtraType {
	return &t
}
