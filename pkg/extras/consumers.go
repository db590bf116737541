package extras

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shishobooks/extrasync/pkg/episodes"
	"github.com/shishobooks/extrasync/pkg/models"
)

// Consumer describes the files one metadata format (a media center) keeps
// beside a series. Contents are written elsewhere; consumers only know the
// names.
type Consumer interface {
	Name() string

	// FindMetadataFile classifies path as one of the consumer's files. It
	// returns nil when the file isn't one of them. Episode association is
	// left to the caller.
	FindMetadataFile(series *models.Series, path string) *models.ExtraFile

	SeriesFiles(series *models.Series) []ExpectedFile
	SeasonFiles(series *models.Series, seasonNumber int) []ExpectedFile
	EpisodeFiles(series *models.Series, episodeFile *models.EpisodeFile) []ExpectedFile

	// RenamedPath returns where extra belongs once episodeFile has been
	// renamed.
	RenamedPath(series *models.Series, episodeFile *models.EpisodeFile, extra *models.ExtraFile) string
}

// ExpectedFile is a series-relative path a consumer writes.
type ExpectedFile struct {
	RelativePath string
	Type         models.MetadataType
}

// NewConsumers returns the built-in consumers named in names, in that order.
// Unknown names are ignored.
func NewConsumers(names []string) []Consumer {
	consumers := make([]Consumer, 0, len(names))
	for _, name := range names {
		switch name {
		case kodiName:
			consumers = append(consumers, &kodiConsumer{})
		case mediaBrowserName:
			consumers = append(consumers, &mediaBrowserConsumer{})
		}
	}
	return consumers
}

func relativeTo(series *models.Series, path string) (string, bool) {
	rel, err := filepath.Rel(series.Path, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func newMetadataFile(series *models.Series, consumer, relativePath string, metadataType models.MetadataType) *models.ExtraFile {
	return &models.ExtraFile{
		SeriesID:         series.ID,
		Type:             models.ExtraTypeMetadata,
		RelativePath:     relativePath,
		MetadataConsumer: &consumer,
		MetadataType:     metadataType,
	}
}

const kodiName = "kodi"

var (
	kodiSeriesImagesRE = regexp.MustCompile(`(?i)^(?:poster|banner|fanart|clearart|landscape|logo|characterart|clearlogo)\.(?:png|jpe?g)$`)
	kodiSeasonImagesRE = regexp.MustCompile(`(?i)^season(\d{2,4}|-specials|-all)-(?:poster|banner|fanart|landscape)\.(?:png|jpe?g)$`)
	kodiNfoRE          = regexp.MustCompile(`<(?:tvshow|episodedetails)>`)
)

// kodiConsumer knows the XBMC/Kodi layout: tvshow.nfo and artwork in the
// series root, an .nfo and a -thumb image per episode.
type kodiConsumer struct{}

func (c *kodiConsumer) Name() string {
	return kodiName
}

func (c *kodiConsumer) FindMetadataFile(series *models.Series, path string) *models.ExtraFile {
	rel, ok := relativeTo(series, path)
	if !ok {
		return nil
	}
	name := filepath.Base(rel)
	inRoot := filepath.Dir(rel) == "."

	if inRoot && strings.EqualFold(name, "tvshow.nfo") {
		return newMetadataFile(series, kodiName, rel, models.MetadataTypeSeriesMetadata)
	}
	if inRoot && kodiSeriesImagesRE.MatchString(name) {
		return newMetadataFile(series, kodiName, rel, models.MetadataTypeSeriesImage)
	}
	if m := kodiSeasonImagesRE.FindStringSubmatch(name); inRoot && m != nil {
		extra := newMetadataFile(series, kodiName, rel, models.MetadataTypeSeasonImage)
		switch strings.ToLower(m[1]) {
		case "-specials":
			season := 0
			extra.SeasonNumber = &season
		case "-all":
		default:
			season, _ := strconv.Atoi(m[1])
			extra.SeasonNumber = &season
		}
		return extra
	}

	if _, ok := episodes.Parse(name); !ok {
		return nil
	}
	ext := extension(name)
	switch {
	case ext == ".nfo" && isKodiNfo(path):
		return newMetadataFile(series, kodiName, rel, models.MetadataTypeEpisodeMetadata)
	case (ext == ".jpg" || ext == ".png") && strings.HasSuffix(strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))), "-thumb"):
		return newMetadataFile(series, kodiName, rel, models.MetadataTypeEpisodeImage)
	}
	return nil
}

// isKodiNfo tells Kodi's XML .nfo files apart from the plain text .nfo
// files that ship with releases.
func isKodiNfo(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 4096)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	return kodiNfoRE.Match(bytes.ToLower(head[:n]))
}

func (c *kodiConsumer) SeriesFiles(_ *models.Series) []ExpectedFile {
	return []ExpectedFile{
		{"tvshow.nfo", models.MetadataTypeSeriesMetadata},
		{"poster.jpg", models.MetadataTypeSeriesImage},
		{"banner.jpg", models.MetadataTypeSeriesImage},
		{"fanart.jpg", models.MetadataTypeSeriesImage},
	}
}

func (c *kodiConsumer) SeasonFiles(_ *models.Series, seasonNumber int) []ExpectedFile {
	prefix := fmt.Sprintf("season%02d", seasonNumber)
	if seasonNumber == 0 {
		prefix = "season-specials"
	}
	return []ExpectedFile{
		{prefix + "-poster.jpg", models.MetadataTypeSeasonImage},
		{prefix + "-banner.jpg", models.MetadataTypeSeasonImage},
		{prefix + "-fanart.jpg", models.MetadataTypeSeasonImage},
	}
}

func (c *kodiConsumer) EpisodeFiles(_ *models.Series, episodeFile *models.EpisodeFile) []ExpectedFile {
	return []ExpectedFile{
		{changeExtension(episodeFile.RelativePath, ".nfo"), models.MetadataTypeEpisodeMetadata},
		{changeExtension(episodeFile.RelativePath, "-thumb.jpg"), models.MetadataTypeEpisodeImage},
	}
}

func (c *kodiConsumer) RenamedPath(_ *models.Series, episodeFile *models.EpisodeFile, extra *models.ExtraFile) string {
	switch extra.MetadataType {
	case models.MetadataTypeEpisodeMetadata:
		return changeExtension(episodeFile.RelativePath, filepath.Ext(extra.RelativePath))
	case models.MetadataTypeEpisodeImage:
		return changeExtension(episodeFile.RelativePath, "-thumb"+filepath.Ext(extra.RelativePath))
	}
	return extra.RelativePath
}

const mediaBrowserName = "mediabrowser"

// mediaBrowserConsumer knows the MediaBrowser/Emby layout: series.xml in the
// series root and one XML file per episode in a metadata folder beside the
// episode.
type mediaBrowserConsumer struct{}

func (c *mediaBrowserConsumer) Name() string {
	return mediaBrowserName
}

func (c *mediaBrowserConsumer) FindMetadataFile(series *models.Series, path string) *models.ExtraFile {
	rel, ok := relativeTo(series, path)
	if !ok {
		return nil
	}
	name := filepath.Base(rel)
	dir := filepath.Dir(rel)

	if dir == "." && strings.EqualFold(name, "series.xml") {
		return newMetadataFile(series, mediaBrowserName, rel, models.MetadataTypeSeriesMetadata)
	}
	if strings.EqualFold(filepath.Base(dir), "metadata") && extension(name) == ".xml" {
		if _, ok := episodes.Parse(name); ok {
			return newMetadataFile(series, mediaBrowserName, rel, models.MetadataTypeEpisodeMetadata)
		}
	}
	return nil
}

func (c *mediaBrowserConsumer) SeriesFiles(_ *models.Series) []ExpectedFile {
	return []ExpectedFile{{"series.xml", models.MetadataTypeSeriesMetadata}}
}

func (c *mediaBrowserConsumer) SeasonFiles(_ *models.Series, _ int) []ExpectedFile {
	return nil
}

func (c *mediaBrowserConsumer) EpisodeFiles(_ *models.Series, episodeFile *models.EpisodeFile) []ExpectedFile {
	return []ExpectedFile{{c.episodeMetadataPath(episodeFile), models.MetadataTypeEpisodeMetadata}}
}

func (c *mediaBrowserConsumer) RenamedPath(_ *models.Series, episodeFile *models.EpisodeFile, extra *models.ExtraFile) string {
	if extra.MetadataType == models.MetadataTypeEpisodeMetadata {
		return c.episodeMetadataPath(episodeFile)
	}
	return extra.RelativePath
}

func (c *mediaBrowserConsumer) episodeMetadataPath(episodeFile *models.EpisodeFile) string {
	name := filepath.Base(changeExtension(episodeFile.RelativePath, ".xml"))
	return filepath.Join(filepath.Dir(episodeFile.RelativePath), "metadata", name)
}
