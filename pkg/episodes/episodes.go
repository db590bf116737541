// Package episodes associates companion files with the episode file they
// belong to, using the season and episode numbers found in file names.
package episodes

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"
	"github.com/pkg/errors"
	"github.com/shishobooks/extrasync/pkg/models"
)

var (
	// ErrUnparseable is returned when no episode numbers can be read from a
	// file name and it doesn't share a base name with any episode file.
	ErrUnparseable = errors.New("unable to parse episode numbers")
	// ErrNoEpisodes is returned when the parsed numbers match no episode file.
	ErrNoEpisodes = errors.New("no episode file matches")
	// ErrAmbiguous is returned when a file matches more than one episode file.
	ErrAmbiguous = errors.New("file matches multiple episode files")
)

var (
	seasonEpisodeRE = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])s(\d{1,4})[ ._-]?((?:e\d{1,4}(?:[ ._-]?-?[ ._-]?)?)+)`)
	episodeRE       = regexp.MustCompile(`(?i)e(\d{1,4})`)
	crossRE         = regexp.MustCompile(`(?i)(?:^|[^0-9])(\d{1,2})x(\d{2,3})(?:[^0-9]|$)`)
	seasonFolderRE  = regexp.MustCompile(`(?i)^(?:season|series|s)[ ._-]*(\d{1,4})$`)
)

// Numbers are the season and episode numbers parsed from a file name.
type Numbers struct {
	SeasonNumber   int
	EpisodeNumbers []int
}

func (n Numbers) overlaps(other Numbers) bool {
	if n.SeasonNumber != other.SeasonNumber {
		return false
	}
	for _, a := range n.EpisodeNumbers {
		for _, b := range other.EpisodeNumbers {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Parse reads season and episode numbers from a file name. It understands
// S01E02, S01E02E03, S01E02-E03 and 1x02 tokens and falls back to a full
// release name parse.
func Parse(fileName string) (Numbers, bool) {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))

	if m := seasonEpisodeRE.FindStringSubmatch(base); m != nil {
		season, _ := strconv.Atoi(m[1])
		n := Numbers{SeasonNumber: season}
		for _, e := range episodeRE.FindAllStringSubmatch(m[2], -1) {
			episode, _ := strconv.Atoi(e[1])
			n.EpisodeNumbers = append(n.EpisodeNumbers, episode)
		}
		return n, true
	}

	if m := crossRE.FindStringSubmatch(base); m != nil {
		season, _ := strconv.Atoi(m[1])
		episode, _ := strconv.Atoi(m[2])
		return Numbers{SeasonNumber: season, EpisodeNumbers: []int{episode}}, true
	}

	r := rls.ParseString(base)
	if r.Episode > 0 {
		return Numbers{SeasonNumber: r.Series, EpisodeNumbers: []int{r.Episode}}, true
	}

	return Numbers{}, false
}

// ParseSeasonFolder reads the season number from a folder name such as
// "Season 01". "Specials" is season 0.
func ParseSeasonFolder(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "specials") {
		return 0, true
	}
	m := seasonFolderRE.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	season, _ := strconv.Atoi(m[1])
	return season, true
}

// LocalEpisode is the result of a successful association.
type LocalEpisode struct {
	SeasonNumber int
	EpisodeFile  *models.EpisodeFile
}

type indexed struct {
	episodeFile *models.EpisodeFile
	base        string
	numbers     Numbers
	parsed      bool
}

// Index matches files against a fixed set of episode files. The episode
// file names are parsed once when the index is built.
type Index struct {
	entries []indexed
}

func NewIndex(episodeFiles []*models.EpisodeFile) *Index {
	idx := &Index{entries: make([]indexed, 0, len(episodeFiles))}
	for _, episodeFile := range episodeFiles {
		name := filepath.Base(episodeFile.RelativePath)
		numbers, ok := Parse(name)
		idx.entries = append(idx.entries, indexed{
			episodeFile: episodeFile,
			base:        strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))),
			numbers:     numbers,
			parsed:      ok,
		})
	}
	return idx
}

// Match returns the single episode file that path belongs to. Files whose
// numbers can't be parsed are matched by sharing an episode file's base
// name.
func (idx *Index) Match(path string) (*LocalEpisode, error) {
	name := filepath.Base(path)

	numbers, ok := Parse(name)
	if !ok {
		return idx.matchByBaseName(name)
	}

	var match *indexed
	for i := range idx.entries {
		entry := &idx.entries[i]
		if !entry.parsed || !entry.numbers.overlaps(numbers) {
			continue
		}
		if match != nil && match.episodeFile.ID != entry.episodeFile.ID {
			return nil, errors.Wrapf(ErrAmbiguous, "%s", name)
		}
		match = entry
	}
	if match == nil {
		if le, err := idx.matchByBaseName(name); err == nil {
			return le, nil
		}
		return nil, errors.Wrapf(ErrNoEpisodes, "%s (season %d, episodes %v)", name, numbers.SeasonNumber, numbers.EpisodeNumbers)
	}

	return &LocalEpisode{
		SeasonNumber: match.episodeFile.SeasonNumber,
		EpisodeFile:  match.episodeFile,
	}, nil
}

func (idx *Index) matchByBaseName(name string) (*LocalEpisode, error) {
	lower := strings.ToLower(name)

	var match *indexed
	for i := range idx.entries {
		entry := &idx.entries[i]
		if !hasBaseName(lower, entry.base) {
			continue
		}
		if match != nil && match.episodeFile.ID != entry.episodeFile.ID {
			return nil, errors.Wrapf(ErrAmbiguous, "%s", name)
		}
		match = entry
	}
	if match == nil {
		return nil, errors.Wrapf(ErrUnparseable, "%s", name)
	}

	return &LocalEpisode{
		SeasonNumber: match.episodeFile.SeasonNumber,
		EpisodeFile:  match.episodeFile,
	}, nil
}

// hasBaseName reports whether name is base followed by a separator or an
// extension, e.g. "pilot.en.srt" or "pilot-thumb.jpg" for "pilot".
func hasBaseName(name, base string) bool {
	if base == "" || !strings.HasPrefix(name, base) {
		return false
	}
	if len(name) == len(base) {
		return true
	}
	switch name[len(base)] {
	case '.', '-', '_', ' ':
		return true
	}
	return false
}

// IsParseFailure reports whether err means the file could not be tied to
// exactly one episode file.
func IsParseFailure(err error) bool {
	return errors.Is(err, ErrUnparseable) || errors.Is(err, ErrNoEpisodes) || errors.Is(err, ErrAmbiguous)
}
