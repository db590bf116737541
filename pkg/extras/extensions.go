package extras

import (
	"path/filepath"
	"regexp"
	"strings"
)

var mediaExtensions = map[string]struct{}{
	".webm": {}, ".m4v": {}, ".3gp": {}, ".nsv": {}, ".ty": {}, ".strm": {},
	".rm": {}, ".rmvb": {}, ".m3u": {}, ".ifo": {}, ".mov": {}, ".qt": {},
	".divx": {}, ".xvid": {}, ".bivx": {}, ".nrg": {}, ".pva": {}, ".wmv": {},
	".asf": {}, ".asx": {}, ".ogm": {}, ".ogv": {}, ".m2v": {}, ".avi": {},
	".bin": {}, ".dat": {}, ".dvr-ms": {}, ".mpg": {}, ".mpeg": {}, ".mp4": {},
	".avc": {}, ".vp3": {}, ".svq3": {}, ".nuv": {}, ".viv": {}, ".dv": {},
	".fli": {}, ".flv": {}, ".wpl": {}, ".img": {}, ".iso": {}, ".vob": {},
	".mkv": {}, ".mk3d": {}, ".ts": {}, ".wtv": {}, ".m2ts": {},
}

var subtitleExtensions = map[string]struct{}{
	".aqt": {}, ".ass": {}, ".idx": {}, ".jss": {}, ".psb": {}, ".rt": {},
	".smi": {}, ".srt": {}, ".ssa": {}, ".sub": {}, ".txt": {}, ".utf": {},
	".utf8": {}, ".utf-8": {}, ".vtt": {},
}

// Folders that never hold tracked extra files, wherever they appear.
var excludedFoldersRE = regexp.MustCompile(`(?i)(?:^|[\\/])(?:extrafanart|plex versions|@eadir|\.@__thumb|\.grab|lost\+found)(?:[\\/]|$)`)

// Files left behind by operating systems and partial downloads.
var excludedFilesRE = regexp.MustCompile(`(?i)^\._|^thumbs\.db$|^\.ds_store$|\.partial~$`)

// extrasFolder is the reserved folder below a series root that holds
// bonus content managed by hand.
const extrasFolder = "EXTRAS"

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func isMediaFile(path string) bool {
	_, ok := mediaExtensions[extension(path)]
	return ok
}

func isSubtitleFile(path string) bool {
	_, ok := subtitleExtensions[extension(path)]
	return ok
}

// changeExtension replaces the last extension of path with ext, which
// includes its leading dot and may carry a suffix such as ".en.srt".
func changeExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
