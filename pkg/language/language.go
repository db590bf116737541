package language

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Language is a persisted language identifier.
type Language string

const (
	Unknown    Language = "unknown"
	English    Language = "english"
	French     Language = "french"
	Spanish    Language = "spanish"
	German     Language = "german"
	Italian    Language = "italian"
	Danish     Language = "danish"
	Dutch      Language = "dutch"
	Japanese   Language = "japanese"
	Cantonese  Language = "cantonese"
	Mandarin   Language = "mandarin"
	Russian    Language = "russian"
	Polish     Language = "polish"
	Vietnamese Language = "vietnamese"
	Swedish    Language = "swedish"
	Norwegian  Language = "norwegian"
	Finnish    Language = "finnish"
	Turkish    Language = "turkish"
	Portuguese Language = "portuguese"
	Flemish    Language = "flemish"
	Greek      Language = "greek"
	Korean     Language = "korean"
	Hungarian  Language = "hungarian"
)

type isoLanguage struct {
	code2    string // ISO 639-1
	code3    string // ISO 639-2/T
	language Language
}

var isoLanguages = []isoLanguage{
	{"en", "eng", English},
	{"fr", "fra", French},
	{"es", "spa", Spanish},
	{"de", "deu", German},
	{"it", "ita", Italian},
	{"da", "dan", Danish},
	{"nl", "nld", Dutch},
	{"ja", "jpn", Japanese},
	{"ru", "rus", Russian},
	{"pl", "pol", Polish},
	{"vi", "vie", Vietnamese},
	{"sv", "swe", Swedish},
	{"no", "nor", Norwegian},
	{"fi", "fin", Finnish},
	{"tr", "tur", Turkish},
	{"pt", "por", Portuguese},
	{"el", "ell", Greek},
	{"ko", "kor", Korean},
	{"hu", "hun", Hungarian},
}

var (
	byCode2    map[string]Language
	byCode3    map[string]Language
	byLanguage map[Language]isoLanguage
)

func init() {
	byCode2 = make(map[string]Language, len(isoLanguages))
	byCode3 = make(map[string]Language, len(isoLanguages))
	byLanguage = make(map[Language]isoLanguage, len(isoLanguages))
	for _, l := range isoLanguages {
		byCode2[l.code2] = l.language
		byCode3[l.code3] = l.language
		byLanguage[l.language] = l
	}
}

var subtitleLanguageRE = regexp.MustCompile(`(?i)^.+?[-_. ]([a-z]{2,3})$`)

// ParseSubtitleLanguage infers the language of a subtitle file from the
// trailing token of its name, e.g. "Show.S01E01.en.srt" is English and
// "Show.S01E01.fra.srt" is French. Two letter tokens are looked up as
// ISO 639-1 codes and three letter tokens as ISO 639-2/T codes, ignoring
// case. Anything else is Unknown.
func ParseSubtitleLanguage(fileName string) Language {
	base := filepath.Base(fileName)
	simple := strings.TrimSuffix(base, filepath.Ext(base))

	m := subtitleLanguageRE.FindStringSubmatch(simple)
	if m == nil {
		return Unknown
	}

	code := strings.ToLower(m[1])
	var (
		lang Language
		ok   bool
	)
	switch len(code) {
	case 2:
		lang, ok = byCode2[code]
	case 3:
		lang, ok = byCode3[code]
	}
	if !ok {
		return Unknown
	}
	return lang
}

// TwoLetterCode returns the ISO 639-1 code of lang, or "" when lang has no
// entry in the table.
func TwoLetterCode(lang Language) string {
	return byLanguage[lang].code2
}

// ThreeLetterCode returns the ISO 639-2/T code of lang, or "" when lang has
// no entry in the table.
func ThreeLetterCode(lang Language) string {
	return byLanguage[lang].code3
}

// FromCode resolves a two or three letter ISO code.
func FromCode(code string) Language {
	code = strings.ToLower(strings.TrimSpace(code))
	if lang, ok := byCode2[code]; ok {
		return lang
	}
	if lang, ok := byCode3[code]; ok {
		return lang
	}
	return Unknown
}
