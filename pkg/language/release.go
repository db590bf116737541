package language

import (
	"regexp"
	"strings"
)

// Checked in order, first hit wins.
var wordLanguages = []struct {
	word     string
	language Language
}{
	{"english", English},
	{"french", French},
	{"spanish", Spanish},
	{"danish", Danish},
	{"dutch", Dutch},
	{"japanese", Japanese},
	{"cantonese", Cantonese},
	{"mandarin", Mandarin},
	{"korean", Korean},
	{"russian", Russian},
	{"polish", Polish},
	{"vietnamese", Vietnamese},
	{"swedish", Swedish},
	{"norwegian", Norwegian},
	{"nordic", Norwegian},
	{"finnish", Finnish},
	{"turkish", Turkish},
	{"portuguese", Portuguese},
	{"hungarian", Hungarian},
}

var releaseLanguageRE = regexp.MustCompile(`(?i)(?:\W|_)(?P<italian>\b(?:ita|italian)\b)|(?P<german>german\b|videomann)|(?P<flemish>flemish)|(?P<greek>greek)|(?P<french>(?:\W|_)(?:FR|VOSTFR)(?:\W|_))|(?P<russian>\brus\b)|(?P<dutch>nl\W?subs?)|(?P<hungarian>\b(?:HUNDUB|HUN)\b)`)

// Order in which the named groups of releaseLanguageRE are consulted.
var releaseGroups = []struct {
	group    string
	language Language
}{
	{"italian", Italian},
	{"german", German},
	{"flemish", Flemish},
	{"greek", Greek},
	{"french", French},
	{"russian", Russian},
	{"dutch", Dutch},
	{"hungarian", Hungarian},
}

// FindReleaseLanguage looks for a language marker in a release title. Full
// language names are checked first, then abbreviation markers such as "ita",
// "VOSTFR" or "nl subs".
func FindReleaseLanguage(title string) (Language, bool) {
	lower := strings.ToLower(title)
	for _, wl := range wordLanguages {
		if strings.Contains(lower, wl.word) {
			return wl.language, true
		}
	}

	m := releaseLanguageRE.FindStringSubmatchIndex(title)
	if m == nil {
		return Unknown, false
	}
	for _, rg := range releaseGroups {
		i := releaseLanguageRE.SubexpIndex(rg.group)
		if m[2*i] >= 0 {
			return rg.language, true
		}
	}

	return Unknown, false
}

// ParseReleaseLanguage is FindReleaseLanguage with English as the answer for
// a title without any marker.
func ParseReleaseLanguage(title string) Language {
	if lang, ok := FindReleaseLanguage(title); ok {
		return lang
	}
	return English
}
