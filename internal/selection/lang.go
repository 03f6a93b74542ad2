package selection

import (
	"strings"

	"golang.org/x/text/language"
)

// bibliographic maps ISO 639-2/B codes to their terminology form, which is
// what x/text understands.
var bibliographic = map[string]string{
	"alb": "sqi", "arm": "hye", "baq": "eus", "bur": "mya", "chi": "zho",
	"cze": "ces", "dut": "nld", "fre": "fra", "geo": "kat", "ger": "deu",
	"gre": "ell", "ice": "isl", "mac": "mkd", "mao": "mri", "may": "msa",
	"per": "fas", "rum": "ron", "slo": "slk", "tib": "bod", "wel": "cym",
}

// NormalizeLanguage folds an ISO 639-1, 639-2/T or 639-2/B tag to its
// shortest canonical form ("eng", "en" and "EN" all become "en"). Empty and
// "und" tags become "und"; tags x/text does not know are lowercased.
func NormalizeLanguage(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(t, "-_"); i > 0 {
		t = t[:i]
	}
	if t == "" || t == "und" {
		return "und"
	}
	if alt, ok := bibliographic[t]; ok {
		t = alt
	}
	if b, err := language.ParseBase(t); err == nil {
		return b.String()
	}
	return t
}

// LanguageMatches reports whether a stream tagged have satisfies a filter
// for want.
func LanguageMatches(want, have string) bool {
	return NormalizeLanguage(want) == NormalizeLanguage(have)
}
