// Package i18n resolves the supported display languages for user-facing copy.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

var (
	supported = []language.Tag{language.AmericanEnglish, language.BrazilianPortuguese}
	matcher   = language.NewMatcher(supported)
)

// SupportedTags returns the languages with registered message catalogs.
func SupportedTags() []language.Tag {
	out := make([]language.Tag, len(supported))
	copy(out, supported)
	return out
}

// DefaultTag is the fallback language.
func DefaultTag() language.Tag {
	return supported[0]
}

// ParseTag parses value and reports whether it maps to a supported language.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTag(), false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return DefaultTag(), false
	}
	matched, _, confidence := matcher.Match(tag)
	if confidence == language.No {
		return DefaultTag(), false
	}
	return base(matched), true
}

// MatchTags selects the best supported language for the ordered preferences.
func MatchTags(tags []language.Tag) language.Tag {
	if len(tags) == 0 {
		return DefaultTag()
	}
	matched, _, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultTag()
	}
	return base(matched)
}

// FromAcceptLanguage resolves an Accept-Language header value.
func FromAcceptLanguage(header string) language.Tag {
	header = strings.TrimSpace(header)
	if header == "" {
		return DefaultTag()
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return DefaultTag()
	}
	return MatchTags(tags)
}

// base strips the matcher's -u-rg extension so the tag compares equal to a
// supported entry.
func base(tag language.Tag) language.Tag {
	for _, candidate := range supported {
		if b, _ := tag.Base(); b == mustBase(candidate) {
			if r, _ := tag.Region(); r == mustRegion(candidate) {
				return candidate
			}
		}
	}
	for _, candidate := range supported {
		if b, _ := tag.Base(); b == mustBase(candidate) {
			return candidate
		}
	}
	return DefaultTag()
}

func mustBase(tag language.Tag) language.Base {
	b, _ := tag.Base()
	return b
}

func mustRegion(tag language.Tag) language.Region {
	r, _ := tag.Region()
	return r
}
