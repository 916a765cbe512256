// Package i18n defines the supported request languages and tag negotiation.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is the canonical fallback language for localized content.
const DefaultLanguage = "en"

var supportedTags = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.BrazilianPortuguese,
	language.Arabic,
}

var matcher = language.NewMatcher(supportedTags)

// SupportedTags returns the list of supported language tags.
func SupportedTags() []language.Tag {
	tags := make([]language.Tag, len(supportedTags))
	copy(tags, supportedTags)
	return tags
}

// DefaultTag returns the default language tag.
func DefaultTag() language.Tag {
	return supportedTags[0]
}

// ParseTag parses value into a supported tag. The bool reports whether the
// value matched a supported language.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTag(), false
	}
	parsed, err := language.Parse(value)
	if err != nil {
		return DefaultTag(), false
	}
	_, index, confidence := matcher.Match(parsed)
	if confidence == language.No {
		return DefaultTag(), false
	}
	return supportedTags[index], true
}

// MatchTags returns the best supported tag for the preferred tags.
func MatchTags(preferred []language.Tag) language.Tag {
	if len(preferred) == 0 {
		return DefaultTag()
	}
	_, index, confidence := matcher.Match(preferred...)
	if confidence == language.No {
		return DefaultTag()
	}
	return supportedTags[index]
}

// NormalizeTag coerces unknown tags to the default supported language.
func NormalizeTag(value string) language.Tag {
	if tag, ok := ParseTag(value); ok {
		return tag
	}
	return DefaultTag()
}
