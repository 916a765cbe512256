package domain

// LocalizedText holds the free-text attributes of a step or field in one
// language.
type LocalizedText struct {
	Label       string
	Description string
	Hint        string
}

// LocalizedStrings maps a language tag to that language's free text.
type LocalizedStrings map[string]LocalizedText

// TextInput carries the request-language values for localized attributes.
// A nil field was not supplied and leaves the stored value untouched.
type TextInput struct {
	Label       *string
	Description *string
	Hint        *string
}

// MergeText overlays the supplied attributes of in onto existing. Attributes
// not supplied keep their existing values. It never fails.
func MergeText(existing LocalizedText, in TextInput) LocalizedText {
	if in.Label != nil {
		existing.Label = *in.Label
	}
	if in.Description != nil {
		existing.Description = *in.Description
	}
	if in.Hint != nil {
		existing.Hint = *in.Hint
	}
	return existing
}

// Merge stores the supplied attributes under lang, preserving every other
// language's entry. It returns the map so callers can merge into a nil map.
func (ls LocalizedStrings) Merge(lang string, in TextInput) LocalizedStrings {
	if ls == nil {
		ls = LocalizedStrings{}
	}
	ls[lang] = MergeText(ls[lang], in)
	return ls
}

// Localize returns the entry for lang, falling back to the fallback language
// when no entry for lang is stored.
func (ls LocalizedStrings) Localize(lang, fallback string) LocalizedText {
	if text, ok := ls[lang]; ok {
		return text
	}
	return ls[fallback]
}

// Clone returns an independent copy of the localized strings.
func (ls LocalizedStrings) Clone() LocalizedStrings {
	if ls == nil {
		return nil
	}
	clone := make(LocalizedStrings, len(ls))
	for lang, text := range ls {
		clone[lang] = text
	}
	return clone
}
