package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestDefaultTagIsEnglish(t *testing.T) {
	t.Parallel()

	if DefaultTag() != language.English {
		t.Fatalf("default tag = %v, want %v", DefaultTag(), language.English)
	}
}

func TestParseTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  language.Tag
		ok    bool
	}{
		{name: "exact", value: "fr", want: language.French, ok: true},
		{name: "region variant", value: "fr-CA", want: language.French, ok: true},
		{name: "brazilian portuguese", value: "pt-BR", want: language.BrazilianPortuguese, ok: true},
		{name: "empty", value: "", want: language.English, ok: false},
		{name: "garbage", value: "!!", want: language.English, ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseTag(tc.value)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("tag = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMatchTagsPrefersFirstSupported(t *testing.T) {
	t.Parallel()

	preferred := []language.Tag{language.Japanese, language.Spanish}
	if got := MatchTags(preferred); got != language.Spanish {
		t.Fatalf("match = %v, want %v", got, language.Spanish)
	}
}

func TestMatchTagsEmptyFallsBack(t *testing.T) {
	t.Parallel()

	if got := MatchTags(nil); got != language.English {
		t.Fatalf("match = %v, want %v", got, language.English)
	}
}

func TestNormalizeTag(t *testing.T) {
	t.Parallel()

	if got := NormalizeTag("de"); got != language.German {
		t.Fatalf("normalize = %v, want %v", got, language.German)
	}
	if got := NormalizeTag("zz-ZZ"); got != language.English {
		t.Fatalf("normalize fallback = %v, want %v", got, language.English)
	}
}
