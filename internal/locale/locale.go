// SPDX-License-Identifier: MIT

// Package locale resolves the request locale from the lang query parameter
// or, failing that, the Accept-Language header.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale is a parsed language selector. Lang is always a lowercase
// two-letter-style code, Region an uppercase country code or empty.
type Locale struct {
	Lang   string
	Region string
}

// Default is the fallback locale when nothing usable is supplied.
var Default = Locale{Lang: "en"}

// Tag renders the provider-facing language tag, "de-DE" or plain "de".
func (l Locale) Tag() string {
	if l.Region != "" {
		return l.Lang + "-" + l.Region
	}
	return l.Lang
}

// Resolve picks the locale: explicit query value first, then the first tag
// of the Accept-Language header, then English.
func Resolve(query, acceptLanguage string) Locale {
	if v := strings.TrimSpace(query); v != "" {
		return Split(v)
	}
	return fromAcceptLanguage(acceptLanguage)
}

// Split parses a "de-DE" / "de_DE" / "de" style tag. Unusable input yields
// the default. Region-only fragments keep the English language side.
func Split(s string) Locale {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default
	}
	s = strings.ReplaceAll(s, "_", "-")
	if lang, region, ok := strings.Cut(s, "-"); ok {
		l := Locale{
			Lang:   strings.ToLower(strings.TrimSpace(lang)),
			Region: strings.ToUpper(strings.TrimSpace(region)),
		}
		if l.Lang == "" {
			l.Lang = "en"
		}
		return l
	}
	return Locale{Lang: strings.ToLower(s)}
}

// fromAcceptLanguage takes only the first tag of the header. The full
// q-weighted list is intentionally ignored; clients that care send lang=.
func fromAcceptLanguage(header string) Locale {
	if header == "" {
		return Default
	}
	first := header
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimSpace(first)
	if first == "" {
		return Default
	}
	// Prefer the BCP 47 parser so three-letter and script-carrying tags
	// normalize sensibly, but keep the raw split as fallback for values
	// the parser rejects.
	if tag, err := language.Parse(first); err == nil {
		base, confB := tag.Base()
		region, confR := tag.Region()
		l := Locale{Lang: strings.ToLower(base.String())}
		if confB == language.No {
			return Split(first)
		}
		if confR >= language.High && region.IsCountry() {
			l.Region = strings.ToUpper(region.String())
		}
		return l
	}
	return Split(first)
}
