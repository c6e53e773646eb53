// SPDX-License-Identifier: MIT

package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveQueryWins(t *testing.T) {
	l := Resolve("de-DE", "fr-FR,fr;q=0.9")
	assert.Equal(t, Locale{Lang: "de", Region: "DE"}, l)
	assert.Equal(t, "de-DE", l.Tag())
}

func TestResolveAcceptLanguageFirstTagOnly(t *testing.T) {
	l := Resolve("", "fr-CA,en;q=0.8,de;q=0.5")
	assert.Equal(t, Locale{Lang: "fr", Region: "CA"}, l)

	l = Resolve("", "it;q=0.7")
	assert.Equal(t, Locale{Lang: "it"}, l)
}

func TestResolveDefaultsToEnglish(t *testing.T) {
	assert.Equal(t, Default, Resolve("", ""))
	assert.Equal(t, Default, Resolve("  ", ""))
}

func TestSplitVariants(t *testing.T) {
	cases := []struct {
		in   string
		want Locale
	}{
		{"de", Locale{Lang: "de"}},
		{"de-DE", Locale{Lang: "de", Region: "DE"}},
		{"de_DE", Locale{Lang: "de", Region: "DE"}},
		{"DE-de", Locale{Lang: "de", Region: "DE"}},
		{"pt-br", Locale{Lang: "pt", Region: "BR"}},
		{"-US", Locale{Lang: "en", Region: "US"}},
		{"", Default},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Split(tc.in), "input %q", tc.in)
	}
}

func TestTagWithoutRegion(t *testing.T) {
	assert.Equal(t, "ja", Locale{Lang: "ja"}.Tag())
}
