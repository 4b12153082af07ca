// ABOUTME: Tests for language matching and placeholder rendering
// ABOUTME: Also checks every translated key exists in the English catalog

package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		code string
		want language.Tag
	}{
		{"", language.English},
		{"en", language.English},
		{"de", language.German},
		{"de-AT", language.German},
		{"fr-CA", language.French},
		{"he", language.Hebrew},
		{"ar-EG", language.Arabic},
		{"ru", language.Russian},
		{"ja", language.English},
		{"not a tag!", language.English},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.code))
		})
	}
}

func TestPrinter_Placeholders(t *testing.T) {
	p := For("en")
	msg := p.T(AuthOtpSent, "email", "a@b.com", "minutes", "10")
	assert.Contains(t, msg, "**a@b.com**")
	assert.Contains(t, msg, "valid for 10 minutes")
	assert.NotContains(t, msg, "{{")
}

func TestPrinter_FallsBackToEnglish(t *testing.T) {
	de := For("de")
	assert.Equal(t, english[CredentialTransient], de.T(CredentialTransient))
	assert.Equal(t, german[ErrorProcessing], de.T(ErrorProcessing))
}

func TestPrinter_UnknownKey(t *testing.T) {
	assert.Equal(t, "no.such.key", For("en").T(Key("no.such.key")))
}

func TestCatalogsOnlyUseKnownKeys(t *testing.T) {
	for tag, catalog := range catalogs {
		for key := range catalog {
			_, ok := english[key]
			assert.True(t, ok, "%s has key %q missing from english", tag, key)
		}
	}
}
