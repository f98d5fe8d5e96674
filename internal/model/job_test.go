package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusInProgress.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestDecodeSearchInput_Object(t *testing.T) {
	in := DecodeSearchInput(`{"terms_text":"болты","hints":["опт"]}`)
	assert.Equal(t, "болты", in.TermsText)
	assert.Equal(t, []string{"опт"}, in.Hints)
}

func TestDecodeSearchInput_RawText(t *testing.T) {
	in := DecodeSearchInput("Нужно 500 болтов DIN 933")
	assert.Equal(t, "Нужно 500 болтов DIN 933", in.TermsText)
	assert.Empty(t, in.Hints)
}

func TestDecodeSearchInput_Null(t *testing.T) {
	// JSON null parses but is not an object; keep it as raw text.
	in := DecodeSearchInput("null")
	assert.Equal(t, "null", in.TermsText)
}

func TestSearchInputRoundTrip(t *testing.T) {
	orig := SearchInput{TermsText: "трубы стальные", Hints: []string{"гост", "опт"}}
	decoded := DecodeSearchInput(orig.Encode())
	assert.Equal(t, orig, decoded)
}

func TestNormalizeWebsite(t *testing.T) {
	assert.Equal(t, "https://zavod.ru", NormalizeWebsite("https://zavod.ru/"))
	assert.Equal(t, "https://zavod.ru", NormalizeWebsite("  https://zavod.ru  "))
	assert.Equal(t, "https://zavod.ru", NormalizeWebsite("https://zavod.ru"))
	assert.Equal(t, "", NormalizeWebsite("/"))
}
