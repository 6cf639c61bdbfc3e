package providers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips query", "https://eltiempo.com/nota?utm_source=tw", "https://eltiempo.com/nota"},
		{"strips fragment", "https://eltiempo.com/nota#comentarios", "https://eltiempo.com/nota"},
		{"strips trailing slash", "https://eltiempo.com/seccion/nota/", "https://eltiempo.com/seccion/nota"},
		{"keeps root slash", "https://eltiempo.com/", "https://eltiempo.com/"},
		{"preserves scheme host path", "http://m.semana.com/a/b", "http://m.semana.com/a/b"},
		{"trims whitespace", "  https://eltiempo.com/nota  ", "https://eltiempo.com/nota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalURLIsIdempotent(t *testing.T) {
	once, err := CanonicalURL("https://eltiempo.com/nota/?x=1#f")
	require.NoError(t, err)
	twice, err := CanonicalURL(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestCanonicalURLRejects(t *testing.T) {
	for _, in := range []string{"", "ftp://example.com/x", "not a url", "/relative/path"} {
		_, err := CanonicalURL(in)
		assert.Error(t, err, in)
	}
}

func TestFinalizeRequiredFields(t *testing.T) {
	a := NormalizedArticle{Title: "  ", CanonicalURL: "https://x.co/a"}
	assert.Error(t, Finalize(&a))

	a = NormalizedArticle{Title: "Titular", CanonicalURL: "nope"}
	assert.Error(t, Finalize(&a))

	a = NormalizedArticle{Title: " Titular ", CanonicalURL: "https://x.co/a?q=1"}
	require.NoError(t, Finalize(&a))
	assert.Equal(t, "Titular", a.Title)
	assert.Equal(t, "https://x.co/a", a.CanonicalURL)
	assert.Equal(t, "news", a.SourceType)
}

func TestFinalizeCapsLengths(t *testing.T) {
	a := NormalizedArticle{
		Title:        strings.Repeat("t", 600),
		Summary:      strings.Repeat("s", 3000),
		Content:      strings.Repeat("c", 20000),
		CanonicalURL: "https://x.co/a",
	}
	require.NoError(t, Finalize(&a))
	assert.Len(t, a.Title, 500)
	assert.Len(t, a.Summary, 2000)
	assert.Len(t, a.Content, 16000)
}

func TestCapStringRuneBoundary(t *testing.T) {
	// "ñ" is two bytes; the cap must not split it.
	s := capString(strings.Repeat("ñ", 10), 5)
	assert.Equal(t, strings.Repeat("ñ", 2), s)
}

func TestParseTime(t *testing.T) {
	assert.NotNil(t, parseTime("2026-08-20T10:30:00Z"))
	assert.NotNil(t, parseTime("2026-08-20 10:30:00"))
	assert.NotNil(t, parseTime("20260820T103000Z"))
	assert.NotNil(t, parseTime("2026-08-20"))
	assert.Nil(t, parseTime(""))
	assert.Nil(t, parseTime("ayer"))
}
