package tagscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenreFromIndex(t *testing.T) {
	t.Parallel()

	name, ok := genreFromIndex(0)
	assert.True(t, ok)
	assert.Equal(t, "Blues", name)

	name, ok = genreFromIndex(79)
	assert.True(t, ok)
	assert.Equal(t, "Hard Rock", name)

	_, ok = genreFromIndex(-1)
	assert.False(t, ok)

	_, ok = genreFromIndex(len(id3v1Genres))
	assert.False(t, ok)
}

func TestResolveID3Genre(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare index", raw: "17", want: "Rock"},
		{name: "parenthesized index", raw: "(17)", want: "Rock"},
		{name: "out of range falls back literal", raw: "(9001)", want: "(9001)"},
		{name: "non numeric passes through", raw: "Post-Rock", want: "Post-Rock"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, resolveID3Genre(tt.raw))
		})
	}
}

func TestParseGenreIndex(t *testing.T) {
	t.Parallel()

	n, ok := parseGenreIndex("(26)")
	assert.True(t, ok)
	assert.Equal(t, 26, n)

	n, ok = parseGenreIndex("26")
	assert.True(t, ok)
	assert.Equal(t, 26, n)

	_, ok = parseGenreIndex("Ambient")
	assert.False(t, ok)

	_, ok = parseGenreIndex("()")
	assert.False(t, ok)
}
