package tagscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildID3v1Trailer(title, artist, album, year, comment string, track, genre byte) []byte {
	field := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)

		return b
	}

	out := []byte("TAG")
	out = append(out, field(title, 30)...)
	out = append(out, field(artist, 30)...)
	out = append(out, field(album, 30)...)
	out = append(out, field(year, 4)...)

	comm := field(comment, 28)
	out = append(out, comm...)
	out = append(out, 0, track)
	out = append(out, genre)

	return out
}

func TestParseID3v1Basic(t *testing.T) {
	t.Parallel()

	trailer := buildID3v1Trailer("Title", "Artist", "Album", "1999", "Comment", 5, 17)
	audio := make([]byte, 100)
	r := newByteReaderFromBytes(append(audio, trailer...))

	tag := NewTag()
	err := parseID3v1(r, tag, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "Title", tag.Title)
	assert.Equal(t, "Artist", tag.Artist)
	assert.Equal(t, "Album", tag.Album)
	assert.Equal(t, "1999", tag.Year)
	assert.Equal(t, "Comment", tag.Comment)
	assert.Equal(t, 5, tag.Track)
	assert.Equal(t, "Rock", tag.Genre)
}

func TestParseID3v1NoTrack(t *testing.T) {
	t.Parallel()

	comment := make([]byte, 28)
	copy(comment, "Full comment without track!")
	out := []byte("TAG")
	pad := func(s string, n int) []byte {
		b := make([]byte, n)
		copy(b, s)

		return b
	}
	out = append(out, pad("T", 30)...)
	out = append(out, pad("A", 30)...)
	out = append(out, pad("Al", 30)...)
	out = append(out, pad("2020", 4)...)
	out = append(out, comment...)
	out = append(out, 1, 0) // comment byte 28 non-NUL: no ID3v1.1 track
	out = append(out, 0xFF) // genre index outside the table

	r := newByteReaderFromBytes(append(make([]byte, 100), out...))

	tag := NewTag()
	err := parseID3v1(r, tag, DefaultOptions())
	require.NoError(t, err)

	assert.Zero(t, tag.Track)
	_, hasGenre := tag.Other["genre"]
	assert.False(t, hasGenre)
	assert.Empty(t, tag.Genre)
}

func TestParseID3v1MissingMagicIsNoop(t *testing.T) {
	t.Parallel()

	bad := make([]byte, id3v1TrailerLen)
	copy(bad, "NOT")
	r := newByteReaderFromBytes(append(make([]byte, 100), bad...))

	tag := NewTag()
	err := parseID3v1(r, tag, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, tag.Title)
}

func TestParseID3v1TooSmallIsNoop(t *testing.T) {
	t.Parallel()

	r := newByteReaderFromBytes(make([]byte, 10))

	tag := NewTag()
	err := parseID3v1(r, tag, DefaultOptions())
	require.NoError(t, err)
}
