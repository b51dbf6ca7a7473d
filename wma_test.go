package tagscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asfObject(id asfGUID, payload []byte) []byte {
	return cat(id[:], le64(uint64(24+len(payload))), payload)
}

func buildAsfFile(objects ...[]byte) []byte {
	body := cat(objects...)
	headerSize := uint64(30 + len(body))

	header := cat(
		asfHeaderObjectGUID[:],
		le64(headerSize),
		le32(uint32(len(objects))),
		[]byte{1, 2},
	)

	return cat(header, body)
}

func asfContentDescriptionPayload(title, author string) []byte {
	titleRaw := utf16le(title)
	authorRaw := utf16le(author)

	lens := cat(
		le16(uint16(len(titleRaw))),
		le16(uint16(len(authorRaw))),
		le16(0),
		le16(0),
		le16(0),
	)

	return cat(lens, titleRaw, authorRaw)
}

func asfExtendedDescriptorEntry(name, value string) []byte {
	nameRaw := utf16le(name)
	valueRaw := utf16le(value)

	return cat(
		le16(uint16(len(nameRaw))), nameRaw,
		le16(0), // valueType: string
		le16(uint16(len(valueRaw))), valueRaw,
	)
}

func asfExtendedContentDescriptionPayload(entries ...[]byte) []byte {
	return cat(le16(uint16(len(entries))), cat(entries...))
}

func asfFilePropertiesPayload(playDuration100ns, prerollMs uint64) []byte {
	out := make([]byte, 40)
	out = append(out, le64(playDuration100ns)...)
	out = append(out, le64(prerollMs)...)

	return out
}

func asfStreamPropertiesAudioPayload(codecTag, channels uint16, sampleRate, avgBytesPerSec uint32, bitsPerSample uint16) []byte {
	header := make([]byte, 54)
	copy(header[0:16], asfAudioMediaGUID[:])

	audio := cat(
		le16(codecTag),
		le16(channels),
		le32(sampleRate),
		le32(avgBytesPerSec),
		le16(0), // block align
		le16(bitsPerSample),
	)

	return cat(header, audio)
}

func TestWmaParserParseTagAndDuration(t *testing.T) {
	t.Parallel()

	data := buildAsfFile(
		asfObject(asfContentDescriptionGUID, asfContentDescriptionPayload("Wma Title", "Wma Artist")),
		asfObject(asfExtendedContentDescriptionGUID, asfExtendedContentDescriptionPayload(
			asfExtendedDescriptorEntry("WM/AlbumTitle", "Wma Album"),
			asfExtendedDescriptorEntry("WM/Genre", "Rock"),
		)),
		asfObject(asfFilePropertiesGUID, asfFilePropertiesPayload(50_000_000, 0)), // 5.0s
		asfObject(asfStreamPropertiesGUID, asfStreamPropertiesAudioPayload(355, 2, 44100, 22050, 16)),
	)
	r := newByteReaderFromBytes(data)

	tag := NewTag()
	p := wmaParser{}
	require.NoError(t, p.parseTag(r, tag, DefaultOptions()))
	require.NoError(t, p.determineDuration(r, tag, DefaultOptions()))

	assert.Equal(t, "Wma Title", tag.Title)
	assert.Equal(t, "Wma Artist", tag.Artist)
	assert.Equal(t, "Wma Album", tag.Album)
	assert.Equal(t, "Rock", tag.Genre)
	assert.Equal(t, 2, tag.Channels)
	assert.Equal(t, 44100, tag.SampleRate)
	assert.Equal(t, 16, tag.BitDepth) // codec tag 355 is WMA Lossless
	assert.InDelta(t, 5.0, tag.Duration, 0.0001)
	assert.InDelta(t, 176.4, tag.Bitrate, 0.01)
}

func TestWmaParserBadMagic(t *testing.T) {
	t.Parallel()

	r := newByteReaderFromBytes([]byte("not an asf header at all....."))

	tag := NewTag()
	p := wmaParser{}
	err := p.parseTag(r, tag, DefaultOptions())
	require.Error(t, err)
}

func TestApplyAsfContentDescriptionSkipsEmptyFields(t *testing.T) {
	t.Parallel()

	payload := asfContentDescriptionPayload("Only Title", "")

	tag := NewTag()
	applyAsfContentDescription(payload, tag)

	assert.Equal(t, "Only Title", tag.Title)
	assert.Empty(t, tag.Artist)
}

func TestApplyAsfWMFieldTrackAndDisc(t *testing.T) {
	t.Parallel()

	tag := NewTag()
	applyAsfWMField(tag, "WM/TrackNumber", "7", DefaultOptions())
	applyAsfWMField(tag, "WM/PartOfSet", "1/2", DefaultOptions())

	assert.Equal(t, 7, tag.Track)
	assert.Equal(t, 1, tag.Disc)
	assert.Equal(t, 2, tag.DiscTotal)
}

func TestApplyAsfWMFieldUnknownGoesToOther(t *testing.T) {
	t.Parallel()

	tag := NewTag()
	applyAsfWMField(tag, "WM/Mood", "Energetic", DefaultOptions())

	assert.Equal(t, []string{"Energetic"}, tag.Other["mood"])
}

func TestStripWMPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Mood", stripWMPrefix("WM/Mood"))
	assert.Equal(t, "NoPrefix", stripWMPrefix("NoPrefix"))
}

func TestDecodeAsfDescriptorValue(t *testing.T) {
	t.Parallel()

	s, ok := decodeAsfDescriptorValue(utf16le("hello"), 0)
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	_, ok = decodeAsfDescriptorValue([]byte{1, 2, 3}, 1)
	assert.False(t, ok)

	n, ok := decodeAsfDescriptorValue(le32(42), 3)
	require.True(t, ok)
	assert.Equal(t, "42", n)

	_, ok = decodeAsfDescriptorValue(nil, 99)
	assert.False(t, ok)
}

func TestDecodeAsfLEUint(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 5, decodeAsfLEUint([]byte{5}))
	assert.EqualValues(t, 300, decodeAsfLEUint(le16(300)))
	assert.EqualValues(t, 70000, decodeAsfLEUint(le32(70000)))
	assert.EqualValues(t, 0, decodeAsfLEUint([]byte{1, 2, 3}))
}

func TestApplyAsfFilePropertiesFloorsAtZero(t *testing.T) {
	t.Parallel()

	tag := NewTag()
	applyAsfFileProperties(asfFilePropertiesPayload(1000, 10_000), tag)

	assert.Zero(t, tag.Duration)
}

func TestApplyAsfStreamPropertiesIgnoresNonAudio(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 70)

	tag := NewTag()
	applyAsfStreamProperties(payload, tag)

	assert.Zero(t, tag.Channels)
}
