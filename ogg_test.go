package tagscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lacingTable(n int) []byte {
	var lac []byte

	for n >= 255 {
		lac = append(lac, 255)
		n -= 255
	}

	lac = append(lac, byte(n))

	return lac
}

// buildOggPage constructs a single Ogg page carrying one complete packet.
func buildOggPage(granule int64, serial, seq uint32, packet []byte) []byte {
	lacing := lacingTable(len(packet))

	out := []byte(oggPageMagic)
	out = append(out, 0, 0)            // version, header_type
	out = append(out, le64(uint64(granule))...)
	out = append(out, le32(serial)...)
	out = append(out, le32(seq)...)
	out = append(out, le32(0)...) // crc, unchecked by the reader
	out = append(out, byte(len(lacing)))
	out = append(out, lacing...)
	out = append(out, packet...)

	return out
}

func vorbisIdentPacket(channels byte, sampleRate uint32) []byte {
	return vorbisIdentPacketWithBitrate(channels, sampleRate, 0)
}

func vorbisIdentPacketWithBitrate(channels byte, sampleRate, nominalBitrate uint32) []byte {
	p := []byte("\x01vorbis")
	p = append(p, 0, 0, 0, 0) // vorbis_version
	p = append(p, channels)
	p = append(p, le32(sampleRate)...)
	p = append(p, le32(0)...)              // bitrate_maximum
	p = append(p, le32(nominalBitrate)...) // bitrate_nominal
	p = append(p, le32(0)...)              // bitrate_minimum

	return p
}

func buildVorbisCommentBlock(vendor string, entries []string) []byte {
	out := le32(uint32(len(vendor)))
	out = append(out, []byte(vendor)...)
	out = append(out, le32(uint32(len(entries)))...)

	for _, e := range entries {
		out = append(out, le32(uint32(len(e)))...)
		out = append(out, []byte(e)...)
	}

	return out
}

func TestParseVorbisCommentBasic(t *testing.T) {
	t.Parallel()

	block := buildVorbisCommentBlock("tagscan-test", []string{
		"TITLE=My Song",
		"ARTIST=My Artist",
		"TRACKNUMBER=3/10",
		"BPM=120",
	})

	tag := NewTag()
	require.NoError(t, parseVorbisComment(block, tag, DefaultOptions()))

	assert.Equal(t, "My Song", tag.Title)
	assert.Equal(t, "My Artist", tag.Artist)
	assert.Equal(t, 3, tag.Track)
	assert.Equal(t, 10, tag.TrackTotal)
	assert.Equal(t, []string{"120"}, tag.Other["bpm"])
}

func TestParseVorbisCommentTruncated(t *testing.T) {
	t.Parallel()

	tag := NewTag()
	err := parseVorbisComment([]byte{1, 2}, tag, DefaultOptions())
	require.Error(t, err)
}

func TestParseVorbisCommentSkipsEmptyValues(t *testing.T) {
	t.Parallel()

	block := buildVorbisCommentBlock("v", []string{"TITLE="})

	tag := NewTag()
	require.NoError(t, parseVorbisComment(block, tag, DefaultOptions()))
	assert.Empty(t, tag.Title)
}

func TestApplyVorbisCommentEntryMusicBrainzKey(t *testing.T) {
	t.Parallel()

	tag := NewTag()
	applyVorbisCommentEntry(tag, "MUSICBRAINZ_ALBUMID=abc-123", DefaultOptions())

	assert.Equal(t, []string{"abc-123"}, tag.Other["musicbrainz_albumid"])
}

func TestDetectOggCodec(t *testing.T) {
	t.Parallel()

	codec, ok := detectOggCodec(vorbisIdentPacket(2, 44100))
	require.True(t, ok)
	assert.Equal(t, oggCodecVorbis, codec)

	codec, ok = detectOggCodec(append([]byte("OpusHead"), 1, 2, 0xC0, 0x5D))
	require.True(t, ok)
	assert.Equal(t, oggCodecOpus, codec)

	_, ok = detectOggCodec([]byte("garbage"))
	assert.False(t, ok)
}

func TestOggParserParseTagVorbis(t *testing.T) {
	t.Parallel()

	ident := vorbisIdentPacket(2, 44100)
	comment := append([]byte("\x03vorbis"), buildVorbisCommentBlock("libvorbis", []string{"TITLE=Ogg Title", "ARTIST=Ogg Artist"})...)

	data := cat(
		buildOggPage(0, 1, 0, ident),
		buildOggPage(0, 1, 1, comment),
	)
	r := newByteReaderFromBytes(data)

	tag := NewTag()
	p := oggParser{}
	require.NoError(t, p.parseTag(r, tag, DefaultOptions()))

	assert.Equal(t, 2, tag.Channels)
	assert.Equal(t, 44100, tag.SampleRate)
	assert.Equal(t, "Ogg Title", tag.Title)
	assert.Equal(t, "Ogg Artist", tag.Artist)
}

func TestOggParserParseTagUnknownCodec(t *testing.T) {
	t.Parallel()

	data := buildOggPage(0, 1, 0, []byte("not a recognized codec header"))
	r := newByteReaderFromBytes(data)

	tag := NewTag()
	p := oggParser{}
	err := p.parseTag(r, tag, DefaultOptions())
	require.Error(t, err)
}

func TestOggPacketReaderReassemblesMultiPagePacket(t *testing.T) {
	t.Parallel()

	packet := make([]byte, 600) // spans more than one 255-byte lacing segment
	for i := range packet {
		packet[i] = byte(i)
	}

	// The first page carries 255 bytes under a final lacing value of 255,
	// so the packet continues on the second page.
	firstPage := cat([]byte(oggPageMagic), []byte{0, 0}, le64(0), le32(1), le32(0), le32(0), []byte{1, 255}, packet[:255])
	data := cat(firstPage, buildOggPage(0, 1, 1, packet[255:]))
	r := newByteReaderFromBytes(data)

	pr := newOggPacketReader(r)
	got, ok, err := pr.next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, packet, got)
}

func TestScanLastGranule(t *testing.T) {
	t.Parallel()

	page1 := buildOggPage(1000, 1, 0, []byte("first packet padding......."))
	page2 := buildOggPage(5000, 1, 1, []byte("second packet"))
	data := cat(page1, page2)

	r := newByteReaderFromBytes(data)
	granule, ok := scanLastGranule(r)
	require.True(t, ok)
	assert.Equal(t, int64(5000), granule)
}

func TestApplyVorbisIdentPacketNominalBitrate(t *testing.T) {
	t.Parallel()

	tag := NewTag()
	applyVorbisIdentPacket(vorbisIdentPacketWithBitrate(2, 44100, 160000), tag)

	assert.Equal(t, 2, tag.Channels)
	assert.Equal(t, 44100, tag.SampleRate)
	assert.InDelta(t, 160.0, tag.Bitrate, 0.001)
}

func TestApplyVorbisIdentPacketZeroBitrateLeftUnset(t *testing.T) {
	t.Parallel()

	tag := NewTag()
	applyVorbisIdentPacket(vorbisIdentPacket(2, 44100), tag)

	assert.Zero(t, tag.Bitrate)
}

func TestScanMaxGranuleFromStart(t *testing.T) {
	t.Parallel()

	page1 := buildOggPage(1000, 1, 0, []byte("first packet padding......."))
	page2 := buildOggPage(5000, 1, 1, []byte("second packet"))
	data := cat(page1, page2)

	r := newByteReaderFromBytes(data)
	granule, ok := scanMaxGranuleFromStart(r)
	require.True(t, ok)
	assert.Equal(t, int64(5000), granule)
}

func TestOggParserDetermineDurationSmallOpusFile(t *testing.T) {
	t.Parallel()

	// A small Opus file (well under oggMaxPageSize, like a real-world
	// test.opus) must still compute a duration: determineDuration has to
	// scan pages from the start rather than bail out because there's no
	// EOF region worth scanning backward from.
	head := append([]byte("OpusHead"), 1, 2, 0xC0, 0x5D)
	head = append(head, make([]byte, 8)...)
	tags := append([]byte("OpusTags"), buildVorbisCommentBlock("libopus", nil)...)

	const sampleCount = 47680 // ~0.9935s at 48kHz

	data := cat(
		buildOggPage(0, 1, 0, head),
		buildOggPage(0, 1, 1, tags),
		buildOggPage(sampleCount, 1, 2, []byte("audio")),
	)
	require.LessOrEqual(t, len(data), oggMaxPageSize)

	r := newByteReaderFromBytes(data)

	tag := NewTag()
	p := oggParser{}
	require.NoError(t, p.parseTag(r, tag, DefaultOptions()))
	require.NoError(t, p.determineDuration(r, tag, DefaultOptions()))

	assert.InDelta(t, float64(sampleCount)/48000, tag.Duration, 0.001)
}

func TestOggParserDetermineDurationVorbis(t *testing.T) {
	t.Parallel()

	ident := vorbisIdentPacket(2, 48000)
	comment := append([]byte("\x03vorbis"), buildVorbisCommentBlock("libvorbis", nil)...)

	pages := cat(
		buildOggPage(0, 1, 0, ident),
		buildOggPage(0, 1, 1, comment),
	)
	// Pad past oggMaxPageSize so determineDuration's scan-back kicks in.
	padding := make([]byte, oggMaxPageSize+100)
	finalPage := buildOggPage(96000, 1, 2, []byte("audio"))

	data := cat(pages, padding, finalPage)
	r := newByteReaderFromBytes(data)

	tag := NewTag()
	p := oggParser{}
	require.NoError(t, p.parseTag(r, tag, DefaultOptions()))
	require.NoError(t, p.determineDuration(r, tag, DefaultOptions()))

	assert.InDelta(t, 2.0, tag.Duration, 0.001)
}
