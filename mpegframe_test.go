package tagscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp3FrameHeaderMPEG1L3 is a standard MPEG1 Layer III, 128kbps, 44100Hz,
// stereo, no-CRC frame header: FF FB 90 00.
var mp3FrameHeaderMPEG1L3 = []byte{0xFF, 0xFB, 0x90, 0x00}

const mp3FrameSizeMPEG1L3 = 417 // 144*128*1000/44100, rounded down

func buildMP3Frame(size int) []byte {
	frame := make([]byte, size)
	copy(frame, mp3FrameHeaderMPEG1L3)

	return frame
}

func TestDecodeMPEGFrameHeader(t *testing.T) {
	t.Parallel()

	h, ok := decodeMPEGFrameHeader(mp3FrameHeaderMPEG1L3)
	require.True(t, ok)

	assert.Equal(t, mpegVersion1, h.Version)
	assert.Equal(t, layerIII, h.Layer)
	assert.Equal(t, 128, h.Bitrate)
	assert.Equal(t, 44100, h.SampleRate)
	assert.Equal(t, 2, h.Channels)
	assert.Equal(t, mp3FrameSizeMPEG1L3, h.FrameSize)
}

func TestDecodeMPEGFrameHeaderRejectsBadSync(t *testing.T) {
	t.Parallel()

	_, ok := decodeMPEGFrameHeader([]byte{0x00, 0x00, 0x00, 0x00})
	assert.False(t, ok)
}

func TestDecodeMPEGFrameHeaderRejectsReservedBitrate(t *testing.T) {
	t.Parallel()

	b := []byte{0xFF, 0xFB, 0xF0, 0x00} // bitrate index 0xF = bad
	_, ok := decodeMPEGFrameHeader(b)
	assert.False(t, ok)
}

func TestDecodeMPEGFrameHeaderMonoChannel(t *testing.T) {
	t.Parallel()

	b := []byte{0xFF, 0xFB, 0x90, 0xC0} // channel mode 3 = mono
	h, ok := decodeMPEGFrameHeader(b)
	require.True(t, ok)
	assert.Equal(t, 1, h.Channels)
}

func TestFindFrameSyncSkipsJunk(t *testing.T) {
	t.Parallel()

	junk := []byte{0x00, 0x11, 0x22, 0x33, 0x44}
	data := append(append([]byte{}, junk...), mp3FrameHeaderMPEG1L3...)
	r := newByteReaderFromBytes(data)

	header, offset, ok := findFrameSync(r)
	require.True(t, ok)
	assert.Equal(t, int64(len(junk)), offset)
	assert.Equal(t, mp3FrameHeaderMPEG1L3, header[:])
}

func TestFindFrameSyncNoMatchReturnsFalse(t *testing.T) {
	t.Parallel()

	r := newByteReaderFromBytes([]byte{0x00, 0x01, 0x02})
	_, _, ok := findFrameSync(r)
	assert.False(t, ok)
}

func TestDetermineMPEGDurationXingFastPath(t *testing.T) {
	t.Parallel()

	const frames, totalBytes = 100, 1000000

	data := cat(
		mp3FrameHeaderMPEG1L3,
		[]byte("Xing"),
		be32(0x00000003),
		be32(frames),
		be32(totalBytes),
	)
	r := newByteReaderFromBytes(data)

	tag := NewTag()
	err := determineMPEGDuration(r, tag, 0, DefaultOptions())
	require.NoError(t, err)

	wantDuration := float64(frames) * 1152 / 44100
	assert.InDelta(t, wantDuration, tag.Duration, 0.001)
	assert.Equal(t, 2, tag.Channels)
	assert.Equal(t, 44100, tag.SampleRate)

	wantBitrate := 8 * float64(totalBytes) / wantDuration / 1000
	assert.InDelta(t, wantBitrate, tag.Bitrate, 0.01)
}

func TestDetermineMPEGDurationFrameWalkConstantBitrate(t *testing.T) {
	t.Parallel()

	const numFrames = 6

	var data []byte
	for i := 0; i < numFrames; i++ {
		data = append(data, buildMP3Frame(mp3FrameSizeMPEG1L3)...)
	}

	r := newByteReaderFromBytes(data)

	tag := NewTag()
	err := determineMPEGDuration(r, tag, 0, DefaultOptions())
	require.NoError(t, err)

	wantDuration := float64(numFrames) * 1152 / 44100
	assert.InDelta(t, wantDuration, tag.Duration, 0.001)
	assert.InDelta(t, 128, tag.Bitrate, 0.001)
}

func TestDetermineMPEGDurationVBRIFastPath(t *testing.T) {
	t.Parallel()

	const frames, totalBytes = 200, 2_000_000

	data := cat(
		mp3FrameHeaderMPEG1L3,
		make([]byte, 32), // VBRI sits at a fixed 32-byte offset into the frame payload
		[]byte("VBRI"),
		be16(1), be16(0), be16(0), // version, delay, quality
		be32(totalBytes),
		be32(frames),
	)
	r := newByteReaderFromBytes(data)

	tag := NewTag()
	err := determineMPEGDuration(r, tag, 0, DefaultOptions())
	require.NoError(t, err)

	wantDuration := float64(frames) * 1152 / 44100
	assert.InDelta(t, wantDuration, tag.Duration, 0.001)

	wantBitrate := 8 * float64(totalBytes) / wantDuration / 1000
	assert.InDelta(t, wantBitrate, tag.Bitrate, 0.01)
}

func TestHasTrailingID3v1(t *testing.T) {
	t.Parallel()

	withTag := cat(make([]byte, 200), buildID3v1Trailer("T", "A", "Al", "2000", "C", 0, 0))
	r := newByteReaderFromBytes(withTag)
	assert.True(t, hasTrailingID3v1(r))

	without := make([]byte, 200)
	r2 := newByteReaderFromBytes(without)
	assert.False(t, hasTrailingID3v1(r2))
}
