package tagscan

import "io"

// mpegVersion indexes the spec's fixed [mpeg_id] tables: 2.5=0, reserved=1,
// MPEG2=2, MPEG1=3 — the same order the 2-bit version field decodes to.
type mpegVersion int

const (
	mpegVersion2_5    mpegVersion = 0
	mpegVersionRsvd   mpegVersion = 1
	mpegVersion2      mpegVersion = 2
	mpegVersion1      mpegVersion = 3
)

// mpegLayer indexes the 2-bit layer field directly: 0=reserved, 1=LayerIII,
// 2=LayerII, 3=LayerI.
type mpegLayer int

const (
	layerReserved mpegLayer = 0
	layerIII      mpegLayer = 1
	layerII       mpegLayer = 2
	layerI        mpegLayer = 3
)

// bitrateTable is indexed [mpegVersion][mpegLayer][4-bit bitrate index] in
// kbps; 0 means "free", -1 means "bad" (reserved index).
var bitrateTable = buildBitrateTable()

func buildBitrateTable() [4][4][16]int {
	var t [4][4][16]int

	v1l1 := [16]int{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1}
	v1l2 := [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1}
	v1l3 := [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1}
	v2l1 := [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1}
	v2l23 := [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1}

	t[mpegVersion1][layerI] = v1l1
	t[mpegVersion1][layerII] = v1l2
	t[mpegVersion1][layerIII] = v1l3

	for _, v := range []mpegVersion{mpegVersion2, mpegVersion2_5} {
		t[v][layerI] = v2l1
		t[v][layerII] = v2l23
		t[v][layerIII] = v2l23
	}

	return t
}

// sampleRateTable is indexed [mpegVersion][2-bit sample rate index]; -1
// marks the reserved index.
var sampleRateTable = [4][4]int{
	mpegVersion2_5: {11025, 12000, 8000, -1},
	mpegVersion2:   {22050, 24000, 16000, -1},
	mpegVersion1:   {44100, 48000, 32000, -1},
}

func samplesPerFrame(v mpegVersion, l mpegLayer) int {
	switch l {
	case layerI:
		return 384
	case layerII:
		return 1152
	case layerIII:
		if v == mpegVersion1 {
			return 1152
		}

		return 576
	default:
		return 1152
	}
}

// mpegFrameHeader is a decoded 4-byte MPEG audio frame header.
type mpegFrameHeader struct {
	Version  mpegVersion
	Layer    mpegLayer
	Bitrate  int // kbps; 0 if free-format
	SampleRate int
	Padding  int
	Channels int
	FrameSize int
}

// decodeMPEGFrameHeader decodes 4 raw bytes into a frame header, returning
// ok=false for anything that doesn't look like a valid, non-reserved
// MPEG frame sync.
func decodeMPEGFrameHeader(b []byte) (mpegFrameHeader, bool) {
	if len(b) < 4 {
		return mpegFrameHeader{}, false
	}

	if b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return mpegFrameHeader{}, false
	}

	version := mpegVersion((b[1] >> 3) & 0x03)
	if version == mpegVersionRsvd {
		return mpegFrameHeader{}, false
	}

	layer := mpegLayer((b[1] >> 1) & 0x03)
	if layer == layerReserved {
		return mpegFrameHeader{}, false
	}

	brIdx := (b[2] >> 4) & 0x0F
	bitrate := bitrateTable[version][layer][brIdx]

	if bitrate < 0 {
		return mpegFrameHeader{}, false
	}

	srIdx := (b[2] >> 2) & 0x03
	sampleRate := sampleRateTable[version][srIdx]

	if sampleRate < 0 {
		return mpegFrameHeader{}, false
	}

	padding := int((b[2] >> 1) & 0x01)
	channelMode := (b[3] >> 6) & 0x03

	channels := 2
	if channelMode == 3 {
		channels = 1
	}

	h := mpegFrameHeader{
		Version:    version,
		Layer:      layer,
		Bitrate:    bitrate,
		SampleRate: sampleRate,
		Padding:    padding,
		Channels:   channels,
	}
	h.FrameSize = mpegFrameSize(h)

	return h, true
}

func mpegFrameSize(h mpegFrameHeader) int {
	if h.Bitrate <= 0 || h.SampleRate <= 0 {
		return 0
	}

	if h.Layer == layerI {
		return (12*h.Bitrate*1000/h.SampleRate + h.Padding) * 4
	}

	return 144*h.Bitrate*1000/h.SampleRate + h.Padding
}

// findFrameSync scans r for the next 11-bit sync pattern (0xFFE0 mask)
// starting at the current position, returning the 4-byte candidate header
// and its offset, or ok=false at EOF.
func findFrameSync(r ByteReader) ([4]byte, int64, bool) {
	var window [4]byte

	filled := 0

	for {
		b := make([]byte, 1)
		if _, err := io.ReadFull(r, b); err != nil {
			return window, 0, false
		}

		if filled < 4 {
			window[filled] = b[0]
			filled++
		} else {
			window[0], window[1], window[2], window[3] = window[1], window[2], window[3], b[0]
		}

		if filled == 4 && window[0] == 0xFF && window[1]&0xE0 == 0xE0 {
			return window, tell(r) - 4, true
		}
	}
}

const xingMaxEstimationFrames = 5

// determineMPEGDuration implements §4.3's duration estimation: a Xing/VBRI
// fast path when the first frame carries one, else a bounded frame walk
// extrapolated from either a declared CBR or an accumulated average.
func determineMPEGDuration(r ByteReader, tag *Tag, audioStart int64, opts Options) error {
	if _, err := r.Seek(audioStart, io.SeekStart); err != nil {
		return newParseError("mp3", audioStart, err)
	}

	header, offset, ok := findFrameSync(r)
	if !ok {
		return nil
	}

	fixedVersion := mpegVersion(-1)

	first, ok := decodeMPEGFrameHeader(header[:])
	if ok {
		fixedVersion = first.Version

		if vbr, handled := tryVBRHeader(r, first, offset); handled {
			applyVBRResult(tag, first, vbr)

			return nil
		}
	}

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return newParseError("mp3", offset, err)
	}

	return frameWalkDuration(r, tag, fixedVersion, opts)
}

type vbrResult struct {
	Frames int64
	Bytes  int64
}

// tryVBRHeader checks the first MPEG frame for a Xing/Info or VBRI VBR
// header and, if found, decodes its frame/byte counts.
func tryVBRHeader(r ByteReader, h mpegFrameHeader, frameOffset int64) (vbrResult, bool) {
	// Xing/Info is looked for immediately after the 4-byte frame header;
	// VBRI at a fixed 32-byte offset into the frame payload. Try both.
	if res, ok := tryXingHeader(r, frameOffset); ok {
		return res, true
	}

	if res, ok := tryVBRIHeader(r, frameOffset); ok {
		return res, true
	}

	return vbrResult{}, false
}

func tryXingHeader(r ByteReader, frameOffset int64) (vbrResult, bool) {
	if _, err := r.Seek(frameOffset+4, io.SeekStart); err != nil {
		return vbrResult{}, false
	}

	tag4, err := readExact(r, 4)
	if err != nil {
		return vbrResult{}, false
	}

	if string(tag4) != "Xing" && string(tag4) != "Info" {
		return vbrResult{}, false
	}

	flagsRaw, err := readExact(r, 4)
	if err != nil {
		return vbrResult{}, false
	}

	flags := beUint32(flagsRaw)

	var res vbrResult

	if flags&0x01 != 0 {
		b, err := readExact(r, 4)
		if err != nil {
			return vbrResult{}, false
		}

		res.Frames = int64(beUint32(b))
	}

	if flags&0x02 != 0 {
		b, err := readExact(r, 4)
		if err != nil {
			return vbrResult{}, false
		}

		res.Bytes = int64(beUint32(b))
	}

	if res.Frames == 0 && res.Bytes == 0 {
		return vbrResult{}, false
	}

	return res, true
}

// tryVBRIHeader decodes Fraunhofer's VBRI header, located at a fixed
// 32-byte offset into the first frame's payload (Xing is checked right
// after the frame header): "VBRI" version[2] delay[2] quality[2] bytes[4] frames[4] ...
func tryVBRIHeader(r ByteReader, frameOffset int64) (vbrResult, bool) {
	if _, err := r.Seek(frameOffset+4+32, io.SeekStart); err != nil {
		return vbrResult{}, false
	}

	tag4, err := readExact(r, 4)
	if err != nil || string(tag4) != "VBRI" {
		return vbrResult{}, false
	}

	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return vbrResult{}, false
	}

	bytesRaw, err := readExact(r, 4)
	if err != nil {
		return vbrResult{}, false
	}

	framesRaw, err := readExact(r, 4)
	if err != nil {
		return vbrResult{}, false
	}

	return vbrResult{Frames: int64(beUint32(framesRaw)), Bytes: int64(beUint32(bytesRaw))}, true
}

func applyVBRResult(tag *Tag, h mpegFrameHeader, vbr vbrResult) {
	if vbr.Frames <= 0 || h.SampleRate <= 0 {
		return
	}

	spf := samplesPerFrame(h.Version, h.Layer)
	duration := float64(vbr.Frames) * float64(spf) / float64(h.SampleRate)

	if duration <= 0 {
		return
	}

	tag.Duration = duration
	tag.SetInt(FieldChannels, h.Channels)
	tag.SetInt(FieldSampleRate, h.SampleRate)

	if vbr.Bytes > 0 {
		tag.Bitrate = 8 * float64(vbr.Bytes) / duration / 1000
	}
}

func frameWalkDuration(r ByteReader, tag *Tag, fixedVersion mpegVersion, opts Options) error {
	audioStart := tell(r)

	var (
		frames       int64
		totalBitrate int64
		firstHeader  mpegFrameHeader
		haveFirst    bool
		sameBitrate  = true
		lastBitrate  = -1
		maxFrames    = opts.estimationSeconds() * 50 // generous upper bound
	)

	pos := audioStart

	for frames < int64(maxFrames) {
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			break
		}

		raw, err := readExact(r, 4)
		if err != nil {
			break
		}

		h, ok := decodeMPEGFrameHeader(raw)
		if !ok || h.FrameSize <= 0 {
			pos++

			continue
		}

		if fixedVersion >= 0 && h.Version != fixedVersion {
			// A version switch mid-file is treated as corruption; stop
			// walking and report what has been accumulated so far.
			break
		}

		fixedVersion = h.Version

		if !haveFirst {
			firstHeader = h
			haveFirst = true
		}

		if lastBitrate >= 0 && lastBitrate != h.Bitrate {
			sameBitrate = false
		}

		lastBitrate = h.Bitrate

		totalBitrate += int64(h.Bitrate)
		frames++
		pos += int64(h.FrameSize)

		if pos >= r.Size() {
			break
		}
	}

	if !haveFirst || frames == 0 {
		return nil
	}

	tag.SetInt(FieldChannels, firstHeader.Channels)
	tag.SetInt(FieldSampleRate, firstHeader.SampleRate)

	spf := samplesPerFrame(firstHeader.Version, firstHeader.Layer)

	if sameBitrate && frames >= xingMaxEstimationFrames {
		avgFrameSize := firstHeader.FrameSize
		audioBytes := r.Size() - audioStart

		if hasTrailingID3v1(r) {
			audioBytes -= id3v1TrailerLen
		}

		if avgFrameSize > 0 {
			estFrames := audioBytes / int64(avgFrameSize)
			duration := float64(estFrames) * float64(spf) / float64(firstHeader.SampleRate)
			tag.Duration = duration
			tag.Bitrate = float64(firstHeader.Bitrate)

			return nil
		}
	}

	avgBitrate := float64(totalBitrate) / float64(frames)
	if avgBitrate <= 0 {
		return nil
	}

	audioBytes := r.Size() - audioStart
	if hasTrailingID3v1(r) {
		audioBytes -= id3v1TrailerLen
	}

	duration := float64(audioBytes) * 8 / (avgBitrate * 1000)
	tag.Duration = duration
	tag.Bitrate = avgBitrate

	return nil
}

func hasTrailingID3v1(r ByteReader) bool {
	if r.Size() <= id3v1TrailerLen {
		return false
	}

	pos := tell(r)
	defer func() { _, _ = r.Seek(pos, io.SeekStart) }()

	if _, err := r.Seek(-id3v1TrailerLen, io.SeekEnd); err != nil {
		return false
	}

	magic, err := readExact(r, 3)

	return err == nil && string(magic) == "TAG"
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
