package tagscan

import (
	"encoding/binary"
	"io"
)

const oggPageMagic = "OggS"
const oggMaxPageSize = 65536

type oggParser struct{}

// oggPacketReader pulls complete packets out of a sequence of Ogg pages,
// reassembling a packet that spans page boundaries (when a page's final
// lacing value is 255) — a pull-based replacement for the source's
// generator-style page yielding.
type oggPacketReader struct {
	r           ByteReader
	lastGranule int64
	eof         bool
}

func newOggPacketReader(r ByteReader) *oggPacketReader {
	return &oggPacketReader{r: r}
}

// next returns the next complete packet, or ok=false once pages are
// exhausted. It does not buffer a page's trailing segments across calls:
// once a packet ends, the rest of that page is discarded and the next
// call starts at the following page, so a second packet that begins on
// the same page is never returned. The parser only reads the header
// packets it inspects (identification/comment/STREAMINFO).
func (o *oggPacketReader) next() ([]byte, bool, error) {
	var packet []byte

	for {
		if o.eof {
			if len(packet) > 0 {
				return packet, true, nil
			}

			return nil, false, nil
		}

		lacing, payload, err := o.readPage()
		if err != nil {
			if err == io.EOF {
				o.eof = true

				continue
			}

			return nil, false, err
		}

		offset := 0

		for _, segLen := range lacing {
			packet = append(packet, payload[offset:offset+int(segLen)]...)
			offset += int(segLen)

			if segLen < 255 {
				return packet, true, nil
			}
		}
	}
}

// readPage reads one Ogg page, returning its lacing table and the
// concatenated payload bytes.
func (o *oggPacketReader) readPage() ([]byte, []byte, error) {
	magic, err := readExact(o.r, 4)
	if err != nil {
		return nil, nil, io.EOF
	}

	if string(magic) != oggPageMagic {
		return nil, nil, newParseError("ogg", tell(o.r), errBadMagic)
	}

	rest, err := readExact(o.r, 23)
	if err != nil {
		return nil, nil, err
	}

	granule := int64(binary.LittleEndian.Uint64(rest[2:10]))
	segCount := int(rest[22])

	lacing, err := readExact(o.r, segCount)
	if err != nil {
		return nil, nil, err
	}

	total := 0
	for _, b := range lacing {
		total += int(b)
	}

	payload, err := readExact(o.r, total)
	if err != nil {
		return nil, nil, err
	}

	o.lastGranule = granule

	return lacing, payload, nil
}

func (oggParser) parseTag(r ByteReader, tag *Tag, opts Options) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return newParseError("ogg", 0, err)
	}

	pr := newOggPacketReader(r)

	first, ok, err := pr.next()
	if err != nil {
		return err
	}

	if !ok {
		return parseErrorf("ogg", 0, "no packets")
	}

	codec, ok := detectOggCodec(first)
	if !ok {
		return parseErrorf("ogg", 0, "unrecognized codec")
	}

	switch codec {
	case oggCodecVorbis:
		applyVorbisIdentPacket(first, tag)

		second, ok, err := pr.next()
		if err != nil {
			return err
		}

		if ok && len(second) > 7 && string(second[0:7]) == "\x03vorbis" {
			return parseVorbisComment(second[7:], tag, opts)
		}

		return nil
	case oggCodecOpus:
		applyOpusHeadPacket(first, tag)

		second, ok, err := pr.next()
		if err != nil {
			return err
		}

		if ok && len(second) > 8 && string(second[0:8]) == "OpusTags" {
			return parseVorbisComment(second[8:], tag, opts)
		}

		return nil
	case oggCodecFlac:
		// Skip the 9-byte FLAC-in-Ogg header ("\x7fFLAC" + major/minor +
		// header-packet-count); the packet's remainder carries the "fLaC"
		// magic and the STREAMINFO block. The next packet is then read as
		// one FLAC metadata block; later packets are not read.
		if len(first) > 13 {
			_ = parseFlacStreamInfoFromOggPacket(first[9:], tag, r.Size())
		}

		second, ok, err := pr.next()
		if err != nil {
			return err
		}

		if ok {
			return parseFlacMetadataBlockPayload(second, tag, opts)
		}

		return nil
	case oggCodecSpeex:
		applySpeexHeaderPacket(first, tag)

		second, ok, err := pr.next()
		if err != nil {
			return err
		}

		if ok && len(second) >= 4 {
			vendorLen := int(binary.LittleEndian.Uint32(second[0:4]))
			if 4+vendorLen <= len(second) {
				return parseVorbisComment(second, tag, opts)
			}
		}

		return nil
	}

	return nil
}

type oggCodec int

const (
	oggCodecUnknown oggCodec = iota
	oggCodecVorbis
	oggCodecOpus
	oggCodecFlac
	oggCodecSpeex
)

func detectOggCodec(first []byte) (oggCodec, bool) {
	switch {
	case len(first) >= 7 && string(first[0:7]) == "\x01vorbis":
		return oggCodecVorbis, true
	case len(first) >= 8 && string(first[0:8]) == "OpusHead":
		return oggCodecOpus, true
	case len(first) >= 5 && string(first[0:5]) == "\x7fFLAC":
		return oggCodecFlac, true
	case len(first) >= 8 && string(first[0:8]) == "Speex   ":
		return oggCodecSpeex, true
	default:
		return oggCodecUnknown, false
	}
}

func applyVorbisIdentPacket(p []byte, tag *Tag) {
	if len(p) < 7+1+4+4+4+4 {
		return
	}

	// Skip the 7-byte "\x01vorbis" magic and the 4-byte vorbis_version.
	b := p[11:]
	channels := int(b[0])
	sampleRate := int(binary.LittleEndian.Uint32(b[1:5]))
	nominalBitrate := int32(binary.LittleEndian.Uint32(b[9:13]))

	tag.SetInt(FieldChannels, channels)
	tag.SetInt(FieldSampleRate, sampleRate)

	if nominalBitrate > 0 {
		tag.Bitrate = float64(nominalBitrate) / 1000.0
	}
}

func applyOpusHeadPacket(p []byte, tag *Tag) {
	if len(p) < 9+1+1 {
		return
	}

	channels := int(p[9])

	tag.SetInt(FieldChannels, channels)
	tag.SetInt(FieldSampleRate, 48000)
}

func applySpeexHeaderPacket(p []byte, tag *Tag) {
	// Speex header: 8-byte magic, then 20-byte version string, version_id,
	// header_size, rate, mode, mode_bitstream_version, nb_channels, ...
	if len(p) < 8+20+4+4+4 {
		return
	}

	offset := 8 + 20 + 4 + 4
	rate := int(binary.LittleEndian.Uint32(p[offset : offset+4]))

	offset += 4 + 4 + 4
	if offset+4 > len(p) {
		return
	}

	channels := int(binary.LittleEndian.Uint32(p[offset : offset+4]))

	tag.SetInt(FieldSampleRate, rate)
	tag.SetInt(FieldChannels, channels)
}

func parseFlacStreamInfoFromOggPacket(payload []byte, tag *Tag, filesize int64) error {
	// The payload starts like a native FLAC stream: the "fLaC" magic,
	// then STREAMINFO behind its 4-byte block header. A payload without
	// the magic, or a bare 34-byte STREAMINFO, is accepted as well.
	if len(payload) >= 4 && string(payload[0:4]) == "fLaC" {
		payload = payload[4:]
	}

	if len(payload) >= 38 && payload[0]&0x7F == flacBlockStreamInfo {
		return parseFlacStreamInfo(payload[4:38], tag, filesize)
	}

	if len(payload) >= 34 {
		return parseFlacStreamInfo(payload[:34], tag, filesize)
	}

	return nil
}

func parseFlacMetadataBlockPayload(payload []byte, tag *Tag, opts Options) error {
	if len(payload) < 4 {
		return nil
	}

	blockType := payload[0] & 0x7F
	size := int(payload[1])<<16 | int(payload[2])<<8 | int(payload[3])

	if 4+size > len(payload) {
		size = len(payload) - 4
	}

	body := payload[4 : 4+size]

	switch blockType {
	case flacBlockVorbisComment:
		return parseVorbisComment(body, tag, opts)
	case flacBlockPicture:
		if opts.Image {
			return parseFlacPictureBlock(body, tag)
		}
	}

	return nil
}

func (oggParser) determineDuration(r ByteReader, tag *Tag, opts Options) error {
	if tag.SampleRate == 0 {
		// Tags weren't parsed yet in this call; parse just enough of the
		// identification packet to learn the sample rate.
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return newParseError("ogg", 0, err)
		}

		pr := newOggPacketReader(r)

		first, ok, err := pr.next()
		if err != nil {
			return err
		}

		if ok {
			if codec, ok := detectOggCodec(first); ok {
				switch codec {
				case oggCodecVorbis:
					applyVorbisIdentPacket(first, tag)
				case oggCodecOpus:
					applyOpusHeadPacket(first, tag)
				case oggCodecSpeex:
					applySpeexHeaderPacket(first, tag)
				case oggCodecFlac:
					_ = parseFlacStreamInfoFromOggPacket(first[9:], tag, r.Size())
				}
			}
		}
	}

	if tag.SampleRate == 0 {
		return nil
	}

	var (
		granule int64
		ok      bool
	)

	if r.Size() <= oggMaxPageSize {
		// Small enough that scanning backward from EOF for the last page
		// isn't worth the trouble: walk every page from the start and keep
		// the largest granule position seen, same as scanning from the end
		// would find on a well-formed stream.
		granule, ok = scanMaxGranuleFromStart(r)
	} else {
		granule, ok = scanLastGranule(r)
	}

	if !ok {
		return nil
	}

	rate := float64(tag.SampleRate)
	// Opus always reports granule position in 48kHz units regardless of
	// the stream's actual sample rate.
	if tag.SampleRate != 48000 {
		if isOpusStream(r) {
			rate = 48000
		}
	}

	tag.Duration = float64(granule) / rate

	return nil
}

func isOpusStream(r ByteReader) bool {
	pos := tell(r)
	defer func() { _, _ = r.Seek(pos, io.SeekStart) }()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false
	}

	pr := newOggPacketReader(r)

	first, ok, err := pr.next()
	if err != nil || !ok {
		return false
	}

	codec, ok := detectOggCodec(first)

	return ok && codec == oggCodecOpus
}

// scanMaxGranuleFromStart walks every page from the beginning of the
// stream, returning the largest granule position seen. Used for streams no
// larger than oggMaxPageSize, where scanning backward from EOF for a
// "last" page buys nothing over reading the whole thing.
func scanMaxGranuleFromStart(r ByteReader) (int64, bool) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, false
	}

	pr := newOggPacketReader(r)

	var (
		maxGranule int64
		found      bool
	)

	for {
		_, _, err := pr.readPage()
		if err != nil {
			break
		}

		if !found || pr.lastGranule > maxGranule {
			maxGranule = pr.lastGranule
			found = true
		}
	}

	return maxGranule, found
}

// scanLastGranule seeks near EOF and scans backward for the last "OggS"
// page, returning its granule position.
func scanLastGranule(r ByteReader) (int64, bool) {
	size := r.Size()

	start := size - oggMaxPageSize
	if start < 0 {
		start = 0
	}

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return 0, false
	}

	buf, err := readExact(r, int(size-start))
	if err != nil {
		return 0, false
	}

	lastIdx := -1

	for i := 0; i+4 <= len(buf); i++ {
		if string(buf[i:i+4]) == oggPageMagic {
			lastIdx = i
		}
	}

	if lastIdx < 0 || lastIdx+27 > len(buf) {
		return 0, false
	}

	granule := int64(binary.LittleEndian.Uint64(buf[lastIdx+6 : lastIdx+14]))

	return granule, true
}
