package tagscan

import (
	"encoding/binary"
	"io"
	"strconv"
)

type wmaParser struct{}

// asfGUID is a 16-byte little-endian-serialized GUID, compared by its raw
// bytes as stored on disk (ASF never byte-swaps them for comparison).
type asfGUID [16]byte

func guid(hex ...byte) asfGUID {
	var g asfGUID

	copy(g[:], hex)

	return g
}

var (
	asfHeaderObjectGUID              = guid(0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11, 0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C)
	asfContentDescriptionGUID        = guid(0x33, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11, 0xA6, 0xD9, 0x00, 0xAA, 0x00, 0x62, 0xCE, 0x6C)
	asfExtendedContentDescriptionGUID = guid(0x40, 0xA4, 0xD0, 0xD2, 0x07, 0xE3, 0xD2, 0x11, 0x97, 0xF0, 0x00, 0xA0, 0xC9, 0x5E, 0xA8, 0x50)
	asfFilePropertiesGUID            = guid(0xA1, 0xDC, 0xAB, 0x8C, 0x47, 0xA9, 0xCF, 0x11, 0x8E, 0xE4, 0x00, 0xC0, 0x0C, 0x20, 0x53, 0x65)
	asfStreamPropertiesGUID          = guid(0x91, 0x07, 0xDC, 0xB7, 0xB7, 0xA9, 0xCF, 0x11, 0x8E, 0xE6, 0x00, 0xC0, 0x0C, 0x20, 0x53, 0x65)
	asfAudioMediaGUID                = guid(0x40, 0x9E, 0x69, 0xF8, 0x4D, 0x5B, 0xCF, 0x11, 0xA8, 0xFD, 0x00, 0x80, 0x5F, 0x5C, 0x44, 0x2B)
)

const wmaLosslessCodecTag = 355

func walkAsfObjects(r ByteReader, tag *Tag, opts Options) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return newParseError("wma", 0, err)
	}

	header, err := readExact(r, 30)
	if err != nil {
		return newParseError("wma", 0, err)
	}

	var headerGUID asfGUID

	copy(headerGUID[:], header[0:16])

	if headerGUID != asfHeaderObjectGUID {
		return newParseError("wma", 0, errBadMagic)
	}

	headerSize := int64(binary.LittleEndian.Uint64(header[16:24]))
	headerEnd := headerSize

	for {
		pos := tell(r)
		if pos >= headerEnd {
			break
		}

		objHeader, err := readExact(r, 24)
		if err != nil {
			break
		}

		var objGUID asfGUID

		copy(objGUID[:], objHeader[0:16])

		objSize := int64(binary.LittleEndian.Uint64(objHeader[16:24]))
		if objSize < 24 {
			break
		}

		payload, err := readExact(r, int(objSize-24))
		if err != nil {
			return newParseError("wma", tell(r), err)
		}

		switch objGUID {
		case asfContentDescriptionGUID:
			applyAsfContentDescription(payload, tag)
		case asfExtendedContentDescriptionGUID:
			applyAsfExtendedContentDescription(payload, tag, opts)
		case asfFilePropertiesGUID:
			applyAsfFileProperties(payload, tag)
		case asfStreamPropertiesGUID:
			applyAsfStreamProperties(payload, tag)
		}
	}

	return nil
}

// applyAsfContentDescription decodes the five fixed UTF-16 blocks: title,
// author, copyright, description, rating, each preceded by its own 16-bit
// length in the object's leading 10-byte length table.
func applyAsfContentDescription(payload []byte, tag *Tag) {
	if len(payload) < 10 {
		return
	}

	lens := make([]int, 5)
	for i := 0; i < 5; i++ {
		lens[i] = int(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
	}

	offset := 10
	fields := []struct {
		set func(string)
	}{
		{func(v string) { tag.SetString(FieldTitle, v) }},
		{func(v string) { tag.SetString(FieldArtist, v) }},
		{func(v string) { tag.SetOther("copyright", v) }},
		{func(v string) { tag.SetString(FieldComment, v) }},
		{func(string) {}},
	}

	for i, l := range lens {
		if offset+l > len(payload) {
			return
		}

		raw := payload[offset : offset+l]
		offset += l

		if l == 0 {
			continue
		}

		fields[i].set(decodeText(raw, encUTF16LE))
	}
}

func applyAsfExtendedContentDescription(payload []byte, tag *Tag, opts Options) {
	if len(payload) < 2 {
		return
	}

	count := int(binary.LittleEndian.Uint16(payload[0:2]))
	offset := 2

	for i := 0; i < count; i++ {
		if offset+2 > len(payload) {
			return
		}

		nameLen := int(binary.LittleEndian.Uint16(payload[offset : offset+2]))
		offset += 2

		if offset+nameLen > len(payload) {
			return
		}

		name := decodeText(payload[offset:offset+nameLen], encUTF16LE)
		offset += nameLen

		if offset+4 > len(payload) {
			return
		}

		valueType := int(binary.LittleEndian.Uint16(payload[offset : offset+2]))
		valueLen := int(binary.LittleEndian.Uint16(payload[offset+2 : offset+4]))
		offset += 4

		if offset+valueLen > len(payload) {
			return
		}

		raw := payload[offset : offset+valueLen]
		offset += valueLen

		value, ok := decodeAsfDescriptorValue(raw, valueType)
		if !ok {
			continue
		}

		applyAsfWMField(tag, name, value, opts)
	}
}

// decodeAsfDescriptorValue interprets an extended-content-description
// value per its declared type: 0 string, 1 byte array (unsupported by the
// Tag model, skipped), 2-5 little-endian integers of 1/2/4/8 bytes.
func decodeAsfDescriptorValue(raw []byte, valueType int) (string, bool) {
	switch valueType {
	case 0:
		return decodeText(raw, encUTF16LE), true
	case 1:
		return "", false
	case 2, 3, 4, 5:
		n := decodeAsfLEUint(raw)

		return strconv.FormatInt(n, 10), true
	default:
		return "", false
	}
}

func decodeAsfLEUint(raw []byte) int64 {
	switch len(raw) {
	case 1:
		return int64(raw[0])
	case 2:
		return int64(binary.LittleEndian.Uint16(raw))
	case 4:
		return int64(binary.LittleEndian.Uint32(raw))
	case 8:
		return int64(binary.LittleEndian.Uint64(raw))
	default:
		return 0
	}
}

func applyAsfWMField(tag *Tag, name, value string, opts Options) {
	switch name {
	case "WM/TrackNumber":
		if n := parseLeadingInt(value); n > 0 {
			tag.SetInt(FieldTrack, n)
		}
	case "WM/PartOfSet":
		n, total := splitNumTotal(value)
		tag.SetInt(FieldDisc, n)
		tag.SetInt(FieldDiscTotal, total)
	case "WM/AlbumTitle":
		tag.SetString(FieldAlbum, value)
	case "WM/AlbumArtist":
		tag.SetString(FieldAlbumArtist, value)
	case "WM/Genre":
		tag.SetString(FieldGenre, value)
	case "WM/Year":
		tag.SetString(FieldYear, value)
	case "WM/Composer":
		tag.SetString(FieldComposer, value)
	case "WM/Lyrics":
		tag.SetOther("lyrics", value)
	default:
		tag.SetOther(toLowerASCII(stripWMPrefix(name)), value)
	}
}

func stripWMPrefix(name string) string {
	const prefix = "WM/"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}

	return name
}

// applyAsfFileProperties derives duration from play_duration (100ns units)
// less preroll (ms), floored at zero.
func applyAsfFileProperties(payload []byte, tag *Tag) {
	if len(payload) < 56 {
		return
	}

	playDuration := binary.LittleEndian.Uint64(payload[40:48])
	preroll := binary.LittleEndian.Uint64(payload[48:56])

	seconds := float64(playDuration)/1e7 - float64(preroll)/1e3
	if seconds < 0 {
		seconds = 0
	}

	tag.Duration = seconds
}

func applyAsfStreamProperties(payload []byte, tag *Tag) {
	if len(payload) < 16 {
		return
	}

	var streamType asfGUID

	copy(streamType[:], payload[0:16])

	if streamType != asfAudioMediaGUID {
		return
	}

	if len(payload) < 54+16 {
		return
	}

	audio := payload[54:]
	if len(audio) < 16 {
		return
	}

	codecTag := int(binary.LittleEndian.Uint16(audio[0:2]))
	channels := int(binary.LittleEndian.Uint16(audio[2:4]))
	sampleRate := int(binary.LittleEndian.Uint32(audio[4:8]))
	avgBytesPerSec := int(binary.LittleEndian.Uint32(audio[8:12]))
	bitsPerSample := int(binary.LittleEndian.Uint16(audio[14:16]))

	tag.SetInt(FieldChannels, channels)
	tag.SetInt(FieldSampleRate, sampleRate)

	if avgBytesPerSec > 0 {
		tag.Bitrate = float64(avgBytesPerSec) * 8 / 1000
	}

	if codecTag == wmaLosslessCodecTag {
		tag.SetInt(FieldBitDepth, bitsPerSample)
	}
}

func (wmaParser) parseTag(r ByteReader, tag *Tag, opts Options) error {
	return walkAsfObjects(r, tag, opts)
}

func (wmaParser) determineDuration(r ByteReader, tag *Tag, opts Options) error {
	return walkAsfObjects(r, tag, opts)
}
