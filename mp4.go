package tagscan

import (
	"encoding/binary"
	"io"
)

type mp4Parser struct{}

// mp4Atom is one parsed atom header: its type and its payload's start and
// end offsets.
type mp4Atom struct {
	Type  string
	Start int64 // payload start offset
	End   int64 // payload end offset (exclusive)
}

// walkMp4Atoms reads consecutive atom headers from r's current position up
// to end, invoking visit for each atom at that level (it does not descend;
// descendMp4Path does) and seeking past each atom after visit returns.
func walkMp4Atoms(r ByteReader, end int64, visit func(mp4Atom) error) error {
	for {
		pos := tell(r)
		if pos >= end {
			return nil
		}

		header, err := readExact(r, 8)
		if err != nil {
			return nil
		}

		size := int64(binary.BigEndian.Uint32(header[0:4]))
		atomType := string(header[4:8])

		headerLen := int64(8)

		if size == 1 {
			ext, err := readExact(r, 8)
			if err != nil {
				return newParseError("mp4", tell(r), err)
			}

			size = int64(binary.BigEndian.Uint64(ext))
			headerLen = 16
		}

		if size == 0 {
			size = end - pos
		}

		payloadStart := pos + headerLen
		atomEnd := pos + size

		if atomEnd > end {
			atomEnd = end
		}

		if atomEnd < payloadStart {
			return nil
		}

		if err := visit(mp4Atom{Type: atomType, Start: payloadStart, End: atomEnd}); err != nil {
			return err
		}

		if _, err := r.Seek(atomEnd, io.SeekStart); err != nil {
			return newParseError("mp4", atomEnd, err)
		}
	}
}

// descendMp4Path walks down a fixed chain of atom types, calling leaf once
// positioned at the final element's payload bounds. versionedFlagged maps
// atom types to the number of fixed header bytes to skip before their
// children can be walked as an atom chain: "meta" has a 4-byte
// version+flags fullbox header; "stsd" has that same 4 bytes plus a
// 4-byte sample-entry count, so it skips 8.
func descendMp4Path(r ByteReader, start, end int64, path []string, versionedFlagged map[string]int, leaf func(ByteReader, int64, int64) error) error {
	if len(path) == 0 {
		return leaf(r, start, end)
	}

	want := path[0]

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return newParseError("mp4", start, err)
	}

	return walkMp4Atoms(r, end, func(a mp4Atom) error {
		if a.Type != want {
			return nil
		}

		childStart := a.Start + int64(versionedFlagged[a.Type])
		childEnd := a.End

		if _, err := r.Seek(childStart, io.SeekStart); err != nil {
			return newParseError("mp4", childStart, err)
		}

		return descendMp4Path(r, childStart, childEnd, path[1:], versionedFlagged, leaf)
	})
}

var mp4VersionedFlagged = map[string]int{"meta": 4, "stsd": 8}

func (mp4Parser) parseTag(r ByteReader, tag *Tag, opts Options) error {
	size := r.Size()

	err := descendMp4Path(r, 0, size, []string{"moov", "udta", "meta", "ilst"}, mp4VersionedFlagged,
		func(r ByteReader, start, end int64) error {
			return walkMp4Atoms(r, end, func(a mp4Atom) error {
				return applyMp4MetadataAtom(r, a, tag, opts)
			})
		})
	if err != nil {
		return err
	}

	return nil
}

func applyMp4MetadataAtom(r ByteReader, a mp4Atom, tag *Tag, opts Options) error {
	if a.Type == "----" {
		return applyMp4FreeformAtom(r, a, tag)
	}

	var dataAtom *mp4Atom

	err := walkMp4Atoms(r, a.End, func(child mp4Atom) error {
		if child.Type == "data" && dataAtom == nil {
			c := child
			dataAtom = &c
		}

		return nil
	})
	if err != nil {
		return err
	}

	if dataAtom == nil {
		return nil
	}

	if _, err := r.Seek(dataAtom.Start, io.SeekStart); err != nil {
		return newParseError("mp4", dataAtom.Start, err)
	}

	payload, err := readExact(r, int(dataAtom.End-dataAtom.Start))
	if err != nil {
		return newParseError("mp4", dataAtom.Start, err)
	}

	if len(payload) < 8 {
		return nil
	}

	dataType := binary.BigEndian.Uint32(payload[0:4])
	value := payload[8:]

	applyMp4AtomValue(tag, a.Type, dataType, value, opts)

	return nil
}

func applyMp4AtomValue(tag *Tag, atomType string, dataType uint32, value []byte, opts Options) {
	switch atomType {
	case "\xa9nam":
		tag.SetString(FieldTitle, decodeMp4Text(value, dataType))
	case "\xa9ART":
		tag.SetString(FieldArtist, decodeMp4Text(value, dataType))
	case "\xa9alb":
		tag.SetString(FieldAlbum, decodeMp4Text(value, dataType))
	case "\xa9wrt":
		tag.SetString(FieldComposer, decodeMp4Text(value, dataType))
	case "\xa9day":
		tag.SetString(FieldYear, decodeMp4Text(value, dataType))
	case "\xa9gen":
		tag.SetString(FieldGenre, decodeMp4Text(value, dataType))
	case "\xa9cmt":
		tag.SetString(FieldComment, decodeMp4Text(value, dataType))
	case "aART":
		tag.SetString(FieldAlbumArtist, decodeMp4Text(value, dataType))
	case "cprt":
		tag.SetOther("copyright", decodeMp4Text(value, dataType))
	case "gnre":
		if n := decodeMp4BEUint(value); n > 0 {
			if name, ok := genreFromIndex(n - 1); ok {
				tag.SetString(FieldGenre, name)
			}
		}
	case "trkn":
		n, total := decodeMp4NumberPair(value)
		tag.SetInt(FieldTrack, n)
		tag.SetInt(FieldTrackTotal, total)
	case "disk":
		n, total := decodeMp4NumberPair(value)
		tag.SetInt(FieldDisc, n)
		tag.SetInt(FieldDiscTotal, total)
	case "covr":
		if opts.Image {
			applyMp4CoverAtom(tag, dataType, value)
		}
	}
}

func decodeMp4Text(value []byte, dataType uint32) string {
	switch dataType {
	case 1:
		return decodeText(value, encUTF8)
	case 2:
		return decodeText(value, encUTF16BE)
	case 3:
		return decodeText(value, encShiftJIS)
	default:
		return decodeText(value, encUTF8)
	}
}

func decodeMp4BEUint(value []byte) int {
	switch len(value) {
	case 1:
		return int(value[0])
	case 2:
		return int(binary.BigEndian.Uint16(value))
	case 4:
		return int(binary.BigEndian.Uint32(value))
	case 8:
		return int(binary.BigEndian.Uint64(value))
	default:
		return 0
	}
}

func decodeMp4NumberPair(value []byte) (n, total int) {
	// Layout: 2 bytes padding, 2 bytes value, 2 bytes total, 2 bytes padding.
	if len(value) < 6 {
		return 0, 0
	}

	n = int(binary.BigEndian.Uint16(value[2:4]))
	total = int(binary.BigEndian.Uint16(value[4:6]))

	return n, total
}

func applyMp4CoverAtom(tag *Tag, dataType uint32, value []byte) {
	if len(value) == 0 {
		return
	}

	mime := "image/jpeg"
	if dataType == 14 {
		mime = "image/png"
	}

	tag.Images.Set(&Image{
		Name:     "front_cover",
		Data:     append([]byte(nil), value...),
		MimeType: mime,
	})
}

// applyMp4FreeformAtom decodes a "----" custom atom: a "mean" child (a
// reverse-DNS namespace), a "name" child (the field name), and a "data"
// child (the value) — iTunes's extension mechanism for fields with no
// dedicated atom type.
func applyMp4FreeformAtom(r ByteReader, a mp4Atom, tag *Tag) error {
	var nameAtom, dataAtom *mp4Atom

	err := walkMp4Atoms(r, a.End, func(child mp4Atom) error {
		switch child.Type {
		case "name":
			c := child
			nameAtom = &c
		case "data":
			c := child
			dataAtom = &c
		}

		return nil
	})
	if err != nil {
		return err
	}

	if nameAtom == nil || dataAtom == nil {
		return nil
	}

	if _, err := r.Seek(nameAtom.Start, io.SeekStart); err != nil {
		return newParseError("mp4", nameAtom.Start, err)
	}

	nameRaw, err := readExact(r, int(nameAtom.End-nameAtom.Start))
	if err != nil || len(nameRaw) < 4 {
		return nil
	}

	fieldName := decodeText(nameRaw[4:], encUTF8)

	if _, err := r.Seek(dataAtom.Start, io.SeekStart); err != nil {
		return newParseError("mp4", dataAtom.Start, err)
	}

	dataRaw, err := readExact(r, int(dataAtom.End-dataAtom.Start))
	if err != nil || len(dataRaw) < 8 {
		return nil
	}

	value := decodeText(dataRaw[8:], encUTF8)

	if fieldName == "" || value == "" {
		return nil
	}

	tag.SetOther(toLowerASCII(fieldName), value)

	return nil
}

func toLowerASCII(s string) string {
	b := []byte(s)

	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}

	return string(b)
}

func (mp4Parser) determineDuration(r ByteReader, tag *Tag, opts Options) error {
	size := r.Size()

	if err := descendMp4Path(r, 0, size, []string{"moov", "mvhd"}, mp4VersionedFlagged,
		func(r ByteReader, start, end int64) error { return applyMp4MvhdTag(r, start, end, tag) }); err != nil {
		return err
	}

	if err := descendMp4Path(r, 0, size, []string{"moov", "trak", "mdia", "minf", "stbl", "stsd", "mp4a"}, mp4VersionedFlagged,
		func(r ByteReader, start, end int64) error { return applyMp4a(r, start, end, tag) }); err != nil {
		return err
	}

	return descendMp4Path(r, 0, size, []string{"moov", "trak", "mdia", "minf", "stbl", "stsd", "alac"}, mp4VersionedFlagged,
		func(r ByteReader, start, end int64) error { return applyAlac(r, start, end, tag) })
}

func applyMp4MvhdTag(r ByteReader, start, end int64, tag *Tag) error {
	if tag == nil {
		return nil
	}

	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return newParseError("mp4", start, err)
	}

	verFlags, err := readExact(r, 4)
	if err != nil {
		return newParseError("mp4", start, err)
	}

	version := verFlags[0]

	if version == 1 {
		body, err := readExact(r, 28)
		if err != nil || len(body) < 28 {
			return nil
		}

		timescale := binary.BigEndian.Uint32(body[16:20])
		duration := binary.BigEndian.Uint64(body[20:28])

		if timescale > 0 {
			tag.Duration = float64(duration) / float64(timescale)
		}

		return nil
	}

	body, err := readExact(r, 16)
	if err != nil || len(body) < 16 {
		return nil
	}

	timescale := binary.BigEndian.Uint32(body[8:12])
	duration := binary.BigEndian.Uint32(body[12:16])

	if timescale > 0 {
		tag.Duration = float64(duration) / float64(timescale)
	}

	return nil
}

func applyMp4a(r ByteReader, start, end int64, tag *Tag) error {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return newParseError("mp4", start, err)
	}

	body, err := readExact(r, int(min64(end-start, 28)))
	if err != nil || len(body) < 28 {
		return nil
	}

	channels := int(binary.BigEndian.Uint16(body[16:18]))
	sampleRate := int(binary.BigEndian.Uint32(body[24:28]) >> 16)

	tag.SetInt(FieldChannels, channels)
	tag.SetInt(FieldSampleRate, sampleRate)

	bitrate, ok := findEsdsBitrate(r, start+28, end)
	if ok && bitrate > 0 {
		tag.Bitrate = float64(bitrate) / 1000
	}

	return nil
}

// findEsdsBitrate looks for a nested "esds" atom among [from, end) and
// decodes the ES descriptor chain's average bitrate field, skipping each
// descriptor's "extended length" prefix (up to four 0x80-flagged bytes).
func findEsdsBitrate(r ByteReader, from, end int64) (int, bool) {
	if _, err := r.Seek(from, io.SeekStart); err != nil {
		return 0, false
	}

	var bitrate int

	var found bool

	_ = walkMp4Atoms(r, end, func(a mp4Atom) error {
		if a.Type != "esds" {
			return nil
		}

		if _, err := r.Seek(a.Start+4, io.SeekStart); err != nil {
			return nil
		}

		payload, err := readExact(r, int(a.End-a.Start-4))
		if err != nil {
			return nil
		}

		if br, ok := decodeEsdsAvgBitrate(payload); ok {
			bitrate = br
			found = true
		}

		return nil
	})

	return bitrate, found
}

// decodeEsdsAvgBitrate walks the MPEG-4 ES_Descriptor / DecoderConfigDescriptor
// chain: tag(1) extended-length(1-4, high bit continues) payload...
func decodeEsdsAvgBitrate(raw []byte) (int, bool) {
	offset := 0

	readDescriptor := func() (tag byte, payload []byte, ok bool) {
		if offset >= len(raw) {
			return 0, nil, false
		}

		tag = raw[offset]
		offset++

		size := 0

		for i := 0; i < 4; i++ {
			if offset >= len(raw) {
				return 0, nil, false
			}

			b := raw[offset]
			offset++
			size = size<<7 | int(b&0x7F)

			if b&0x80 == 0 {
				break
			}
		}

		if offset+size > len(raw) {
			size = len(raw) - offset
		}

		payload = raw[offset : offset+size]
		offset += size

		return tag, payload, true
	}

	tagByte, payload, ok := readDescriptor()
	if !ok || tagByte != 0x03 {
		return 0, false
	}

	// ES_Descriptor payload: ES_ID(2) flags(1) [opt fields] then nested
	// descriptors. The fixed 3 bytes are skipped and the rest is scanned
	// as a flat tag/length sequence for tag 0x04; optional fields selected
	// by the flags are not skipped and are scanned like descriptors.
	if len(payload) < 3 {
		return 0, false
	}

	return scanForDecoderConfig(payload[3:])
}

func scanForDecoderConfig(raw []byte) (int, bool) {
	offset := 0

	for offset < len(raw) {
		tagByte := raw[offset]
		offset++

		size := 0

		for i := 0; i < 4 && offset < len(raw); i++ {
			b := raw[offset]
			offset++
			size = size<<7 | int(b&0x7F)

			if b&0x80 == 0 {
				break
			}
		}

		if offset+size > len(raw) {
			size = len(raw) - offset
		}

		if size < 0 {
			return 0, false
		}

		body := raw[offset : offset+size]
		offset += size

		if tagByte == 0x04 && len(body) >= 13 {
			avgBitrate := binary.BigEndian.Uint32(body[9:13])

			return int(avgBitrate), true
		}
	}

	return 0, false
}

func applyAlac(r ByteReader, start, end int64, tag *Tag) error {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return newParseError("mp4", start, err)
	}

	// ALAC sample-entry header (28 bytes, same shape as mp4a's) then the
	// "alac" magic-cookie child atom carrying the real properties.
	if _, err := r.Seek(28, io.SeekCurrent); err != nil {
		return nil
	}

	return walkMp4Atoms(r, end, func(a mp4Atom) error {
		if a.Type != "alac" {
			return nil
		}

		if _, err := r.Seek(a.Start+4, io.SeekStart); err != nil {
			return nil
		}

		cookie, err := readExact(r, int(a.End-a.Start-4))
		if err != nil || len(cookie) < 28 {
			return nil
		}

		bitDepth := int(cookie[5])
		channels := int(cookie[9])
		avgBitrate := binary.BigEndian.Uint32(cookie[16:20])
		sampleRate := binary.BigEndian.Uint32(cookie[20:24])

		tag.SetInt(FieldBitDepth, bitDepth)
		tag.SetInt(FieldChannels, channels)
		tag.SetInt(FieldSampleRate, int(sampleRate))

		if avgBitrate > 0 {
			tag.Bitrate = float64(avgBitrate) / 1000
		}

		return nil
	})
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}

	return b
}
