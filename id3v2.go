package tagscan

import (
	"encoding/binary"
	"strings"
)

// id3v2Header is the 10-byte ID3v2 header: 'ID3', ver_major, ver_rev,
// flags, size[4] (syncsafe).
type id3v2Header struct {
	Major, Revision byte
	Flags           byte
	Size            int64 // declared tag size, excluding the 10-byte header
}

const id3v2HeaderLen = 10

func (h id3v2Header) unsynchronized() bool { return h.Flags&0x80 != 0 }
func (h id3v2Header) hasExtended() bool    { return h.Flags&0x40 != 0 }
func (h id3v2Header) hasFooter() bool      { return h.Flags&0x10 != 0 }

// syncsafe decodes a 28-bit "syncsafe" integer: 7 usable bits per byte,
// high bit always 0.
func syncsafe(b []byte) int64 {
	return int64(b[0])<<21 | int64(b[1])<<14 | int64(b[2])<<7 | int64(b[3])
}

// peekID3v2Header reads and validates the 10-byte ID3v2 header at the
// reader's current position without consuming it if absent. Returns
// ok=false (no error) when the magic doesn't match — ID3v2 is optional.
func peekID3v2Header(r ByteReader) (id3v2Header, bool, error) {
	start := tell(r)

	raw, err := readExact(r, id3v2HeaderLen)
	if err != nil {
		_, _ = r.Seek(start, 0)

		return id3v2Header{}, false, nil
	}

	if string(raw[0:3]) != "ID3" {
		_, _ = r.Seek(start, 0)

		return id3v2Header{}, false, nil
	}

	for _, b := range raw[6:10] {
		if b&0x80 != 0 {
			_, _ = r.Seek(start, 0)

			return id3v2Header{}, false, nil
		}
	}

	h := id3v2Header{
		Major:    raw[3],
		Revision: raw[4],
		Flags:    raw[5],
		Size:     syncsafe(raw[6:10]),
	}

	return h, true, nil
}

// parseID3v2 parses an ID3v2.2/3/4 tag at the reader's current position
// into tag, returning the total number of bytes consumed (including the
// header) so callers that embed an ID3v2 tag inside another container
// (WAVE/AIFF/FLAC) know how far to skip.
func parseID3v2(r ByteReader, tag *Tag, opts Options) (int64, error) {
	start := tell(r)

	header, ok, err := peekID3v2Header(r)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, nil
	}

	bodyStart := tell(r)
	declaredEnd := bodyStart + header.Size

	if header.hasExtended() {
		extSizeRaw, err := readExact(r, 4)
		if err != nil {
			return 0, newParseError("id3v2", tell(r), err)
		}

		var extSize int64
		if header.Major >= 4 {
			extSize = syncsafe(extSizeRaw)
		} else {
			extSize = int64(binary.BigEndian.Uint32(extSizeRaw))
		}
		// extSize as read above already counts the 4 size bytes for v4;
		// for v3 it does not, so only v4 subtracts them before skipping.
		remaining := extSize
		if header.Major >= 4 {
			remaining -= 4
		}

		if remaining > 0 {
			if _, err := r.Seek(remaining, 1); err != nil {
				return 0, newParseError("id3v2", tell(r), err)
			}
		}
	}

	frameHeaderLen := 10
	if header.Major == 2 {
		frameHeaderLen = 6
	}

	defaultLatin1 := encLatin1
	if opts.Encoding != "" {
		if e, ok := encodingByName(opts.Encoding); ok {
			defaultLatin1 = e
		}
	}

	for tell(r) < declaredEnd {
		remaining := declaredEnd - tell(r)
		if remaining < int64(frameHeaderLen) {
			break
		}

		fh, err := readExact(r, frameHeaderLen)
		if err != nil {
			return 0, newParseError("id3v2", tell(r), err)
		}

		var (
			frameID   string
			frameSize int64
		)

		if header.Major == 2 {
			frameID = string(fh[0:3])
			frameSize = int64(fh[3])<<16 | int64(fh[4])<<8 | int64(fh[5])
		} else {
			frameID = string(fh[0:4])
			if header.Major >= 4 {
				frameSize = syncsafe(fh[4:8])
			} else {
				frameSize = int64(binary.BigEndian.Uint32(fh[4:8]))
			}
		}

		if frameSize == 0 {
			break
		}

		if strings.TrimRight(frameID, "\x00") == "" {
			break
		}

		if tell(r)+frameSize > declaredEnd {
			frameSize = declaredEnd - tell(r)
			if frameSize <= 0 {
				break
			}
		}

		payload, err := readExact(r, int(frameSize))
		if err != nil {
			return 0, newParseError("id3v2", tell(r), err)
		}

		applyID3v2Frame(tag, frameID, payload, header.Major, defaultLatin1, opts)
	}

	if _, err := r.Seek(declaredEnd, 0); err != nil {
		return 0, newParseError("id3v2", declaredEnd, err)
	}

	if header.hasFooter() {
		if _, err := r.Seek(10, 1); err != nil {
			return 0, newParseError("id3v2", tell(r), err)
		}
	}

	return tell(r) - start, nil
}

func encodingByName(name string) (textEncoding, bool) {
	switch strings.ToLower(name) {
	case "latin1", "latin-1", "iso-8859-1":
		return encLatin1, true
	case "utf-8", "utf8":
		return encUTF8, true
	case "utf-16", "utf16":
		return encUTF16BOM, true
	case "utf-16le", "utf-16-le":
		return encUTF16LE, true
	case "utf-16be", "utf-16-be":
		return encUTF16BE, true
	case "s-jis", "shift-jis", "sjis":
		return encShiftJIS, true
	default:
		return encLatin1, false
	}
}

// applyID3v2Frame decodes one frame payload and writes it into tag; unknown
// frame ids are swallowed (a soft error) or surfaced verbatim under
// other.<lower>.
func applyID3v2Frame(tag *Tag, frameID string, payload []byte, major byte, defaultLatin1 textEncoding, opts Options) {
	if len(payload) == 0 {
		return
	}

	canonical := canonicalID3Frame(frameID, major)

	switch canonical {
	case "TIT2":
		tag.SetString(FieldTitle, decodeTextFrame(payload, defaultLatin1))
	case "TPE1":
		tag.SetString(FieldArtist, decodeTextFrame(payload, defaultLatin1))
	case "TPE2":
		tag.SetString(FieldAlbumArtist, decodeTextFrame(payload, defaultLatin1))
	case "TCOM":
		tag.SetString(FieldComposer, decodeTextFrame(payload, defaultLatin1))
	case "TALB":
		tag.SetString(FieldAlbum, decodeTextFrame(payload, defaultLatin1))
	case "TRCK":
		n, total := splitNumTotal(decodeTextFrame(payload, defaultLatin1))
		tag.SetInt(FieldTrack, n)
		tag.SetInt(FieldTrackTotal, total)
	case "TPOS":
		n, total := splitNumTotal(decodeTextFrame(payload, defaultLatin1))
		tag.SetInt(FieldDisc, n)
		tag.SetInt(FieldDiscTotal, total)
	case "TYER", "TDRC":
		tag.SetString(FieldYear, decodeTextFrame(payload, defaultLatin1))
	case "TCON":
		tag.SetString(FieldGenre, resolveID3Genre(decodeTextFrame(payload, defaultLatin1)))
	case "COMM":
		applyCommentFrame(tag, payload, defaultLatin1)
	case "USLT":
		tag.SetOther("lyrics", decodeLanguageFrame(payload, defaultLatin1))
	case "APIC":
		applyAPICFrame(tag, payload, defaultLatin1, major, opts)
	case "TXXX":
		applyTXXXFrame(tag, payload, defaultLatin1)
	case "PRIV", "RGAD", "GEOB":
		// Explicitly ignored per the frame-id mapping table.
	default:
		if strings.HasPrefix(canonical, "T") && len(payload) > 0 {
			tag.SetOther(strings.ToLower(canonical), decodeTextFrame(payload, defaultLatin1))
		}
	}
}

// canonicalID3Frame maps an ID3v2.2 3-letter frame id to its v2.3+ 4-letter
// equivalent so the rest of the decoder has one naming scheme to handle.
func canonicalID3Frame(id string, major byte) string {
	if major != 2 {
		return id
	}

	switch id {
	case "TT2":
		return "TIT2"
	case "TP1":
		return "TPE1"
	case "TP2":
		return "TPE2"
	case "TCM":
		return "TCOM"
	case "TAL":
		return "TALB"
	case "TRK":
		return "TRCK"
	case "TPA":
		return "TPOS"
	case "TYE":
		return "TYER"
	case "TCO":
		return "TCON"
	case "COM":
		return "COMM"
	case "ULT":
		return "USLT"
	case "PIC":
		return "APIC"
	case "TXX":
		return "TXXX"
	default:
		return id
	}
}

func decodeTextFrame(payload []byte, defaultLatin1 textEncoding) string {
	enc := id3TextEncodingByte(payload[0], defaultLatin1)

	return decodeText(payload[1:], enc)
}

// decodeLanguageFrame decodes a frame carrying a 3-byte language prefix
// before its text content (COMM, USLT), returning only the text.
func decodeLanguageFrame(payload []byte, defaultLatin1 textEncoding) string {
	if len(payload) < 4 {
		return ""
	}

	enc := id3TextEncodingByte(payload[0], defaultLatin1)
	rest := stripLanguagePrefix(payload[1:])
	// USLT/COMM carry a short-content-description field before the main
	// text, terminated like any other frame text; skip past it.
	_, body := readNulTerminated(rest, enc)
	if body == nil {
		return decodeText(rest, enc)
	}

	return decodeText(body, enc)
}

// applyCommentFrame handles COMM, including the iTunes convention of
// encoding a "key\x00value"-shaped payload in the short-content-description
// slot to carry a custom attribute instead of a free-text comment.
func applyCommentFrame(tag *Tag, payload []byte, defaultLatin1 textEncoding) {
	if len(payload) < 4 {
		return
	}

	enc := id3TextEncodingByte(payload[0], defaultLatin1)
	rest := stripLanguagePrefix(payload[1:])

	descTerm, body := readNulTerminated(rest, enc)
	desc := decodeText(descTerm, enc)

	if body == nil {
		tag.SetString(FieldComment, decodeText(rest, enc))

		return
	}

	text := decodeText(body, enc)

	if desc != "" && !strings.EqualFold(desc, "comment") {
		tag.SetOther(strings.ToLower(desc), text)

		return
	}

	tag.SetString(FieldComment, text)
}

// applyTXXXFrame handles TXXX's encoding-byte, "description\x00value" shape,
// routing MusicBrainz identifiers to their own other.<suffix> keys rather
// than a generic bucket, matching the original implementation's behavior.
func applyTXXXFrame(tag *Tag, payload []byte, defaultLatin1 textEncoding) {
	if len(payload) < 2 {
		return
	}

	enc := id3TextEncodingByte(payload[0], defaultLatin1)
	rest := payload[1:]

	descTerm, body := readNulTerminated(rest, enc)
	desc := decodeText(descTerm, enc)

	if body == nil {
		return
	}

	value := decodeText(body, enc)
	if desc == "" || value == "" {
		return
	}

	key := strings.ToLower(strings.ReplaceAll(desc, " ", "_"))
	if strings.HasPrefix(strings.ToLower(desc), "musicbrainz") {
		key = "musicbrainz_" + strings.TrimPrefix(key, "musicbrainz_")
	}

	tag.SetOther(key, value)
}

// applyAPICFrame decodes an APIC (v2.3+) or PIC (v2.2) image frame.
func applyAPICFrame(tag *Tag, payload []byte, defaultLatin1 textEncoding, major byte, opts Options) {
	if !opts.Image {
		return
	}

	if len(payload) < 2 {
		return
	}

	enc := id3TextEncodingByte(payload[0], defaultLatin1)
	rest := payload[1:]

	var mime string

	if major == 2 {
		if len(rest) < 3 {
			return
		}

		mime = imageMimeForExtension(strings.ToLower(string(rest[:3])))
		rest = rest[3:]
	} else {
		mimeTerm, after := readNulTerminated(rest, encLatin1)
		if after == nil {
			return
		}

		mime = decodeText(mimeTerm, encLatin1)
		rest = after
	}

	if len(rest) < 1 {
		return
	}

	pictureType := rest[0]
	rest = rest[1:]

	descTerm, after := readNulTerminated(rest, enc)
	if after == nil {
		return
	}

	desc := decodeText(descTerm, enc)
	data := after

	if len(data) == 0 {
		return
	}

	img := &Image{
		Name:        id3PictureTypeSlot(pictureType),
		Data:        append([]byte(nil), data...),
		MimeType:    mime,
		Description: desc,
	}

	tag.Images.Set(img)
}
