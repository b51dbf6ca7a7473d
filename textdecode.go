package tagscan

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// textEncoding names one of the fixed set of encodings ID3/RIFF/AIFF text
// payloads can declare.
type textEncoding byte

const (
	encLatin1 textEncoding = iota
	encUTF16BOM
	encUTF16LE
	encUTF8
	encUTF16BE
	encShiftJIS
)

// decodeText decodes raw bytes under enc, stripping a BOM (tolerating a
// second, spurious one), stripping trailing NULs, and substituting the
// replacement character for invalid sequences rather than failing.
func decodeText(raw []byte, enc textEncoding) string {
	if enc == encUTF16BOM || enc == encUTF16LE || enc == encUTF16BE {
		// Strip whole NUL code units so the zero byte of a final character
		// such as "e\x00" is kept.
		for len(raw) >= 2 && len(raw)%2 == 0 && raw[len(raw)-2] == 0 && raw[len(raw)-1] == 0 {
			raw = raw[:len(raw)-2]
		}
	} else {
		raw = trimTrailingNuls(raw)
	}

	if len(raw) == 0 {
		return ""
	}

	var e encoding.Encoding

	switch enc {
	case encLatin1:
		e = charmap.ISO8859_1
	case encUTF16BOM:
		raw = stripSpuriousBOM(raw)
		e = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)
	case encUTF16LE:
		e = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case encUTF16BE:
		e = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case encShiftJIS:
		e = japanese.ShiftJIS
	case encUTF8:
		return strings.ToValidUTF8(string(raw), "�")
	default:
		e = charmap.ISO8859_1
	}

	decoded, err := e.NewDecoder().Bytes(raw)
	if err != nil {
		// Never fail text decoding: fall back to whatever the decoder
		// produced before erroring, replacement-char'd to valid UTF-8.
		return strings.ToValidUTF8(string(decoded), "�")
	}

	return strings.ToValidUTF8(string(decoded), "�")
}

// trimTrailingNuls strips one or more trailing NUL bytes, byte by byte,
// without touching interior NULs, which the Tag layer uses to split
// multi-value strings. decodeText uses it for byte-oriented encodings and
// strips whole NUL code units for UTF-16 instead.
func trimTrailingNuls(raw []byte) []byte {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}

	return raw[:end]
}

// stripSpuriousBOM removes one leading BOM (handled by the UTF-16 decoder
// itself) plus tolerates a second, malformed one some encoders emit.
func stripSpuriousBOM(raw []byte) []byte {
	bomLE := []byte{0xFF, 0xFE}
	bomBE := []byte{0xFE, 0xFF}

	for len(raw) >= 4 {
		if bytes.HasPrefix(raw[2:], bomLE) || bytes.HasPrefix(raw[2:], bomBE) {
			raw = raw[2:]

			continue
		}

		break
	}

	return raw
}

// stripLanguagePrefix removes a 3-byte ISO-639 language code from the
// front of frames whose semantics carry one (COMM, USLT).
func stripLanguagePrefix(raw []byte) []byte {
	if len(raw) < 3 {
		return raw
	}

	return raw[3:]
}

// id3TextEncodingByte maps an ID3v2 frame's leading encoding byte to a
// textEncoding, honoring a caller-supplied default for the latin-1 slot.
func id3TextEncodingByte(b byte, defaultLatin1 textEncoding) textEncoding {
	switch b {
	case 0x00:
		return defaultLatin1
	case 0x01:
		return encUTF16BOM
	case 0x02:
		return encUTF16LE
	case 0x03:
		return encUTF8
	default:
		return defaultLatin1
	}
}

// readNulTerminated splits raw at the first NUL terminator appropriate to
// enc (one zero byte for byte-oriented encodings, a zero pair aligned to
// an even offset for UTF-16 variants), returning the terminated segment
// and the remainder.
func readNulTerminated(raw []byte, enc textEncoding) (term, rest []byte) {
	if enc == encUTF16BOM || enc == encUTF16LE || enc == encUTF16BE {
		for i := 0; i+1 < len(raw); i += 2 {
			if raw[i] == 0 && raw[i+1] == 0 {
				return raw[:i], raw[i+2:]
			}
		}

		return raw, nil
	}

	idx := bytes.IndexByte(raw, 0)
	if idx < 0 {
		return raw, nil
	}

	return raw[:idx], raw[idx+1:]
}
