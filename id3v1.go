package tagscan

import "io"

const id3v1TrailerLen = 128

// parseID3v1 reads the fixed-layout 128-byte ID3v1 trailer at the end of
// the file, applying its fields only where the corresponding core field is
// still unset (an ID3v2 tag, when present, always takes precedence).
func parseID3v1(r ByteReader, tag *Tag, opts Options) error {
	if r.Size() <= id3v1TrailerLen {
		return nil
	}

	if _, err := r.Seek(-id3v1TrailerLen, io.SeekEnd); err != nil {
		return newParseError("id3v1", r.Size(), err)
	}

	raw, err := readExact(r, id3v1TrailerLen)
	if err != nil {
		return newParseError("id3v1", tell(r), err)
	}

	if string(raw[0:3]) != "TAG" {
		return nil
	}

	defaultLatin1 := encLatin1
	if opts.Encoding != "" {
		if e, ok := encodingByName(opts.Encoding); ok {
			defaultLatin1 = e
		}
	}

	title := decodeText(raw[3:33], defaultLatin1)
	artist := decodeText(raw[33:63], defaultLatin1)
	album := decodeText(raw[63:93], defaultLatin1)
	year := decodeText(raw[93:97], defaultLatin1)
	commentRaw := raw[97:127]
	genreByte := raw[127]

	tag.SetString(FieldTitle, title)
	tag.SetString(FieldArtist, artist)
	tag.SetString(FieldAlbum, album)
	tag.SetString(FieldYear, year)

	// ID3v1.1: if byte 28 of the comment field is NUL and byte 29 is
	// non-zero, the comment is truncated to 28 bytes and byte 29 is a
	// track number.
	if commentRaw[28] == 0 && commentRaw[29] != 0 {
		tag.SetString(FieldComment, decodeText(commentRaw[:28], defaultLatin1))
		tag.SetInt(FieldTrack, int(commentRaw[29]))
	} else {
		tag.SetString(FieldComment, decodeText(commentRaw, defaultLatin1))
	}

	if name, ok := genreFromIndex(int(genreByte)); ok {
		tag.SetString(FieldGenre, name)
	}

	return nil
}
