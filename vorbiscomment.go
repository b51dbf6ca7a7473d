package tagscan

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
)

// parseVorbisComment decodes a Vorbis comment block: an optional vendor
// string, an element count, then that many "key=value" UTF-8 entries. It
// is shared verbatim by Ogg Vorbis/Opus/Speex and by native/Ogg FLAC.
func parseVorbisComment(raw []byte, tag *Tag, opts Options) error {
	if len(raw) < 4 {
		return parseErrorf("vorbiscomment", 0, "truncated vendor length")
	}

	vendorLen := int(binary.LittleEndian.Uint32(raw[0:4]))
	offset := 4

	if offset+vendorLen > len(raw) {
		return parseErrorf("vorbiscomment", int64(offset), "vendor string exceeds block")
	}

	offset += vendorLen

	if offset+4 > len(raw) {
		return parseErrorf("vorbiscomment", int64(offset), "truncated comment count")
	}

	count := int(binary.LittleEndian.Uint32(raw[offset : offset+4]))
	offset += 4

	for i := 0; i < count; i++ {
		if offset+4 > len(raw) {
			break
		}

		entryLen := int(binary.LittleEndian.Uint32(raw[offset : offset+4]))
		offset += 4

		if entryLen < 0 || offset+entryLen > len(raw) {
			break
		}

		entry := raw[offset : offset+entryLen]
		offset += entryLen

		applyVorbisCommentEntry(tag, string(entry), opts)
	}

	return nil
}

func applyVorbisCommentEntry(tag *Tag, entry string, opts Options) {
	eq := strings.IndexByte(entry, '=')
	if eq < 0 {
		return
	}

	key := strings.ToLower(entry[:eq])
	value := entry[eq+1:]

	if value == "" {
		return
	}

	switch key {
	case "title":
		tag.SetString(FieldTitle, value)
	case "album":
		tag.SetString(FieldAlbum, value)
	case "artist":
		tag.SetString(FieldArtist, value)
	case "albumartist", "album artist":
		tag.SetString(FieldAlbumArtist, value)
	case "date":
		tag.SetString(FieldYear, value)
	case "genre":
		tag.SetString(FieldGenre, value)
	case "comment", "description":
		tag.SetString(FieldComment, value)
	case "composer":
		tag.SetString(FieldComposer, value)
	case "tracknumber":
		n, total := splitNumTotal(value)
		tag.SetInt(FieldTrack, n)
		tag.SetInt(FieldTrackTotal, total)
	case "tracktotal", "totaltracks":
		tag.SetInt(FieldTrackTotal, parseLeadingInt(value))
	case "discnumber":
		n, total := splitNumTotal(value)
		tag.SetInt(FieldDisc, n)
		tag.SetInt(FieldDiscTotal, total)
	case "disctotal", "totaldiscs":
		tag.SetInt(FieldDiscTotal, parseLeadingInt(value))
	case "bpm":
		tag.SetOther("bpm", value)
	case "copyright":
		tag.SetOther("copyright", value)
	case "lyrics":
		tag.SetOther("lyrics", value)
	case "publisher":
		tag.SetOther("publisher", value)
	case "originalyear":
		tag.SetOther("original_year", value)
	case "metadata_block_picture":
		applyBase64FlacPicture(tag, value, opts)
	default:
		if strings.HasPrefix(key, "musicbrainz") {
			tag.SetOther(strings.ReplaceAll(key, " ", "_"), value)

			return
		}

		tag.SetOther(strings.ReplaceAll(key, " ", "_"), value)
	}
}

// applyBase64FlacPicture decodes the base64-encoded FLAC PICTURE block
// carried by the Vorbis comment key "metadata_block_picture" (used by
// Vorbis/Opus files to embed cover art, since they have no native picture
// frame of their own).
func applyBase64FlacPicture(tag *Tag, encoded string, opts Options) {
	if !opts.Image {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return
	}

	_ = parseFlacPictureBlock(raw, tag)
}
