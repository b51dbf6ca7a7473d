package tagscan

import (
	"encoding/binary"
	"io"
)

const flacMagic = "fLaC"

type flacParser struct{}

const (
	flacBlockStreamInfo    = 0
	flacBlockVorbisComment = 4
	flacBlockPicture       = 6
)

// locateFlacStart skips an optional leading ID3v2 tag and verifies the
// "fLaC" magic, returning the offset right after it (where metadata
// blocks begin) plus the length of any leading ID3v2 tag it skipped.
func locateFlacStart(r ByteReader) (streamStart int64, leadingID3Len int64, err error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, 0, newParseError("flac", 0, err)
	}

	if header, ok, perr := peekID3v2Header(r); perr != nil {
		return 0, 0, perr
	} else if ok {
		leadingID3Len = id3v2HeaderLen + header.Size
		if header.hasFooter() {
			leadingID3Len += 10
		}

		if _, err := r.Seek(leadingID3Len, io.SeekStart); err != nil {
			return 0, 0, newParseError("flac", leadingID3Len, err)
		}
	}

	magic, err := readExact(r, 4)
	if err != nil || string(magic) != flacMagic {
		return 0, 0, newParseError("flac", tell(r), errBadMagic)
	}

	return tell(r), leadingID3Len, nil
}

func (flacParser) parseTag(r ByteReader, tag *Tag, opts Options) error {
	streamStart, leadingID3Len, err := locateFlacStart(r)
	if err != nil {
		return err
	}

	if leadingID3Len > 0 {
		// ID3 fields apply only where the Vorbis comment leaves them
		// unset, so parse the native FLAC blocks first, then merge.
		leadingTag := NewTag()

		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return newParseError("flac", 0, err)
		}

		if _, err := parseID3v2(r, leadingTag, opts); err != nil {
			return err
		}

		if err := walkFlacBlocks(r, streamStart, tag, opts); err != nil {
			return err
		}

		mergeTagDefaults(tag, leadingTag)

		return nil
	}

	return walkFlacBlocks(r, streamStart, tag, opts)
}

func (flacParser) determineDuration(r ByteReader, tag *Tag, opts Options) error {
	streamStart, _, err := locateFlacStart(r)
	if err != nil {
		return err
	}

	return walkFlacBlocks(r, streamStart, tag, opts)
}

func walkFlacBlocks(r ByteReader, start int64, tag *Tag, opts Options) error {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return newParseError("flac", start, err)
	}

	for {
		header, err := readExact(r, 4)
		if err != nil {
			return newParseError("flac", tell(r), err)
		}

		final := header[0]&0x80 != 0
		blockType := header[0] & 0x7F
		size := int(header[1])<<16 | int(header[2])<<8 | int(header[3])

		payload, err := readExact(r, size)
		if err != nil {
			return newParseError("flac", tell(r), err)
		}

		switch blockType {
		case flacBlockStreamInfo:
			if err := parseFlacStreamInfo(payload, tag, r.Size()); err != nil {
				return err
			}
		case flacBlockVorbisComment:
			if err := parseVorbisComment(payload, tag, opts); err != nil {
				return err
			}
		case flacBlockPicture:
			if opts.Image {
				_ = parseFlacPictureBlock(payload, tag)
			}
		}

		if final {
			break
		}
	}

	return nil
}

func parseFlacStreamInfo(payload []byte, tag *Tag, filesize int64) error {
	if len(payload) < 34 {
		return parseErrorf("flac", 0, "STREAMINFO too short")
	}

	sampleRate := int(payload[10])<<12 | int(payload[11])<<4 | int(payload[12])>>4
	channels := int((payload[12]>>1)&0x07) + 1
	bitDepth := (int(payload[12]&0x01)<<4 | int(payload[13]>>4)) + 1
	totalSamples := int64(payload[13]&0x0F)<<32 | int64(payload[14])<<24 | int64(payload[15])<<16 | int64(payload[16])<<8 | int64(payload[17])

	tag.SetInt(FieldSampleRate, sampleRate)
	tag.SetInt(FieldChannels, channels)
	tag.SetInt(FieldBitDepth, bitDepth)

	if sampleRate > 0 && totalSamples > 0 {
		duration := float64(totalSamples) / float64(sampleRate)
		tag.Duration = duration

		if duration > 0 {
			tag.Bitrate = float64(filesize) * 8 / duration / 1000
		}
	}

	return nil
}

func parseFlacPictureBlock(payload []byte, tag *Tag) error {
	if len(payload) < 32 {
		return parseErrorf("flac", 0, "PICTURE block too short")
	}

	picType := binary.BigEndian.Uint32(payload[0:4])
	offset := 4

	mimeLen := int(binary.BigEndian.Uint32(payload[offset : offset+4]))
	offset += 4

	if offset+mimeLen > len(payload) {
		return parseErrorf("flac", int64(offset), "PICTURE mime exceeds block")
	}

	mime := string(payload[offset : offset+mimeLen])
	offset += mimeLen

	if offset+4 > len(payload) {
		return parseErrorf("flac", int64(offset), "truncated PICTURE description length")
	}

	descLen := int(binary.BigEndian.Uint32(payload[offset : offset+4]))
	offset += 4

	if offset+descLen > len(payload) {
		return parseErrorf("flac", int64(offset), "PICTURE description exceeds block")
	}

	desc := string(payload[offset : offset+descLen])
	offset += descLen

	// width, height, depth, ncolors: 4 x 4 bytes, not needed by the Tag model.
	offset += 16

	if offset+4 > len(payload) {
		return parseErrorf("flac", int64(offset), "truncated PICTURE data length")
	}

	dataLen := int(binary.BigEndian.Uint32(payload[offset : offset+4]))
	offset += 4

	if offset+dataLen > len(payload) {
		return parseErrorf("flac", int64(offset), "PICTURE data exceeds block")
	}

	data := payload[offset : offset+dataLen]

	img := &Image{
		Name:        id3PictureTypeSlot(byte(picType)),
		Data:        append([]byte(nil), data...),
		MimeType:    mime,
		Description: desc,
	}

	tag.Images.Set(img)

	return nil
}

// mergeTagDefaults copies every field set in src into dst wherever dst
// still has the zero value, implementing "ID3 fields apply only where the
// Vorbis comment left them unset".
func mergeTagDefaults(dst, src *Tag) {
	if dst.Title == "" {
		dst.Title = src.Title
	}

	if dst.Artist == "" {
		dst.Artist = src.Artist
	}

	if dst.AlbumArtist == "" {
		dst.AlbumArtist = src.AlbumArtist
	}

	if dst.Composer == "" {
		dst.Composer = src.Composer
	}

	if dst.Album == "" {
		dst.Album = src.Album
	}

	if dst.Genre == "" {
		dst.Genre = src.Genre
	}

	if dst.Comment == "" {
		dst.Comment = src.Comment
	}

	if dst.Year == "" {
		dst.Year = src.Year
	}

	if dst.Track == 0 {
		dst.Track = src.Track
	}

	if dst.TrackTotal == 0 {
		dst.TrackTotal = src.TrackTotal
	}

	if dst.Disc == 0 {
		dst.Disc = src.Disc
	}

	if dst.DiscTotal == 0 {
		dst.DiscTotal = src.DiscTotal
	}

	for k, vs := range src.Other {
		for _, v := range vs {
			dst.SetOther(k, v)
		}
	}

	if dst.Images.Any() == nil {
		dst.Images = src.Images
	}
}
