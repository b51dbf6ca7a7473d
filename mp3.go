package tagscan

import "io"

// mp3Parser is the MPEG/ID3 parser variant: ID3v2 tag (if present) plus
// ID3v1 trailer for tags, frame-walk (with Xing/VBRI fast path) for
// duration.
type mp3Parser struct{}

func (mp3Parser) parseTag(r ByteReader, tag *Tag, opts Options) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return newParseError("mp3", 0, err)
	}

	if _, err := parseID3v2(r, tag, opts); err != nil {
		return err
	}

	if err := parseID3v1(r, tag, opts); err != nil {
		return err
	}

	return nil
}

func (mp3Parser) determineDuration(r ByteReader, tag *Tag, opts Options) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return newParseError("mp3", 0, err)
	}

	audioStart := int64(0)

	if header, ok, err := peekID3v2Header(r); err != nil {
		return err
	} else if ok {
		audioStart = id3v2HeaderLen + header.Size
		if header.hasFooter() {
			audioStart += 10
		}
	}

	return determineMPEGDuration(r, tag, audioStart, opts)
}
