package tagscan

import (
	"encoding/binary"
	"io"
	"strings"
)

type waveParser struct{}

// walkWaveChunks drives the RIFF WAVE chunk chain once, feeding both the
// tags and duration computations so either entry point can call it.
func walkWaveChunks(r ByteReader, tag *Tag, opts Options) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return newParseError("wave", 0, err)
	}

	header, err := readExact(r, 12)
	if err != nil {
		return newParseError("wave", tell(r), err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return newParseError("wave", 0, errBadMagic)
	}

	var fmtChannels, fmtBitDepth int

	var fmtSampleRate int

	for {
		chunkHeader, err := readExact(r, 8)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			break
		}

		if err != nil {
			return newParseError("wave", tell(r), err)
		}

		chunkID := string(chunkHeader[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))

		switch chunkID {
		case "fmt ":
			payload, err := readExact(r, int(chunkSize))
			if err != nil {
				return newParseError("wave", tell(r), err)
			}

			if len(payload) >= 16 {
				fmtChannels = int(binary.LittleEndian.Uint16(payload[2:4]))
				fmtSampleRate = int(binary.LittleEndian.Uint32(payload[4:8]))
				fmtBitDepth = int(binary.LittleEndian.Uint16(payload[14:16]))

				if fmtBitDepth == 0 {
					fmtBitDepth = 1
				}

				tag.SetInt(FieldChannels, fmtChannels)
				tag.SetInt(FieldSampleRate, fmtSampleRate)
				tag.SetInt(FieldBitDepth, fmtBitDepth)
			}
		case "data":
			if fmtChannels > 0 && fmtSampleRate > 0 && fmtBitDepth > 0 {
				tag.Duration = float64(chunkSize) / float64(fmtChannels) / float64(fmtSampleRate) / (float64(fmtBitDepth) / 8)
				tag.Bitrate = float64(fmtChannels) * float64(fmtSampleRate) * float64(fmtBitDepth) / 1000
			}

			if _, err := r.Seek(chunkSize, io.SeekCurrent); err != nil {
				return newParseError("wave", tell(r), err)
			}
		case "LIST":
			payload, err := readExact(r, int(chunkSize))
			if err != nil {
				return newParseError("wave", tell(r), err)
			}

			if len(payload) >= 4 && string(payload[0:4]) == "INFO" {
				parseWaveListInfo(payload[4:], tag)
			}
		case "id3 ", "ID3 ":
			payload, err := readExact(r, int(chunkSize))
			if err != nil {
				return newParseError("wave", tell(r), err)
			}

			embedded := newByteReaderFromBytes(payload)
			if _, err := parseID3v2(embedded, tag, opts); err != nil {
				return err
			}
		default:
			if _, err := r.Seek(chunkSize, io.SeekCurrent); err != nil {
				return newParseError("wave", tell(r), err)
			}
		}

		if chunkSize%2 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				break
			}
		}

		if tell(r) >= r.Size() {
			break
		}
	}

	return nil
}

func parseWaveListInfo(raw []byte, tag *Tag) {
	offset := 0

	for offset+8 <= len(raw) {
		field := string(raw[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		offset += 8

		if offset+size > len(raw) {
			size = len(raw) - offset
		}

		value := strings.TrimRight(string(raw[offset:offset+size]), "\x00")
		offset += size

		if size%2 == 1 {
			offset++
		}

		if value == "" {
			continue
		}

		switch field {
		case "INAM", "TITL":
			tag.SetString(FieldTitle, value)
		case "IART":
			tag.SetString(FieldArtist, value)
		case "IPRD":
			tag.SetString(FieldAlbum, value)
		case "IGNR":
			tag.SetString(FieldGenre, value)
		case "ICMT":
			tag.SetString(FieldComment, value)
		case "ICRD":
			tag.SetString(FieldYear, value)
		case "IPRT", "ITRK", "TRCK":
			if n := parseLeadingInt(value); n > 0 {
				tag.SetInt(FieldTrack, n)
			}
		case "IWRI":
			tag.SetString(FieldComposer, value)
		default:
			tag.SetOther(strings.ToLower(field), value)
		}
	}
}

func (waveParser) parseTag(r ByteReader, tag *Tag, opts Options) error {
	return walkWaveChunks(r, tag, opts)
}

func (waveParser) determineDuration(r ByteReader, tag *Tag, opts Options) error {
	return walkWaveChunks(r, tag, opts)
}
