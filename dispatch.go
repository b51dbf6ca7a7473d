package tagscan

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// formatVariant is the shared shape every container parser implements: a
// tag pass and a duration/audio-properties pass, each free to reuse state
// read by the other via the Tag itself (e.g. mp3Parser.determineDuration
// re-peeks the ID3v2 header parseTag already consumed).
type formatVariant interface {
	parseTag(r ByteReader, tag *Tag, opts Options) error
	determineDuration(r ByteReader, tag *Tag, opts Options) error
}

// FormatID names one of the seven supported container families, for
// callers that want to force a specific parser via GetAs instead of
// letting Get sniff it.
type FormatID int

const (
	FormatMPEG FormatID = iota
	FormatOgg
	FormatFLAC
	FormatWave
	FormatAIFF
	FormatMP4
	FormatWMA
)

var formatsByID = map[FormatID]formatVariant{
	FormatMPEG: mp3Parser{},
	FormatOgg:  oggParser{},
	FormatFLAC: flacParser{},
	FormatWave: waveParser{},
	FormatAIFF: aiffParser{},
	FormatMP4:  mp4Parser{},
	FormatWMA:  wmaParser{},
}

// extensionFormats maps a lowercased, dot-stripped file extension to its
// format family, per the table in §1.
var extensionFormats = map[string]FormatID{
	"mp1": FormatMPEG, "mp2": FormatMPEG, "mp3": FormatMPEG,
	"ogg": FormatOgg, "oga": FormatOgg, "opus": FormatOgg, "spx": FormatOgg,
	"wav": FormatWave,
	"flac": FormatFLAC,
	"wma":  FormatWMA,
	"m4a": FormatMP4, "mp4": FormatMP4, "aax": FormatMP4, "aaxc": FormatMP4,
	"aiff": FormatAIFF, "aifc": FormatAIFF, "aif": FormatAIFF, "afc": FormatAIFF,
}

// IsSupported reports whether path's extension is one of the families this
// library recognizes, matching the dispatcher's extension-table step
// without needing to open the file.
func IsSupported(path string) bool {
	_, ok := extensionFormats[extOf(path)]

	return ok
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}

	return strings.ToLower(path[idx+1:])
}

// Get parses path, selecting a parser by extension and falling back to
// magic-byte sniffing, and returns the resulting Tag. opts controls which
// passes run and how images/encoding are handled; the zero Options value
// is invalid — callers should start from DefaultOptions().
func Get(path string, opts Options) (*Tag, error) {
	if path == "" {
		return nil, fmt.Errorf("tagscan: get: %w", ErrArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tagscan: get %q: %w", path, err)
	}
	defer f.Close()

	r, err := newByteReaderFromReadSeeker(f)
	if err != nil {
		return nil, fmt.Errorf("tagscan: get %q: %w", path, err)
	}

	tag, err := getFromSource(r, opts, extOf(path))
	if err != nil {
		return nil, err
	}

	tag.Filename = path

	return tag, nil
}

// GetReader parses an already-opened seekable source, without a file
// extension hint — format selection falls straight to magic-byte
// sniffing. The caller retains ownership of rs and must close it.
func GetReader(rs io.ReadSeeker, opts Options) (*Tag, error) {
	if rs == nil {
		return nil, fmt.Errorf("tagscan: get: %w", ErrArgument)
	}

	r, err := newByteReaderFromReadSeeker(rs)
	if err != nil {
		return nil, fmt.Errorf("tagscan: get: %w", err)
	}

	return getFromSource(r, opts, "")
}

// GetAs forces parser variant id instead of selecting one, for callers
// that already know the container family.
func GetAs(path string, id FormatID, opts Options) (*Tag, error) {
	variant, ok := formatsByID[id]
	if !ok {
		return nil, fmt.Errorf("tagscan: get_as: %w", ErrArgument)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tagscan: get_as %q: %w", path, err)
	}
	defer f.Close()

	r, err := newByteReaderFromReadSeeker(f)
	if err != nil {
		return nil, fmt.Errorf("tagscan: get_as %q: %w", path, err)
	}

	tag := NewTag()
	tag.Filename = path
	tag.Filesize = r.Size()

	if err := runVariant(variant, r, tag, opts); err != nil {
		return nil, err
	}

	return tag, nil
}

func getFromSource(r ByteReader, opts Options, ext string) (*Tag, error) {
	tag := NewTag()
	tag.Filesize = r.Size()

	if tag.Filesize == 0 {
		return tag, nil
	}

	variant, err := selectVariant(r, ext)
	if err != nil {
		return nil, err
	}

	if err := runVariant(variant, r, tag, opts); err != nil {
		return nil, err
	}

	return tag, nil
}

func runVariant(variant formatVariant, r ByteReader, tag *Tag, opts Options) error {
	if opts.Tags {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("tagscan: %w", err)
		}

		if err := variant.parseTag(r, tag, opts); err != nil {
			return err
		}
	}

	if opts.Duration {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("tagscan: %w", err)
		}

		if err := variant.determineDuration(r, tag, opts); err != nil {
			return err
		}
	}

	return nil
}

// selectVariant implements dispatcher step 2: extension match, then
// magic-byte sniff, in that order.
func selectVariant(r ByteReader, ext string) (formatVariant, error) {
	if id, ok := extensionFormats[ext]; ok {
		return formatsByID[id], nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("tagscan: %w", err)
	}

	head, err := readExact(r, 16)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("tagscan: %w", err)
	}

	id, ok := sniffMagic(head)
	if !ok {
		return nil, fmt.Errorf("tagscan: %w", ErrUnsupportedFormat)
	}

	return formatsByID[id], nil
}

func sniffMagic(head []byte) (FormatID, bool) {
	switch {
	case len(head) >= 3 && string(head[0:3]) == "ID3":
		return FormatMPEG, true
	case len(head) >= 2 && head[0] == 0xFF && head[1] == 0xF1:
		// Raw ADTS-AAC sync; treated as an MP4-family bitstream rather than
		// a layer I/II/III MPEG frame.
		return FormatMP4, true
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMPEG, true
	case len(head) >= 4 && string(head[0:4]) == oggPageMagic:
		return FormatOgg, true
	case len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return FormatWave, true
	case len(head) >= 4 && string(head[0:4]) == flacMagic:
		return FormatFLAC, true
	case len(head) >= 16 && head[0] == 0x30 && head[1] == 0x26 && head[2] == 0xB2 && head[3] == 0x75:
		return FormatWMA, true
	case len(head) >= 12 && string(head[4:8]) == "ftyp" && isMp4Brand(string(head[8:12])):
		return FormatMP4, true
	case len(head) >= 12 && string(head[0:4]) == "FORM" && (string(head[8:12]) == "AIFF" || string(head[8:12]) == "AIFC"):
		return FormatAIFF, true
	default:
		return 0, false
	}
}

func isMp4Brand(brand string) bool {
	switch brand {
	case "isom", "mp42", "mp41", "M4A ", "M4B ", "aax ", "aaxc":
		return true
	default:
		return strings.HasPrefix(brand, "M4A") || strings.HasPrefix(brand, "aax")
	}
}
