// Package tagscan reads descriptive metadata and audio properties from
// MPEG (ID3), Ogg (Vorbis/Opus/FLAC/Speex), native FLAC, RIFF WAVE, AIFF/AIFC,
// MPEG-4/ISO-BMFF and ASF/WMA container files without decoding any audio
// samples and without depending on any external multimedia library.
//
// Get is the package's single entry point:
//
//	tag, err := tagscan.Get("track.flac", tagscan.DefaultOptions())
//
// Tag exposes the union of fields every supported container can carry;
// fields a given file does not set are left at their zero value. Unknown
// or duplicate values surface in Tag.Other rather than being discarded.
package tagscan
