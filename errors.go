package tagscan

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when no parser claims a given source,
// either because its extension is unrecognized or its magic bytes match
// none of the supported container families.
var ErrUnsupportedFormat = errors.New("tagscan: unsupported format")

// ErrArgument is returned for caller misuse: neither a path nor a source
// was supplied, or incompatible options were requested together.
var ErrArgument = errors.New("tagscan: invalid argument")

// ParseError reports a structural violation encountered while decoding a
// recognized container: a bad magic value, a truncated required block, or
// a declared size exceeding the bytes actually available. Soft errors
// (unknown frame ids, unsupported atom types, numeric overflow) are never
// reported this way — the affected field is simply left unset.
type ParseError struct {
	format string
	offset int64
	err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tagscan: %s: parse error at offset %d: %v", e.format, e.offset, e.err)
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// Format names the parser variant that raised the error (e.g. "mp3", "flac").
func (e *ParseError) Format() string {
	return e.format
}

// Offset is the byte offset into the source at which the violation was detected.
func (e *ParseError) Offset() int64 {
	return e.offset
}

func newParseError(format string, offset int64, err error) *ParseError {
	return &ParseError{format: format, offset: offset, err: err}
}

func parseErrorf(format string, offset int64, msg string, args ...interface{}) *ParseError {
	return newParseError(format, offset, fmt.Errorf(msg, args...))
}

// errBadMagic is the underlying error wrapped by ParseError when a
// container's magic bytes don't match what its parser variant expects.
var errBadMagic = errors.New("bad magic")
